package redis

import (
	"context"

	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"
)

var _ repository.DeadLetterStore = (*DeadLetterRepo)(nil)

// DeadLetterRepo is the append-only terminal-failure list. LPUSH keeps
// the newest entry at index 0, so LRANGE 0..limit-1 is newest-first.
// Nothing in the system ever pops this list.
type DeadLetterRepo struct {
	client *Client
	key    string
}

func NewDeadLetterRepo(client *Client, key string) *DeadLetterRepo {
	return &DeadLetterRepo{client: client, key: key}
}

func (d *DeadLetterRepo) Append(ctx context.Context, entry *model.DeadLetterEntry) error {
	b, err := entry.Encode()
	if err != nil {
		return err
	}
	return d.client.LPush(ctx, d.key, b)
}

func (d *DeadLetterRepo) List(ctx context.Context, limit int) ([]*model.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := d.client.LRange(ctx, d.key, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	entries := make([]*model.DeadLetterEntry, 0, len(raw))
	for _, payload := range raw {
		e, err := model.ParseDeadLetterEntry([]byte(payload))
		if err != nil {
			// A corrupt entry should not hide the rest of the list.
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (d *DeadLetterRepo) Find(ctx context.Context, jobID string) (*model.DeadLetterEntry, error) {
	// Dead-letter lists stay short in practice; a full scan newest-first
	// is fine and returns the most recent entry for the job.
	raw, err := d.client.LRange(ctx, d.key, 0, -1)
	if err != nil {
		return nil, err
	}
	for _, payload := range raw {
		e, err := model.ParseDeadLetterEntry([]byte(payload))
		if err != nil {
			continue
		}
		if e.ID == jobID {
			return e, nil
		}
	}
	return nil, domain.ErrNotFound
}
