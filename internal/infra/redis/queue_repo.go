package redis

import (
	"context"
	"fmt"
	"time"

	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"
)

var _ repository.JobQueue = (*PendingQueue)(nil)

// PendingQueue is the Redis-backed pending work queue. Submit is LPUSH,
// consume is BRPOP: the destructive pop is what guarantees at most one
// worker ever owns a job.
type PendingQueue struct {
	client *Client
	key    string
}

func NewPendingQueue(client *Client, key string) *PendingQueue {
	return &PendingQueue{client: client, key: key}
}

func (q *PendingQueue) Pop(ctx context.Context, wait time.Duration) (*model.Job, error) {
	payload, err := q.client.BRPop(ctx, wait, q.key)
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrQueueEmpty
		}
		return nil, fmt.Errorf("brpop %s: %w", q.key, err)
	}
	// The entry is consumed at this point; a validation failure means the
	// payload is gone from the queue, which is deliberate (it could never
	// be processed anyway).
	return model.ParseJob([]byte(payload))
}

func (q *PendingQueue) Push(ctx context.Context, job *model.Job) error {
	b, err := job.Encode()
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b)
}

func (q *PendingQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key)
}

var _ repository.DownstreamQueue = (*DownstreamQueue)(nil)

// DownstreamQueue carries handoff records for the scene-import pipeline.
// This process only ever pushes; a separate consumer pops.
type DownstreamQueue struct {
	client *Client
	key    string
}

func NewDownstreamQueue(client *Client, key string) *DownstreamQueue {
	return &DownstreamQueue{client: client, key: key}
}

func (q *DownstreamQueue) Push(ctx context.Context, job *model.DownstreamJob) error {
	b, err := job.Encode()
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b)
}

func (q *DownstreamQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key)
}
