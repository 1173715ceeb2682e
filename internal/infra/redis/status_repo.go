package redis

import (
	"context"
	"fmt"

	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"
)

var _ repository.JobStatusStore = (*StatusRepo)(nil)

// StatusRepo keeps one record per job id under {prefix}{job_id},
// overwritten on every transition. Records never expire here; retention
// is an out-of-band concern.
type StatusRepo struct {
	client *Client
	prefix string
}

func NewStatusRepo(client *Client, prefix string) *StatusRepo {
	return &StatusRepo{client: client, prefix: prefix}
}

func (s *StatusRepo) key(jobID string) string { return s.prefix + jobID }

func (s *StatusRepo) Save(ctx context.Context, job *model.Job) error {
	b, err := job.Encode()
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(job.ID), b, 0)
}

func (s *StatusRepo) Get(ctx context.Context, jobID string) (*model.Job, error) {
	payload, err := s.client.Get(ctx, s.key(jobID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", s.key(jobID), err)
	}
	return model.ParseJob([]byte(payload))
}
