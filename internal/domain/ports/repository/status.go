package repository

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
)

// JobStatusStore holds one addressable record per job id, overwritten on
// every status transition. Dashboards read it; the pipeline writes it.
type JobStatusStore interface {
	Save(ctx context.Context, job *model.Job) error
	// Get returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, jobID string) (*model.Job, error)
}
