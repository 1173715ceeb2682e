package repository

import (
	"context"
	"time"

	"video-recon-pipeline/internal/domain/model"
)

// JobQueue is the pending work queue. Pop is destructive and atomic:
// exactly one consumer ever receives a given entry, which is the only
// ownership primitive the pipeline relies on.
type JobQueue interface {
	// Pop blocks up to wait for the next pending job. Returns
	// domain.ErrQueueEmpty when the wait elapses with nothing queued and
	// a domain.ErrMalformedJob-wrapping error when the payload fails
	// schema validation (the entry is consumed either way).
	Pop(ctx context.Context, wait time.Duration) (*model.Job, error)

	// Push appends a job to the tail of the pending queue.
	Push(ctx context.Context, job *model.Job) error

	// Depth reports the number of pending entries.
	Depth(ctx context.Context) (int64, error)
}

// DownstreamQueue carries handoff records for the scene-import pipeline.
type DownstreamQueue interface {
	Push(ctx context.Context, job *model.DownstreamJob) error
	Depth(ctx context.Context) (int64, error)
}
