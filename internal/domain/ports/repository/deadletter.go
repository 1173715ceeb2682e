package repository

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
)

// DeadLetterStore is the append-only list of jobs that exhausted their
// retry budget. Nothing in the system pops it; entries are read for
// manual inspection and for the admin requeue path, which starts a fresh
// attempt without removing the entry.
type DeadLetterStore interface {
	Append(ctx context.Context, entry *model.DeadLetterEntry) error
	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]*model.DeadLetterEntry, error)
	// Find returns the newest entry for jobID, or domain.ErrNotFound.
	Find(ctx context.Context, jobID string) (*model.DeadLetterEntry, error)
}
