package repository

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
)

// JobArchive is a long-term sink for terminal job records (completed or
// failed). Writes are best-effort: archive failures must never influence
// job state. A noop implementation stands in when no database is
// configured.
type JobArchive interface {
	RecordTerminal(ctx context.Context, job *model.Job) error
	// ListRecent returns up to limit terminal records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*model.Job, error)
}
