package postgres

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"
)

var _ repository.JobArchive = (*NoopArchive)(nil)

// NoopArchive stands in when no database is configured.
type NoopArchive struct{}

func (NoopArchive) RecordTerminal(ctx context.Context, job *model.Job) error { return nil }

func (NoopArchive) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	return nil, nil
}
