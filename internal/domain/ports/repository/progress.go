package repository

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
)

// ProgressPublisher fans a progress event out on the durable per-job
// channel. Best-effort: publish failures never affect job outcome.
type ProgressPublisher interface {
	Publish(ctx context.Context, ev model.ProgressEvent) error
}
