package adapter

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
)

// TelemetrySink pushes events at the ops gateway. Every method is
// best-effort by contract: callers log returned errors and move on, and
// no error from this interface may ever reach job state.
type TelemetrySink interface {
	PostProgress(ctx context.Context, ev model.ProgressEvent) error
	PostMetrics(ctx context.Context, sample model.ResourceSample) error
	PostError(ctx context.Context, message string) error
}
