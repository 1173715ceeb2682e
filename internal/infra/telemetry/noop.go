package telemetry

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"
)

var _ adapter.TelemetrySink = (*NoopSink)(nil)

// NoopSink stands in when no telemetry endpoint is configured.
type NoopSink struct{}

func (NoopSink) PostProgress(ctx context.Context, ev model.ProgressEvent) error    { return nil }
func (NoopSink) PostMetrics(ctx context.Context, sample model.ResourceSample) error { return nil }
func (NoopSink) PostError(ctx context.Context, message string) error                { return nil }
