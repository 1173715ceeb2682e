package alert

import (
	"context"
	"time"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Alerter = (*NoopAlerter)(nil)

// NoopAlerter stands in when no alert channel is configured.
type NoopAlerter struct{}

func (NoopAlerter) JobDeadLettered(ctx context.Context, job *model.Job) error { return nil }

func (NoopAlerter) ShutdownTriggered(ctx context.Context, host string, idleFor time.Duration) error {
	return nil
}
