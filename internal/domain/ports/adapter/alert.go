package adapter

import (
	"context"
	"time"

	"video-recon-pipeline/internal/domain/model"
)

// Alerter notifies a human operator about events worth waking up for.
// Best-effort: errors are logged by the caller and swallowed.
type Alerter interface {
	JobDeadLettered(ctx context.Context, job *model.Job) error
	ShutdownTriggered(ctx context.Context, host string, idleFor time.Duration) error
}
