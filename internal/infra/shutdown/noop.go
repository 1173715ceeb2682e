package shutdown

import (
	"context"
	"time"

	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ShutdownController = (*NoopController)(nil)

// NoopController is wired when auto shutdown is disabled: the monitor
// still tracks idleness and logs what it would have done.
type NoopController struct{}

func (NoopController) Shutdown(ctx context.Context, reason string, idleFor time.Duration) error {
	return domain.ErrShutdownDisabled
}
