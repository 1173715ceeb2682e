package adapter

import (
	"context"
	"time"
)

// ShutdownController asks the external supervisor / instance API to stop
// the fleet. Fire-and-forget: the caller never verifies completion and
// never retries a failed call.
type ShutdownController interface {
	Shutdown(ctx context.Context, reason string, idleFor time.Duration) error
}
