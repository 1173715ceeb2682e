package repository

import (
	"context"
	"time"
)

// IdleState holds the single idle-start timestamp for the fleet.
// Invariant: a stored timestamp exists if and only if the fleet has been
// continuously idle since that moment; any observed activity clears it.
type IdleState interface {
	// Get returns the stored idle-start time; ok is false when none is set.
	Get(ctx context.Context) (since time.Time, ok bool, err error)
	Set(ctx context.Context, since time.Time) error
	Clear(ctx context.Context) error
}
