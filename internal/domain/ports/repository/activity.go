package repository

import "context"

// ActivityCounter tracks how many jobs are held by workers right now.
// Workers increment exactly once per pop and decrement exactly once when
// the job leaves them (completed, requeued, or dead-lettered); the cost
// monitor reads it as part of the idle predicate.
type ActivityCounter interface {
	IncActive(ctx context.Context) error
	DecActive(ctx context.Context) error
	Active(ctx context.Context) (int64, error)
}
