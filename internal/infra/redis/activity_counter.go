package redis

import (
	"context"
	"strconv"

	"video-recon-pipeline/internal/domain/ports/repository"
)

var _ repository.ActivityCounter = (*ActivityCounter)(nil)

// ActivityCounter tracks in-flight jobs across all worker instances in a
// single shared counter key. INCR/DECR are atomic in Redis, so concurrent
// workers cannot lose updates.
type ActivityCounter struct {
	client *Client
	key    string
}

func NewActivityCounter(client *Client, key string) *ActivityCounter {
	return &ActivityCounter{client: client, key: key}
}

func (a *ActivityCounter) IncActive(ctx context.Context) error {
	_, err := a.client.Incr(ctx, a.key)
	return err
}

func (a *ActivityCounter) DecActive(ctx context.Context) error {
	n, err := a.client.Decr(ctx, a.key)
	if err != nil {
		return err
	}
	// A crashed worker that never decremented can leave the counter
	// drifting; clamp at zero so the idle predicate is never blocked by
	// a phantom negative-to-positive wraparound.
	if n < 0 {
		return a.client.Set(ctx, a.key, 0, 0)
	}
	return nil
}

func (a *ActivityCounter) Active(ctx context.Context) (int64, error) {
	v, err := a.client.Get(ctx, a.key)
	if err != nil {
		if IsNil(err) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}
