package redis

import (
	"context"
	"time"
)

// RateLimiter throttles uploads with a fixed-window counter: one INCR
// per request, the window TTL set on the first hit. A window that
// expires mid-burst simply starts a fresh count.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow reports whether the request under key fits within limit for the
// current window. On a Redis error it fails closed.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// UploadKey buckets upload requests by client address.
func UploadKey(remoteAddr string) string {
	return "rate_limit:upload:" + remoteAddr
}
