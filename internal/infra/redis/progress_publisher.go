package redis

import (
	"context"
	"encoding/json"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

var _ repository.ProgressPublisher = (*ProgressPublisher)(nil)

// ProgressPublisher fans progress events out on the per-job pub/sub
// channel {prefix}{job_id}. Best-effort by contract.
type ProgressPublisher struct {
	client *Client
	prefix string
}

func NewProgressPublisher(client *Client, prefix string) *ProgressPublisher {
	return &ProgressPublisher{client: client, prefix: prefix}
}

func (p *ProgressPublisher) Publish(ctx context.Context, ev model.ProgressEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.prefix+ev.JobID, b)
}

// ProgressListener subscribes to every per-job progress channel and hands
// raw event payloads to a callback. The gateway uses it to feed its
// WebSocket hub.
type ProgressListener struct {
	client  *Client
	pattern string
	log     *zerolog.Logger
}

func NewProgressListener(client *Client, prefix string, logger *zerolog.Logger) *ProgressListener {
	l := logger.With().Str("component", "ProgressListener").Logger()
	return &ProgressListener{client: client, pattern: prefix + "*", log: &l}
}

// Listen blocks until ctx is cancelled, invoking handle for every
// published progress payload. Malformed payloads are logged and skipped.
func (l *ProgressListener) Listen(ctx context.Context, handle func(ev model.ProgressEvent)) error {
	sub := l.client.PSubscribe(ctx, l.pattern)
	defer sub.Close()

	ch := sub.Channel()
	l.log.Info().Str("pattern", l.pattern).Msg("listening for progress events")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				l.log.Warn().Err(err).Str("channel", msg.Channel).Msg("bad progress payload")
				continue
			}
			handle(ev)
		}
	}
}
