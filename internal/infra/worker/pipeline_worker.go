package worker

import (
	"context"
	"errors"
	"time"

	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"
	"video-recon-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Processor runs one complete attempt for a popped job, terminal-state
// handling included. Satisfied by usecase.Pipeline.
type Processor interface {
	Process(ctx context.Context, job *model.Job)
}

// PipelineWorker is one sequential consumer loop: blocking pop with a
// bounded wait, then one job processed end to end before the next pop.
// Scale-out is horizontal: run more loops (or more processes); the
// queue's atomic pop keeps them from colliding.
type PipelineWorker struct {
	queue    repository.JobQueue
	activity repository.ActivityCounter
	pipeline Processor
	popWait  time.Duration
	log      *zerolog.Logger
}

func NewPipelineWorker(
	queue repository.JobQueue,
	activity repository.ActivityCounter,
	pipeline Processor,
	popWait time.Duration,
	id int,
	logger *zerolog.Logger,
) *PipelineWorker {
	l := logger.With().Str("component", "PipelineWorker").Int("worker", id).Logger()
	return &PipelineWorker{
		queue:    queue,
		activity: activity,
		pipeline: pipeline,
		popWait:  popWait,
		log:      &l,
	}
}

// Run consumes jobs until ctx is cancelled. The bounded pop wait is what
// lets the loop notice cancellation without busy-spinning.
func (w *PipelineWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting pipeline worker")
	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("Stopping pipeline worker")
			return ctx.Err()
		}

		job, err := w.queue.Pop(ctx, w.popWait)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrQueueEmpty):
			continue
		case errors.Is(err, domain.ErrMalformedJob):
			// The entry is already consumed; without a usable id there
			// is nothing to retry. Logged and dropped.
			w.log.Error().Err(err).Msg("malformed job payload skipped")
			metrics.IncJobProcessed("malformed")
			continue
		default:
			if ctx.Err() != nil {
				w.log.Info().Msg("Stopping pipeline worker")
				return ctx.Err()
			}
			w.log.Error().Err(err).Msg("queue pop failed")
			// Back off briefly so a down queue store does not hot-loop.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := w.activity.IncActive(ctx); err != nil {
			w.log.Warn().Err(err).Msg("activity increment failed")
		}
		w.pipeline.Process(ctx, job)
		if err := w.activity.DecActive(context.WithoutCancel(ctx)); err != nil {
			w.log.Warn().Err(err).Msg("activity decrement failed")
		}
	}
}
