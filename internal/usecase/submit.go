package usecase

import (
	"context"
	"fmt"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Submit creates pending jobs: fresh ones from the upload path and
// replays of dead-lettered ones from the admin API.
type Submit struct {
	queue       repository.JobQueue
	status      repository.JobStatusStore
	deadLetters repository.DeadLetterStore
	maxRetries  int
	log         *zerolog.Logger
}

// NewSubmit wires the submission path. maxRetries is the configured
// per-job retry budget; zero or negative falls back to the model
// default.
func NewSubmit(
	queue repository.JobQueue,
	status repository.JobStatusStore,
	deadLetters repository.DeadLetterStore,
	maxRetries int,
	logger *zerolog.Logger,
) *Submit {
	if maxRetries <= 0 {
		maxRetries = model.DefaultMaxRetries
	}
	l := logger.With().Str("component", "Submit").Logger()
	return &Submit{
		queue:       queue,
		status:      status,
		deadLetters: deadLetters,
		maxRetries:  maxRetries,
		log:         &l,
	}
}

// Enqueue registers a new job for path and pushes it onto the pending
// queue. The status record is written first so a dashboard can resolve
// the id the moment the submitter learns it.
func (s *Submit) Enqueue(ctx context.Context, path, filename string, maxRetries int) (*model.Job, error) {
	return s.EnqueueWithID(ctx, uuid.NewString(), path, filename, maxRetries)
}

// EnqueueWithID is Enqueue for callers that had to mint the id up front
// (the upload handler names the stored file after the job id). A
// non-positive maxRetries takes the configured budget.
func (s *Submit) EnqueueWithID(ctx context.Context, id, path, filename string, maxRetries int) (*model.Job, error) {
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}
	job := &model.Job{
		ID:         id,
		Filename:   filename,
		Filepath:   path,
		Status:     model.JobStatusQueued,
		Retries:    0,
		MaxRetries: maxRetries,
		CreatedAt:  model.Now(),
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := s.status.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job record: %w", err)
	}
	if err := s.queue.Push(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.log.Info().Str("job_id", job.ID).Str("filepath", path).Msg("job queued")
	return job, nil
}

// RequeueDeadLetter starts a fresh attempt for a dead-lettered job. The
// dead-letter entry itself stays where it is (the list is append-only)
// and the retry budget starts over.
func (s *Submit) RequeueDeadLetter(ctx context.Context, jobID string) (*model.Job, error) {
	entry, err := s.deadLetters.Find(ctx, jobID)
	if err != nil {
		return nil, err
	}

	job := entry.Job
	job.Status = model.JobStatusQueued
	job.Retries = 0
	job.LastError = ""
	job.StartedAt = nil
	job.FinishedAt = nil
	job.FailedAt = nil

	if err := s.status.Save(ctx, &job); err != nil {
		return nil, fmt.Errorf("save job record: %w", err)
	}
	if err := s.queue.Push(ctx, &job); err != nil {
		return nil, fmt.Errorf("requeue job: %w", err)
	}
	s.log.Info().Str("job_id", job.ID).Msg("dead-lettered job requeued")
	return &job, nil
}
