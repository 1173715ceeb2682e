package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"
	"video-recon-pipeline/internal/domain/ports/repository"
	"video-recon-pipeline/internal/infra/logging"
	"video-recon-pipeline/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Pipeline drives one job at a time through the fixed stage sequence and
// routes failures through the retry / dead-letter policy. It owns the job
// from the moment the worker hands it over until the record reaches a
// queue again (retry) or a terminal state.
type Pipeline struct {
	queue       repository.JobQueue
	downstream  repository.DownstreamQueue
	status      repository.JobStatusStore
	deadLetters repository.DeadLetterStore
	archive     repository.JobArchive
	progress    repository.ProgressPublisher
	telemetry   adapter.TelemetrySink
	executor    adapter.StageExecutor
	alerter     adapter.Alerter
	cfg         config.PipelineConfig
	log         *zerolog.Logger

	// sleep is the flat retry backoff; tests replace it.
	sleep func(ctx context.Context, d time.Duration)
}

func NewPipeline(
	queue repository.JobQueue,
	downstream repository.DownstreamQueue,
	status repository.JobStatusStore,
	deadLetters repository.DeadLetterStore,
	archive repository.JobArchive,
	progress repository.ProgressPublisher,
	telemetry adapter.TelemetrySink,
	executor adapter.StageExecutor,
	alerter adapter.Alerter,
	cfg config.PipelineConfig,
	logger *zerolog.Logger,
) *Pipeline {
	l := logger.With().Str("component", "Pipeline").Logger()
	return &Pipeline{
		queue:       queue,
		downstream:  downstream,
		status:      status,
		deadLetters: deadLetters,
		archive:     archive,
		progress:    progress,
		telemetry:   telemetry,
		executor:    executor,
		alerter:     alerter,
		cfg:         cfg,
		log:         &l,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type stageStep struct {
	stage    model.Stage
	startPct int
	donePct  int
	startMsg string
	doneMsg  string
	timeout  time.Duration
	// check runs after a successful executor call; executor exit status
	// alone is not proof of a usable result for every stage.
	check func() error
}

// Process runs one complete attempt for job, including the retry or
// dead-letter transition on failure. The per-job work directory is
// removed on every exit path.
func (p *Pipeline) Process(ctx context.Context, job *model.Job) {
	log := p.log.With().Str("job_id", job.ID).Int("attempt", job.Attempt()).Logger()
	defer logging.TraceDuration(&log, "Pipeline.Process")()

	job.Status = model.JobStatusProcessing
	job.StartedAt = model.NowPtr()
	if err := p.status.Save(ctx, job); err != nil {
		log.Error().Err(err).Msg("save processing status")
	}
	log.Info().Str("filepath", job.Filepath).Msg("processing job")

	workDir := filepath.Join(p.cfg.WorkRoot, job.ID)
	framesDir := filepath.Join(workDir, "frames")
	sceneDir := filepath.Join(p.cfg.SceneRoot, job.ID)
	sparseDir := filepath.Join(sceneDir, "sparse")

	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Err(err).Str("dir", workDir).Msg("work dir cleanup failed")
		}
	}()

	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		p.fail(ctx, job, domain.NewStageError(string(model.StageVideoExtraction), "create work dir", err))
		return
	}
	if err := os.MkdirAll(sparseDir, 0o755); err != nil {
		p.fail(ctx, job, domain.NewStageError(string(model.StageReconstruction), "create scene dir", err))
		return
	}

	in := adapter.StageInput{
		JobID:     job.ID,
		VideoPath: job.Filepath,
		WorkDir:   workDir,
		FramesDir: framesDir,
		SceneDir:  sceneDir,
	}

	steps := []stageStep{
		{
			stage:    model.StageVideoExtraction,
			startPct: 10, donePct: 25,
			startMsg: "Extracting frames from video",
			doneMsg:  "Frame extraction complete",
			timeout:  p.cfg.Timeouts.VideoExtraction,
			check:    func() error { return p.checkFrameCount(framesDir) },
		},
		{
			stage:    model.StageFeatureExtraction,
			startPct: 30, donePct: 50,
			startMsg: "Extracting image features",
			doneMsg:  "Feature extraction complete",
			timeout:  p.cfg.Timeouts.FeatureExtraction,
		},
		{
			stage:    model.StageFeatureMatching,
			startPct: 55, donePct: 75,
			startMsg: "Matching features across frames",
			doneMsg:  "Feature matching complete",
			timeout:  p.cfg.Timeouts.FeatureMatching,
		},
		{
			stage:    model.StageReconstruction,
			startPct: 80, donePct: 90,
			startMsg: "Reconstructing 3D scene",
			doneMsg:  "Reconstruction complete",
			timeout:  p.cfg.Timeouts.Reconstruction,
			check:    func() error { return checkSparseModel(sparseDir) },
		},
	}

	for _, step := range steps {
		if err := p.runStage(ctx, job, in, step); err != nil {
			p.fail(ctx, job, err)
			return
		}
	}

	if err := p.handoff(ctx, job, sceneDir, sparseDir); err != nil {
		p.fail(ctx, job, err)
		return
	}

	log.Info().Str("scene", sceneDir).Msg("job completed")
}

func (p *Pipeline) runStage(ctx context.Context, job *model.Job, in adapter.StageInput, step stageStep) *domain.StageError {
	p.emit(ctx, job.ID, step.stage, step.startPct, step.startMsg)

	in.Stage = step.stage
	stageCtx, cancel := context.WithTimeout(ctx, step.timeout)
	defer cancel()

	start := time.Now()
	_, err := p.executor.Run(stageCtx, in)
	metrics.ObserveStageDuration(string(step.stage), time.Since(start).Seconds())

	if err == nil && step.check != nil {
		err = step.check()
	}
	if err != nil {
		reason := failureReason(err)
		metrics.IncStageFailure(string(step.stage), reason)
		return domain.NewStageError(string(step.stage), reason, err)
	}

	p.emit(ctx, job.ID, step.stage, step.donePct, step.doneMsg)
	return nil
}

func (p *Pipeline) checkFrameCount(framesDir string) error {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			n++
		}
	}
	if n < p.cfg.MinFrames {
		return fmt.Errorf("%w: got %d, need %d", domain.ErrTooFewFrames, n, p.cfg.MinFrames)
	}
	return nil
}

// checkSparseModel verifies the mapper actually produced a model: the
// sparse directory must contain at least one non-empty entry.
func checkSparseModel(sparseDir string) error {
	entries, err := os.ReadDir(sparseDir)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrArtifactMissing, err)
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if e.IsDir() || info.Size() > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrArtifactMissing, sparseDir)
}

func (p *Pipeline) handoff(ctx context.Context, job *model.Job, sceneDir, sparseDir string) *domain.StageError {
	p.emit(ctx, job.ID, model.StageHandoff, 95, "Queueing scene for downstream import")

	completedAt := model.NowPtr()
	down := &model.DownstreamJob{
		JobID:       job.ID,
		Filename:    job.Filename,
		ScenePath:   sceneDir,
		OutputPath:  sparseDir,
		Status:      model.JobStatusQueuedNextStage,
		CompletedAt: *completedAt,
	}
	if err := p.downstream.Push(ctx, down); err != nil {
		return domain.NewStageError(string(model.StageHandoff), "downstream push", err)
	}

	// Mark the job completed only once the downstream record exists; a
	// failed push sends the job back through retry, and the requeued
	// record must not carry a completion timestamp.
	job.ScenePath = sceneDir
	job.OutputPath = sparseDir
	job.Status = model.JobStatusCompleted
	job.FinishedAt = completedAt

	if err := p.status.Save(ctx, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("save completed status")
	}
	if err := p.archive.RecordTerminal(ctx, job); err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("archive write failed")
	}
	metrics.IncJobProcessed(string(model.JobStatusCompleted))

	p.emit(ctx, job.ID, model.StageHandoff, 100, "Processing complete")
	return nil
}

// fail applies the retry / dead-letter state machine to a stage failure.
func (p *Pipeline) fail(ctx context.Context, job *model.Job, stageErr *domain.StageError) {
	log := p.log.With().Str("job_id", job.ID).Str("stage", stageErr.Stage).Logger()
	log.Error().Err(stageErr).Msg("stage failed")

	job.LastError = stageErr.Error()
	job.Retries++

	if job.RetriesLeft() {
		job.Status = model.JobStatusRetry
		if err := p.status.Save(ctx, job); err != nil {
			log.Error().Err(err).Msg("save retry status")
		}
		metrics.IncJobRetry()
		metrics.IncJobProcessed(string(model.JobStatusRetry))
		p.emit(ctx, job.ID, model.StageRetry, 0,
			fmt.Sprintf("Retrying (attempt %d/%d): %s", job.Attempt(), job.MaxRetries, stageErr.Reason))

		// Flat backoff: failures here are usually a persistently bad
		// input, not transient contention, so waiting longer does not
		// change the outcome. The retry bound is the real safety net.
		p.sleep(ctx, p.cfg.RetryDelay)

		if err := p.queue.Push(ctx, job); err != nil {
			log.Error().Err(err).Msg("requeue failed; job lost until resubmitted")
		}
		return
	}

	job.Status = model.JobStatusFailed
	job.FailedAt = model.NowPtr()
	if err := p.status.Save(ctx, job); err != nil {
		log.Error().Err(err).Msg("save failed status")
	}

	entry := &model.DeadLetterEntry{EntryID: ulid.Make().String(), Job: *job}
	if err := p.deadLetters.Append(ctx, entry); err != nil {
		log.Error().Err(err).Msg("dead-letter append failed")
	}
	if err := p.archive.RecordTerminal(ctx, job); err != nil {
		log.Warn().Err(err).Msg("archive write failed")
	}
	metrics.IncDeadLetter()
	metrics.IncJobProcessed(string(model.JobStatusFailed))

	p.emit(ctx, job.ID, model.StageFailed, 100,
		fmt.Sprintf("Failed after %d attempts: %s", job.Attempt(), stageErr.Reason))
	if err := p.telemetry.PostError(ctx, fmt.Sprintf("job %s dead-lettered: %s", job.ID, stageErr)); err != nil {
		log.Debug().Err(err).Msg("telemetry error post failed")
	}
	if err := p.alerter.JobDeadLettered(ctx, job); err != nil {
		log.Warn().Err(err).Msg("dead-letter alert failed")
	}
}

// emit publishes one progress event to both best-effort sinks. Neither
// sink may influence job state, so errors are only logged.
func (p *Pipeline) emit(ctx context.Context, jobID string, stage model.Stage, pct int, msg string) {
	ev := model.NewProgress(jobID, stage, pct, msg)
	if err := p.telemetry.PostProgress(ctx, ev); err != nil {
		p.log.Debug().Err(err).Str("job_id", jobID).Msg("telemetry progress post failed")
	}
	if err := p.progress.Publish(ctx, ev); err != nil {
		p.log.Debug().Err(err).Str("job_id", jobID).Msg("progress publish failed")
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStageTimeout) || errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrTooFewFrames), errors.Is(err, domain.ErrArtifactMissing):
		return "postcondition"
	default:
		return "exit"
	}
}
