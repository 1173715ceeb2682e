package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"
)

type pipelineFixture struct {
	queue       *memJobQueue
	downstream  *memDownstreamQueue
	status      *memStatusStore
	deadLetters *memDeadLetterStore
	archive     *memArchive
	progress    *memProgress
	telemetry   *fakeTelemetry
	alerter     *fakeAlerter
	cfg         config.PipelineConfig
	pipeline    *Pipeline
}

func newPipelineFixture(t *testing.T, exec adapter.StageExecutor) *pipelineFixture {
	t.Helper()
	fx := &pipelineFixture{
		queue:       &memJobQueue{},
		downstream:  &memDownstreamQueue{},
		status:      newMemStatusStore(),
		deadLetters: &memDeadLetterStore{},
		archive:     &memArchive{},
		progress:    &memProgress{},
		telemetry:   &fakeTelemetry{},
		alerter:     &fakeAlerter{},
		cfg: config.PipelineConfig{
			WorkRoot:   t.TempDir(),
			SceneRoot:  t.TempDir(),
			MinFrames:  10,
			RetryDelay: time.Millisecond,
			Timeouts: config.StageTimeouts{
				VideoExtraction:   5 * time.Second,
				FeatureExtraction: 5 * time.Second,
				FeatureMatching:   5 * time.Second,
				Reconstruction:    5 * time.Second,
			},
		},
	}
	fx.pipeline = NewPipeline(
		fx.queue, fx.downstream, fx.status, fx.deadLetters, fx.archive,
		fx.progress, fx.telemetry, exec, fx.alerter, fx.cfg, testLogger())
	fx.pipeline.sleep = func(ctx context.Context, d time.Duration) {}
	return fx
}

func testJob(id string) *model.Job {
	return &model.Job{
		ID:         id,
		Filename:   "clip.mp4",
		Filepath:   "/data/input/" + id + "_clip.mp4",
		Status:     model.JobStatusQueued,
		MaxRetries: model.DefaultMaxRetries,
		CreatedAt:  model.Now(),
	}
}

// succeedingExecutor fabricates the on-disk artifacts each stage's
// post-condition check looks for.
func succeedingExecutor(t *testing.T, frames int) *fakeExecutor {
	t.Helper()
	return &fakeExecutor{runFunc: func(ctx context.Context, in adapter.StageInput) (adapter.StageResult, error) {
		switch in.Stage {
		case model.StageVideoExtraction:
			for i := 0; i < frames; i++ {
				name := filepath.Join(in.FramesDir, fmt.Sprintf("frame_%04d.jpg", i+1))
				if err := os.WriteFile(name, []byte("jpg"), 0o644); err != nil {
					t.Fatalf("write frame: %v", err)
				}
			}
		case model.StageReconstruction:
			sparse := filepath.Join(in.SceneDir, "sparse")
			if err := os.WriteFile(filepath.Join(sparse, "points3D.bin"), []byte("pts"), 0o644); err != nil {
				t.Fatalf("write model: %v", err)
			}
		}
		return adapter.StageResult{}, nil
	}}
}

func TestPipelineSuccess(t *testing.T) {
	fx := newPipelineFixture(t, succeedingExecutor(t, 12))
	job := testJob("job-ok")

	fx.pipeline.Process(context.Background(), job)

	if job.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (last error: %q)", job.Status, job.LastError)
	}
	if job.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	wantScene := filepath.Join(fx.cfg.SceneRoot, job.ID)
	if job.ScenePath != wantScene {
		t.Errorf("ScenePath = %q, want %q", job.ScenePath, wantScene)
	}

	if got := fx.status.statuses(); len(got) != 2 ||
		got[0] != model.JobStatusProcessing || got[1] != model.JobStatusCompleted {
		t.Errorf("status sequence = %v, want [processing completed]", got)
	}

	if len(fx.downstream.jobs) != 1 {
		t.Fatalf("downstream jobs = %d, want 1", len(fx.downstream.jobs))
	}
	down := fx.downstream.jobs[0]
	if down.JobID != job.ID || down.ScenePath != wantScene {
		t.Errorf("downstream job = %+v", down)
	}
	if down.Status != model.JobStatusQueuedNextStage {
		t.Errorf("downstream status = %s, want queued_next_stage", down.Status)
	}

	if len(fx.archive.records) != 1 || fx.archive.records[0].Status != model.JobStatusCompleted {
		t.Errorf("archive records = %+v, want one completed", fx.archive.records)
	}

	if _, err := os.Stat(filepath.Join(fx.cfg.WorkRoot, job.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("work dir survived the job: stat err = %v", err)
	}
}

func TestPipelineProgressMonotonic(t *testing.T) {
	fx := newPipelineFixture(t, succeedingExecutor(t, 12))
	fx.pipeline.Process(context.Background(), testJob("job-prog"))

	events := fx.progress.all()
	if len(events) < 10 {
		t.Fatalf("got %d progress events, want the full stage sequence", len(events))
	}
	last := -1
	for _, ev := range events {
		if ev.Progress < last {
			t.Fatalf("progress went backwards: %d after %d (%s)", ev.Progress, last, ev.Message)
		}
		last = ev.Progress
	}
	final := events[len(events)-1]
	if final.Progress != 100 || final.Stage != model.StageHandoff {
		t.Errorf("final event = %+v, want handoff at 100", final)
	}
}

func TestPipelineTooFewFramesRetries(t *testing.T) {
	fx := newPipelineFixture(t, succeedingExecutor(t, 3))
	job := testJob("job-thin")

	fx.pipeline.Process(context.Background(), job)

	if job.Status != model.JobStatusRetry {
		t.Fatalf("status = %s, want retry", job.Status)
	}
	if job.Retries != 1 {
		t.Errorf("retries = %d, want 1", job.Retries)
	}
	if !strings.Contains(job.LastError, string(model.StageVideoExtraction)) {
		t.Errorf("LastError = %q, want the failing stage named", job.LastError)
	}

	if depth, _ := fx.queue.Depth(context.Background()); depth != 1 {
		t.Fatalf("queue depth = %d, want 1 (requeued)", depth)
	}
	requeued, err := fx.queue.Pop(context.Background(), 0)
	if err != nil {
		t.Fatalf("pop requeued: %v", err)
	}
	if requeued.Retries != 1 || requeued.Status != model.JobStatusRetry {
		t.Errorf("requeued job retries=%d status=%s", requeued.Retries, requeued.Status)
	}

	var sawRetry bool
	for _, ev := range fx.progress.all() {
		if ev.Stage == model.StageRetry && strings.Contains(ev.Message, "attempt 2/3") {
			sawRetry = true
		}
	}
	if !sawRetry {
		t.Error("no retry progress event announcing attempt 2/3")
	}

	if _, err := os.Stat(filepath.Join(fx.cfg.WorkRoot, job.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("work dir survived the failed attempt: stat err = %v", err)
	}
}

// Drives a permanently failing job through the worker's pop/process loop
// until the queue drains: three attempts, then exactly one dead-letter
// entry and a failed terminal record.
func TestPipelineRetryExhaustionDeadLetters(t *testing.T) {
	exec := &fakeExecutor{runFunc: func(ctx context.Context, in adapter.StageInput) (adapter.StageResult, error) {
		return adapter.StageResult{}, errors.New("ffmpeg exited with status 1")
	}}
	fx := newPipelineFixture(t, exec)
	ctx := context.Background()

	job := testJob("job-doomed")
	fx.pipeline.Process(ctx, job)
	for attempts := 1; ; attempts++ {
		next, err := fx.queue.Pop(ctx, 0)
		if errors.Is(err, domain.ErrQueueEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if attempts > model.DefaultMaxRetries {
			t.Fatalf("job still circulating after %d attempts", attempts)
		}
		fx.pipeline.Process(ctx, next)
	}

	want := []model.JobStatus{
		model.JobStatusProcessing, model.JobStatusRetry,
		model.JobStatusProcessing, model.JobStatusRetry,
		model.JobStatusProcessing, model.JobStatusFailed,
	}
	got := fx.status.statuses()
	if len(got) != len(want) {
		t.Fatalf("status sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status sequence = %v, want %v", got, want)
		}
	}

	if len(fx.deadLetters.entries) != 1 {
		t.Fatalf("dead letters = %d, want exactly 1", len(fx.deadLetters.entries))
	}
	entry := fx.deadLetters.entries[0]
	if entry.EntryID == "" {
		t.Error("dead-letter entry has no id")
	}
	if entry.Job.ID != "job-doomed" || entry.Job.Retries != model.DefaultMaxRetries {
		t.Errorf("dead-lettered job = %+v", entry.Job)
	}
	if entry.Job.Status != model.JobStatusFailed || entry.Job.FailedAt == nil {
		t.Errorf("dead-lettered job not terminal: status=%s failedAt=%v", entry.Job.Status, entry.Job.FailedAt)
	}

	rec, err := fx.status.Get(ctx, "job-doomed")
	if err != nil {
		t.Fatalf("status get: %v", err)
	}
	if rec.Status != model.JobStatusFailed {
		t.Errorf("final status record = %s, want failed", rec.Status)
	}

	if len(fx.alerter.deadLettered) != 1 || fx.alerter.deadLettered[0] != "job-doomed" {
		t.Errorf("alerter dead-letter calls = %v", fx.alerter.deadLettered)
	}
	if len(fx.telemetry.errs) != 1 {
		t.Errorf("telemetry error posts = %d, want 1", len(fx.telemetry.errs))
	}

	events := fx.progress.all()
	final := events[len(events)-1]
	if final.Stage != model.StageFailed || final.Progress != 100 ||
		!strings.Contains(final.Message, "Failed after 3 attempts") {
		t.Errorf("final progress event = %+v", final)
	}
}

func TestPipelineStageTimeout(t *testing.T) {
	exec := &fakeExecutor{runFunc: func(ctx context.Context, in adapter.StageInput) (adapter.StageResult, error) {
		switch in.Stage {
		case model.StageVideoExtraction:
			for i := 0; i < 12; i++ {
				name := filepath.Join(in.FramesDir, fmt.Sprintf("frame_%04d.jpg", i+1))
				if err := os.WriteFile(name, []byte("jpg"), 0o644); err != nil {
					return adapter.StageResult{}, err
				}
			}
			return adapter.StageResult{}, nil
		case model.StageFeatureExtraction:
			<-ctx.Done()
			return adapter.StageResult{}, ctx.Err()
		default:
			return adapter.StageResult{}, nil
		}
	}}
	fx := newPipelineFixture(t, exec)
	fx.cfg.Timeouts.FeatureExtraction = 20 * time.Millisecond
	fx.pipeline.cfg = fx.cfg

	job := testJob("job-slow")
	fx.pipeline.Process(context.Background(), job)

	if job.Status != model.JobStatusRetry {
		t.Fatalf("status = %s, want retry", job.Status)
	}
	if !strings.Contains(job.LastError, string(model.StageFeatureExtraction)) ||
		!strings.Contains(job.LastError, "timeout") {
		t.Errorf("LastError = %q, want feature_extraction timeout", job.LastError)
	}
}

func TestPipelineMissingSparseModel(t *testing.T) {
	// Every stage "succeeds" but the mapper never writes a model.
	fx := newPipelineFixture(t, succeedingExecutor(t, 12))
	exec := &fakeExecutor{runFunc: func(ctx context.Context, in adapter.StageInput) (adapter.StageResult, error) {
		if in.Stage == model.StageVideoExtraction {
			for i := 0; i < 12; i++ {
				name := filepath.Join(in.FramesDir, fmt.Sprintf("frame_%04d.jpg", i+1))
				if err := os.WriteFile(name, []byte("jpg"), 0o644); err != nil {
					return adapter.StageResult{}, err
				}
			}
		}
		return adapter.StageResult{}, nil
	}}
	fx.pipeline.executor = exec

	job := testJob("job-empty-model")
	fx.pipeline.Process(context.Background(), job)

	if job.Status != model.JobStatusRetry {
		t.Fatalf("status = %s, want retry", job.Status)
	}
	if !strings.Contains(job.LastError, string(model.StageReconstruction)) ||
		!strings.Contains(job.LastError, "postcondition") {
		t.Errorf("LastError = %q, want reconstruction postcondition", job.LastError)
	}
}

func TestPipelineDownstreamPushFailureRetries(t *testing.T) {
	fx := newPipelineFixture(t, succeedingExecutor(t, 12))
	fx.downstream.pushErr = errors.New("downstream queue unavailable")

	job := testJob("job-handoff")
	fx.pipeline.Process(context.Background(), job)

	if job.Status != model.JobStatusRetry {
		t.Fatalf("status = %s, want retry", job.Status)
	}
	if !strings.Contains(job.LastError, string(model.StageHandoff)) {
		t.Errorf("LastError = %q, want handoff named", job.LastError)
	}
	if job.FinishedAt != nil {
		t.Errorf("FinishedAt = %v on a failed handoff, want nil", job.FinishedAt)
	}

	// The requeued record must look like a retry, not a finished job.
	requeued, err := fx.queue.Pop(context.Background(), 0)
	if err != nil {
		t.Fatalf("pop requeued job: %v", err)
	}
	if requeued.Status != model.JobStatusRetry {
		t.Errorf("requeued status = %s, want retry", requeued.Status)
	}
	if requeued.FinishedAt != nil {
		t.Errorf("requeued FinishedAt = %v, want nil", requeued.FinishedAt)
	}
}

func TestPipelineSinkFailuresDoNotAffectOutcome(t *testing.T) {
	fx := newPipelineFixture(t, succeedingExecutor(t, 12))
	fx.telemetry.fail = errors.New("gateway down")
	fx.progress.publishErr = errors.New("redis publish failed")

	job := testJob("job-deaf")
	fx.pipeline.Process(context.Background(), job)

	if job.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed despite sink failures", job.Status)
	}
	if len(fx.downstream.jobs) != 1 {
		t.Errorf("downstream jobs = %d, want 1", len(fx.downstream.jobs))
	}
}
