package usecase

import (
	"context"
	"sync"
	"time"

	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// In-memory fakes for the repository and adapter ports. Each fake keeps
// a call record the tests assert on; error fields let a test force the
// corresponding failure path.

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type memJobQueue struct {
	mu      sync.Mutex
	jobs    []*model.Job
	pushErr error
	popErr  error
}

func (q *memJobQueue) Pop(ctx context.Context, wait time.Duration) (*model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.popErr != nil {
		return nil, q.popErr
	}
	if len(q.jobs) == 0 {
		return nil, domain.ErrQueueEmpty
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, nil
}

func (q *memJobQueue) Push(ctx context.Context, job *model.Job) error {
	if q.pushErr != nil {
		return q.pushErr
	}
	cp := *job
	q.mu.Lock()
	q.jobs = append(q.jobs, &cp)
	q.mu.Unlock()
	return nil
}

func (q *memJobQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

type memDownstreamQueue struct {
	mu      sync.Mutex
	jobs    []*model.DownstreamJob
	pushErr error
}

func (q *memDownstreamQueue) Push(ctx context.Context, job *model.DownstreamJob) error {
	if q.pushErr != nil {
		return q.pushErr
	}
	cp := *job
	q.mu.Lock()
	q.jobs = append(q.jobs, &cp)
	q.mu.Unlock()
	return nil
}

func (q *memDownstreamQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

// memStatusStore records every Save in order so tests can assert on the
// full status transition sequence, not just the final state.
type memStatusStore struct {
	mu      sync.Mutex
	records map[string]model.Job
	history []model.JobStatus
	saveErr error
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{records: make(map[string]model.Job)}
}

func (s *memStatusStore) Save(ctx context.Context, job *model.Job) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	s.records[job.ID] = *job
	s.history = append(s.history, job.Status)
	s.mu.Unlock()
	return nil
}

func (s *memStatusStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.records[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := j
	return &cp, nil
}

func (s *memStatusStore) statuses() []model.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.JobStatus, len(s.history))
	copy(out, s.history)
	return out
}

type memDeadLetterStore struct {
	mu      sync.Mutex
	entries []*model.DeadLetterEntry
}

func (s *memDeadLetterStore) Append(ctx context.Context, entry *model.DeadLetterEntry) error {
	cp := *entry
	s.mu.Lock()
	// newest first, matching the LPUSH-backed store
	s.entries = append([]*model.DeadLetterEntry{&cp}, s.entries...)
	s.mu.Unlock()
	return nil
}

func (s *memDeadLetterStore) List(ctx context.Context, limit int) ([]*model.DeadLetterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]*model.DeadLetterEntry, limit)
	copy(out, s.entries[:limit])
	return out, nil
}

func (s *memDeadLetterStore) Find(ctx context.Context, jobID string) (*model.DeadLetterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Job.ID == jobID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memArchive struct {
	mu      sync.Mutex
	records []*model.Job
}

func (a *memArchive) RecordTerminal(ctx context.Context, job *model.Job) error {
	cp := *job
	a.mu.Lock()
	a.records = append(a.records, &cp)
	a.mu.Unlock()
	return nil
}

func (a *memArchive) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit > len(a.records) {
		limit = len(a.records)
	}
	out := make([]*model.Job, limit)
	copy(out, a.records[:limit])
	return out, nil
}

type memProgress struct {
	mu         sync.Mutex
	events     []model.ProgressEvent
	publishErr error
}

func (p *memProgress) Publish(ctx context.Context, ev model.ProgressEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *memProgress) all() []model.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ProgressEvent, len(p.events))
	copy(out, p.events)
	return out
}

type fakeTelemetry struct {
	mu       sync.Mutex
	progress []model.ProgressEvent
	samples  []model.ResourceSample
	errs     []string
	fail     error
}

func (t *fakeTelemetry) PostProgress(ctx context.Context, ev model.ProgressEvent) error {
	if t.fail != nil {
		return t.fail
	}
	t.mu.Lock()
	t.progress = append(t.progress, ev)
	t.mu.Unlock()
	return nil
}

func (t *fakeTelemetry) PostMetrics(ctx context.Context, sample model.ResourceSample) error {
	if t.fail != nil {
		return t.fail
	}
	t.mu.Lock()
	t.samples = append(t.samples, sample)
	t.mu.Unlock()
	return nil
}

func (t *fakeTelemetry) PostError(ctx context.Context, message string) error {
	if t.fail != nil {
		return t.fail
	}
	t.mu.Lock()
	t.errs = append(t.errs, message)
	t.mu.Unlock()
	return nil
}

type fakeExecutor struct {
	runFunc func(ctx context.Context, in adapter.StageInput) (adapter.StageResult, error)
}

func (e *fakeExecutor) Run(ctx context.Context, in adapter.StageInput) (adapter.StageResult, error) {
	if e.runFunc == nil {
		return adapter.StageResult{}, nil
	}
	return e.runFunc(ctx, in)
}

type fakeSampler struct {
	sample model.ResourceSample
	err    error
}

func (s *fakeSampler) Sample(ctx context.Context) (model.ResourceSample, error) {
	return s.sample, s.err
}

type fakeActivityCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *fakeActivityCounter) IncActive(ctx context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *fakeActivityCounter) DecActive(ctx context.Context) error {
	c.mu.Lock()
	if c.n > 0 {
		c.n--
	}
	c.mu.Unlock()
	return nil
}

func (c *fakeActivityCounter) Active(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, nil
}

type fakeIdleState struct {
	since  time.Time
	set    bool
	getErr error
	setErr error
}

func (s *fakeIdleState) Get(ctx context.Context) (time.Time, bool, error) {
	if s.getErr != nil {
		return time.Time{}, false, s.getErr
	}
	return s.since, s.set, nil
}

func (s *fakeIdleState) Set(ctx context.Context, since time.Time) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.since = since
	s.set = true
	return nil
}

func (s *fakeIdleState) Clear(ctx context.Context) error {
	s.since = time.Time{}
	s.set = false
	return nil
}

type fakeShutdown struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (s *fakeShutdown) Shutdown(ctx context.Context, reason string, idleFor time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, idleFor)
	s.mu.Unlock()
	return s.err
}

func (s *fakeShutdown) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeAlerter struct {
	mu           sync.Mutex
	deadLettered []string
	shutdowns    []time.Duration
}

func (a *fakeAlerter) JobDeadLettered(ctx context.Context, job *model.Job) error {
	a.mu.Lock()
	a.deadLettered = append(a.deadLettered, job.ID)
	a.mu.Unlock()
	return nil
}

func (a *fakeAlerter) ShutdownTriggered(ctx context.Context, host string, idleFor time.Duration) error {
	a.mu.Lock()
	a.shutdowns = append(a.shutdowns, idleFor)
	a.mu.Unlock()
	return nil
}
