package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/usecase"

	"github.com/rs/zerolog"
)

type stubQueue struct {
	mu   sync.Mutex
	jobs []*model.Job
}

func (q *stubQueue) Pop(ctx context.Context, wait time.Duration) (*model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, domain.ErrQueueEmpty
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, nil
}

func (q *stubQueue) Push(ctx context.Context, job *model.Job) error {
	cp := *job
	q.mu.Lock()
	q.jobs = append(q.jobs, &cp)
	q.mu.Unlock()
	return nil
}

func (q *stubQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

type stubStatus struct {
	mu      sync.Mutex
	records map[string]model.Job
}

func (s *stubStatus) Save(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	s.records[job.ID] = *job
	s.mu.Unlock()
	return nil
}

func (s *stubStatus) Get(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.records[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := j
	return &cp, nil
}

type stubDeadLetters struct {
	mu      sync.Mutex
	entries []*model.DeadLetterEntry
}

func (s *stubDeadLetters) Append(ctx context.Context, entry *model.DeadLetterEntry) error {
	cp := *entry
	s.mu.Lock()
	s.entries = append([]*model.DeadLetterEntry{&cp}, s.entries...)
	s.mu.Unlock()
	return nil
}

func (s *stubDeadLetters) List(ctx context.Context, limit int) ([]*model.DeadLetterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]*model.DeadLetterEntry, limit)
	copy(out, s.entries[:limit])
	return out, nil
}

func (s *stubDeadLetters) Find(ctx context.Context, jobID string) (*model.DeadLetterEntry, error) {
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

type stubArchive struct{ jobs []*model.Job }

func (a *stubArchive) RecordTerminal(ctx context.Context, job *model.Job) error { return nil }
func (a *stubArchive) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	return a.jobs, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type serverFixture struct {
	queue       *stubQueue
	status      *stubStatus
	deadLetters *stubDeadLetters
	inputRoot   string
	handler     http.Handler
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := zerolog.Nop()
	fx := &serverFixture{
		queue:       &stubQueue{},
		status:      &stubStatus{records: map[string]model.Job{}},
		deadLetters: &stubDeadLetters{},
		inputRoot:   t.TempDir(),
	}
	cfg := config.APIConfig{
		Port:           8000,
		MaxUploadBytes: 1 << 20,
		AdminAPIKey:    "test-admin-key",
		JWTSecret:      "test-hmac-secret",
		SessionTTL:     time.Minute,
	}
	submit := usecase.NewSubmit(fx.queue, fx.status, fx.deadLetters, 0, &logger)
	srv := NewServer(cfg, fx.inputRoot, submit, fx.status, fx.queue,
		fx.deadLetters, &stubArchive{}, stubPinger{}, nil, true, &logger)
	fx.handler = srv.Router()
	return fx
}

func (fx *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("fake video bytes")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestUploadEnqueuesJob(t *testing.T) {
	fx := newServerFixture(t)
	body, ctype := multipartUpload(t, "backyard.mp4")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)

	rec := fx.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeJSON(t, rec)
	jobID, _ := resp["job_id"].(string)
	if jobID == "" {
		t.Fatalf("no job_id in response: %v", resp)
	}

	if depth, _ := fx.queue.Depth(context.Background()); depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
	stored := filepath.Join(fx.inputRoot, jobID+"_backyard.mp4")
	if _, err := os.Stat(stored); err != nil {
		t.Errorf("uploaded file not stored at %s: %v", stored, err)
	}

	// The status record must resolve immediately.
	statusReq := httptest.NewRequest(http.MethodGet, "/job/"+jobID+"/status", nil)
	statusRec := fx.do(statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", statusRec.Code)
	}
	if got := decodeJSON(t, statusRec)["status"]; got != "queued" {
		t.Errorf("job status = %v, want queued", got)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	fx := newServerFixture(t)
	body, ctype := multipartUpload(t, "payload.exe")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)

	rec := fx.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if depth, _ := fx.queue.Depth(context.Background()); depth != 0 {
		t.Error("rejected upload reached the queue")
	}
}

func TestUploadMissingFileField(t *testing.T) {
	fx := newServerFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
	if rec := fx.do(req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	fx := newServerFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/job/ghost/status", nil)
	if rec := fx.do(req); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminAuthFlow(t *testing.T) {
	fx := newServerFixture(t)
	ctx := context.Background()

	failed := &model.Job{
		ID: "job-dead", Filepath: "/data/input/x.mp4",
		Status: model.JobStatusFailed, Retries: 3, MaxRetries: 3,
		CreatedAt: model.Now(),
	}
	_ = fx.deadLetters.Append(ctx, &model.DeadLetterEntry{EntryID: "01X", Job: *failed})

	// No token.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/deadletter", nil)
	if rec := fx.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d, want 401", rec.Code)
	}

	// Wrong key.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/login",
		strings.NewReader(`{"api_key":"wrong"}`))
	if rec := fx.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", rec.Code)
	}

	// Proper login mints a bearer token.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/login",
		strings.NewReader(`{"api_key":"test-admin-key"}`))
	rec := fx.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d", rec.Code)
	}
	token, _ := decodeJSON(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/deadletter", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = fx.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated list = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decodeJSON(t, rec)["count"]; got != float64(1) {
		t.Errorf("dead-letter count = %v, want 1", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/deadletter/job-dead/requeue", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = fx.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("requeue = %d, body = %s", rec.Code, rec.Body)
	}
	if depth, _ := fx.queue.Depth(ctx); depth != 1 {
		t.Errorf("queue depth after requeue = %d, want 1", depth)
	}
	if entries, _ := fx.deadLetters.List(ctx, 10); len(entries) != 1 {
		t.Errorf("dead letters after requeue = %d, want 1 (append-only)", len(entries))
	}
}

func TestHealthReflectsRedis(t *testing.T) {
	fx := newServerFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	if rec := fx.do(req); rec.Code != http.StatusOK {
		t.Fatalf("healthy = %d, want 200", rec.Code)
	}

	logger := zerolog.Nop()
	cfg := config.APIConfig{Port: 8000, MaxUploadBytes: 1 << 20}
	submit := usecase.NewSubmit(fx.queue, fx.status, fx.deadLetters, 0, &logger)
	down := NewServer(cfg, fx.inputRoot, submit, fx.status, fx.queue,
		fx.deadLetters, &stubArchive{}, stubPinger{err: context.DeadlineExceeded}, nil, true, &logger)
	rec := httptest.NewRecorder()
	down.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy = %d, want 503", rec.Code)
	}
}
