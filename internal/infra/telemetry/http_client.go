package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"
)

var _ adapter.TelemetrySink = (*HTTPSink)(nil)

// HTTPSink pushes events to the gateway's HTTP bridge. Every call is
// best-effort by the port contract; the short client timeout keeps a
// dead gateway from stalling the worker loop.
type HTTPSink struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSink(baseURL string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) PostProgress(ctx context.Context, ev model.ProgressEvent) error {
	return s.post(ctx, "/progress", ev)
}

func (s *HTTPSink) PostMetrics(ctx context.Context, sample model.ResourceSample) error {
	return s.post(ctx, "/metrics", sample)
}

func (s *HTTPSink) PostError(ctx context.Context, message string) error {
	return s.post(ctx, "/errors", map[string]string{"error": message})
}

func (s *HTTPSink) post(ctx context.Context, path string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry %s: status %d", path, resp.StatusCode)
	}
	return nil
}
