package shutdown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"video-recon-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ShutdownController = (*HTTPController)(nil)

// HTTPController posts a stop request to the external service supervisor
// / instance-provisioning API. Fire-and-forget: the monitor never
// verifies completion and never retries.
type HTTPController struct {
	url    string
	client *http.Client
}

func NewHTTPController(url string) *HTTPController {
	return &HTTPController{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPController) Shutdown(ctx context.Context, reason string, idleFor time.Duration) error {
	host, _ := os.Hostname()
	payload := map[string]any{
		"host":         host,
		"reason":       reason,
		"idle_seconds": int64(idleFor.Seconds()),
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("shutdown request: status %d", resp.StatusCode)
	}
	return nil
}
