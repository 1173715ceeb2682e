package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Queue.Pending != "colmap_jobs" ||
		cfg.Queue.Downstream != "blender_jobs" ||
		cfg.Queue.DeadLetter != "failed_recon_jobs" {
		t.Errorf("queue names = %+v, want original deployment keys", cfg.Queue)
	}
	if cfg.Queue.StatusPrefix != "job:" || cfg.Queue.ProgressPrefix != "progress:" {
		t.Errorf("key prefixes = %q / %q", cfg.Queue.StatusPrefix, cfg.Queue.ProgressPrefix)
	}
	if cfg.Pipeline.MaxRetries != 3 || cfg.Pipeline.MinFrames != 10 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.RetryDelay != 30*time.Second {
		t.Errorf("retry delay = %v, want 30s", cfg.Pipeline.RetryDelay)
	}
	if cfg.Cost.IdleThreshold != 1800*time.Second || cfg.Cost.Interval != 300*time.Second {
		t.Errorf("cost defaults = %+v", cfg.Cost)
	}
	if cfg.Cost.UtilizationThreshold != 5 {
		t.Errorf("utilization threshold = %v, want 5", cfg.Cost.UtilizationThreshold)
	}
	if cfg.API.Port != 8000 || cfg.Gateway.Port != 8765 {
		t.Errorf("ports = %d / %d", cfg.API.Port, cfg.Gateway.Port)
	}
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
redis:
  url: file-redis:6379
pipeline:
  workers: 4
  retry_delay: -1s
cost:
  idle_threshold: 10m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDIS_URL", "env-redis:6379")

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	// Env beats file.
	if cfg.Redis.URL != "env-redis:6379" {
		t.Errorf("redis url = %q, want env override", cfg.Redis.URL)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Pipeline.Workers)
	}
	// Negative delay is the explicit "no backoff" spelling.
	if cfg.Pipeline.RetryDelay != 0 {
		t.Errorf("retry delay = %v, want 0", cfg.Pipeline.RetryDelay)
	}
	if cfg.Cost.IdleThreshold != 10*time.Minute {
		t.Errorf("idle threshold = %v, want 10m", cfg.Cost.IdleThreshold)
	}
	if !cfg.Runtime.Dev {
		t.Error("dev flag not carried into runtime config")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"admin key without jwt secret", "api:\n  admin_api_key: k\n"},
		{"auto shutdown without url", "cost:\n  auto_shutdown: true\n"},
		{"telegram token without chat id", "alert:\n  telegram_token: t\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path, false); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}
