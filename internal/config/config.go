// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty disables the terminal-job archive
}

// QueueConfig names every Redis key the pipeline touches. Defaults match
// the original deployment so existing dashboards keep working.
type QueueConfig struct {
	Pending        string        `yaml:"pending"`
	Downstream     string        `yaml:"downstream"`
	DeadLetter     string        `yaml:"dead_letter"`
	StatusPrefix   string        `yaml:"status_prefix"`
	ProgressPrefix string        `yaml:"progress_prefix"`
	ActiveKey      string        `yaml:"active_key"`
	PopWait        time.Duration `yaml:"pop_wait"`
}

type StageTimeouts struct {
	VideoExtraction   time.Duration `yaml:"video_extraction"`
	FeatureExtraction time.Duration `yaml:"feature_extraction"`
	FeatureMatching   time.Duration `yaml:"feature_matching"`
	Reconstruction    time.Duration `yaml:"reconstruction"`
}

type PipelineConfig struct {
	Workers    int           `yaml:"workers"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxRetries int           `yaml:"max_retries"`
	MinFrames  int           `yaml:"min_frames"`
	FrameRate  int           `yaml:"frame_rate"` // frames sampled per second of video
	InputRoot  string        `yaml:"input_root"`
	WorkRoot   string        `yaml:"work_root"`
	SceneRoot  string        `yaml:"scene_root"`
	Timeouts   StageTimeouts `yaml:"timeouts"`
}

type ExecutorConfig struct {
	FFmpegBin string `yaml:"ffmpeg_bin"`
	ColmapBin string `yaml:"colmap_bin"`
}

type HealthConfig struct {
	Interval       time.Duration `yaml:"interval"`
	DiskThreshold  float64       `yaml:"disk_threshold"` // percent
	WorkDirMaxAge  time.Duration `yaml:"work_dir_max_age"`
	ArtifactMaxAge time.Duration `yaml:"artifact_max_age"`
	MetricsPort    int           `yaml:"metrics_port"` // worker-process Prometheus endpoint
}

type CostConfig struct {
	Interval             time.Duration `yaml:"interval"`
	UtilizationThreshold float64       `yaml:"utilization_threshold"` // percent
	IdleThreshold        time.Duration `yaml:"idle_threshold"`
	AutoShutdown         bool          `yaml:"auto_shutdown"`
	ShutdownURL          string        `yaml:"shutdown_url"`
	IdleMarkerPath       string        `yaml:"idle_marker_path"`
	MetricsPort          int           `yaml:"metrics_port"` // cost-monitor Prometheus endpoint
}

type TelemetryConfig struct {
	URL     string        `yaml:"url"` // empty disables the push sink
	Timeout time.Duration `yaml:"timeout"`
}

type APIConfig struct {
	Port           int           `yaml:"port"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	AdminAPIKey    string        `yaml:"admin_api_key"` // empty disables the admin surface
	JWTSecret      string        `yaml:"jwt_secret"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

type GatewayConfig struct {
	Port         int           `yaml:"port"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongWait     time.Duration `yaml:"pong_wait"`
}

type AlertConfig struct {
	TelegramToken  string `yaml:"telegram_token"` // empty disables alerting
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Health    HealthConfig    `yaml:"health"`
	Cost      CostConfig      `yaml:"cost"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Alert     AlertConfig     `yaml:"alert"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file (missing file is fine: the original
// deployment was env-driven, so env + defaults alone must be a usable
// configuration), applies env overrides, then defaults, then validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + env only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("TELEMETRY_URL"); v != "" {
		c.Telemetry.URL = v
	}
	if v := os.Getenv("SHUTDOWN_URL"); v != "" {
		c.Cost.ShutdownURL = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.API.AdminAPIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.API.JWTSecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Alert.TelegramToken = v
	}
	if v := os.Getenv("AUTO_SHUTDOWN"); v == "true" || v == "1" {
		c.Cost.AutoShutdown = true
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "localhost:6379"
	}

	if c.Queue.Pending == "" {
		c.Queue.Pending = "colmap_jobs"
	}
	if c.Queue.Downstream == "" {
		c.Queue.Downstream = "blender_jobs"
	}
	if c.Queue.DeadLetter == "" {
		c.Queue.DeadLetter = "failed_recon_jobs"
	}
	if c.Queue.StatusPrefix == "" {
		c.Queue.StatusPrefix = "job:"
	}
	if c.Queue.ProgressPrefix == "" {
		c.Queue.ProgressPrefix = "progress:"
	}
	if c.Queue.ActiveKey == "" {
		c.Queue.ActiveKey = "active_jobs"
	}
	if c.Queue.PopWait <= 0 {
		c.Queue.PopWait = 30 * time.Second
	}

	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 1
	}
	if c.Pipeline.RetryDelay == 0 {
		c.Pipeline.RetryDelay = 30 * time.Second
	} else if c.Pipeline.RetryDelay < 0 {
		// negative means "no delay" (test/dev convenience)
		c.Pipeline.RetryDelay = 0
	}
	if c.Pipeline.MaxRetries <= 0 {
		c.Pipeline.MaxRetries = 3
	}
	if c.Pipeline.MinFrames <= 0 {
		c.Pipeline.MinFrames = 10
	}
	if c.Pipeline.FrameRate <= 0 {
		c.Pipeline.FrameRate = 2
	}
	if c.Pipeline.InputRoot == "" {
		c.Pipeline.InputRoot = "/data/input"
	}
	if c.Pipeline.WorkRoot == "" {
		c.Pipeline.WorkRoot = "/data/work"
	}
	if c.Pipeline.SceneRoot == "" {
		c.Pipeline.SceneRoot = "/data/scenes"
	}
	if c.Pipeline.Timeouts.VideoExtraction <= 0 {
		c.Pipeline.Timeouts.VideoExtraction = 10 * time.Minute
	}
	if c.Pipeline.Timeouts.FeatureExtraction <= 0 {
		c.Pipeline.Timeouts.FeatureExtraction = 30 * time.Minute
	}
	if c.Pipeline.Timeouts.FeatureMatching <= 0 {
		c.Pipeline.Timeouts.FeatureMatching = 30 * time.Minute
	}
	if c.Pipeline.Timeouts.Reconstruction <= 0 {
		c.Pipeline.Timeouts.Reconstruction = 60 * time.Minute
	}

	if c.Executor.FFmpegBin == "" {
		c.Executor.FFmpegBin = "ffmpeg"
	}
	if c.Executor.ColmapBin == "" {
		c.Executor.ColmapBin = "colmap"
	}

	if c.Health.Interval <= 0 {
		c.Health.Interval = 60 * time.Second
	}
	if c.Health.DiskThreshold <= 0 {
		c.Health.DiskThreshold = 80
	}
	if c.Health.WorkDirMaxAge <= 0 {
		c.Health.WorkDirMaxAge = 24 * time.Hour
	}
	if c.Health.ArtifactMaxAge <= 0 {
		c.Health.ArtifactMaxAge = 7 * 24 * time.Hour
	}
	if c.Health.MetricsPort <= 0 {
		c.Health.MetricsPort = 9100
	}

	if c.Cost.Interval <= 0 {
		c.Cost.Interval = 300 * time.Second
	}
	if c.Cost.UtilizationThreshold <= 0 {
		c.Cost.UtilizationThreshold = 5
	}
	if c.Cost.IdleThreshold <= 0 {
		c.Cost.IdleThreshold = 1800 * time.Second
	}
	if c.Cost.IdleMarkerPath == "" {
		c.Cost.IdleMarkerPath = "/tmp/recon_idle_since"
	}
	if c.Cost.MetricsPort <= 0 {
		c.Cost.MetricsPort = 9101
	}

	if c.Telemetry.Timeout <= 0 {
		c.Telemetry.Timeout = 5 * time.Second
	}

	if c.API.Port <= 0 {
		c.API.Port = 8000
	}
	if c.API.MaxUploadBytes <= 0 {
		c.API.MaxUploadBytes = 2 << 30 // 2 GiB
	}
	if c.API.SessionTTL <= 0 {
		c.API.SessionTTL = 30 * time.Minute
	}

	if c.Gateway.Port <= 0 {
		c.Gateway.Port = 8765
	}
	if c.Gateway.PingInterval <= 0 {
		c.Gateway.PingInterval = 30 * time.Second
	}
	if c.Gateway.PongWait <= 0 {
		c.Gateway.PongWait = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.API.AdminAPIKey != "" && c.API.JWTSecret == "" {
		return errors.New("api.jwt_secret is required when api.admin_api_key is set")
	}
	if c.Cost.AutoShutdown && c.Cost.ShutdownURL == "" {
		return errors.New("cost.shutdown_url is required when cost.auto_shutdown is enabled")
	}
	if c.Alert.TelegramToken != "" && c.Alert.TelegramChatID == 0 {
		return errors.New("alert.telegram_chat_id is required when alert.telegram_token is set")
	}
	return nil
}
