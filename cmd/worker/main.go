// File: cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain/ports/adapter"
	"video-recon-pipeline/internal/domain/ports/repository"
	"video-recon-pipeline/internal/infra/alert"
	pg "video-recon-pipeline/internal/infra/db/postgres"
	exe "video-recon-pipeline/internal/infra/executor"
	"video-recon-pipeline/internal/infra/logging"
	"video-recon-pipeline/internal/infra/metrics"
	red "video-recon-pipeline/internal/infra/redis"
	"video-recon-pipeline/internal/infra/sched"
	"video-recon-pipeline/internal/infra/sysmon"
	"video-recon-pipeline/internal/infra/telemetry"
	"video-recon-pipeline/internal/infra/worker"
	"video-recon-pipeline/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	metrics.MustRegister()
	metrics.SetBuildInfo("worker", version, commit)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	pending := red.NewPendingQueue(redisClient, cfg.Queue.Pending)
	downstream := red.NewDownstreamQueue(redisClient, cfg.Queue.Downstream)
	status := red.NewStatusRepo(redisClient, cfg.Queue.StatusPrefix)
	deadLetters := red.NewDeadLetterRepo(redisClient, cfg.Queue.DeadLetter)
	progress := red.NewProgressPublisher(redisClient, cfg.Queue.ProgressPrefix)
	activity := red.NewActivityCounter(redisClient, cfg.Queue.ActiveKey)

	// ---- Archive (optional) ----
	var archive repository.JobArchive = pg.NoopArchive{}
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		archive = pg.NewArchiveRepo(pool)
	}

	// ---- Best-effort sinks ----
	var sink adapter.TelemetrySink = telemetry.NoopSink{}
	if cfg.Telemetry.URL != "" {
		sink = telemetry.NewHTTPSink(cfg.Telemetry.URL, cfg.Telemetry.Timeout)
	}
	var alerter adapter.Alerter = alert.NoopAlerter{}
	if cfg.Alert.TelegramToken != "" {
		alerter, err = alert.NewTelegramAlerter(cfg.Alert.TelegramToken, cfg.Alert.TelegramChatID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram alerter init failed")
		}
	}

	for _, dir := range []string{cfg.Pipeline.WorkRoot, cfg.Pipeline.SceneRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("create data root failed")
		}
	}

	// ---- Pipeline ----
	executor := exe.NewCommandExecutor(cfg.Executor, cfg.Pipeline.FrameRate, logger)
	pipeline := usecase.NewPipeline(
		pending, downstream, status, deadLetters, archive,
		progress, sink, executor, alerter, cfg.Pipeline, logger)

	// ---- Health monitor ----
	sampler := sysmon.NewSampler(cfg.Pipeline.WorkRoot, logger)
	janitor := usecase.NewJanitor(
		cfg.Pipeline.WorkRoot, cfg.Pipeline.SceneRoot,
		cfg.Health.WorkDirMaxAge, cfg.Health.ArtifactMaxAge, logger)
	health := sched.NewHealthMonitor(
		cfg.Health.Interval, cfg.Health.DiskThreshold, sampler, sink, janitor, logger)

	// ---- Prometheus endpoint ----
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Health.MetricsPort)
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = health.Run(ctx)
	}()

	for i := 0; i < cfg.Pipeline.Workers; i++ {
		w := worker.NewPipelineWorker(pending, activity, pipeline, cfg.Queue.PopWait, i, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}()
	}

	logger.Info().Int("workers", cfg.Pipeline.Workers).Msg("worker process up")
	<-ctx.Done()
	wg.Wait()
	logger.Info().Msg("worker process stopped")
}
