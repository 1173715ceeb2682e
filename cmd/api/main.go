// File: cmd/api/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain/ports/repository"
	"video-recon-pipeline/internal/infra/api"
	pg "video-recon-pipeline/internal/infra/db/postgres"
	"video-recon-pipeline/internal/infra/logging"
	"video-recon-pipeline/internal/infra/metrics"
	red "video-recon-pipeline/internal/infra/redis"
	"video-recon-pipeline/internal/usecase"
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
	metrics.SetBuildInfo("api", version, commit)

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	pending := red.NewPendingQueue(redisClient, cfg.Queue.Pending)
	status := red.NewStatusRepo(redisClient, cfg.Queue.StatusPrefix)
	deadLetters := red.NewDeadLetterRepo(redisClient, cfg.Queue.DeadLetter)
	limiter := red.NewRateLimiter(redisClient)

	var archive repository.JobArchive = pg.NoopArchive{}
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		archive = pg.NewArchiveRepo(pool)
	}

	if err := os.MkdirAll(cfg.Pipeline.InputRoot, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.Pipeline.InputRoot).Msg("create input root failed")
	}

	submit := usecase.NewSubmit(pending, status, deadLetters, cfg.Pipeline.MaxRetries, logger)
	server := api.NewServer(
		cfg.API, cfg.Pipeline.InputRoot, submit, status, pending,
		deadLetters, archive, redisClient, limiter, cfg.Runtime.Dev, logger)

	if err := server.Serve(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api server failed")
	}
	logger.Info().Msg("api server stopped")
}
