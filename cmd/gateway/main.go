// File: cmd/gateway/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/infra/logging"
	"video-recon-pipeline/internal/infra/metrics"
	red "video-recon-pipeline/internal/infra/redis"
	"video-recon-pipeline/internal/infra/ws"
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
	metrics.SetBuildInfo("gateway", version, commit)

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	status := red.NewStatusRepo(redisClient, cfg.Queue.StatusPrefix)
	progress := red.NewProgressPublisher(redisClient, cfg.Queue.ProgressPrefix)
	listener := red.NewProgressListener(redisClient, cfg.Queue.ProgressPrefix, logger)

	hub := ws.NewHub(logger)
	server := ws.NewServer(cfg.Gateway, hub, status, progress, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := listener.Listen(ctx, server.HandleProgress); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("progress listener failed")
		}
	}()

	if err := server.Serve(ctx); err != nil {
		logger.Fatal().Err(err).Msg("gateway server failed")
	}
	wg.Wait()
	logger.Info().Msg("gateway stopped")
}
