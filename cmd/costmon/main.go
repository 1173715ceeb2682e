// File: cmd/costmon/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain/ports/adapter"
	"video-recon-pipeline/internal/infra/alert"
	"video-recon-pipeline/internal/infra/idlestate"
	"video-recon-pipeline/internal/infra/logging"
	"video-recon-pipeline/internal/infra/metrics"
	red "video-recon-pipeline/internal/infra/redis"
	"video-recon-pipeline/internal/infra/sched"
	"video-recon-pipeline/internal/infra/shutdown"
	"video-recon-pipeline/internal/infra/sysmon"
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
	metrics.SetBuildInfo("costmon", version, commit)

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	pending := red.NewPendingQueue(redisClient, cfg.Queue.Pending)
	downstream := red.NewDownstreamQueue(redisClient, cfg.Queue.Downstream)
	activity := red.NewActivityCounter(redisClient, cfg.Queue.ActiveKey)

	sampler := sysmon.NewSampler(cfg.Pipeline.WorkRoot, logger)
	idleMarker := idlestate.NewFileMarker(cfg.Cost.IdleMarkerPath)

	var controller adapter.ShutdownController = shutdown.NoopController{}
	if cfg.Cost.AutoShutdown {
		controller = shutdown.NewHTTPController(cfg.Cost.ShutdownURL)
	}
	var alerter adapter.Alerter = alert.NoopAlerter{}
	if cfg.Alert.TelegramToken != "" {
		alerter, err = alert.NewTelegramAlerter(cfg.Alert.TelegramToken, cfg.Alert.TelegramChatID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram alerter init failed")
		}
	}

	monitor := usecase.NewIdleMonitor(
		sampler, pending, downstream, activity, idleMarker,
		controller, alerter,
		cfg.Cost.UtilizationThreshold, cfg.Cost.IdleThreshold, logger)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Cost.MetricsPort)
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()

	loop := sched.NewCostMonitor(cfg.Cost.Interval, monitor, logger)
	_ = loop.Run(ctx)
	logger.Info().Msg("cost monitor stopped")
}
