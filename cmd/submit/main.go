// File: cmd/submit/main.go
//
// Dev/ops tool: enqueue a reconstruction job for a media file that is
// already on shared storage, bypassing the upload API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/infra/logging"
	red "video-recon-pipeline/internal/infra/redis"
	"video-recon-pipeline/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	file := flag.String("file", "", "path to the source media file (required)")
	maxRetries := flag.Int("max-retries", 0, "retry budget (0 = default)")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}
	abs, err := filepath.Abs(*file)
	if err != nil {
		log.Fatalf("resolve path: %v", err)
	}
	if _, err := os.Stat(abs); err != nil {
		log.Fatalf("source file: %v", err)
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	pending := red.NewPendingQueue(redisClient, cfg.Queue.Pending)
	status := red.NewStatusRepo(redisClient, cfg.Queue.StatusPrefix)
	deadLetters := red.NewDeadLetterRepo(redisClient, cfg.Queue.DeadLetter)

	submit := usecase.NewSubmit(pending, status, deadLetters, cfg.Pipeline.MaxRetries, logger)
	job, err := submit.Enqueue(ctx, abs, filepath.Base(abs), *maxRetries)
	if err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	fmt.Printf("queued job %s for %s\n", job.ID, abs)
}
