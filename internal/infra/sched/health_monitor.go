package sched

import (
	"context"
	"time"

	"video-recon-pipeline/internal/domain/ports/adapter"
	"video-recon-pipeline/internal/infra/metrics"
	"video-recon-pipeline/internal/usecase"

	"github.com/rs/zerolog"
)

// HealthMonitor runs inside the worker process, independent of job
// processing: it samples resource pressure every interval, reports it,
// and kicks off disk remediation past the threshold. Nothing in this
// loop can touch job state or fail the worker.
type HealthMonitor struct {
	interval      time.Duration
	diskThreshold float64
	sampler       adapter.ResourceSampler
	telemetry     adapter.TelemetrySink
	janitor       *usecase.Janitor
	log           *zerolog.Logger
}

func NewHealthMonitor(
	interval time.Duration,
	diskThreshold float64,
	sampler adapter.ResourceSampler,
	telemetry adapter.TelemetrySink,
	janitor *usecase.Janitor,
	logger *zerolog.Logger,
) *HealthMonitor {
	l := logger.With().Str("component", "HealthMonitor").Logger()
	return &HealthMonitor{
		interval:      interval,
		diskThreshold: diskThreshold,
		sampler:       sampler,
		telemetry:     telemetry,
		janitor:       janitor,
		log:           &l,
	}
}

func (h *HealthMonitor) Run(ctx context.Context) error {
	h.log.Info().Dur("interval", h.interval).Msg("Starting health monitor")
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Stopping health monitor")
			return ctx.Err()
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *HealthMonitor) tick(ctx context.Context) {
	sample, err := h.sampler.Sample(ctx)
	if err != nil {
		// Partial samples still carry useful fields; keep going.
		h.log.Warn().Err(err).Msg("resource sample incomplete")
	}
	metrics.SetResourceSample(sample.AcceleratorUtilization, sample.AcceleratorMemory, sample.DiskUsage)

	if err := h.telemetry.PostMetrics(ctx, sample); err != nil {
		h.log.Debug().Err(err).Msg("telemetry metrics post failed")
	}

	if sample.DiskUsage > h.diskThreshold {
		h.log.Warn().Float64("disk_usage", sample.DiskUsage).Float64("threshold", h.diskThreshold).
			Msg("disk pressure, sweeping stale directories")
		workDirs, artifacts := h.janitor.Sweep(ctx)
		if workDirs+artifacts > 0 {
			h.log.Info().Int("work_dirs", workDirs).Int("artifacts", artifacts).Msg("stale directories removed")
		}
	}
}
