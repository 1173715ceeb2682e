package sched

import (
	"context"
	"time"

	"video-recon-pipeline/internal/usecase"

	"github.com/rs/zerolog"
)

// CostMonitor is the outer loop of the independent cost/idle process:
// one IdleMonitor tick per interval, clean exit on the next tick boundary
// after cancellation. There is no in-flight work to interrupt.
type CostMonitor struct {
	interval time.Duration
	monitor  *usecase.IdleMonitor
	log      *zerolog.Logger
}

func NewCostMonitor(interval time.Duration, monitor *usecase.IdleMonitor, logger *zerolog.Logger) *CostMonitor {
	l := logger.With().Str("component", "CostMonitor").Logger()
	return &CostMonitor{interval: interval, monitor: monitor, log: &l}
}

func (c *CostMonitor) Run(ctx context.Context) error {
	c.log.Info().Dur("interval", c.interval).Msg("Starting cost monitor")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Stopping cost monitor")
			return ctx.Err()
		case <-ticker.C:
			if err := c.monitor.Tick(ctx); err != nil {
				c.log.Error().Err(err).Msg("cost monitor tick failed")
			}
		}
	}
}
