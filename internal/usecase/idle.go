package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"
	"video-recon-pipeline/internal/domain/ports/repository"
	"video-recon-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// IdleMonitor is the cost-monitor core: each Tick samples fleet activity,
// maintains the idle-start marker with hysteresis (any single active tick
// clears it), and latches a shutdown once idleness persists past the
// threshold.
//
// The latch fires at most once per continuous idle period. The original
// deployment re-fired on every tick past the threshold; since the
// shutdown API's idempotence is unverified, triggering once and letting
// activity reset the latch is the safer reading.
type IdleMonitor struct {
	sampler    adapter.ResourceSampler
	pending    repository.JobQueue
	downstream repository.DownstreamQueue
	activity   repository.ActivityCounter
	state      repository.IdleState
	shutdown   adapter.ShutdownController
	alerter    adapter.Alerter

	utilizationThreshold float64
	idleThreshold        time.Duration

	log *zerolog.Logger
	now func() time.Time

	latched bool
}

func NewIdleMonitor(
	sampler adapter.ResourceSampler,
	pending repository.JobQueue,
	downstream repository.DownstreamQueue,
	activity repository.ActivityCounter,
	state repository.IdleState,
	shutdownCtl adapter.ShutdownController,
	alerter adapter.Alerter,
	utilizationThreshold float64,
	idleThreshold time.Duration,
	logger *zerolog.Logger,
) *IdleMonitor {
	l := logger.With().Str("component", "IdleMonitor").Logger()
	return &IdleMonitor{
		sampler:              sampler,
		pending:              pending,
		downstream:           downstream,
		activity:             activity,
		state:                state,
		shutdown:             shutdownCtl,
		alerter:              alerter,
		utilizationThreshold: utilizationThreshold,
		idleThreshold:        idleThreshold,
		log:                  &l,
		now:                  time.Now,
	}
}

// Tick runs one observation cycle. Errors are returned for logging only;
// the loop never stops because of a failed tick.
func (m *IdleMonitor) Tick(ctx context.Context) error {
	fleet, err := m.observe(ctx)
	if err != nil {
		// Cannot prove the fleet is idle; keep the idle clock untouched
		// rather than guessing in the direction of a shutdown.
		return err
	}

	if !fleet.Idle(m.utilizationThreshold) {
		m.latched = false
		metrics.SetFleetIdleSeconds(0)
		if err := m.state.Clear(ctx); err != nil {
			return fmt.Errorf("clear idle marker: %w", err)
		}
		m.log.Debug().
			Float64("utilization", fleet.AcceleratorUtilization).
			Int64("pending", fleet.PendingDepth).
			Int64("active", fleet.ActiveJobs).
			Msg("fleet active")
		return nil
	}

	since, ok, err := m.state.Get(ctx)
	if err != nil {
		return fmt.Errorf("read idle marker: %w", err)
	}
	if !ok {
		now := m.now()
		m.log.Info().Time("since", now).Msg("fleet idle, starting idle clock")
		return m.state.Set(ctx, now)
	}

	elapsed := m.now().Sub(since)
	metrics.SetFleetIdleSeconds(elapsed.Seconds())
	m.log.Debug().Dur("idle_for", elapsed).Dur("threshold", m.idleThreshold).Msg("fleet still idle")

	if elapsed >= m.idleThreshold && !m.latched {
		m.latched = true
		m.trigger(ctx, elapsed)
	}
	return nil
}

func (m *IdleMonitor) observe(ctx context.Context) (model.FleetSample, error) {
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		return model.FleetSample{}, fmt.Errorf("resource sample: %w", err)
	}
	pendingDepth, err := m.pending.Depth(ctx)
	if err != nil {
		return model.FleetSample{}, fmt.Errorf("pending depth: %w", err)
	}
	active, err := m.activity.Active(ctx)
	if err != nil {
		return model.FleetSample{}, fmt.Errorf("active count: %w", err)
	}
	downDepth, err := m.downstream.Depth(ctx)
	if err != nil {
		return model.FleetSample{}, fmt.Errorf("downstream depth: %w", err)
	}
	metrics.SetQueueDepth("pending", pendingDepth)
	metrics.SetQueueDepth("downstream", downDepth)
	metrics.SetActiveJobs(active)

	return model.FleetSample{
		AcceleratorUtilization: sample.AcceleratorUtilization,
		PendingDepth:           pendingDepth,
		ActiveJobs:             active + downDepth,
	}, nil
}

func (m *IdleMonitor) trigger(ctx context.Context, idleFor time.Duration) {
	m.log.Warn().Dur("idle_for", idleFor).Msg("idle threshold exceeded, requesting shutdown")
	metrics.IncShutdownTrigger()

	err := m.shutdown.Shutdown(ctx, "fleet idle past threshold", idleFor)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrShutdownDisabled):
		m.log.Info().Msg("auto shutdown disabled; would have shut down now")
		return
	default:
		// Fire-and-forget: no retry on a failed shutdown call.
		m.log.Error().Err(err).Msg("shutdown request failed")
	}

	host, _ := os.Hostname()
	if err := m.alerter.ShutdownTriggered(ctx, host, idleFor); err != nil {
		m.log.Warn().Err(err).Msg("shutdown alert failed")
	}
}
