package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(fleetIdleSeconds, shutdownTriggersTotal)
}

var (
	fleetIdleSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_fleet_idle_seconds",
			Help: "Seconds since the fleet was first observed idle; 0 while active.",
		},
	)

	shutdownTriggersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recon_shutdown_triggers_total",
			Help: "Total number of shutdown requests issued by the cost monitor.",
		},
	)
)

func SetFleetIdleSeconds(s float64) { fleetIdleSeconds.Set(s) }

func IncShutdownTrigger() { shutdownTriggersTotal.Inc() }
