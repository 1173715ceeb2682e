package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(wsClients, gatewayEventsTotal)
}

var (
	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_gateway_ws_clients",
			Help: "Number of WebSocket clients currently connected to the gateway.",
		},
	)

	gatewayEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_gateway_events_total",
			Help: "Events broadcast by the gateway, by type.",
		},
		[]string{"type"}, // 'progress_update', 'system_metrics', 'error_report'
	)
)

func SetWSClients(n int) { wsClients.Set(float64(n)) }

func IncGatewayEvent(eventType string) {
	gatewayEventsTotal.WithLabelValues(norm(eventType)).Inc()
}
