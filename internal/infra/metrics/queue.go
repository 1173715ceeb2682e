package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(queueDepth, activeJobs)
}

var (
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recon_queue_depth",
			Help: "Current number of entries per queue.",
		},
		[]string{"queue"}, // 'pending', 'downstream', 'dead_letter'
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_active_jobs",
			Help: "Number of jobs currently held by workers.",
		},
	)
)

func SetQueueDepth(queue string, depth int64) {
	queueDepth.WithLabelValues(norm(queue)).Set(float64(depth))
}

func SetActiveJobs(n int64) { activeJobs.Set(float64(n)) }
