package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsProcessedTotal,
		jobRetriesTotal,
		deadLettersTotal,
		stageDurationSeconds,
		stageFailuresTotal,
	)
}

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_jobs_processed_total",
			Help: "Total number of pipeline jobs that reached a terminal or retry outcome, labeled by status.",
		},
		[]string{"status"}, // 'completed', 'retry', 'failed', 'malformed'
	)

	jobRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recon_job_retries_total",
			Help: "Total number of retry requeues across all jobs.",
		},
	)

	deadLettersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recon_dead_letters_total",
			Help: "Total number of jobs moved to the dead-letter list.",
		},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recon_stage_duration_seconds",
			Help:    "Wall-clock duration of pipeline stage invocations.",
			Buckets: []float64{1, 5, 15, 60, 180, 600, 1800, 3600},
		},
		[]string{"stage"},
	)

	stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_stage_failures_total",
			Help: "Total number of stage failures by stage and reason.",
		},
		[]string{"stage", "reason"}, // reason: 'timeout', 'exit', 'postcondition'
	)
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobRetry() { jobRetriesTotal.Inc() }

func IncDeadLetter() { deadLettersTotal.Inc() }

func ObserveStageDuration(stage string, seconds float64) {
	stageDurationSeconds.WithLabelValues(norm(stage)).Observe(seconds)
}

func IncStageFailure(stage, reason string) {
	stageFailuresTotal.WithLabelValues(norm(stage), norm(reason)).Inc()
}
