package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(acceleratorUtilization, acceleratorMemory, diskUsage, janitorReclaims)
}

var (
	acceleratorUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_accelerator_utilization_percent",
			Help: "Last sampled accelerator (GPU) utilization in percent.",
		},
	)

	acceleratorMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_accelerator_memory_percent",
			Help: "Last sampled accelerator (GPU) memory usage in percent.",
		},
	)

	diskUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_disk_usage_percent",
			Help: "Last sampled filesystem usage of the work root in percent.",
		},
	)

	janitorReclaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_janitor_reclaims_total",
			Help: "Directories removed by disk-pressure remediation, by kind.",
		},
		[]string{"kind"}, // 'work_dir', 'artifact'
	)
)

func SetResourceSample(utilization, memory, disk float64) {
	acceleratorUtilization.Set(utilization)
	acceleratorMemory.Set(memory)
	diskUsage.Set(disk)
}

func IncJanitorReclaim(kind string, n int) {
	janitorReclaims.WithLabelValues(norm(kind)).Add(float64(n))
}
