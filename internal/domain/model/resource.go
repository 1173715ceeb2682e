package model

// ResourceSample is one observation of worker-host resource pressure.
// Percent fields are 0–100. The JSON names are the telemetry wire
// contract (accelerator_* rather than gpu_*; the fleet is not
// necessarily NVIDIA forever).
type ResourceSample struct {
	AcceleratorUtilization float64  `json:"accelerator_utilization"`
	AcceleratorMemory      float64  `json:"accelerator_memory"`
	DiskUsage              float64  `json:"disk_usage"`
	Timestamp              UnixTime `json:"timestamp"`
}

// FleetSample is what the cost monitor looks at each tick: resource
// pressure plus queue occupancy.
type FleetSample struct {
	AcceleratorUtilization float64
	PendingDepth           int64
	ActiveJobs             int64
}

// Idle applies the low-activity predicate: nothing queued, nothing
// running, accelerator effectively cold.
func (s FleetSample) Idle(utilizationThreshold float64) bool {
	return s.AcceleratorUtilization < utilizationThreshold &&
		s.PendingDepth == 0 &&
		s.ActiveJobs == 0
}
