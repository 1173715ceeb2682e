package sysmon

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// gpuStats queries nvidia-smi for utilization and memory pressure of the
// first device. Hosts without a usable GPU return an error; callers keep
// whatever fields were filled (none, here) and carry on.
func gpuStats(ctx context.Context) (utilization, memoryPct float64, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=utilization.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, 0, fmt.Errorf("nvidia-smi: %w", err)
	}

	// "42, 2048, 16384"
	fields := strings.Split(strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0]), ",")
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("nvidia-smi: unexpected output %q", string(out))
	}
	util, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	used, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil || total == 0 {
		return util, 0, err
	}
	return util, used / total * 100, nil
}
