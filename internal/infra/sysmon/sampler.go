package sysmon

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.ResourceSampler = (*Sampler)(nil)

// Sampler observes accelerator and disk pressure on the worker host.
// Partial samples are normal: a host without an accelerator still
// reports disk usage, and the returned error says what was missing.
type Sampler struct {
	diskPath string
	log      *zerolog.Logger
}

func NewSampler(diskPath string, logger *zerolog.Logger) *Sampler {
	l := logger.With().Str("component", "Sampler").Logger()
	return &Sampler{diskPath: diskPath, log: &l}
}

func (s *Sampler) Sample(ctx context.Context) (model.ResourceSample, error) {
	sample := model.ResourceSample{Timestamp: model.Now()}

	var firstErr error
	util, mem, err := gpuStats(ctx)
	if err != nil {
		firstErr = err
	} else {
		sample.AcceleratorUtilization = util
		sample.AcceleratorMemory = mem
	}

	disk, err := diskUsagePercent(s.diskPath)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		sample.DiskUsage = disk
	}

	return sample, firstErr
}
