package adapter

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
)

// ResourceSampler observes host resource pressure. A partial sample with
// an error is acceptable: callers use whatever fields were filled (a
// host without an accelerator still reports disk usage).
type ResourceSampler interface {
	Sample(ctx context.Context) (model.ResourceSample, error)
}
