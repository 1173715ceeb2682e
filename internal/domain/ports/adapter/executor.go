package adapter

import (
	"context"

	"video-recon-pipeline/internal/domain/model"
)

// StageInput carries everything a stage executor may need. Paths are
// absolute; WorkDir is the per-job scratch directory (removed after the
// job regardless of outcome), SceneDir is the durable reconstruction
// output directory.
type StageInput struct {
	JobID     string
	Stage     model.Stage
	VideoPath string
	WorkDir   string
	FramesDir string
	SceneDir  string
}

// StageResult reports what an executor produced. ArtifactPaths is
// informational (logging, progress messages); post-condition checks work
// off the conventional layout, not off this list.
type StageResult struct {
	ArtifactPaths []string
}

// StageExecutor runs one opaque pipeline stage. Implementations must
// honor ctx cancellation: the caller wraps every invocation in a
// wall-clock timeout and treats expiry exactly like a failure.
type StageExecutor interface {
	Run(ctx context.Context, in StageInput) (StageResult, error)
}
