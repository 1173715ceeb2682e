package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.StageExecutor = (*CommandExecutor)(nil)

// CommandExecutor shells out to the external tools (ffmpeg for frame
// sampling, colmap for everything photogrammetric). Each Run is one
// synchronous process; the caller's ctx deadline is the stage watchdog,
// and CommandContext kills the process when it fires.
type CommandExecutor struct {
	ffmpeg    string
	colmap    string
	frameRate int
	log       *zerolog.Logger
}

func NewCommandExecutor(cfg config.ExecutorConfig, frameRate int, logger *zerolog.Logger) *CommandExecutor {
	l := logger.With().Str("component", "CommandExecutor").Logger()
	return &CommandExecutor{
		ffmpeg:    cfg.FFmpegBin,
		colmap:    cfg.ColmapBin,
		frameRate: frameRate,
		log:       &l,
	}
}

func (e *CommandExecutor) Run(ctx context.Context, in adapter.StageInput) (adapter.StageResult, error) {
	argv, out, err := e.argv(in)
	if err != nil {
		return adapter.StageResult{}, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Debug().Str("job_id", in.JobID).Str("stage", string(in.Stage)).Strs("argv", argv).Msg("exec stage")
	runErr := cmd.Run()
	if runErr != nil {
		if ctx.Err() != nil {
			return adapter.StageResult{}, fmt.Errorf("%w: %s", domain.ErrStageTimeout, in.Stage)
		}
		return adapter.StageResult{}, fmt.Errorf("%s: %w (%s)", argv[0], runErr, tail(stderr.Bytes(), 400))
	}
	return adapter.StageResult{ArtifactPaths: out}, nil
}

func (e *CommandExecutor) argv(in adapter.StageInput) ([]string, []string, error) {
	dbPath := filepath.Join(in.WorkDir, "database.db")
	sparseDir := filepath.Join(in.SceneDir, "sparse")

	switch in.Stage {
	case model.StageVideoExtraction:
		pattern := filepath.Join(in.FramesDir, "frame_%04d.jpg")
		return []string{
			e.ffmpeg, "-hide_banner", "-loglevel", "error", "-y",
			"-i", in.VideoPath,
			"-vf", "fps=" + strconv.Itoa(e.frameRate),
			"-q:v", "2",
			pattern,
		}, []string{in.FramesDir}, nil

	case model.StageFeatureExtraction:
		return []string{
			e.colmap, "feature_extractor",
			"--database_path", dbPath,
			"--image_path", in.FramesDir,
			"--ImageReader.single_camera", "1",
		}, []string{dbPath}, nil

	case model.StageFeatureMatching:
		return []string{
			e.colmap, "exhaustive_matcher",
			"--database_path", dbPath,
		}, []string{dbPath}, nil

	case model.StageReconstruction:
		return []string{
			e.colmap, "mapper",
			"--database_path", dbPath,
			"--image_path", in.FramesDir,
			"--output_path", sparseDir,
		}, []string{sparseDir}, nil
	}
	return nil, nil, errors.New("no executor command for stage " + string(in.Stage))
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(bytes.TrimSpace(b))
	}
	return string(bytes.TrimSpace(b[len(b)-n:]))
}
