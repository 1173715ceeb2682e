package usecase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"video-recon-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Janitor reclaims disk space under pressure: stale per-job work
// directories and aged scene artifacts. It never touches job state and
// only considers direct children of the two roots; symlinks are skipped
// so a sweep can never follow a link out of its root.
type Janitor struct {
	workRoot       string
	sceneRoot      string
	workMaxAge     time.Duration
	artifactMaxAge time.Duration
	log            *zerolog.Logger
	now            func() time.Time
}

func NewJanitor(workRoot, sceneRoot string, workMaxAge, artifactMaxAge time.Duration, logger *zerolog.Logger) *Janitor {
	l := logger.With().Str("component", "Janitor").Logger()
	return &Janitor{
		workRoot:       workRoot,
		sceneRoot:      sceneRoot,
		workMaxAge:     workMaxAge,
		artifactMaxAge: artifactMaxAge,
		log:            &l,
		now:            time.Now,
	}
}

// Sweep removes stale directories from both roots and reports how many
// were reclaimed. Per-entry failures are logged and skipped; a sweep is
// best-effort end to end.
func (j *Janitor) Sweep(ctx context.Context) (workDirs, artifacts int) {
	workDirs = j.sweepRoot(ctx, j.workRoot, j.workMaxAge, "work_dir")
	artifacts = j.sweepRoot(ctx, j.sceneRoot, j.artifactMaxAge, "artifact")
	return workDirs, artifacts
}

func (j *Janitor) sweepRoot(ctx context.Context, root string, maxAge time.Duration, kind string) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		j.log.Warn().Err(err).Str("root", root).Msg("sweep read failed")
		return 0
	}
	cutoff := j.now().Add(-maxAge)

	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(root, e.Name())
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			// symlinks and stray files are left alone
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			j.log.Warn().Err(err).Str("path", path).Msg("stale dir removal failed")
			continue
		}
		j.log.Info().Str("path", path).Str("kind", kind).Msg("removed stale dir")
		removed++
	}
	if removed > 0 {
		metrics.IncJanitorReclaim(kind, removed)
	}
	return removed
}
