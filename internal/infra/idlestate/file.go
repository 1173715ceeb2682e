package idlestate

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"video-recon-pipeline/internal/domain/ports/repository"
)

var _ repository.IdleState = (*FileMarker)(nil)

// FileMarker persists the idle-start timestamp as unix seconds in a
// single marker file, surviving cost-monitor restarts. Existence of the
// file is the "fleet is idle" bit.
type FileMarker struct {
	path string
}

func NewFileMarker(path string) *FileMarker {
	return &FileMarker{path: path}
}

func (f *FileMarker) Get(ctx context.Context) (time.Time, bool, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		// A corrupt marker is treated as "not idle"; the next idle tick
		// rewrites it.
		return time.Time{}, false, nil
	}
	return time.Unix(sec, 0), true, nil
}

func (f *FileMarker) Set(ctx context.Context, since time.Time) error {
	return os.WriteFile(f.path, []byte(strconv.FormatInt(since.Unix(), 10)), 0o644)
}

func (f *FileMarker) Clear(ctx context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
