package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrMalformedJob     = errors.New("malformed job payload")
	ErrQueueEmpty       = errors.New("queue empty")
	ErrStageTimeout     = errors.New("stage deadline exceeded")
	ErrArtifactMissing  = errors.New("expected output artifact missing or empty")
	ErrTooFewFrames     = errors.New("extracted frame count below minimum")
	ErrShutdownDisabled = errors.New("auto shutdown disabled")
)

// StageError reports which pipeline stage failed and why. It wraps the
// underlying cause so callers can still match sentinels with errors.Is.
type StageError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Reason)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError builds a StageError; reason should be short and
// human-readable since it ends up in job records and progress events.
func NewStageError(stage, reason string, err error) *StageError {
	return &StageError{Stage: stage, Reason: reason, Err: err}
}
