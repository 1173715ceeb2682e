package model

import (
	"encoding/json"
	"fmt"

	"video-recon-pipeline/internal/domain"
)

type JobStatus string

const (
	JobStatusQueued          JobStatus = "queued"
	JobStatusProcessing      JobStatus = "processing"
	JobStatusRetry           JobStatus = "retry"
	JobStatusQueuedNextStage JobStatus = "queued_next_stage"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
)

const DefaultMaxRetries = 3

// Job is the unit of work flowing through the reconstruction pipeline.
// The JSON shape is the queue wire format; field names match what the
// original deployment's dashboards read, so renaming them is a breaking
// change for external consumers.
type Job struct {
	ID         string    `json:"job_id"`
	Filename   string    `json:"filename,omitempty"`
	Filepath   string    `json:"filepath"`
	Status     JobStatus `json:"status"`
	Retries    int       `json:"retries"`
	MaxRetries int       `json:"max_retries"`
	LastError  string    `json:"last_error,omitempty"`
	ScenePath  string    `json:"scene_path,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  UnixTime  `json:"created_at"`
	StartedAt  *UnixTime `json:"started_at,omitempty"`
	FinishedAt *UnixTime `json:"completed_at,omitempty"`
	FailedAt   *UnixTime `json:"failed_at,omitempty"`
}

// Terminal reports whether the job can no longer change state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Attempt is the 1-based number of the processing attempt currently
// running (or about to run) for this job.
func (j *Job) Attempt() int { return j.Retries + 1 }

// RetriesLeft reports whether the retry budget still allows a requeue.
func (j *Job) RetriesLeft() bool { return j.Retries < j.MaxRetries }

// Validate enforces the queue-boundary payload schema. A job that fails
// validation is never processed and never retried: without a usable id
// there is nothing to retry.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: missing job_id", domain.ErrMalformedJob)
	}
	if j.Filepath == "" {
		return fmt.Errorf("%w: job %s has no filepath", domain.ErrMalformedJob, j.ID)
	}
	if j.Retries < 0 {
		return fmt.Errorf("%w: job %s has negative retries", domain.ErrMalformedJob, j.ID)
	}
	if j.MaxRetries < 0 {
		return fmt.Errorf("%w: job %s has negative max_retries", domain.ErrMalformedJob, j.ID)
	}
	return nil
}

// ParseJob decodes and validates one queue payload. MaxRetries defaults
// when the submitter left it unset.
func ParseJob(payload []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedJob, err)
	}
	if j.MaxRetries == 0 {
		j.MaxRetries = DefaultMaxRetries
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Encode renders the job back into its wire form.
func (j *Job) Encode() ([]byte, error) { return json.Marshal(j) }
