package model

// Stage names the ordered steps of the reconstruction pipeline. Progress
// events additionally use the retry/failed markers, which are not
// pipeline stages but show up on the same wire channel.
type Stage string

const (
	StageVideoExtraction   Stage = "video_extraction"
	StageFeatureExtraction Stage = "feature_extraction"
	StageFeatureMatching   Stage = "feature_matching"
	StageReconstruction    Stage = "reconstruction"
	StageHandoff           Stage = "handoff"

	// Event-only markers.
	StageRetry  Stage = "retry"
	StageFailed Stage = "failed"
)

// ProgressEvent is one message on a per-job progress channel. Progress is
// 0–100 and never decreases within a single processing attempt.
type ProgressEvent struct {
	JobID     string   `json:"job_id"`
	Stage     Stage    `json:"stage"`
	Progress  int      `json:"progress"`
	Message   string   `json:"message"`
	Timestamp UnixTime `json:"timestamp"`
}

// NewProgress stamps an event with the current time.
func NewProgress(jobID string, stage Stage, progress int, message string) ProgressEvent {
	return ProgressEvent{
		JobID:     jobID,
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: Now(),
	}
}
