package model

import "encoding/json"

// DownstreamJob is what the handoff stage pushes onto the downstream
// queue for the scene-import pipeline. It points at the reconstruction
// output; the source video is done at this point.
type DownstreamJob struct {
	JobID       string    `json:"job_id"`
	Filename    string    `json:"filename,omitempty"`
	ScenePath   string    `json:"scene_path"`
	OutputPath  string    `json:"output_path"`
	Status      JobStatus `json:"status"`
	CompletedAt UnixTime  `json:"completed_at"`
}

func (d *DownstreamJob) Encode() ([]byte, error) { return json.Marshal(d) }

// DeadLetterEntry is a terminal copy of a job whose retry budget is
// exhausted. Entries are append-only and only ever read by humans (or
// the admin requeue endpoint, which creates a fresh attempt rather than
// resurrecting the entry).
type DeadLetterEntry struct {
	EntryID string `json:"dead_letter_id"`
	Job
}

func (e *DeadLetterEntry) Encode() ([]byte, error) { return json.Marshal(e) }

func ParseDeadLetterEntry(payload []byte) (*DeadLetterEntry, error) {
	var e DeadLetterEntry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
