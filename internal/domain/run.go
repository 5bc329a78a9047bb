package domain

import "time"

// Stage enumerates generation run milestones.
type Stage string

const (
	StagePending     Stage = "pending"
	StageFetching    Stage = "fetching"
	StageSummarizing Stage = "summarizing"
	StagePublishing  Stage = "publishing"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
)

// Terminal reports whether no further transitions can follow.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// GenerationRun is the progress snapshot of one run as observed by a poller.
type GenerationRun struct {
	RunID      string         `json:"run_id"`
	Stage      Stage          `json:"stage"`
	Message    string         `json:"message"`
	Trigger    string         `json:"trigger,omitempty"`
	ForceFetch bool           `json:"force_fetch"`
	DraftMode  bool           `json:"draft_mode"`
	StartedAt  time.Time      `json:"started_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Data       map[string]any `json:"data,omitempty"`
}
