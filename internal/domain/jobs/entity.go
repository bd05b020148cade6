package jobs

import (
	"encoding/json"
	"time"
)

// JobID identifier type
type JobID string

// Status enum
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a job in this status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Aggregate Root: Job tracks one end-to-end analysis request.
// Exactly one of Result/Error is set once the status is terminal.
type Job struct {
	ID          JobID           `json:"job_id"`
	OwnerID     string          `json:"owner_id"`
	Filename    string          `json:"filename"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Update is a partial mutation applied to a job record. Nil fields are
// left untouched.
type Update struct {
	Status      *Status
	Progress    *int
	CurrentStep *string
	Result      json.RawMessage
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Apply merges the update into the job. Progress never moves backwards.
func (j *Job) Apply(u Update) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil && *u.Progress > j.Progress {
		j.Progress = *u.Progress
	}
	if u.CurrentStep != nil {
		j.CurrentStep = *u.CurrentStep
	}
	if u.Result != nil {
		j.Result = u.Result
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	if u.StartedAt != nil {
		j.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
}
