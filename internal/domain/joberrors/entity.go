package joberrors

import "time"

// CallFailure records one failed LLM call within a job, for diagnostics.
type CallFailure struct {
	JobID       string    `json:"job_id"`
	UnitKey     string    `json:"unit_key"` // "general" or a lot key
	Attempt     int       `json:"attempt"`
	Reason      string    `json:"reason"`
	RateLimited bool      `json:"rate_limited"`
	OccurredAt  time.Time `json:"occurred_at"`
}
