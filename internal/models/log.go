package models

import "time"

// AttemptOutcome is the outcome recorded for one task attempt.
type AttemptOutcome string

const (
	AttemptStarted   AttemptOutcome = "started"
	AttemptCompleted AttemptOutcome = "completed"
	AttemptFailed    AttemptOutcome = "failed"
)

// ProcessingLogEntry is one append-only record of a task attempt. Entries are
// never updated or deleted; a session accumulates many of them across retries
// and manual re-triggers.
type ProcessingLogEntry struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Stage     Stage          `json:"stage"`
	Outcome   AttemptOutcome `json:"outcome"`
	Attempt   int            `json:"attempt"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
