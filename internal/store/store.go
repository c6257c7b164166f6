// Package store is the persistence collaborator for the pipeline: session
// records with compare-and-set status transitions, write-once stage outputs,
// and an append-only processing log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rowanhealth/clinsight/internal/models"
)

var (
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrOutputExists is returned when a stage output has already been
	// written. Callers treat this as a no-op for late writes racing a
	// timed-out stage.
	ErrOutputExists = errors.New("stage output already written")

	// ErrIllegalTransition is returned when a requested status transition
	// is not a documented edge of the state machine.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Store is the narrow persistence interface required by the orchestrator.
// Implementations must provide read-your-writes consistency within a single
// run and atomic compare-and-set for status transitions.
type Store interface {
	// CreateSession inserts a new session in StatusPending.
	CreateSession(ctx context.Context, sess *models.Session) error

	// GetSession returns the session with its stage outputs.
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// TransitionStatus atomically moves a session from the expected status
	// to the next one. It returns false with no error when the session is
	// no longer in the expected status (a concurrent trigger won), and
	// ErrIllegalTransition when from → to is not a documented edge.
	// failedStage is recorded only when to == StatusFailed.
	TransitionStatus(ctx context.Context, id string, from, to models.Status, failedStage models.Stage) (bool, error)

	// PutStageOutput durably writes one stage's output as a single atomic
	// unit, including its completion timestamp. Outputs are write-once:
	// a second write for the same (session, stage) returns ErrOutputExists.
	PutStageOutput(ctx context.Context, sessionID string, stage models.Stage, payload []byte, confidence float64, completedAt time.Time) error

	// SetBarrierReleased records the barrier-release timestamp.
	SetBarrierReleased(ctx context.Context, sessionID string, at time.Time) error

	// SetOverallConfidence records the session-level aggregate confidence.
	SetOverallConfidence(ctx context.Context, sessionID string, confidence float64) error

	// AppendLog appends one processing-log entry. Entries are never
	// updated or deleted.
	AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error

	// ListLog returns all log entries for a session in append order.
	ListLog(ctx context.Context, sessionID string) ([]models.ProcessingLogEntry, error)

	// ListPatientSessions returns the patient's sessions that occurred
	// strictly before the given time, newest first.
	ListPatientSessions(ctx context.Context, patientID string, before time.Time) ([]*models.Session, error)

	// ListSessions returns all session IDs, newest first.
	ListSessions(ctx context.Context) ([]string, error)

	Close() error
}
