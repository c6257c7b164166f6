package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rowanhealth/clinsight/internal/models"
)

// MemoryStore is an in-memory Store implementation. It honors the same
// compare-and-set and write-once semantics as the SQLite store and is the
// default backend in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	log      []models.ProcessingLogEntry
	nextID   int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		nextID:   1,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateSession(_ context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s already exists", sess.ID)
	}

	now := time.Now().UTC()
	cp := cloneSession(sess)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.State.Status = models.StatusPending
	cp.State.UpdatedAt = now
	m.sessions[sess.ID] = cp
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (m *MemoryStore) TransitionStatus(_ context.Context, id string, from, to models.Status, failedStage models.Stage) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s → %s", ErrIllegalTransition, from, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return false, ErrSessionNotFound
	}
	if sess.State.Status != from {
		return false, nil
	}
	sess.State.Status = to
	if to == models.StatusFailed {
		sess.State.FailedStage = failedStage
	} else {
		sess.State.FailedStage = ""
	}
	sess.State.UpdatedAt = time.Now().UTC()
	return true, nil
}

// PutStageOutput ignores the confidence column here; the decoded payload
// already carries it.
func (m *MemoryStore) PutStageOutput(_ context.Context, sessionID string, stage models.Stage, payload []byte, _ float64, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Outputs.HasStage(stage) {
		return ErrOutputExists
	}
	if err := decodeOutput(&sess.Outputs, stage, payload, completedAt); err != nil {
		return fmt.Errorf("session %s stage %s: %w", sessionID, stage, err)
	}
	return nil
}

func (m *MemoryStore) SetBarrierReleased(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	t := at
	sess.State.BarrierReleasedAt = &t
	sess.State.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) SetOverallConfidence(_ context.Context, sessionID string, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.OverallConfidence = models.ClampConfidence(confidence)
	sess.State.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) AppendLog(_ context.Context, entry *models.ProcessingLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := *entry
	e.ID = m.nextID
	m.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	entry.ID = e.ID
	m.log = append(m.log, e)
	return nil
}

func (m *MemoryStore) ListLog(_ context.Context, sessionID string) ([]models.ProcessingLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []models.ProcessingLogEntry
	for _, e := range m.log {
		if e.SessionID == sessionID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MemoryStore) ListPatientSessions(_ context.Context, patientID string, before time.Time) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*models.Session
	for _, sess := range m.sessions {
		if sess.PatientID == patientID && sess.OccurredAt.Before(before) {
			sessions = append(sessions, cloneSession(sess))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].OccurredAt.After(sessions[j].OccurredAt)
	})
	return sessions, nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type row struct {
		id string
		at time.Time
	}
	rows := make([]row, 0, len(m.sessions))
	for id, sess := range m.sessions {
		rows = append(rows, row{id, sess.OccurredAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].at.After(rows[j].at) })

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.id)
	}
	return ids, nil
}

// cloneSession deep-copies enough of a session that callers cannot mutate
// stored state through the returned pointer.
func cloneSession(sess *models.Session) *models.Session {
	cp := *sess
	cp.Transcript = append([]models.Utterance(nil), sess.Transcript...)
	if sess.State.BarrierReleasedAt != nil {
		t := *sess.State.BarrierReleasedAt
		cp.State.BarrierReleasedAt = &t
	}
	if sess.Outputs.Mood != nil {
		r := *sess.Outputs.Mood
		cp.Outputs.Mood = &r
	}
	if sess.Outputs.Themes != nil {
		r := *sess.Outputs.Themes
		cp.Outputs.Themes = &r
	}
	if sess.Outputs.Breakthrough != nil {
		r := *sess.Outputs.Breakthrough
		cp.Outputs.Breakthrough = &r
	}
	if sess.Outputs.Insights != nil {
		r := *sess.Outputs.Insights
		cp.Outputs.Insights = &r
	}
	return &cp
}
