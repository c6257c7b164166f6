package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/transcript"
)

// SQLiteStore provides SQLite-backed persistence for sessions, stage outputs,
// and the processing log.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dbPath and creates tables if they
// don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		failed_stage TEXT NOT NULL DEFAULT '',
		barrier_released_at DATETIME,
		overall_confidence REAL NOT NULL DEFAULT 0,
		transcript BLOB NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stage_outputs (
		session_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		payload TEXT NOT NULL,
		confidence REAL NOT NULL,
		completed_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, stage),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS processing_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_patient ON sessions(patient_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_log_session ON processing_log(session_id, id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateSession inserts a new session in StatusPending with its transcript
// archived zstd-compressed.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.Session) error {
	blob, err := transcript.Compress(sess.Transcript)
	if err != nil {
		return fmt.Errorf("archiving transcript: %w", err)
	}

	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.State.Status = models.StatusPending
	sess.State.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, patient_id, occurred_at, status, transcript, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.PatientID, sess.OccurredAt, sess.State.Status, blob, sess.CreatedAt, sess.State.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session with its stage outputs.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, occurred_at, status, failed_stage, barrier_released_at,
		        overall_confidence, transcript, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)

	var (
		sess    models.Session
		blob    []byte
		barrier sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.PatientID, &sess.OccurredAt, &sess.State.Status,
		&sess.State.FailedStage, &barrier, &sess.OverallConfidence, &blob,
		&sess.CreatedAt, &sess.State.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if barrier.Valid {
		t := barrier.Time
		sess.State.BarrierReleasedAt = &t
	}

	sess.Transcript, err = transcript.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	if err := s.loadOutputs(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SQLiteStore) loadOutputs(ctx context.Context, sess *models.Session) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, payload, confidence, completed_at FROM stage_outputs WHERE session_id = ?`,
		sess.ID)
	if err != nil {
		return fmt.Errorf("query stage outputs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stage       models.Stage
			payload     []byte
			confidence  float64
			completedAt time.Time
		)
		if err := rows.Scan(&stage, &payload, &confidence, &completedAt); err != nil {
			return fmt.Errorf("scan stage output: %w", err)
		}
		if err := decodeOutput(&sess.Outputs, stage, payload, completedAt); err != nil {
			return fmt.Errorf("session %s stage %s: %w", sess.ID, stage, err)
		}
	}
	return rows.Err()
}

// decodeOutput unmarshals a stored payload into the typed field for its stage
// and stamps the durable completion timestamp.
func decodeOutput(out *models.StageOutputs, stage models.Stage, payload []byte, completedAt time.Time) error {
	switch stage {
	case models.StageMood:
		var r models.MoodResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return err
		}
		r.CompletedAt = completedAt
		out.Mood = &r
	case models.StageThemes:
		var r models.ThemesResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return err
		}
		r.CompletedAt = completedAt
		out.Themes = &r
	case models.StageBreakthrough:
		var r models.BreakthroughResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return err
		}
		r.CompletedAt = completedAt
		out.Breakthrough = &r
	case models.StageSynthesis:
		var r models.SessionInsights
		if err := json.Unmarshal(payload, &r); err != nil {
			return err
		}
		r.CompletedAt = completedAt
		out.Insights = &r
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

// TransitionStatus performs an atomic compare-and-set on the session status.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, id string, from, to models.Status, failedStage models.Stage) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s → %s", ErrIllegalTransition, from, to)
	}
	if to != models.StatusFailed {
		failedStage = ""
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, failed_stage = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, failedStage, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// PutStageOutput writes one stage output as a single atomic insert. The
// composite primary key makes a second write fail, which callers treat as a
// late-write no-op.
func (s *SQLiteStore) PutStageOutput(ctx context.Context, sessionID string, stage models.Stage, payload []byte, confidence float64, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_outputs (session_id, stage, payload, confidence, completed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, stage) DO NOTHING`,
		sessionID, stage, payload, models.ClampConfidence(confidence), completedAt)
	if err != nil {
		return fmt.Errorf("insert stage output: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrOutputExists
	}
	return nil
}

// SetBarrierReleased records the barrier-release timestamp.
func (s *SQLiteStore) SetBarrierReleased(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET barrier_released_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("set barrier released: %w", err)
	}
	return nil
}

// SetOverallConfidence records the session-level aggregate confidence.
func (s *SQLiteStore) SetOverallConfidence(ctx context.Context, sessionID string, confidence float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET overall_confidence = ?, updated_at = ? WHERE id = ?`,
		models.ClampConfidence(confidence), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("set overall confidence: %w", err)
	}
	return nil
}

// AppendLog appends one processing-log entry.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_log (session_id, stage, outcome, attempt, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID, entry.Stage, entry.Outcome, entry.Attempt, entry.Error, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListLog returns all log entries for a session in append order.
func (s *SQLiteStore) ListLog(ctx context.Context, sessionID string) ([]models.ProcessingLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, stage, outcome, attempt, error, created_at
		 FROM processing_log WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var entries []models.ProcessingLogEntry
	for rows.Next() {
		var e models.ProcessingLogEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Stage, &e.Outcome, &e.Attempt, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListPatientSessions returns the patient's sessions that occurred strictly
// before the given time, newest first.
func (s *SQLiteStore) ListPatientSessions(ctx context.Context, patientID string, before time.Time) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE patient_id = ? AND occurred_at < ? ORDER BY occurred_at DESC`,
		patientID, before)
	if err != nil {
		return nil, fmt.Errorf("query patient sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// ListSessions returns all session IDs, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions ORDER BY occurred_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
