package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhealth/clinsight/internal/models"
)

// Both backends share one behavioral contract; every test below runs against
// each of them.
func forEachStore(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		fn(t, st)
	})
}

func newSession(id, patientID string, occurredAt time.Time) *models.Session {
	return &models.Session{
		ID:         id,
		PatientID:  patientID,
		OccurredAt: occurredAt,
		Transcript: []models.Utterance{
			{Speaker: "therapist", Text: "How are you?", StartSec: 0, EndSec: 2},
			{Speaker: "patient", Text: "Getting there.", StartSec: 2, EndSec: 4},
		},
	}
}

func moodPayload(t *testing.T, score float64) []byte {
	t.Helper()
	b, err := json.Marshal(&models.MoodResult{Score: score, Confidence: 0.8, Rationale: "test"})
	require.NoError(t, err)
	return b
}

func TestCreateAndGetSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		occurred := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", occurred)))

		sess, err := st.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "p1", sess.PatientID)
		assert.Equal(t, models.StatusPending, sess.State.Status)
		require.Len(t, sess.Transcript, 2)
		assert.Equal(t, "Getting there.", sess.Transcript[1].Text)
		assert.False(t, sess.CreatedAt.IsZero())
	})
}

func TestGetSessionNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		_, err := st.GetSession(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestTransitionStatusCAS(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))

		// First CAS wins.
		ok, err := st.TransitionStatus(ctx, "s1", models.StatusPending, models.StatusAnalyzing, "")
		require.NoError(t, err)
		assert.True(t, ok)

		// Second CAS on the same edge loses without error.
		ok, err = st.TransitionStatus(ctx, "s1", models.StatusPending, models.StatusAnalyzing, "")
		require.NoError(t, err)
		assert.False(t, ok)

		sess, err := st.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusAnalyzing, sess.State.Status)
	})
}

func TestTransitionStatusIllegalEdge(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))

		_, err := st.TransitionStatus(ctx, "s1", models.StatusPending, models.StatusComplete, "")
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestTransitionToFailedRecordsStage(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))

		ok, err := st.TransitionStatus(ctx, "s1", models.StatusPending, models.StatusAnalyzing, "")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = st.TransitionStatus(ctx, "s1", models.StatusAnalyzing, models.StatusFailed, models.StageBreakthrough)
		require.NoError(t, err)
		require.True(t, ok)

		sess, err := st.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, sess.State.Status)
		assert.Equal(t, models.StageBreakthrough, sess.State.FailedStage)

		// The reset edge clears the failed stage tag.
		ok, err = st.TransitionStatus(ctx, "s1", models.StatusFailed, models.StatusPending, "")
		require.NoError(t, err)
		require.True(t, ok)
		sess, err = st.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, sess.State.FailedStage)
	})
}

func TestPutStageOutputWriteOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))

		completedAt := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
		require.NoError(t, st.PutStageOutput(ctx, "s1", models.StageMood, moodPayload(t, 6.0), 0.8, completedAt))

		// A second (late) write must not replace the first.
		err := st.PutStageOutput(ctx, "s1", models.StageMood, moodPayload(t, 2.0), 0.1, completedAt.Add(time.Minute))
		assert.ErrorIs(t, err, ErrOutputExists)

		sess, err := st.GetSession(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, sess.Outputs.Mood)
		assert.InDelta(t, 6.0, sess.Outputs.Mood.Score, 1e-9)
		assert.False(t, sess.Outputs.Mood.CompletedAt.IsZero())
	})
}

func TestStageOutputsRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))
		completedAt := time.Now().UTC()

		themes, err := json.Marshal(&models.ThemesResult{
			Themes:     []models.Theme{{Name: "work-stress", Salience: 0.9}},
			Techniques: []string{"cognitive reframing"},
			Confidence: 0.7,
		})
		require.NoError(t, err)
		require.NoError(t, st.PutStageOutput(ctx, "s1", models.StageThemes, themes, 0.7, completedAt))

		insights, err := json.Marshal(&models.SessionInsights{
			Narrative:  "Steady progress this session.",
			Confidence: 0.75,
		})
		require.NoError(t, err)
		require.NoError(t, st.PutStageOutput(ctx, "s1", models.StageSynthesis, insights, 0.75, completedAt))

		sess, err := st.GetSession(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, sess.Outputs.Themes)
		require.Len(t, sess.Outputs.Themes.Themes, 1)
		assert.Equal(t, "work-stress", sess.Outputs.Themes.Themes[0].Name)
		require.NotNil(t, sess.Outputs.Insights)
		assert.Equal(t, "Steady progress this session.", sess.Outputs.Insights.Narrative)
		assert.Nil(t, sess.Outputs.Mood)
		assert.Nil(t, sess.Outputs.Breakthrough)
	})
}

func TestBarrierAndConfidence(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))

		at := time.Date(2026, 3, 10, 15, 45, 0, 0, time.UTC)
		require.NoError(t, st.SetBarrierReleased(ctx, "s1", at))
		require.NoError(t, st.SetOverallConfidence(ctx, "s1", 1.4)) // clamped

		sess, err := st.GetSession(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, sess.State.BarrierReleasedAt)
		assert.Equal(t, 1.0, sess.OverallConfidence)
	})
}

func TestAppendAndListLog(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))

		for attempt := 1; attempt <= 2; attempt++ {
			require.NoError(t, st.AppendLog(ctx, &models.ProcessingLogEntry{
				SessionID: "s1", Stage: models.StageMood, Outcome: models.AttemptStarted, Attempt: attempt,
			}))
			outcome := models.AttemptFailed
			errMsg := "upstream timeout"
			if attempt == 2 {
				outcome, errMsg = models.AttemptCompleted, ""
			}
			require.NoError(t, st.AppendLog(ctx, &models.ProcessingLogEntry{
				SessionID: "s1", Stage: models.StageMood, Outcome: outcome, Attempt: attempt, Error: errMsg,
			}))
		}

		entries, err := st.ListLog(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, models.AttemptStarted, entries[0].Outcome)
		assert.Equal(t, models.AttemptFailed, entries[1].Outcome)
		assert.Equal(t, "upstream timeout", entries[1].Error)
		assert.Equal(t, models.AttemptCompleted, entries[3].Outcome)
		assert.Equal(t, 2, entries[3].Attempt)
	})
}

func TestListPatientSessions(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, st.CreateSession(ctx, newSession("old", "p1", base)))
		require.NoError(t, st.CreateSession(ctx, newSession("mid", "p1", base.AddDate(0, 0, 30))))
		require.NoError(t, st.CreateSession(ctx, newSession("new", "p1", base.AddDate(0, 0, 60))))
		require.NoError(t, st.CreateSession(ctx, newSession("other", "p2", base.AddDate(0, 0, 30))))

		// Strictly before the newest session: excludes it and the other patient.
		sessions, err := st.ListPatientSessions(ctx, "p1", base.AddDate(0, 0, 60))
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "mid", sessions[0].ID)
		assert.Equal(t, "old", sessions[1].ID)
	})
}

func TestListSessionsNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, st.CreateSession(ctx, newSession("a", "p1", base)))
		require.NoError(t, st.CreateSession(ctx, newSession("b", "p1", base.AddDate(0, 0, 7))))

		ids, err := st.ListSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, ids)
	})
}

func TestGetSessionReturnsCopy(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newSession("s1", "p1", time.Now().UTC())))

	sess, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	sess.PatientID = "tampered"
	sess.Transcript[0].Text = "tampered"

	fresh, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "p1", fresh.PatientID)
	assert.Equal(t, "How are you?", fresh.Transcript[0].Text)
}
