// Package history builds the cross-session context consumed by the synthesis
// stage: a bounded aggregate over the patient's prior completed sessions.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/reasoning"
	"github.com/rowanhealth/clinsight/internal/store"
)

const (
	// DefaultMaxPriorSessions caps the prior-session window (K).
	DefaultMaxPriorSessions = 5
	// DefaultTrendWindow bounds the mood-score trend.
	DefaultTrendWindow = 90 * 24 * time.Hour
)

// Assembler computes PatientHistory aggregates and assembles the synthesis
// input. Aggregates are computed fresh per invocation and bounded by the
// configured window and cap, never by nesting prior contexts.
type Assembler struct {
	store       store.Store
	maxSessions int
	trendWindow time.Duration
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxPriorSessions overrides the prior-session cap.
func WithMaxPriorSessions(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxSessions = n
		}
	}
}

// WithTrendWindow overrides the trend window.
func WithTrendWindow(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.trendWindow = d
		}
	}
}

// New creates an Assembler over the given store.
func New(st store.Store, opts ...Option) *Assembler {
	a := &Assembler{
		store:       st,
		maxSessions: DefaultMaxPriorSessions,
		trendWindow: DefaultTrendWindow,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble produces the synthesis request for a session whose independent
// stages have all completed.
func (a *Assembler) Assemble(ctx context.Context, sess *models.Session) (*reasoning.SynthesisRequest, error) {
	if !sess.Outputs.IndependentComplete() {
		return nil, fmt.Errorf("session %s: independent stage outputs incomplete", sess.ID)
	}

	hist, err := a.PatientHistory(ctx, sess.PatientID, sess.OccurredAt)
	if err != nil {
		return nil, err
	}

	return &reasoning.SynthesisRequest{
		SessionID:    sess.ID,
		Transcript:   sess.Transcript,
		Mood:         sess.Outputs.Mood,
		Themes:       sess.Outputs.Themes,
		Breakthrough: sess.Outputs.Breakthrough,
		History:      hist,
	}, nil
}

// PatientHistory computes the aggregate over the patient's completed sessions
// that occurred strictly before the given time. All fields are present and
// empty for a patient with no prior sessions.
func (a *Assembler) PatientHistory(ctx context.Context, patientID string, before time.Time) (*models.PatientHistory, error) {
	sessions, err := a.store.ListPatientSessions(ctx, patientID, before)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for patient %s: %w", patientID, err)
	}

	hist := models.NewPatientHistory()
	windowStart := before.Add(-a.trendWindow)

	// Sessions arrive newest first. The prior-session list, the frequency
	// counts, and the notable events all draw from the most recent K
	// completed sessions; the trend is bounded by the time window instead.
	kept := 0
	for _, sess := range sessions {
		if sess.State.Status != models.StatusComplete {
			continue
		}

		if sess.Outputs.Mood != nil && !sess.OccurredAt.Before(windowStart) {
			hist.MoodTrend = append(hist.MoodTrend, models.TrendPoint{
				Date:  sess.OccurredAt,
				Score: sess.Outputs.Mood.Score,
			})
		}

		if kept >= a.maxSessions {
			continue
		}
		kept++

		prior := models.PriorSession{
			SessionID: sess.ID,
			Date:      sess.OccurredAt,
			Themes:    []string{},
		}
		if sess.Outputs.Mood != nil {
			prior.MoodScore = sess.Outputs.Mood.Score
		}
		if sess.Outputs.Themes != nil {
			for _, th := range sess.Outputs.Themes.Themes {
				prior.Themes = append(prior.Themes, th.Name)
				hist.ThemeCounts[th.Name]++
			}
			for _, tech := range sess.Outputs.Themes.Techniques {
				hist.TechniqueCounts[tech]++
			}
		}
		hist.PriorSessions = append(hist.PriorSessions, prior)

		if sess.Outputs.Breakthrough != nil {
			for _, ev := range sess.Outputs.Breakthrough.Events {
				hist.NotableEvents = append(hist.NotableEvents, models.HistoricalEvent{
					SessionID:   sess.ID,
					Date:        sess.OccurredAt,
					Description: ev.Description,
					Confidence:  ev.Confidence,
				})
			}
		}
	}

	// Trend and events are reported oldest first.
	sort.Slice(hist.MoodTrend, func(i, j int) bool {
		return hist.MoodTrend[i].Date.Before(hist.MoodTrend[j].Date)
	})
	sort.Slice(hist.NotableEvents, func(i, j int) bool {
		return hist.NotableEvents[i].Date.Before(hist.NotableEvents[j].Date)
	})

	return hist, nil
}
