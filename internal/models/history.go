package models

import "time"

// PriorSession is one bounded summary of an earlier completed session.
type PriorSession struct {
	SessionID string    `json:"session_id"`
	Date      time.Time `json:"date"`
	MoodScore float64   `json:"mood_score"`
	Themes    []string  `json:"themes"`
}

// TrendPoint is one (date, score) pair of the primary-score trend.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

// HistoricalEvent is a notable event from a prior session, kept in
// chronological order.
type HistoricalEvent struct {
	SessionID   string    `json:"session_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
}

// PatientHistory is the derived cross-session aggregate consumed by the
// synthesis stage. It is computed fresh per invocation and never stored:
// a bounded last-K window of prior sessions plus a time-windowed score trend,
// flattened instead of recursively nesting prior contexts.
//
// All fields are always present; for a patient with zero prior sessions they
// are empty, never nil, so the synthesis contract is uniform.
type PatientHistory struct {
	PriorSessions   []PriorSession    `json:"prior_sessions"`
	MoodTrend       []TrendPoint      `json:"mood_trend"`
	ThemeCounts     map[string]int    `json:"theme_counts"`
	TechniqueCounts map[string]int    `json:"technique_counts"`
	NotableEvents   []HistoricalEvent `json:"notable_events"`
}

// NewPatientHistory returns an aggregate with all fields initialized empty.
func NewPatientHistory() *PatientHistory {
	return &PatientHistory{
		PriorSessions:   []PriorSession{},
		MoodTrend:       []TrendPoint{},
		ThemeCounts:     map[string]int{},
		TechniqueCounts: map[string]int{},
		NotableEvents:   []HistoricalEvent{},
	}
}
