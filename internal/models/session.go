package models

import "time"

// Stage identifies one analysis task in the pipeline.
type Stage string

const (
	StageMood         Stage = "mood"
	StageThemes       Stage = "themes"
	StageBreakthrough Stage = "breakthrough"
	StageSynthesis    Stage = "synthesis"
)

// IndependentStages returns the stages that run concurrently ahead of the
// synthesis stage, in canonical order.
func IndependentStages() []Stage {
	return []Stage{StageMood, StageThemes, StageBreakthrough}
}

// Status represents the pipeline status of a session.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAnalyzing    Status = "analyzing"
	StatusAnalyzed     Status = "analyzed"
	StatusSynthesizing Status = "synthesizing"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further automatic transitions leave this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// legalTransitions is the full edge set of the status state machine.
// failed → pending is the external reset used by manual retry; the
// running → pending edges are the cooperative-cancellation reverts.
var legalTransitions = map[Status][]Status{
	StatusPending:      {StatusAnalyzing},
	StatusAnalyzing:    {StatusAnalyzed, StatusFailed, StatusPending},
	StatusAnalyzed:     {StatusSynthesizing, StatusFailed},
	StatusSynthesizing: {StatusComplete, StatusFailed, StatusPending},
	StatusFailed:       {StatusPending},
}

// CanTransition reports whether from → to is a documented edge.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Utterance is one speaker-tagged segment of a session transcript, with
// start/end offsets in seconds from the beginning of the recording.
type Utterance struct {
	Speaker  string  `json:"speaker" yaml:"speaker"`
	Text     string  `json:"text" yaml:"text"`
	StartSec float64 `json:"start_sec" yaml:"start_sec"`
	EndSec   float64 `json:"end_sec" yaml:"end_sec"`
}

// PipelineState is the mutable half of a session record: the status machine
// plus the barrier-release timestamp. Per-stage completion timestamps live on
// the write-once stage outputs.
type PipelineState struct {
	Status            Status     `json:"status"`
	FailedStage       Stage      `json:"failed_stage,omitempty"`
	BarrierReleasedAt *time.Time `json:"barrier_released_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// StageOutputs holds the immutable per-stage results. Each field is written
// exactly once per stage and replaced only by a full re-run.
type StageOutputs struct {
	Mood         *MoodResult         `json:"mood,omitempty"`
	Themes       *ThemesResult       `json:"themes,omitempty"`
	Breakthrough *BreakthroughResult `json:"breakthrough,omitempty"`
	Insights     *SessionInsights    `json:"insights,omitempty"`
}

// IndependentComplete reports whether all three independent stages have a
// durably written output with a non-zero completion timestamp.
func (o *StageOutputs) IndependentComplete() bool {
	return o.Mood != nil && !o.Mood.CompletedAt.IsZero() &&
		o.Themes != nil && !o.Themes.CompletedAt.IsZero() &&
		o.Breakthrough != nil && !o.Breakthrough.CompletedAt.IsZero()
}

// HasStage reports whether the output for the given stage has been written.
func (o *StageOutputs) HasStage(stage Stage) bool {
	switch stage {
	case StageMood:
		return o.Mood != nil
	case StageThemes:
		return o.Themes != nil
	case StageBreakthrough:
		return o.Breakthrough != nil
	case StageSynthesis:
		return o.Insights != nil
	}
	return false
}

// Session represents one therapy encounter: the speaker-tagged transcript plus
// the pipeline state and derived outputs keyed by the same identifier.
type Session struct {
	ID                string        `json:"id"`
	PatientID         string        `json:"patient_id"`
	OccurredAt        time.Time     `json:"occurred_at"`
	Transcript        []Utterance   `json:"transcript"`
	State             PipelineState `json:"state"`
	Outputs           StageOutputs  `json:"outputs"`
	OverallConfidence float64       `json:"overall_confidence"`
	CreatedAt         time.Time     `json:"created_at"`
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
