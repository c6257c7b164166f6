package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		// The happy path
		{StatusPending, StatusAnalyzing, true},
		{StatusAnalyzing, StatusAnalyzed, true},
		{StatusAnalyzed, StatusSynthesizing, true},
		{StatusSynthesizing, StatusComplete, true},

		// Failure edges
		{StatusAnalyzing, StatusFailed, true},
		{StatusAnalyzed, StatusFailed, true},
		{StatusSynthesizing, StatusFailed, true},
		{StatusPending, StatusFailed, false},

		// Manual reset and cancellation reverts
		{StatusFailed, StatusPending, true},
		{StatusAnalyzing, StatusPending, true},
		{StatusSynthesizing, StatusPending, true},
		{StatusAnalyzed, StatusPending, false},

		// Illegal shortcuts
		{StatusPending, StatusComplete, false},
		{StatusPending, StatusSynthesizing, false},
		{StatusAnalyzing, StatusComplete, false},
		{StatusComplete, StatusPending, false},
		{StatusComplete, StatusAnalyzing, false},
		{StatusFailed, StatusAnalyzing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAnalyzing.Terminal())
	assert.False(t, StatusAnalyzed.Terminal())
	assert.False(t, StatusSynthesizing.Terminal())
}

func TestIndependentStagesOrder(t *testing.T) {
	assert.Equal(t, []Stage{StageMood, StageThemes, StageBreakthrough}, IndependentStages())
}

func TestIndependentComplete(t *testing.T) {
	now := time.Now().UTC()
	var out StageOutputs
	assert.False(t, out.IndependentComplete())

	out.Mood = &MoodResult{CompletedAt: now}
	out.Themes = &ThemesResult{CompletedAt: now}
	assert.False(t, out.IndependentComplete(), "breakthrough still missing")

	out.Breakthrough = &BreakthroughResult{}
	assert.False(t, out.IndependentComplete(), "breakthrough has no completion timestamp")

	out.Breakthrough.CompletedAt = now
	assert.True(t, out.IndependentComplete())

	// Synthesis output is not part of the barrier.
	assert.True(t, out.IndependentComplete())
}

func TestHasStage(t *testing.T) {
	now := time.Now().UTC()
	out := StageOutputs{
		Mood:     &MoodResult{CompletedAt: now},
		Insights: &SessionInsights{CompletedAt: now},
	}

	assert.True(t, out.HasStage(StageMood))
	assert.False(t, out.HasStage(StageThemes))
	assert.False(t, out.HasStage(StageBreakthrough))
	assert.True(t, out.HasStage(StageSynthesis))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.3))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
}

func TestProficiencyValid(t *testing.T) {
	assert.True(t, ProficiencyBeginner.Valid())
	assert.True(t, ProficiencyDeveloping.Valid())
	assert.True(t, ProficiencyProficient.Valid())
	assert.False(t, Proficiency("expert").Valid())
	assert.False(t, Proficiency("").Valid())
}
