package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/retry"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		stage   models.Stage
		payload map[string]any
		wantOK  bool
	}{
		{
			name:  "valid mood payload",
			stage: models.StageMood,
			payload: map[string]any{
				"score":      6.5,
				"confidence": 0.9,
				"indicators": []any{"steady voice"},
				"rationale":  "even affect throughout",
			},
			wantOK: true,
		},
		{
			name:    "mood missing confidence",
			stage:   models.StageMood,
			payload: map[string]any{"score": 6.5},
		},
		{
			name:    "mood score out of range",
			stage:   models.StageMood,
			payload: map[string]any{"score": 11.0, "confidence": 0.9},
		},
		{
			name:    "mood confidence out of range",
			stage:   models.StageMood,
			payload: map[string]any{"score": 5.0, "confidence": 1.2},
		},
		{
			name:  "valid themes payload",
			stage: models.StageThemes,
			payload: map[string]any{
				"themes":     []any{map[string]any{"name": "work stress", "salience": 0.8}},
				"confidence": 0.7,
			},
			wantOK: true,
		},
		{
			name:  "theme without name",
			stage: models.StageThemes,
			payload: map[string]any{
				"themes":     []any{map[string]any{"salience": 0.8}},
				"confidence": 0.7,
			},
		},
		{
			name:  "valid breakthrough payload with no events",
			stage: models.StageBreakthrough,
			payload: map[string]any{
				"events":     []any{},
				"confidence": 0.75,
			},
			wantOK: true,
		},
		{
			name:  "valid synthesis payload",
			stage: models.StageSynthesis,
			payload: map[string]any{
				"progress":        []any{map[string]any{"area": "mood regulation", "direction": "improving"}},
				"narrative":       "Clear forward movement this session.",
				"skills":          []any{map[string]any{"skill": "emotion labeling", "proficiency": "developing"}},
				"engagement":      map[string]any{"level": "engaged"},
				"recommendations": []any{"continue weekly cadence"},
				"confidence":      0.8,
			},
			wantOK: true,
		},
		{
			name:  "synthesis with unknown proficiency",
			stage: models.StageSynthesis,
			payload: map[string]any{
				"progress":        []any{},
				"narrative":       "x",
				"skills":          []any{map[string]any{"skill": "emotion labeling", "proficiency": "expert"}},
				"engagement":      map[string]any{"level": "engaged"},
				"recommendations": []any{},
				"confidence":      0.8,
			},
		},
		{
			name:  "synthesis missing narrative",
			stage: models.StageSynthesis,
			payload: map[string]any{
				"progress":        []any{},
				"skills":          []any{},
				"engagement":      map[string]any{"level": "engaged"},
				"recommendations": []any{},
				"confidence":      0.8,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePayload(tt.stage, tt.payload)
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, retry.ClassValidation, retry.Classify(err),
				"schema failures must feed the retry budget as validation errors")
		})
	}
}

func TestValidatePayloadUnknownStage(t *testing.T) {
	err := validatePayload(models.Stage("sentiment"), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, retry.ClassPermanent, retry.Classify(err))
}

func TestDecodePayload(t *testing.T) {
	payload := map[string]any{
		"score":      7.0,
		"confidence": 0.85,
		"indicators": []any{"animated tone"},
		"rationale":  "lifted mood in second half",
	}

	var out models.MoodResult
	require.NoError(t, decodePayload(models.StageMood, payload, &out))
	assert.InDelta(t, 7.0, out.Score, 1e-9)
	assert.InDelta(t, 0.85, out.Confidence, 1e-9)
	assert.Equal(t, []string{"animated tone"}, out.Indicators)
}

func TestDecodePayloadTypeMismatch(t *testing.T) {
	payload := map[string]any{
		"score":      "not a number",
		"confidence": 0.85,
	}

	var out models.MoodResult
	err := decodePayload(models.StageMood, payload, &out)
	require.Error(t, err)
	assert.Equal(t, retry.ClassValidation, retry.Classify(err))
}
