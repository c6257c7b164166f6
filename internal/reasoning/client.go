// Package reasoning is the client side of the reasoning-service
// collaborator: per-stage inference calls returning structured payloads.
package reasoning

import (
	"context"

	"github.com/rowanhealth/clinsight/internal/models"
)

//go:generate mockgen -source=client.go -destination=mock_client.go -package=reasoning

// Client is the interface to the reasoning service. Implementations must
// return structurally valid payloads or an error classified for the retry
// policy; a response that fails schema validation is a retryable validation
// failure.
type Client interface {
	// AnalyzeMood scores the session mood with supporting indicators.
	AnalyzeMood(ctx context.Context, req *StageRequest) (*models.MoodResult, error)

	// ExtractThemes lists discussed themes and therapist techniques.
	ExtractThemes(ctx context.Context, req *StageRequest) (*models.ThemesResult, error)

	// DetectBreakthroughs flags notable events in the session.
	DetectBreakthroughs(ctx context.Context, req *StageRequest) (*models.BreakthroughResult, error)

	// Synthesize produces the five-dimension insights payload from the
	// assembled current-plus-historical context.
	Synthesize(ctx context.Context, req *SynthesisRequest) (*models.SessionInsights, error)
}

// StageRequest is the input to one independent stage.
type StageRequest struct {
	SessionID  string             `json:"session_id"`
	Transcript []models.Utterance `json:"transcript"`
}

// SynthesisRequest is the single input value consumed by the synthesis
// stage: the current session's three independent-stage outputs, the raw
// transcript, and the patient history aggregate computed fresh at
// invocation time.
type SynthesisRequest struct {
	SessionID    string                     `json:"session_id"`
	Transcript   []models.Utterance         `json:"transcript"`
	Mood         *models.MoodResult         `json:"mood"`
	Themes       *models.ThemesResult       `json:"themes"`
	Breakthrough *models.BreakthroughResult `json:"breakthrough"`
	History      *models.PatientHistory     `json:"history"`
}
