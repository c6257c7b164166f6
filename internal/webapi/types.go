// Package webapi exposes the externally observable pipeline state over HTTP:
// session status, per-stage completion, the processing log, and the rendered
// report.
package webapi

import (
	"time"

	"github.com/rowanhealth/clinsight/internal/models"
)

// StageStatus is the completion state of one stage.
type StageStatus struct {
	Stage       models.Stage `json:"stage"`
	Completed   bool         `json:"completed"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
}

// SessionStatus is the polling view of one session's pipeline state.
type SessionStatus struct {
	SessionID         string        `json:"sessionId"`
	PatientID         string        `json:"patientId"`
	OccurredAt        time.Time     `json:"occurredAt"`
	Status            models.Status `json:"status"`
	FailedStage       models.Stage  `json:"failedStage,omitempty"`
	BarrierReleasedAt *time.Time    `json:"barrierReleasedAt,omitempty"`
	OverallConfidence float64       `json:"overallConfidence"`
	Stages            []StageStatus `json:"stages"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// BuildSessionStatus assembles the polling view from a session record.
func BuildSessionStatus(sess *models.Session) *SessionStatus {
	status := &SessionStatus{
		SessionID:         sess.ID,
		PatientID:         sess.PatientID,
		OccurredAt:        sess.OccurredAt,
		Status:            sess.State.Status,
		FailedStage:       sess.State.FailedStage,
		BarrierReleasedAt: sess.State.BarrierReleasedAt,
		OverallConfidence: sess.OverallConfidence,
	}

	add := func(stage models.Stage, completedAt time.Time, confidence float64) {
		ss := StageStatus{Stage: stage, Completed: !completedAt.IsZero()}
		if ss.Completed {
			t := completedAt
			ss.CompletedAt = &t
			ss.Confidence = confidence
		}
		status.Stages = append(status.Stages, ss)
	}

	out := &sess.Outputs
	var moodAt, themesAt, btAt, synAt time.Time
	var moodC, themesC, btC, synC float64
	if out.Mood != nil {
		moodAt, moodC = out.Mood.CompletedAt, out.Mood.Confidence
	}
	if out.Themes != nil {
		themesAt, themesC = out.Themes.CompletedAt, out.Themes.Confidence
	}
	if out.Breakthrough != nil {
		btAt, btC = out.Breakthrough.CompletedAt, out.Breakthrough.Confidence
	}
	if out.Insights != nil {
		synAt, synC = out.Insights.CompletedAt, out.Insights.Confidence
	}
	add(models.StageMood, moodAt, moodC)
	add(models.StageThemes, themesAt, themesC)
	add(models.StageBreakthrough, btAt, btC)
	add(models.StageSynthesis, synAt, synC)

	return status
}
