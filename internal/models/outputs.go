package models

import "time"

// MoodResult is the output of the mood analysis stage. Score is the primary
// clinical score on a 0–10 scale used for the patient trend.
type MoodResult struct {
	Score       float64   `json:"score" mapstructure:"score"`
	Confidence  float64   `json:"confidence" mapstructure:"confidence"`
	Indicators  []string  `json:"indicators" mapstructure:"indicators"`
	Rationale   string    `json:"rationale" mapstructure:"rationale"`
	CompletedAt time.Time `json:"completed_at" mapstructure:"-"`
}

// Theme is one discussed topic with a salience weight in [0,1].
type Theme struct {
	Name     string  `json:"name" mapstructure:"name"`
	Salience float64 `json:"salience" mapstructure:"salience"`
}

// ThemesResult is the output of the theme and technique extraction stage.
type ThemesResult struct {
	Themes      []Theme   `json:"themes" mapstructure:"themes"`
	Techniques  []string  `json:"techniques" mapstructure:"techniques"`
	Confidence  float64   `json:"confidence" mapstructure:"confidence"`
	CompletedAt time.Time `json:"completed_at" mapstructure:"-"`
}

// NotableEvent is a detected qualitative insight distinct from routine
// per-stage output, e.g. a breakthrough moment or a risk disclosure.
type NotableEvent struct {
	Description string  `json:"description" mapstructure:"description"`
	Quote       string  `json:"quote,omitempty" mapstructure:"quote"`
	Confidence  float64 `json:"confidence" mapstructure:"confidence"`
}

// BreakthroughResult is the output of the notable-event detection stage.
type BreakthroughResult struct {
	Events      []NotableEvent `json:"events" mapstructure:"events"`
	Confidence  float64        `json:"confidence" mapstructure:"confidence"`
	CompletedAt time.Time      `json:"completed_at" mapstructure:"-"`
}

// Proficiency is the level attached to an observed patient skill.
type Proficiency string

const (
	ProficiencyBeginner   Proficiency = "beginner"
	ProficiencyDeveloping Proficiency = "developing"
	ProficiencyProficient Proficiency = "proficient"
)

// Valid reports whether p is one of the documented proficiency levels.
func (p Proficiency) Valid() bool {
	switch p {
	case ProficiencyBeginner, ProficiencyDeveloping, ProficiencyProficient:
		return true
	}
	return false
}

// SkillAssessment tags one observed coping or communication skill with a
// proficiency level.
type SkillAssessment struct {
	Skill       string      `json:"skill" mapstructure:"skill"`
	Proficiency Proficiency `json:"proficiency" mapstructure:"proficiency"`
}

// ProgressIndicator describes movement in one clinical area.
type ProgressIndicator struct {
	Area      string `json:"area" mapstructure:"area"`
	Direction string `json:"direction" mapstructure:"direction"`
	Evidence  string `json:"evidence,omitempty" mapstructure:"evidence"`
}

// Engagement is the relationship/engagement-quality assessment.
type Engagement struct {
	Level string `json:"level" mapstructure:"level"`
	Notes string `json:"notes,omitempty" mapstructure:"notes"`
}

// SessionInsights is the five-dimension payload produced by the synthesis
// stage: progress indicators, narrative, skills, engagement, recommendations,
// plus an aggregate confidence.
type SessionInsights struct {
	Progress        []ProgressIndicator `json:"progress" mapstructure:"progress"`
	Narrative       string              `json:"narrative" mapstructure:"narrative"`
	Skills          []SkillAssessment   `json:"skills" mapstructure:"skills"`
	Engagement      Engagement          `json:"engagement" mapstructure:"engagement"`
	Recommendations []string            `json:"recommendations" mapstructure:"recommendations"`
	Confidence      float64             `json:"confidence" mapstructure:"confidence"`
	CompletedAt     time.Time           `json:"completed_at" mapstructure:"-"`
}
