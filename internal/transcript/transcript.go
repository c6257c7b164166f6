// Package transcript loads and validates speaker-tagged session transcripts.
// Transcripts are read-only input supplied by the capture/diarization side;
// this package never produces them.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rowanhealth/clinsight/internal/models"
)

// ErrInvalid marks transcript validation failures. These are permanent:
// retrying a malformed transcript cannot succeed.
var ErrInvalid = errors.New("invalid transcript")

// Document is one transcript file as supplied by the capture side.
type Document struct {
	PatientID  string             `json:"patient_id" yaml:"patient_id"`
	OccurredAt time.Time          `json:"occurred_at" yaml:"occurred_at"`
	Utterances []models.Utterance `json:"utterances" yaml:"utterances"`
}

// Load reads a transcript document from a YAML or JSON file, chosen by
// extension, and validates it.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, filepath.Base(path), err)
		}
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural invariants of a transcript document.
func Validate(doc *Document) error {
	if doc.PatientID == "" {
		return fmt.Errorf("%w: missing patient_id", ErrInvalid)
	}
	if len(doc.Utterances) == 0 {
		return fmt.Errorf("%w: empty transcript", ErrInvalid)
	}
	for i, u := range doc.Utterances {
		if u.Speaker == "" {
			return fmt.Errorf("%w: utterance %d has no speaker tag", ErrInvalid, i)
		}
		if u.EndSec < u.StartSec {
			return fmt.Errorf("%w: utterance %d ends (%.2fs) before it starts (%.2fs)", ErrInvalid, i, u.EndSec, u.StartSec)
		}
		if i > 0 && u.StartSec < doc.Utterances[i-1].StartSec {
			return fmt.Errorf("%w: utterance %d out of order", ErrInvalid, i)
		}
	}
	return nil
}

// Text flattens utterances into a "Speaker: text" block for stage prompts.
func Text(utterances []models.Utterance) string {
	var b strings.Builder
	for _, u := range utterances {
		b.WriteString(u.Speaker)
		b.WriteString(": ")
		b.WriteString(u.Text)
		b.WriteString("\n")
	}
	return b.String()
}
