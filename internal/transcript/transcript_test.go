package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhealth/clinsight/internal/models"
)

func validDocument() *Document {
	return &Document{
		PatientID:  "patient-1",
		OccurredAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		Utterances: []models.Utterance{
			{Speaker: "therapist", Text: "How was your week?", StartSec: 0, EndSec: 3},
			{Speaker: "patient", Text: "Hard, but better.", StartSec: 3, EndSec: 7},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document)
		wantErr string
	}{
		{
			name:   "valid document",
			mutate: func(*Document) {},
		},
		{
			name:    "missing patient id",
			mutate:  func(d *Document) { d.PatientID = "" },
			wantErr: "missing patient_id",
		},
		{
			name:    "empty transcript",
			mutate:  func(d *Document) { d.Utterances = nil },
			wantErr: "empty transcript",
		},
		{
			name:    "missing speaker tag",
			mutate:  func(d *Document) { d.Utterances[1].Speaker = "" },
			wantErr: "no speaker tag",
		},
		{
			name:    "inverted offsets",
			mutate:  func(d *Document) { d.Utterances[0].EndSec = -1 },
			wantErr: "before it starts",
		},
		{
			name: "out of order utterances",
			mutate: func(d *Document) {
				d.Utterances[1].StartSec = -2
				d.Utterances[1].EndSec = 1
			},
			wantErr: "out of order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)

			err := Validate(doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	content := `patient_id: patient-1
occurred_at: 2026-03-10T15:00:00Z
utterances:
  - speaker: therapist
    text: "How was your week?"
    start_sec: 0
    end_sec: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "patient-1", doc.PatientID)
	require.Len(t, doc.Utterances, 1)
	assert.Equal(t, "therapist", doc.Utterances[0].Speaker)
	assert.InDelta(t, 3.0, doc.Utterances[0].EndSec, 1e-9)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	content := `{
  "patient_id": "patient-1",
  "occurred_at": "2026-03-10T15:00:00Z",
  "utterances": [
    {"speaker": "patient", "text": "Hello.", "start_sec": 0, "end_sec": 1}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "patient-1", doc.PatientID)
	require.Len(t, doc.Utterances, 1)
}

func TestLoadMalformedFileIsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("utterances: [not valid"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestText(t *testing.T) {
	got := Text(validDocument().Utterances)
	assert.Equal(t, "therapist: How was your week?\npatient: Hard, but better.\n", got)
}

func TestArchiveRoundTrip(t *testing.T) {
	utterances := validDocument().Utterances

	compressed, err := Compress(utterances)
	require.NoError(t, err)
	assert.NotEmpty(t, compressed)

	restored, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, utterances, restored)
}

func TestDecompressGarbageFails(t *testing.T) {
	_, err := Decompress([]byte("not zstd data"))
	require.Error(t, err)
}
