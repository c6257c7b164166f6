// Package report renders a clinician-facing summary of a session from its
// stored stage outputs. Rendering degrades gracefully: whatever independent
// outputs exist are shown even when synthesis failed.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/rowanhealth/clinsight/internal/models"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// BuildMarkdown renders the session summary as markdown.
func BuildMarkdown(sess *models.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", sess.ID)
	fmt.Fprintf(&b, "- Patient: %s\n", sess.PatientID)
	fmt.Fprintf(&b, "- Date: %s\n", sess.OccurredAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Status: %s", sess.State.Status)
	if sess.State.Status == models.StatusFailed && sess.State.FailedStage != "" {
		fmt.Fprintf(&b, " (stage %s)", sess.State.FailedStage)
	}
	b.WriteString("\n")
	if sess.OverallConfidence > 0 {
		fmt.Fprintf(&b, "- Overall confidence: %.2f\n", sess.OverallConfidence)
	}
	b.WriteString("\n")

	if mood := sess.Outputs.Mood; mood != nil {
		b.WriteString("## Mood\n\n")
		fmt.Fprintf(&b, "Score **%.1f / 10** (confidence %.2f)\n\n", mood.Score, mood.Confidence)
		for _, ind := range mood.Indicators {
			fmt.Fprintf(&b, "- %s\n", ind)
		}
		if mood.Rationale != "" {
			fmt.Fprintf(&b, "\n%s\n", mood.Rationale)
		}
		b.WriteString("\n")
	}

	if themes := sess.Outputs.Themes; themes != nil {
		b.WriteString("## Themes\n\n")
		b.WriteString("| Theme | Salience |\n|---|---|\n")
		for _, th := range themes.Themes {
			fmt.Fprintf(&b, "| %s | %.2f |\n", th.Name, th.Salience)
		}
		if len(themes.Techniques) > 0 {
			fmt.Fprintf(&b, "\nTechniques observed: %s\n", strings.Join(themes.Techniques, ", "))
		}
		b.WriteString("\n")
	}

	if bt := sess.Outputs.Breakthrough; bt != nil {
		b.WriteString("## Notable events\n\n")
		if len(bt.Events) == 0 {
			b.WriteString("None detected.\n")
		}
		for _, ev := range bt.Events {
			fmt.Fprintf(&b, "- %s (confidence %.2f)\n", ev.Description, ev.Confidence)
			if ev.Quote != "" {
				fmt.Fprintf(&b, "  > %s\n", ev.Quote)
			}
		}
		b.WriteString("\n")
	}

	if ins := sess.Outputs.Insights; ins != nil {
		b.WriteString("## Synthesis\n\n")
		fmt.Fprintf(&b, "%s\n\n", ins.Narrative)

		if len(ins.Progress) > 0 {
			b.WriteString("### Progress\n\n")
			for _, p := range ins.Progress {
				fmt.Fprintf(&b, "- %s: %s", p.Area, p.Direction)
				if p.Evidence != "" {
					fmt.Fprintf(&b, " — %s", p.Evidence)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}

		if len(ins.Skills) > 0 {
			b.WriteString("### Skills\n\n| Skill | Proficiency |\n|---|---|\n")
			for _, s := range ins.Skills {
				fmt.Fprintf(&b, "| %s | %s |\n", s.Skill, s.Proficiency)
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "### Engagement\n\n%s", ins.Engagement.Level)
		if ins.Engagement.Notes != "" {
			fmt.Fprintf(&b, " — %s", ins.Engagement.Notes)
		}
		b.WriteString("\n\n")

		if len(ins.Recommendations) > 0 {
			b.WriteString("### Recommendations\n\n")
			for _, rec := range ins.Recommendations {
				fmt.Fprintf(&b, "- %s\n", rec)
			}
		}
	} else if sess.State.Status == models.StatusFailed {
		b.WriteString("## Synthesis\n\nNot available; see processing log.\n")
	}

	return b.String()
}

// RenderHTML converts the markdown summary to HTML for the web API.
func RenderHTML(sess *models.Session) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(BuildMarkdown(sess)), &buf); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}
