package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rowanhealth/clinsight/internal/pipeline"
)

// progressReporter prints progress events to the terminal. Events arrive from
// multiple worker goroutines, so writes are serialized.
type progressReporter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func newProgressReporter(w io.Writer, verbose bool) *progressReporter {
	return &progressReporter{w: w, verbose: verbose}
}

func (p *progressReporter) report(event pipeline.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Type {
	case pipeline.EventRunStart:
		fmt.Fprintf(p.w, "→ %s analyzing\n", event.SessionID)
	case pipeline.EventStageStart:
		if p.verbose {
			fmt.Fprintf(p.w, "  %s %s started\n", event.SessionID, event.Stage)
		}
	case pipeline.EventStageComplete:
		if p.verbose {
			fmt.Fprintf(p.w, "  %s %s done (%s)\n", event.SessionID, event.Stage, formatDuration(event.DurationMs))
		}
	case pipeline.EventStageSkipped:
		if p.verbose {
			fmt.Fprintf(p.w, "  %s %s skipped (existing output)\n", event.SessionID, event.Stage)
		}
	case pipeline.EventStageFailed:
		fmt.Fprintf(p.w, "  %s %s failed: %s\n", event.SessionID, event.Stage, event.Err)
	case pipeline.EventBarrierRelease:
		if p.verbose {
			fmt.Fprintf(p.w, "  %s all stages complete, synthesizing\n", event.SessionID)
		}
	case pipeline.EventRunComplete:
		fmt.Fprintf(p.w, "✓ %s complete (%s)\n", event.SessionID, formatDuration(event.DurationMs))
	case pipeline.EventRunFailed:
		fmt.Fprintf(p.w, "✗ %s failed at %s\n", event.SessionID, event.Stage)
	case pipeline.EventRunCancelled:
		fmt.Fprintf(p.w, "⊘ %s cancelled, reverted to pending\n", event.SessionID)
	}
}

// formatDuration formats a millisecond duration in a consistent,
// human-readable way.
func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	return d.Round(100 * time.Millisecond).String()
}
