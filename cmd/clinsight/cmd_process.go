package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/pipeline"
	"github.com/rowanhealth/clinsight/internal/store"
	"github.com/rowanhealth/clinsight/internal/transcript"
)

var (
	processDB       string
	processEndpoint string
	processLocal    bool
	processWorkers  int
	processVerbose  bool
)

func newProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <transcript.yaml> [transcript.yaml...]",
		Short: "Ingest transcripts and run the analysis pipeline",
		Long: `Ingest one or more transcript files and run the full analysis pipeline.

Each file becomes a new session. The three independent stages run
concurrently per session; synthesis runs once all three have completed.
Multiple files are processed concurrently up to --workers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: processCommandE,
	}

	cmd.Flags().StringVar(&processDB, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&processEndpoint, "endpoint", "", "Reasoning service URL (overrides config)")
	cmd.Flags().BoolVar(&processLocal, "local", false, "Use the local deterministic analyzer instead of the reasoning service")
	cmd.Flags().IntVar(&processWorkers, "workers", 2, "Number of transcripts to process concurrently")
	cmd.Flags().BoolVarP(&processVerbose, "verbose", "v", false, "Print per-stage progress events")

	return cmd
}

func processCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(processDB, processEndpoint, processLocal)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	runner := buildRunner(cfg, st, buildClient(cfg))
	runner.OnProgress(newProgressReporter(cmd.OutOrStdout(), processVerbose).report)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(processWorkers)
	for _, path := range args {
		g.Go(func() error {
			id, err := processOne(gctx, st, runner, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			sess, err := st.GetSession(gctx, id)
			if err != nil {
				return err
			}
			if sess.State.Status == models.StatusFailed {
				mu.Lock()
				failed = append(failed, fmt.Sprintf("%s (stage %s)", id, sess.State.FailedStage))
				mu.Unlock()
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s (confidence %.2f)\n",
					id, sess.State.Status, sess.OverallConfidence)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failed) > 0 {
		return &SessionFailureError{
			Message: fmt.Sprintf("%d session(s) failed: %v", len(failed), failed),
		}
	}
	return nil
}

// processOne ingests a single transcript file and runs the pipeline for it.
func processOne(ctx context.Context, st store.Store, runner *pipeline.Runner, path string) (string, error) {
	doc, err := transcript.Load(path)
	if err != nil {
		return "", err
	}

	sess := &models.Session{
		ID:         uuid.NewString(),
		PatientID:  doc.PatientID,
		OccurredAt: doc.OccurredAt,
		Transcript: doc.Utterances,
	}
	if err := st.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	if err := runner.Trigger(ctx, sess.ID); err != nil {
		return sess.ID, fmt.Errorf("processing session %s: %w", sess.ID, err)
	}
	return sess.ID, nil
}
