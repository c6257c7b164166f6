package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowanhealth/clinsight/internal/models"
)

var (
	retryDB       string
	retryEndpoint string
	retryLocal    bool
	retryVerbose  bool
	retryForce    bool
)

func newRetryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <session-id>",
		Short: "Re-run the pipeline for a failed or stranded session",
		Long: `Re-run the pipeline for a session in the failed status.

Stages that already have durable output are skipped; processing resumes at
the stage that failed. A session left in analyzing or synthesizing by a
crashed process can be reset and re-run with --force, provided its status
has not changed within the configured run budget.`,
		Args: cobra.ExactArgs(1),
		RunE: retryCommandE,
	}

	cmd.Flags().StringVar(&retryDB, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&retryEndpoint, "endpoint", "", "Reasoning service URL (overrides config)")
	cmd.Flags().BoolVar(&retryLocal, "local", false, "Use the local deterministic analyzer instead of the reasoning service")
	cmd.Flags().BoolVarP(&retryVerbose, "verbose", "v", false, "Print per-stage progress events")
	cmd.Flags().BoolVar(&retryForce, "force", false, "Reset a session stranded in a running status by a crashed process")

	return cmd
}

func retryCommandE(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	cfg, err := loadConfig(retryDB, retryEndpoint, retryLocal)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	runner := buildRunner(cfg, st, buildClient(cfg))
	runner.OnProgress(newProgressReporter(cmd.OutOrStdout(), retryVerbose).report)

	switch sess.State.Status {
	case models.StatusFailed:
		// reset and re-run below
	case models.StatusAnalyzed:
		// stranded at the barrier; Trigger resumes synthesis directly
	case models.StatusAnalyzing, models.StatusSynthesizing:
		if !retryForce {
			return fmt.Errorf("session %s is %s; a run may be in flight (use --force to reset a stale run)",
				sessionID, sess.State.Status)
		}
		staleAfter := time.Duration(cfg.Pipeline.RunBudget) * time.Second
		if _, err := runner.ResetStale(ctx, sessionID, staleAfter); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s: stale %s run reset\n", sessionID, sess.State.Status)
	default:
		return fmt.Errorf("session %s is %s, not failed; nothing to retry", sessionID, sess.State.Status)
	}

	if err := runner.Trigger(ctx, sessionID); err != nil {
		return fmt.Errorf("retrying session %s: %w", sessionID, err)
	}

	sess, err = st.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State.Status == models.StatusFailed {
		return &SessionFailureError{
			Message: fmt.Sprintf("session %s failed again at stage %s", sessionID, sess.State.FailedStage),
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s (confidence %.2f)\n",
		sessionID, sess.State.Status, sess.OverallConfidence)
	return nil
}
