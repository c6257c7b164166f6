package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/report"
	"github.com/rowanhealth/clinsight/internal/webapi"
)

var (
	statusDB         string
	statusShowLog    bool
	statusShowReport bool
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [session-id]",
		Short: "Show session pipeline status",
		Long: `Show the pipeline status of a session, including per-stage completion.

With no arguments, lists all sessions. With --log, prints the append-only
processing log. With --report, prints the rendered markdown report.`,
		Args: cobra.MaximumNArgs(1),
		RunE: statusCommandE,
	}

	cmd.Flags().StringVar(&statusDB, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().BoolVar(&statusShowLog, "log", false, "Print the processing log")
	cmd.Flags().BoolVar(&statusShowReport, "report", false, "Print the markdown report")

	return cmd
}

func statusCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(statusDB, "", false)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		ids, err := st.ListSessions(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions.")
			return nil
		}
		for _, id := range ids {
			sess, err := st.GetSession(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s  patient=%s  %s\n",
				sess.ID, sess.OccurredAt.Format("2006-01-02"), sess.PatientID, sess.State.Status)
		}
		return nil
	}

	sessionID := args[0]
	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if statusShowReport {
		fmt.Fprint(out, report.BuildMarkdown(sess))
		return nil
	}

	printSessionStatus(out, sess)

	if statusShowLog {
		entries, err := st.ListLog(ctx, sessionID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nProcessing log:")
		for _, e := range entries {
			line := fmt.Sprintf("  %s  %-13s %-9s attempt %d",
				e.CreatedAt.Format("15:04:05"), e.Stage, e.Outcome, e.Attempt)
			if e.Error != "" {
				line += "  " + e.Error
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func printSessionStatus(out io.Writer, sess *models.Session) {
	status := webapi.BuildSessionStatus(sess)

	fmt.Fprintf(out, "Session:  %s\n", status.SessionID)
	fmt.Fprintf(out, "Patient:  %s\n", status.PatientID)
	fmt.Fprintf(out, "Date:     %s\n", status.OccurredAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "Status:   %s\n", status.Status)
	if status.FailedStage != "" {
		fmt.Fprintf(out, "Failed:   %s\n", status.FailedStage)
	}
	if status.Status == models.StatusComplete {
		fmt.Fprintf(out, "Confidence: %.2f\n", status.OverallConfidence)
	}

	fmt.Fprintln(out, "\nStages:")
	for _, ss := range status.Stages {
		mark := " "
		detail := ""
		if ss.Completed {
			mark = "✓"
			detail = fmt.Sprintf("  %s  confidence %.2f", ss.CompletedAt.Format("15:04:05"), ss.Confidence)
		}
		fmt.Fprintf(out, "  [%s] %-13s%s\n", mark, ss.Stage, detail)
	}
}
