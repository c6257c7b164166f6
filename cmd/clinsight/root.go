package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinsight",
		Short: "ClinSight - session analysis pipeline for therapy transcripts",
		Long: `ClinSight analyzes speaker-tagged therapy-session transcripts.

It runs three independent inference stages (mood, themes, breakthrough
detection) concurrently, then synthesizes them with the patient's history
into session-level clinical insights.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newProcessCommand())
	cmd.AddCommand(newRetryCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
