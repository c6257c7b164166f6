package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rowanhealth/clinsight/internal/webserver"
)

var (
	serveDB   string
	servePort int
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session status API server",
		Long: `Start the HTTP server exposing the session status API.

Endpoints:
  GET /api/health                     Health check
  GET /api/sessions                   All sessions with per-stage status
  GET /api/sessions/{id}/status       One session's pipeline status
  GET /api/sessions/{id}/log          Append-only processing log
  GET /api/sessions/{id}/report       Rendered HTML report`,
		RunE: serveCommandE,
	}

	cmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")

	return cmd
}

func serveCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(serveDB, "", false)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	srv, err := webserver.New(webserver.Config{
		Port:  cfg.Server.Port,
		Store: st,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}
