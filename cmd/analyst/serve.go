package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"analyst/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP analysis API",
	Long: `Starts the HTTP server. POST a multipart form with question.txt and any
data files to /analyze; the response carries the answer and every file the
analysis produced.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, closeEngine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server, engine, version, logger.Named("http"))
	return srv.Run(ctx)
}
