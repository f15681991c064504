package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workers and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdownTracing, err := setupTracing(cfg.TracingExporter, cfg.TracingSampleRatio, os.Stdout)
	if err != nil {
		return err
	}

	app, cleanup, err := initializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := app.Logger
	logger.WithField("version", version).Info("Starting trackarr")

	if err := app.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
		err = <-serverErr
	case err = <-serverErr:
		logger.WithError(err).Error("HTTP server stopped")
	}

	app.Scheduler.Stop()

	tracingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if terr := shutdownTracing(tracingCtx); terr != nil {
		logger.WithError(terr).Warn("Failed to flush traces")
	}

	logger.Info("Shutdown complete")
	return err
}
