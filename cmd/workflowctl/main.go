// Command workflowctl validates, draws and plays YAML workflow definitions.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amp-labs/amp-workflow/cli"
	"github.com/amp-labs/amp-workflow/logger"
	"github.com/amp-labs/amp-workflow/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.ConfigureLoggingWithOptions(logger.Options{
		Subsystem:   "workflowctl",
		MinLevel:    slog.LevelWarn,
		LegacyLevel: slog.LevelWarn,
		Output:      os.Stderr,
	})

	app := &cli.App{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Prompter: cli.Terminal{Stdin: os.Stdin, Stdout: os.Stdout},
		Logger:   log,
	}

	cfg, err := telemetry.LoadConfig()
	if err != nil {
		log.Error("failed to load telemetry config", "error", err)

		return cli.ExitUsage
	}

	provider, err := telemetry.Initialize(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "error", err)
	} else {
		app.TracerProvider = provider
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down telemetry", "error", err)
		}
	}()

	return app.Run(ctx, os.Args[1:])
}
