package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kapu/bandhub-sync-go/internal/app"
	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/platform/bootstrap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Band video sync daemon starting",
		slog.String("version", cfg.Version),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx := context.Background()
	runtime, err := app.BuildRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to assemble application services", slog.Any("error", err))
		os.Exit(1)
	}

	if err := runtime.Run(ctx); err != nil {
		os.Exit(1)
	}
}
