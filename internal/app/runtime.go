package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/health"
	"github.com/kapu/bandhub-sync-go/internal/server"
	"github.com/kapu/bandhub-sync-go/internal/service/sync"
)

// Runtime: the assembled daemon, ready to run.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger

	Scheduler *sync.Scheduler
	Stream    *server.QuotaStream
	Server    *http.Server

	cleanup func()
}

// BuildRuntime: constructs the full service graph and HTTP server via the
// Wire injector and keeps its cleanup for shutdown.
func BuildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	runtime, cleanup, err := InitializeRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	runtime.cleanup = cleanup

	return runtime, nil
}

// Close: releases external connections. Safe to call more than once.
func (r *Runtime) Close() {
	if r != nil && r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
}

// Run: starts everything and blocks until a shutdown signal or a fatal
// server error, then tears down in order.
func (r *Runtime) Run(ctx context.Context) error {
	health.Init(r.Config.Version)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.Scheduler.Start(runCtx)
	go r.Stream.Run(runCtx)

	errCh := make(chan error, 1)
	go func() {
		r.Logger.Info("HTTP server listening", slog.String("addr", r.Server.Addr))
		if err := r.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		r.Logger.Info("Shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		r.Logger.Error("Fatal server error", slog.Any("error", err))
		r.shutdown()
		return err
	case <-ctx.Done():
	}

	r.shutdown()
	return nil
}

func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerConfig.ShutdownTimeout)
	defer cancel()

	if err := r.Server.Shutdown(shutdownCtx); err != nil {
		r.Logger.Error("HTTP server shutdown failed", slog.Any("error", err))
	}

	r.Scheduler.Stop()
	r.Close() // drains pending audit writes, then drops connections

	r.Logger.Info("Shutdown complete")
}
