package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/app"
	"storefront-backend/internal/logging"
	"storefront-backend/internal/supervisor"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	reporter := supervisor.NewLogReporter(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq := app.New(cfg, logger, reporter)
	if err := seq.Start(ctx); err != nil {
		logger.Fatal("startup failed", zap.Stringer("state", seq.State()), zap.Error(err))
	}

	if seq.State() == app.StateExported {
		logger.Info("production mode: handler is exported for an external host, not listening")
		return
	}

	// Block until a signal is received.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := seq.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server gracefully stopped")
}
