package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/ecogrid/internal/ecology"
)

func main() {
	cfg, err := loadServerConfig(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger := NewLogger(cfg.LogLevel)
	logger.Info("ecogrid-server starting",
		"addr", cfg.Addr,
		"log_level", logger.Level(),
		"snapshot_dir", cfg.SnapshotDir,
		"snapshot_every_steps", cfg.SnapshotEverySteps)

	srv := NewServer(logger)
	srv.SetSnapshotDir(cfg.SnapshotDir)
	srv.SetSnapshotEverySteps(cfg.SnapshotEverySteps)
	srv.SetAllowedOrigins(cfg.AllowedOrigins)

	if cfg.ConfigFile != "" {
		if err := srv.applyInitialConfig(cfg.ConfigFile, ecology.SimulationID(cfg.DefaultSimID)); err != nil {
			logger.Fatalf("Failed to load simulation config: path=%s error=%v", cfg.ConfigFile, err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("ecogrid-server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown failed: %v", err)
	}
	if err := srv.Close(); err != nil {
		logger.Errorf("Closing notifiers failed: %v", err)
	}
}
