// Package main implements the entry point for the task tracker API server,
// which manages tasks and marks expired ones as overdue on a schedule.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("tasktracker-api: %v", err)
	}
}

// run loads configuration, builds the application and serves until SIGINT
// or SIGTERM.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"storage_driver", cfg.Storage.Driver)
	if cfg.Auth.JWTSecret != "" {
		slog.Debug("auth configuration", "jwt_secret_present", true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return err
	}

	return app.serve(ctx)
}
