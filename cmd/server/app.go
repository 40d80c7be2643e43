package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/overdue"
	"github.com/phrazzld/tasktracker-api/internal/platform/memory"
	"github.com/phrazzld/tasktracker-api/internal/platform/postgres"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"github.com/phrazzld/tasktracker-api/internal/service/auth"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// application holds the shared dependencies and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore store.UserStore
	taskStore store.TaskStore

	jwtService  auth.JWTService
	userService service.UserService
	taskService service.TaskService
	directory   service.IdentityDirectory

	scheduler *overdue.Scheduler
}

// newApplication wires stores, services and the overdue scheduler for the
// configured storage driver.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	if err := app.setupStores(ctx); err != nil {
		return nil, err
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.directory = service.NewUserDirectory(app.userStore)
	app.userService = service.NewUserService(
		app.userStore,
		auth.NewBcryptVerifier(cfg.Auth.BCryptCost),
		cfg.Auth.BootstrapAdminUsername,
		logger,
	)
	app.taskService, err = service.NewTaskService(app.taskStore, app.directory, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	sweeper := overdue.NewSweeper(app.taskStore, logger)
	app.scheduler, err = overdue.NewScheduler(sweeper, overdue.Config{
		Cron:    cfg.Scheduler.Overdue.Cron,
		Enabled: cfg.Scheduler.Overdue.Enabled,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create overdue scheduler: %w", err)
	}

	return app, nil
}

func (app *application) setupStores(ctx context.Context) error {
	switch app.config.Storage.Driver {
	case "memory":
		app.logger.Warn("using in-memory storage, data is lost on restart")
		app.userStore = memory.NewUserStore()
		app.taskStore = memory.NewTaskStore()
		return nil
	case "postgres":
		db, err := setupAppDatabase(ctx, app.config.Database, app.logger)
		if err != nil {
			return err
		}
		app.db = db
		app.userStore = postgres.NewPostgresUserStore(db, app.logger)
		app.taskStore = postgres.NewPostgresTaskStore(db, app.logger)
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q", app.config.Storage.Driver)
	}
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
