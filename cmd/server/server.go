package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/tasktracker-api/internal/api"
)

func (app *application) setupRouter() http.Handler {
	return api.NewRouter(api.RouterDeps{
		Tasks:          app.taskService,
		Users:          app.userService,
		Directory:      app.directory,
		JWTService:     app.jwtService,
		Scheduler:      app.scheduler,
		Logger:         app.logger,
		RequestLogging: true,
	})
}

// serve starts the scheduler and the HTTP server and blocks until ctx is
// cancelled or the server fails. Shutdown drains HTTP requests first, then
// waits for a running sweep, then closes the database.
func (app *application) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	app.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-serverErr:
		if err != nil {
			app.logger.Error("server failed", "error", err)
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	return errors.Join(runErr, app.shutdown(server))
}

func (app *application) shutdown(server *http.Server) error {
	timeout := time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	if err := app.scheduler.Stop(shutdownCtx); err != nil {
		app.logger.Error("overdue scheduler stop failed", "error", err)
		errs = append(errs, err)
	}

	app.cleanup()
	return errors.Join(errs...)
}
