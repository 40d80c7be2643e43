package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasktracker-api/internal/api/middleware"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"github.com/phrazzld/tasktracker-api/internal/service/auth"
)

// RouterDeps are the collaborators the HTTP layer needs.
type RouterDeps struct {
	Tasks      service.TaskService
	Users      service.UserService
	Directory  service.IdentityDirectory
	JWTService auth.JWTService
	Scheduler  OverdueScheduler
	Logger     *slog.Logger
	// RequestLogging enables chi's access log. Tests leave it off.
	RequestLogging bool
}

// NewRouter builds the application router. All API routes live under /api;
// /health is public.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if deps.RequestLogging {
		r.Use(chimiddleware.Logger)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.Users, deps.JWTService, deps.Logger)
	userHandler := NewUserHandler(deps.Users, deps.Logger)
	taskHandler := NewTaskHandler(deps.Tasks, deps.Directory, deps.Logger)
	adminHandler := NewAdminHandler(deps.Scheduler, deps.Logger)
	authMiddleware := middleware.NewAuthMiddleware(deps.JWTService)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/users/me", userHandler.GetCurrentUser)

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", taskHandler.CreateTask)
				r.Get("/", taskHandler.ListTasks)
				r.Get("/my", taskHandler.ListMyTasks)
				r.Get("/{id}", taskHandler.GetTask)
				r.Put("/{id}", taskHandler.UpdateTask)
				r.Delete("/{id}", taskHandler.DeleteTask)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/users", userHandler.ListUsers)
				r.Post("/admin/tasks/check-overdue", adminHandler.CheckOverdue)
				r.Get("/admin/scheduler/status", adminHandler.SchedulerStatus)
				r.Put("/admin/scheduler/enabled", adminHandler.SetSchedulerEnabled)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			deps.Logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
