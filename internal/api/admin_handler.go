package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/overdue"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
)

// OverdueScheduler is the part of *overdue.Scheduler the admin endpoints use.
type OverdueScheduler interface {
	TriggerNow(ctx context.Context) (overdue.Report, error)
	Status() overdue.Status
	SetEnabled(enabled bool)
}

// AdminHandler serves the overdue check controls.
type AdminHandler struct {
	scheduler OverdueScheduler
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(scheduler OverdueScheduler, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AdminHandler")
	}
	return &AdminHandler{
		scheduler: scheduler,
		logger:    logger.With(slog.String("component", "admin_handler")),
	}
}

// CheckOverdue handles POST /admin/tasks/check-overdue. It runs a sweep
// synchronously whether or not the schedule is enabled. A sweep already in
// flight yields 409.
func (h *AdminHandler) CheckOverdue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	report, err := h.scheduler.TriggerNow(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to run overdue check")
		return
	}

	resp := CheckOverdueResponse{
		Success:      report.Error == "" && len(report.Failed) == 0 && !report.Interrupted,
		TasksUpdated: report.Updated(),
		Report:       report,
	}
	switch {
	case report.Error != "":
		resp.Message = "Overdue check could not query tasks"
	case report.Interrupted:
		resp.Message = fmt.Sprintf("Overdue check interrupted after marking %d tasks", report.Updated())
	case len(report.Failed) > 0:
		resp.Message = fmt.Sprintf("Marked %d tasks as overdue, %d failed", report.Updated(), len(report.Failed))
	default:
		resp.Message = fmt.Sprintf("Marked %d tasks as overdue", report.Updated())
	}

	log.Info("manual overdue check finished",
		slog.Int("tasks_updated", resp.TasksUpdated),
		slog.Bool("success", resp.Success))
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// SchedulerStatus handles GET /admin/scheduler/status.
func (h *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.scheduler.Status())
}

// SetSchedulerEnabled handles PUT /admin/scheduler/enabled and returns the
// resulting status.
func (h *AdminHandler) SetSchedulerEnabled(w http.ResponseWriter, r *http.Request) {
	var req SetSchedulerEnabledRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, SanitizeValidationError(err), "")
		return
	}

	h.scheduler.SetEnabled(*req.Enabled)
	logger.FromContextOrDefault(r.Context(), h.logger).Info("overdue schedule toggled",
		slog.Bool("enabled", *req.Enabled))

	shared.RespondWithJSON(w, r, http.StatusOK, h.scheduler.Status())
}
