package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/redact"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// TaskHandler handles task CRUD requests.
type TaskHandler struct {
	tasks     service.TaskService
	directory service.IdentityDirectory
	logger    *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	tasks service.TaskService,
	directory service.IdentityDirectory,
	logger *slog.Logger,
) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:     tasks,
		directory: directory,
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        req.DueDate,
		AssignedUserID: req.AssignedUserID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, h.toResponse(r.Context(), task, nil))
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.toResponse(r.Context(), task, nil))
}

// ListTasks handles GET /tasks. See ParseTaskFilter for the query rules.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseTaskFilter(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.list(w, r, filter)
}

// ListMyTasks handles GET /tasks/my, listing the caller's assigned tasks.
func (h *TaskHandler) ListMyTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}
	h.list(w, r, store.TasksByAssignee(userID))
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, filter store.TaskFilter) {
	tasks, err := h.tasks.ListTasks(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	names := make(map[uuid.UUID]*string)
	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, h.toResponse(r.Context(), task, names))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// UpdateTask handles PUT /tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	patch := service.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		DueDate:        req.DueDate,
		AssignedUserID: req.AssignedUserID,
	}
	if patch.IsEmpty() {
		HandleAPIError(w, r, service.NewValidationError("body", "must change at least one field"), "")
		return
	}

	task, err := h.tasks.UpdateTask(r.Context(), taskID, patch)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.toResponse(r.Context(), task, nil))
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), taskID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toResponse converts a task, resolving the assignee's display name. names
// caches lookups across a list and may be nil.
func (h *TaskHandler) toResponse(ctx context.Context, task *domain.Task, names map[uuid.UUID]*string) TaskResponse {
	resp := TaskResponse{
		ID:             task.ID,
		Title:          task.Title,
		Description:    task.Description,
		Status:         task.Status,
		DueDate:        task.DueDate,
		CreatedDate:    task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
		AssignedUserID: task.AssignedUserID,
	}
	if task.AssignedUserID == nil {
		return resp
	}

	userID := *task.AssignedUserID
	if name, cached := names[userID]; cached {
		resp.AssignedUserName = name
		return resp
	}

	name, ok, err := h.directory.DisplayName(ctx, userID)
	if err != nil {
		// A failed lookup leaves the name null rather than failing the request.
		logger.FromContextOrDefault(ctx, h.logger).Warn("failed to resolve assignee name",
			slog.String("user_id", userID.String()),
			slog.String("error", redact.Error(err)))
	} else if ok {
		resp.AssignedUserName = &name
	}
	if names != nil {
		names[userID] = resp.AssignedUserName
	}
	return resp
}
