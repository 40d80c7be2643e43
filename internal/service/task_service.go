package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/redact"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// IdentityDirectory answers questions about users that tasks reference.
type IdentityDirectory interface {
	// Exists reports whether the user is known.
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)

	// DisplayName returns the user's display name. ok is false when the
	// user does not exist (anymore).
	DisplayName(ctx context.Context, userID uuid.UUID) (name string, ok bool, err error)
}

// CreateTaskInput holds the caller-supplied fields of a new task.
type CreateTaskInput struct {
	Title          string
	Description    string
	DueDate        *time.Time
	AssignedUserID *uuid.UUID
}

// TaskPatch is a partial update. A nil field is left unchanged; a non-nil
// field overwrites, so a pointer to "" clears the description.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *string
	DueDate        *time.Time
	AssignedUserID *uuid.UUID
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.DueDate == nil && p.AssignedUserID == nil
}

// TaskService manages the task lifecycle.
type TaskService interface {
	// CreateTask validates input and persists a new task in the NEW status.
	CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error)

	// GetTask returns the task or ErrTaskNotFound.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListTasks returns the tasks matching filter.
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error)

	// UpdateTask applies patch atomically. Nothing is written if any field
	// is invalid.
	UpdateTask(ctx context.Context, id uuid.UUID, patch TaskPatch) (*domain.Task, error)

	// DeleteTask permanently removes the task.
	DeleteTask(ctx context.Context, id uuid.UUID) error
}

// TaskServiceOption customizes a task service.
type TaskServiceOption func(*taskServiceImpl)

// WithClock replaces time.Now as the source of "now".
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *taskServiceImpl) {
		s.now = now
	}
}

type taskServiceImpl struct {
	tasks  store.TaskStore
	users  IdentityDirectory
	now    func() time.Time
	logger *slog.Logger
}

// NewTaskService creates a TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	users IdentityDirectory,
	log *slog.Logger,
	opts ...TaskServiceOption,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "task store cannot be nil"}
	}
	if users == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "identity directory cannot be nil"}
	}
	if log == nil {
		log = slog.Default()
	}

	s := &taskServiceImpl{
		tasks:  tasks,
		users:  users,
		now:    time.Now,
		logger: log.With("component", "task_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateTask implements TaskService.
func (s *taskServiceImpl) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now().UTC()

	problems := &ValidationError{}
	checkTitle(problems, input.Title)
	checkDescription(problems, input.Description)
	if input.DueDate != nil {
		checkDueDate(problems, *input.DueDate, now)
	}
	if input.AssignedUserID != nil {
		s.checkAssignee(ctx, problems, *input.AssignedUserID)
	}
	if err := problems.OrNil(); err != nil {
		log.Debug("rejected task creation", "problems", len(problems.Problems))
		return nil, err
	}

	task, err := domain.NewTask(input.Title, input.Description, input.DueDate, input.AssignedUserID, now)
	if err != nil {
		return nil, NewTaskServiceError("create_task", "failed to build task", err)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		log.Error("failed to save task", "error", err, "task_id", task.ID)
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created", "task_id", task.ID)
	return task, nil
}

// GetTask implements TaskService.
func (s *taskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("get_task", "failed to load task", err)
	}
	return task, nil
}

// ListTasks implements TaskService.
func (s *taskServiceImpl) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	switch filter.Kind {
	case store.TaskFilterByDueDateRange:
		if filter.DueFrom.After(filter.DueTo) {
			return nil, NewValidationError("due_date_start", "must not be after due_date_end")
		}
	case store.TaskFilterByStatus:
		if !filter.Status.IsValid() {
			return nil, NewValidationError("status", domain.ErrTaskStatusInvalid.Error())
		}
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			"error", err, "filter", filter.Kind.String())
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// UpdateTask implements TaskService. The patch is validated in full before
// the store is touched, then applied inside TaskStore.Modify.
func (s *taskServiceImpl) UpdateTask(ctx context.Context, id uuid.UUID, patch TaskPatch) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now().UTC()

	problems := &ValidationError{}
	if patch.Title != nil {
		checkTitle(problems, *patch.Title)
	}
	if patch.Description != nil {
		checkDescription(problems, *patch.Description)
	}

	var status domain.TaskStatus
	if patch.Status != nil {
		parsed, err := domain.ParseTaskStatus(*patch.Status)
		switch {
		case err != nil:
			problems.Add("status", domain.ErrTaskStatusInvalid.Error())
		case !parsed.IsSettable():
			problems.Add("status", "OVERDUE is set by the overdue check only")
		default:
			status = parsed
		}
	}
	if patch.DueDate != nil {
		checkDueDate(problems, *patch.DueDate, now)
	}
	if patch.AssignedUserID != nil {
		s.checkAssignee(ctx, problems, *patch.AssignedUserID)
	}
	if err := problems.OrNil(); err != nil {
		return nil, err
	}

	updated, err := s.tasks.Modify(ctx, id, func(task *domain.Task) error {
		if patch.Title != nil {
			task.Title = *patch.Title
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.Status != nil {
			task.Status = status
		}
		if patch.DueDate != nil {
			due := patch.DueDate.UTC()
			task.DueDate = &due
		}
		if patch.AssignedUserID != nil {
			assignee := *patch.AssignedUserID
			task.AssignedUserID = &assignee
		}
		task.UpdatedAt = now
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			log.Error("failed to update task", "error", err, "task_id", id)
		}
		return nil, NewTaskServiceError("update_task", "failed to update task", err)
	}

	log.Info("task updated", "task_id", id, "status", updated.Status)
	return updated, nil
}

// DeleteTask implements TaskService.
func (s *taskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted", "task_id", id)
	return nil
}

// checkAssignee records a problem when the assignee is unknown or cannot be
// confirmed. A failed lookup is reported as a validation problem too.
func (s *taskServiceImpl) checkAssignee(ctx context.Context, problems *ValidationError, userID uuid.UUID) {
	ok, err := s.users.Exists(ctx, userID)
	switch {
	case err != nil:
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to look up assignee",
			"user_id", userID, "error", redact.Error(err))
		problems.Add("assigned_user_id", "could not verify user")
	case !ok:
		problems.Add("assigned_user_id", "user does not exist")
	}
}

func checkTitle(problems *ValidationError, title string) {
	if err := domain.ValidateTaskTitle(title); err != nil {
		problems.Add("title", err.Error())
	}
}

func checkDescription(problems *ValidationError, description string) {
	if err := domain.ValidateTaskDescription(description); err != nil {
		problems.Add("description", err.Error())
	}
}

func checkDueDate(problems *ValidationError, due, now time.Time) {
	if err := domain.ValidateDueDate(due, now); err != nil {
		problems.Add("due_date", err.Error())
	}
}
