package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// TaskFilterKind selects which single dimension a TaskFilter applies.
type TaskFilterKind int

// Supported filter dimensions
const (
	TaskFilterNone TaskFilterKind = iota
	TaskFilterByAssignee
	TaskFilterByStatus
	TaskFilterByDueDateRange
)

// String implements fmt.Stringer
func (k TaskFilterKind) String() string {
	switch k {
	case TaskFilterNone:
		return "none"
	case TaskFilterByAssignee:
		return "by_assignee"
	case TaskFilterByStatus:
		return "by_status"
	case TaskFilterByDueDateRange:
		return "by_due_date_range"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// TaskFilter is a single structured listing filter. Only the fields that
// belong to Kind are consulted; use the constructors below to build one.
type TaskFilter struct {
	Kind       TaskFilterKind
	AssigneeID uuid.UUID
	Status     domain.TaskStatus
	DueFrom    time.Time
	DueTo      time.Time
}

// AllTasks returns a filter that matches every task.
func AllTasks() TaskFilter {
	return TaskFilter{Kind: TaskFilterNone}
}

// TasksByAssignee returns a filter matching tasks assigned to userID.
func TasksByAssignee(userID uuid.UUID) TaskFilter {
	return TaskFilter{Kind: TaskFilterByAssignee, AssigneeID: userID}
}

// TasksByStatus returns a filter matching tasks in the given status.
func TasksByStatus(status domain.TaskStatus) TaskFilter {
	return TaskFilter{Kind: TaskFilterByStatus, Status: status}
}

// TasksDueBetween returns a filter matching tasks whose due date lies in
// [from, to], both ends inclusive. Tasks without a due date never match.
func TasksDueBetween(from, to time.Time) TaskFilter {
	return TaskFilter{Kind: TaskFilterByDueDateRange, DueFrom: from.UTC(), DueTo: to.UTC()}
}

// Matches reports whether task satisfies the filter. Store implementations
// that filter in memory use it; SQL stores translate the filter instead.
func (f TaskFilter) Matches(task *domain.Task) bool {
	switch f.Kind {
	case TaskFilterByAssignee:
		return task.AssignedUserID != nil && *task.AssignedUserID == f.AssigneeID
	case TaskFilterByStatus:
		return task.Status == f.Status
	case TaskFilterByDueDateRange:
		if task.DueDate == nil {
			return false
		}
		return !task.DueDate.Before(f.DueFrom) && !task.DueDate.After(f.DueTo)
	default:
		return true
	}
}

// TaskMutator changes a task in place during TaskStore.Modify. Returning an
// error aborts the modification and nothing is written.
type TaskMutator func(task *domain.Task) error

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns the tasks matching filter, newest first.
	// Returns an empty slice if nothing matches.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// FindOverdueCandidates returns tasks whose due date is strictly before
	// now and whose status is neither COMPLETED nor OVERDUE, oldest due first.
	FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error)

	// Update overwrites an existing task with the given values.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Modify atomically loads the task, applies fn and writes the result.
	// No other write to the same task can interleave with it.
	// Returns ErrTaskNotFound if the task does not exist, or fn's error.
	Modify(ctx context.Context, id uuid.UUID, fn TaskMutator) (*domain.Task, error)

	// MarkOverdue sets the task status to OVERDUE only if it is still
	// eligible at cutoff (due before cutoff, not COMPLETED or OVERDUE).
	// Returns ErrTaskNotFound if the task is gone and ErrNotEligible if it
	// exists but no longer qualifies.
	MarkOverdue(ctx context.Context, id uuid.UUID, cutoff time.Time) error

	// Delete permanently removes a task.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// Exists reports whether a task with the given ID is stored.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
