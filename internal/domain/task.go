package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus represents where a task sits in its lifecycle
type TaskStatus string

// Possible task status values
const (
	TaskStatusNew        TaskStatus = "NEW"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusDelayed    TaskStatus = "DELAYED"
	TaskStatusOverdue    TaskStatus = "OVERDUE"
)

// Field limits for Task
const (
	MaxTaskTitleLength       = 255
	MaxTaskDescriptionLength = 1000
)

// Task-specific validation errors
var (
	ErrTaskIDEmpty            = errors.New("task ID cannot be empty")
	ErrTaskTitleEmpty         = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong       = errors.New("task title must be at most 255 characters")
	ErrTaskDescriptionTooLong = errors.New("task description must be at most 1000 characters")
	ErrTaskStatusInvalid      = errors.New("invalid task status")
	ErrTaskDueDateNotFuture   = errors.New("task due date must be in the future")
	ErrTaskCreatedAtEmpty     = errors.New("task created date cannot be empty")
)

// Task is a unit of trackable work with a status, an optional due date and
// an optional assignee.
//
// AssignedUserID is a weak reference: the user must exist when it is assigned,
// but the task does not own the user and is not touched if the user goes away.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	CreatedAt      time.Time  `json:"created_date"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewTask builds a task in the NEW state with CreatedAt set to now.
// Field-shape violations are joined together so that callers can report all
// of them at once. Time-relative rules (a due date in the future) are the
// caller's concern because they depend on the caller's clock.
func NewTask(
	title, description string,
	dueDate *time.Time,
	assignedUserID *uuid.UUID,
	now time.Time,
) (*Task, error) {
	now = now.UTC()
	task := &Task{
		ID:             uuid.New(),
		Title:          title,
		Description:    description,
		Status:         TaskStatusNew,
		DueDate:        utcPtr(dueDate),
		AssignedUserID: copyUUID(assignedUserID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks every field of the task and returns all violations joined
// with errors.Join, or nil when the task is valid.
func (t *Task) Validate() error {
	var errs []error

	if t.ID == uuid.Nil {
		errs = append(errs, ErrTaskIDEmpty)
	}

	if err := ValidateTaskTitle(t.Title); err != nil {
		errs = append(errs, err)
	}

	if err := ValidateTaskDescription(t.Description); err != nil {
		errs = append(errs, err)
	}

	if !t.Status.IsValid() {
		errs = append(errs, ErrTaskStatusInvalid)
	}

	if t.CreatedAt.IsZero() {
		errs = append(errs, ErrTaskCreatedAtEmpty)
	}

	return errors.Join(errs...)
}

// ValidateTaskTitle checks that a title is non-blank and within the length limit.
func ValidateTaskTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTaskTitleEmpty
	}
	if utf8.RuneCountInString(title) > MaxTaskTitleLength {
		return ErrTaskTitleTooLong
	}
	return nil
}

// ValidateTaskDescription checks the description length limit.
// An empty description is valid.
func ValidateTaskDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxTaskDescriptionLength {
		return ErrTaskDescriptionTooLong
	}
	return nil
}

// ValidateDueDate reports whether dueDate lies strictly after now.
func ValidateDueDate(dueDate, now time.Time) error {
	if !dueDate.After(now) {
		return ErrTaskDueDateNotFuture
	}
	return nil
}

// IsOverdueAt reports whether the task would be picked up by an overdue
// sweep with the given cutoff: it has a due date strictly before the cutoff
// and is neither COMPLETED nor already OVERDUE.
func (t *Task) IsOverdueAt(cutoff time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	if t.Status == TaskStatusCompleted || t.Status == TaskStatusOverdue {
		return false
	}
	return t.DueDate.Before(cutoff)
}

// MarkOverdue moves the task into OVERDUE. It is the only way the OVERDUE
// status is written and is used by the overdue sweep alone. UpdatedAt is set
// to the sweep cutoff, not the wall-clock write time, so every task marked in
// one pass carries the same timestamp.
func (t *Task) MarkOverdue(cutoff time.Time) {
	t.Status = TaskStatusOverdue
	t.UpdatedAt = cutoff.UTC()
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.DueDate = utcPtr(t.DueDate)
	c.AssignedUserID = copyUUID(t.AssignedUserID)
	return &c
}

// IsValid reports whether s is one of the known task statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusDelayed, TaskStatusOverdue:
		return true
	default:
		return false
	}
}

// IsSettable reports whether s may be written by an explicit update.
// OVERDUE is reserved for the overdue sweep.
func (s TaskStatus) IsSettable() bool {
	return s.IsValid() && s != TaskStatusOverdue
}

// ParseTaskStatus converts a string into a TaskStatus, accepting any case.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", ErrTaskStatusInvalid
	}
	return status, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
