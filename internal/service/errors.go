package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/tasktracker-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers use errors.Is to check for them and the API layer maps them to
// HTTP status codes.
var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrTaskNotFound indicates that the task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken indicates a registration with an existing username.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrEmailTaken indicates a registration with an existing email.
	ErrEmailTaken = errors.New("email is already registered")
)

// FieldError is a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in one request.
type ValidationError struct {
	Problems []FieldError
}

// NewValidationError builds a ValidationError with a single problem.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Problems: []FieldError{{Field: field, Message: message}}}
}

// Add records another violation.
func (e *ValidationError) Add(field, message string) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no violation was recorded. The explicit nil keeps
// callers from returning a typed nil inside an error interface.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task", "update_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// Known sentinels and validation errors are returned directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}

	if errors.Is(err, ErrTaskNotFound) || errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// UserServiceError wraps errors from the user service with context.
type UserServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for UserServiceError.
func (e *UserServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("user service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("user service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *UserServiceError) Unwrap() error {
	return e.Err
}

// NewUserServiceError creates a new UserServiceError, mapping store
// sentinels onto service ones.
func NewUserServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return validationErr
	case errors.Is(err, store.ErrUserNotFound), errors.Is(err, ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrUsernameExists):
		return ErrUsernameTaken
	case errors.Is(err, store.ErrEmailExists):
		return ErrEmailTaken
	}

	return &UserServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
