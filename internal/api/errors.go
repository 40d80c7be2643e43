package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/overdue"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"github.com/phrazzld/tasktracker-api/internal/service/auth"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so that
// handlers never inspect error types themselves.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, overdue.ErrSchedulerBusy):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Validation failed"

	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, auth.ErrForbidden):
		return "Admin role required"

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, service.ErrUsernameTaken):
		return "Username already taken"
	case errors.Is(err, service.ErrEmailTaken):
		return "Email already registered"

	case errors.Is(err, overdue.ErrSchedulerBusy):
		return "An overdue check is already running, retry later"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted details. A non-empty fallback replaces the generic message
// for 500 responses. Validation errors carry their field problems.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		opts = append(opts, shared.WithDetails(validationErr.Problems))
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError turns struct-tag validation failures into field
// problems without leaking Go type names.
func SanitizeValidationError(err error) *service.ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return service.NewValidationError("body", "is invalid")
	}

	problems := &service.ValidationError{}
	for _, fe := range fieldErrs {
		problems.Add(fe.Field(), validationTagMessage(fe.Tag(), fe.Param()))
	}
	return problems
}

func validationTagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "oneof":
		return "must be one of: " + param
	default:
		return "is invalid"
	}
}
