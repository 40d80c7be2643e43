// Package service contains the application use cases: the task lifecycle
// manager, user registration and login, and the identity directory that
// the task lifecycle uses to validate and display assignees.
//
// Services depend on the store interfaces only, never on a concrete store.
// Expected failures are returned as sentinel errors (ErrTaskNotFound,
// ErrValidation via *ValidationError, ...); unexpected ones are wrapped in
// an operation-specific error type so the API layer can log them while
// sending a sanitized message.
package service
