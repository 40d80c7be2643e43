package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store.
	// The user must already carry a HashedPassword.
	// Returns ErrEmailExists or ErrUsernameExists on duplicates.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns every user ordered by username.
	List(ctx context.Context) ([]*domain.User, error)

	// Exists reports whether a user with the given ID is stored.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
