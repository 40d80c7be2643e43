package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// UserDirectory is the IdentityDirectory backed by the user store. The
// display name is the username.
type UserDirectory struct {
	users store.UserStore
}

// NewUserDirectory creates a UserDirectory.
func NewUserDirectory(users store.UserStore) *UserDirectory {
	return &UserDirectory{users: users}
}

var _ IdentityDirectory = (*UserDirectory)(nil)

// Exists implements IdentityDirectory.
func (d *UserDirectory) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	return d.users.Exists(ctx, userID)
}

// DisplayName implements IdentityDirectory.
func (d *UserDirectory) DisplayName(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return user.Username, true, nil
}
