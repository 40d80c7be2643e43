package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// IdentityDirectory is a testify mock of service.IdentityDirectory.
type IdentityDirectory struct {
	mock.Mock
}

// Exists mocks service.IdentityDirectory.Exists
func (m *IdentityDirectory) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// DisplayName mocks service.IdentityDirectory.DisplayName
func (m *IdentityDirectory) DisplayName(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}
