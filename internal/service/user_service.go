package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/service/auth"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// UserService provides registration, login and user lookups.
type UserService interface {
	// Register creates a USER account, or an ADMIN one for the configured
	// bootstrap username.
	Register(ctx context.Context, username, email, password string) (*domain.User, error)

	// Authenticate checks credentials and returns auth.ErrInvalidCredentials
	// on an unknown user or wrong password.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)

	// GetUser retrieves a user by their ID.
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// ListUsers returns every user.
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// PasswordService hashes and verifies passwords.
type PasswordService interface {
	auth.PasswordHasher
	auth.PasswordVerifier
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore     store.UserStore
	passwords     PasswordService
	bootstrapUser string
	logger        *slog.Logger
}

// NewUserService creates a new UserService. bootstrapAdmin may be empty.
func NewUserService(
	userStore store.UserStore,
	passwords PasswordService,
	bootstrapAdmin string,
	log *slog.Logger,
) *UserServiceImpl {
	if log == nil {
		log = slog.Default()
	}
	return &UserServiceImpl{
		userStore:     userStore,
		passwords:     passwords,
		bootstrapUser: bootstrapAdmin,
		logger:        log.With("component", "user_service"),
	}
}

var _ UserService = (*UserServiceImpl)(nil)

// Register implements UserService.
func (s *UserServiceImpl) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(strings.TrimSpace(username), strings.TrimSpace(email), password)
	if err != nil {
		return nil, userValidationError(err)
	}
	if s.bootstrapUser != "" && user.Username == s.bootstrapUser {
		user.Role = domain.UserRoleAdmin
	}

	hashed, err := s.passwords.Hash(password)
	if err != nil {
		return nil, NewUserServiceError("register", "failed to hash password", err)
	}
	user.HashedPassword = hashed

	if err := s.userStore.Create(ctx, user); err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("registration rejected: duplicate", "username", user.Username)
		} else {
			log.Error("failed to save user", "error", err, "username", user.Username)
		}
		return nil, NewUserServiceError("register", "failed to save user", err)
	}
	user.Password = ""

	log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Authenticate implements UserService.
func (s *UserServiceImpl) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userStore.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, NewUserServiceError("authenticate", "failed to load user", err)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("password mismatch", "user_id", user.ID)
		return nil, auth.ErrInvalidCredentials
	}

	return user, nil
}

// GetUser implements UserService.
func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, NewUserServiceError("get_user", "failed to load user", err)
	}
	return user, nil
}

// ListUsers implements UserService.
func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userStore.List(ctx)
	if err != nil {
		return nil, NewUserServiceError("list_users", "failed to list users", err)
	}
	return users, nil
}

func userValidationError(err error) *ValidationError {
	field := "user"
	switch {
	case errors.Is(err, domain.ErrEmptyUsername), errors.Is(err, domain.ErrInvalidUsername):
		field = "username"
	case errors.Is(err, domain.ErrEmptyEmail), errors.Is(err, domain.ErrInvalidEmail):
		field = "email"
	case errors.Is(err, domain.ErrEmptyPassword),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordTooLong):
		field = "password"
	}
	return NewValidationError(field, err.Error())
}
