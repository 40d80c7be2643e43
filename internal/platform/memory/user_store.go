package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

// NewUserStore returns an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]*domain.User)}
}

var _ store.UserStore = (*UserStore)(nil)

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Password = ""
	return &c
}

// Create implements store.UserStore.Create
func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	if user.HashedPassword == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyHashedPassword)
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return store.ErrUsernameExists
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrEmailExists
		}
	}

	s.users[user.ID] = cloneUser(user)
	user.Password = ""
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// GetByUsername implements store.UserStore.GetByUsername
func (s *UserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Username == username })
}

// GetByEmail implements store.UserStore.GetByEmail
func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *UserStore) find(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, store.ErrUserNotFound
}

// List implements store.UserStore.List
func (s *UserStore) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Exists implements store.UserStore.Exists
func (s *UserStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[id]
	return ok, nil
}

// Remove deletes a user. Tasks assigned to it are left alone.
func (s *UserStore) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}
