package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// TaskStore is a testify mock of store.TaskStore.
type TaskStore struct {
	mock.Mock
}

var _ store.TaskStore = (*TaskStore)(nil)

func taskResult(args mock.Arguments) (*domain.Task, error) {
	if task, ok := args.Get(0).(*domain.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

func tasksResult(args mock.Arguments) ([]*domain.Task, error) {
	if tasks, ok := args.Get(0).([]*domain.Task); ok {
		return tasks, args.Error(1)
	}
	return nil, args.Error(1)
}

// Create mocks store.TaskStore.Create
func (m *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

// GetByID mocks store.TaskStore.GetByID
func (m *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return taskResult(m.Called(ctx, id))
}

// List mocks store.TaskStore.List
func (m *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	return tasksResult(m.Called(ctx, filter))
}

// FindOverdueCandidates mocks store.TaskStore.FindOverdueCandidates
func (m *TaskStore) FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	return tasksResult(m.Called(ctx, now))
}

// Update mocks store.TaskStore.Update
func (m *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

// Modify mocks store.TaskStore.Modify. When the expectation returns a task,
// fn is applied to it so the mutation the service performs is observable.
func (m *TaskStore) Modify(ctx context.Context, id uuid.UUID, fn store.TaskMutator) (*domain.Task, error) {
	task, err := taskResult(m.Called(ctx, id, fn))
	if err != nil || task == nil {
		return task, err
	}
	if err := fn(task); err != nil {
		return nil, err
	}
	return task, nil
}

// MarkOverdue mocks store.TaskStore.MarkOverdue
func (m *TaskStore) MarkOverdue(ctx context.Context, id uuid.UUID, cutoff time.Time) error {
	return m.Called(ctx, id, cutoff).Error(0)
}

// Delete mocks store.TaskStore.Delete
func (m *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// Exists mocks store.TaskStore.Exists
func (m *TaskStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
