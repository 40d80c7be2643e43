package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// TaskHooks lets tests inject failures into individual store calls.
// A nil hook is skipped.
type TaskHooks struct {
	FindOverdueCandidates func(now time.Time) error
	MarkOverdue           func(id uuid.UUID) error
}

// TaskStore is an in-memory store.TaskStore. Every method holds the store
// mutex for its whole duration, which makes Modify atomic per task.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
	hooks TaskHooks
}

// NewTaskStore returns an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

var _ store.TaskStore = (*TaskStore)(nil)

// SetHooks replaces the failure-injection hooks.
func (s *TaskStore) SetHooks(h TaskHooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// Create implements store.TaskStore.Create
func (s *TaskStore) Create(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: task %s", store.ErrDuplicate, task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *TaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// List implements store.TaskStore.List
func (s *TaskStore) List(_ context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Matches(task) {
			tasks = append(tasks, task.Clone())
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID.String() < tasks[j].ID.String()
	})
	return tasks, nil
}

// FindOverdueCandidates implements store.TaskStore.FindOverdueCandidates
func (s *TaskStore) FindOverdueCandidates(_ context.Context, now time.Time) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.hooks.FindOverdueCandidates; h != nil {
		if err := h(now); err != nil {
			return nil, store.NewStoreError("task", "find_overdue", "hook failed", err)
		}
	}

	tasks := make([]*domain.Task, 0)
	for _, task := range s.tasks {
		if task.IsOverdueAt(now) {
			tasks = append(tasks, task.Clone())
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].DueDate.Equal(*tasks[j].DueDate) {
			return tasks[i].DueDate.Before(*tasks[j].DueDate)
		}
		return tasks[i].ID.String() < tasks[j].ID.String()
	})
	return tasks, nil
}

// Update implements store.TaskStore.Update
func (s *TaskStore) Update(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Modify implements store.TaskStore.Modify
func (s *TaskStore) Modify(_ context.Context, id uuid.UUID, fn store.TaskMutator) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	task := current.Clone()
	if err := fn(task); err != nil {
		return nil, err
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.tasks[id] = task
	return task.Clone(), nil
}

// MarkOverdue implements store.TaskStore.MarkOverdue
func (s *TaskStore) MarkOverdue(_ context.Context, id uuid.UUID, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.hooks.MarkOverdue; h != nil {
		if err := h(id); err != nil {
			return store.NewStoreError("task", "mark_overdue", "hook failed", err)
		}
	}

	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if !task.IsOverdueAt(cutoff) {
		return store.ErrNotEligible
	}

	task.MarkOverdue(cutoff)
	return nil
}

// Delete implements store.TaskStore.Delete
func (s *TaskStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Exists implements store.TaskStore.Exists
func (s *TaskStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tasks[id]
	return ok, nil
}
