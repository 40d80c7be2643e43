package overdue_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/mocks"
	"github.com/phrazzld/tasktracker-api/internal/overdue"
	"github.com/phrazzld/tasktracker-api/internal/platform/memory"
	"github.com/phrazzld/tasktracker-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	quietLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	sweepTime   = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seed(t *testing.T, s *memory.TaskStore, due *time.Time, status domain.TaskStatus) *domain.Task {
	t.Helper()
	task, err := domain.NewTask("task", "", due, nil, sweepTime.Add(-48*time.Hour))
	require.NoError(t, err)
	task.Status = status
	require.NoError(t, s.Create(context.Background(), task))
	return task
}

func dueIn(d time.Duration) *time.Time {
	t := sweepTime.Add(d)
	return &t
}

func statusOf(t *testing.T, s *memory.TaskStore, id uuid.UUID) domain.TaskStatus {
	t.Helper()
	task, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	return task.Status
}

func TestSweep_MarksOnlyEligibleTasks(t *testing.T) {
	tasks := memory.NewTaskStore()
	newLate := seed(t, tasks, dueIn(-time.Hour), domain.TaskStatusNew)
	inProgressLate := seed(t, tasks, dueIn(-time.Minute), domain.TaskStatusInProgress)
	delayedLate := seed(t, tasks, dueIn(-24*time.Hour), domain.TaskStatusDelayed)
	completedLate := seed(t, tasks, dueIn(-time.Hour), domain.TaskStatusCompleted)
	exactlyNow := seed(t, tasks, dueIn(0), domain.TaskStatusNew)
	future := seed(t, tasks, dueIn(time.Hour), domain.TaskStatusNew)
	undated := seed(t, tasks, nil, domain.TaskStatusNew)

	sweeper := overdue.NewSweeper(tasks, quietLogger, overdue.WithClock(clockAt(sweepTime)))
	report := sweeper.Sweep(context.Background())

	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 3, report.Updated())
	assert.Empty(t, report.Failed)
	assert.Empty(t, report.Error)
	assert.Equal(t, sweepTime, report.Cutoff)

	for _, task := range []*domain.Task{newLate, inProgressLate, delayedLate} {
		assert.Equal(t, domain.TaskStatusOverdue, statusOf(t, tasks, task.ID))
	}
	assert.Equal(t, domain.TaskStatusCompleted, statusOf(t, tasks, completedLate.ID))
	assert.Equal(t, domain.TaskStatusNew, statusOf(t, tasks, exactlyNow.ID))
	assert.Equal(t, domain.TaskStatusNew, statusOf(t, tasks, future.ID))
	assert.Equal(t, domain.TaskStatusNew, statusOf(t, tasks, undated.ID))
}

func TestSweep_IsIdempotent(t *testing.T) {
	tasks := memory.NewTaskStore()
	seed(t, tasks, dueIn(-time.Hour), domain.TaskStatusNew)

	sweeper := overdue.NewSweeper(tasks, quietLogger, overdue.WithClock(clockAt(sweepTime)))
	first := sweeper.Sweep(context.Background())
	second := sweeper.Sweep(context.Background())

	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, 0, second.Examined)
	assert.Equal(t, 0, second.Succeeded)
}

func TestSweep_OneFailureDoesNotStopTheBatch(t *testing.T) {
	tasks := memory.NewTaskStore()
	const n = 5
	var broken uuid.UUID
	for i := 0; i < n; i++ {
		task := seed(t, tasks, dueIn(-time.Duration(i+1)*time.Hour), domain.TaskStatusNew)
		if i == 2 {
			broken = task.ID
		}
	}
	tasks.SetHooks(memory.TaskHooks{
		MarkOverdue: func(id uuid.UUID) error {
			if id == broken {
				return errors.New("row locked")
			}
			return nil
		},
	})

	report := overdue.NewSweeper(tasks, quietLogger, overdue.WithClock(clockAt(sweepTime))).
		Sweep(context.Background())

	assert.Equal(t, n, report.Examined)
	assert.Equal(t, n-1, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, broken, report.Failed[0].TaskID)
	assert.Contains(t, report.Failed[0].Reason, "row locked")
	assert.Equal(t, domain.TaskStatusNew, statusOf(t, tasks, broken))
}

func TestSweep_QueryFailureIsReported(t *testing.T) {
	tasks := memory.NewTaskStore()
	tasks.SetHooks(memory.TaskHooks{
		FindOverdueCandidates: func(time.Time) error { return errors.New("database unavailable") },
	})

	report := overdue.NewSweeper(tasks, quietLogger).Sweep(context.Background())
	assert.Contains(t, report.Error, "database unavailable")
	assert.Zero(t, report.Examined)
}

func TestSweep_ConcurrentChangesAreIsolated(t *testing.T) {
	taskStore := &mocks.TaskStore{}
	completed := &domain.Task{ID: uuid.New()}
	deleted := &domain.Task{ID: uuid.New()}
	fine := &domain.Task{ID: uuid.New()}

	taskStore.On("FindOverdueCandidates", mock.Anything, sweepTime).
		Return([]*domain.Task{completed, deleted, fine}, nil)
	taskStore.On("MarkOverdue", mock.Anything, completed.ID, sweepTime).Return(store.ErrNotEligible)
	taskStore.On("MarkOverdue", mock.Anything, deleted.ID, sweepTime).Return(store.ErrTaskNotFound)
	taskStore.On("MarkOverdue", mock.Anything, fine.ID, sweepTime).Return(nil)

	report := overdue.NewSweeper(taskStore, quietLogger, overdue.WithClock(clockAt(sweepTime))).
		Sweep(context.Background())

	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, deleted.ID, report.Failed[0].TaskID)
	taskStore.AssertExpectations(t)
}

func TestSweep_CancellationStopsBetweenTasks(t *testing.T) {
	taskStore := &mocks.TaskStore{}
	first := &domain.Task{ID: uuid.New()}
	second := &domain.Task{ID: uuid.New()}
	ctx, cancel := context.WithCancel(context.Background())

	taskStore.On("FindOverdueCandidates", mock.Anything, sweepTime).
		Return([]*domain.Task{first, second}, nil)
	taskStore.On("MarkOverdue", mock.Anything, first.ID, sweepTime).
		Run(func(args mock.Arguments) {
			cancel()
			// The in-flight write must not see the cancellation.
			writeCtx := args.Get(0).(context.Context)
			assert.NoError(t, writeCtx.Err())
		}).
		Return(nil)

	report := overdue.NewSweeper(taskStore, quietLogger, overdue.WithClock(clockAt(sweepTime))).Sweep(ctx)

	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Succeeded)
	taskStore.AssertNotCalled(t, "MarkOverdue", mock.Anything, second.ID, mock.Anything)
}
