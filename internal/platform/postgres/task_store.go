package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

const taskColumns = `id, title, description, status, due_date, assigned_user_id, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db *sql.DB, log *slog.Logger) *PostgresTaskStore {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: log.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task     domain.Task
		status   string
		dueDate  sql.NullTime
		assignee uuid.NullUUID
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&dueDate,
		&assignee,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	if dueDate.Valid {
		d := dueDate.Time.UTC()
		task.DueDate = &d
	}
	if assignee.Valid {
		id := assignee.UUID
		task.AssignedUserID = &id
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()

	return &task, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		nullableTime(task.DueDate),
		nullableUUID(task.AssignedUserID),
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to insert task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "create", "failed to insert task", MapError(err))
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.getByID(ctx, s.db, id, false)
}

func (s *PostgresTaskStore) getByID(
	ctx context.Context,
	db store.DBTX,
	id uuid.UUID,
	forUpdate bool,
) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	task, err := scanTask(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "get", "failed to query task", MapError(err))
	}

	return task, nil
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	var (
		where string
		args  []any
	)

	switch filter.Kind {
	case store.TaskFilterNone:
	case store.TaskFilterByAssignee:
		where = `WHERE assigned_user_id = $1`
		args = []any{filter.AssigneeID}
	case store.TaskFilterByStatus:
		where = `WHERE status = $1`
		args = []any{string(filter.Status)}
	case store.TaskFilterByDueDateRange:
		where = `WHERE due_date BETWEEN $1 AND $2`
		args = []any{filter.DueFrom.UTC(), filter.DueTo.UTC()}
	default:
		return nil, fmt.Errorf("%w: unsupported task filter %s", store.ErrInvalidEntity, filter.Kind)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id`
	return s.queryTasks(ctx, "list", query, args...)
}

// FindOverdueCandidates implements store.TaskStore.FindOverdueCandidates
func (s *PostgresTaskStore) FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date < $1 AND status NOT IN ($2, $3)
		ORDER BY due_date ASC, id
	`
	return s.queryTasks(ctx, "find_overdue", query,
		now.UTC(),
		string(domain.TaskStatusCompleted),
		string(domain.TaskStatusOverdue),
	)
}

func (s *PostgresTaskStore) queryTasks(
	ctx context.Context,
	operation, query string,
	args ...any,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", operation, "failed to query tasks", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("operation", operation),
				slog.String("error", err.Error()))
			return nil, store.NewStoreError("task", operation, "failed to scan task row", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", operation, "error iterating task rows", err)
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	return s.update(ctx, s.db, task)
}

func (s *PostgresTaskStore) update(ctx context.Context, db store.DBTX, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, due_date = $5,
			assigned_user_id = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		nullableTime(task.DueDate),
		nullableUUID(task.AssignedUserID),
		task.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "update", "failed to update task", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Modify implements store.TaskStore.Modify. The row is locked with
// SELECT ... FOR UPDATE for the lifetime of the transaction.
func (s *PostgresTaskStore) Modify(
	ctx context.Context,
	id uuid.UUID,
	fn store.TaskMutator,
) (*domain.Task, error) {
	var modified *domain.Task

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		task, err := s.getByID(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if err := fn(task); err != nil {
			return err
		}

		if err := s.update(ctx, tx, task); err != nil {
			return err
		}

		modified = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	return modified, nil
}

// MarkOverdue implements store.TaskStore.MarkOverdue as a single conditional
// UPDATE. Only status and updated_at are written; updated_at takes the
// cutoff, as in domain.Task.MarkOverdue.
func (s *PostgresTaskStore) MarkOverdue(ctx context.Context, id uuid.UUID, cutoff time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $2, updated_at = $3
		WHERE id = $1 AND due_date < $3 AND status NOT IN ($4, $2)
	`

	result, err := s.db.ExecContext(ctx, query,
		id,
		string(domain.TaskStatusOverdue),
		cutoff.UTC(),
		string(domain.TaskStatusCompleted),
	)
	if err != nil {
		log.Error("failed to mark task overdue",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "mark_overdue", "failed to update task status", MapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("task", "mark_overdue", "failed to get rows affected", err)
	}
	if rows > 0 {
		return nil
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrTaskNotFound
	}
	return store.ErrNotEligible
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "delete", "failed to delete task", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Exists implements store.TaskStore.Exists
func (s *PostgresTaskStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, store.NewStoreError("task", "exists", "failed to check task", MapError(err))
	}
	return exists, nil
}
