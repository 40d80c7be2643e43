package overdue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/redact"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// Failure records one task the sweep could not mark.
type Failure struct {
	TaskID uuid.UUID `json:"task_id"`
	Reason string    `json:"reason"`
}

// Report summarizes one sweep.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Cutoff    time.Time     `json:"cutoff"`
	Duration  time.Duration `json:"duration_ns"`
	Examined  int           `json:"examined"`
	Succeeded int           `json:"succeeded"`
	// Skipped counts candidates that stopped qualifying before their write,
	// for example a task completed while the sweep was running.
	Skipped int       `json:"skipped"`
	Failed  []Failure `json:"failed"`
	// Error is set when the candidate query itself failed. Error and
	// Failure reasons are redacted.
	Error string `json:"error,omitempty"`
	// Interrupted is set when the context was cancelled between tasks.
	Interrupted bool `json:"interrupted"`
}

// Updated is the number of tasks moved to OVERDUE.
func (r Report) Updated() int {
	return r.Succeeded
}

// Sweeper marks overdue tasks.
type Sweeper struct {
	tasks  store.TaskStore
	now    func() time.Time
	logger *slog.Logger
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithClock replaces time.Now as the sweep's source of "now".
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// NewSweeper creates a Sweeper over tasks.
func NewSweeper(tasks store.TaskStore, log *slog.Logger, opts ...SweeperOption) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	s := &Sweeper{
		tasks:  tasks,
		now:    time.Now,
		logger: log.With("component", "overdue_sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one pass. "now" is captured once and used both for the
// candidate query and for every conditional write, so the pass behaves as if
// it happened at a single instant. Sweep never returns an error: every
// failure ends up in the Report.
//
// A write that has started is allowed to finish even if ctx is cancelled;
// cancellation is only observed between tasks.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now().UTC()
	started := time.Now()

	report := Report{
		StartedAt: now,
		Cutoff:    now,
		Failed:    make([]Failure, 0),
	}

	candidates, err := s.tasks.FindOverdueCandidates(ctx, now)
	if err != nil {
		log.Error("overdue query failed", "error", err)
		report.Error = redact.Error(err)
		report.Duration = time.Since(started)
		return report
	}

	writeCtx := context.WithoutCancel(ctx)
	for _, task := range candidates {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		report.Examined++
		err := s.tasks.MarkOverdue(writeCtx, task.ID, now)
		switch {
		case err == nil:
			report.Succeeded++
			log.Debug("task marked overdue", "task_id", task.ID)
		case errors.Is(err, store.ErrNotEligible):
			report.Skipped++
			log.Debug("task no longer eligible for overdue", "task_id", task.ID)
		default:
			report.Failed = append(report.Failed, Failure{TaskID: task.ID, Reason: redact.Error(err)})
			log.Warn("failed to mark task overdue", "task_id", task.ID, "error", err)
		}
	}

	report.Duration = time.Since(started)

	level := slog.LevelInfo
	if len(report.Failed) > 0 || report.Interrupted {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "overdue sweep finished",
		"candidates", len(candidates),
		"examined", report.Examined,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", len(report.Failed),
		"interrupted", report.Interrupted,
		"duration_ms", report.Duration.Milliseconds())

	return report
}
