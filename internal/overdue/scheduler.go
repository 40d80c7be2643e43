package overdue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrSchedulerBusy is returned by TriggerNow while another sweep is running.
// Callers may retry later.
var ErrSchedulerBusy = errors.New("an overdue check is already running")

// DefaultCron runs the sweep at the top of every hour.
const DefaultCron = "0 0 * * * *"

// cronParser accepts six fields with seconds, plus descriptors such as
// "@hourly" and "@every 15m".
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Runner performs one sweep. *Sweeper implements it.
type Runner interface {
	Sweep(ctx context.Context) Report
}

// Config controls the recurring sweep.
type Config struct {
	Cron    string
	Enabled bool
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Enabled bool       `json:"enabled"`
	Cron    string     `json:"cron"`
	Running bool       `json:"running"`
	LastRun *Report    `json:"last_run"`
	NextRun *time.Time `json:"next_run"`
}

// Scheduler runs a Runner on a cron schedule and on demand.
type Scheduler struct {
	runner   Runner
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron
	entryID  cron.EntryID
	logger   *slog.Logger

	enabled atomic.Bool
	running atomic.Bool
	// sweepMu is held for the duration of a sweep from either entry point.
	sweepMu sync.Mutex

	lastMu sync.RWMutex
	last   *Report

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewScheduler validates the cron expression and prepares the scheduler.
// Nothing runs until Start.
func NewScheduler(runner Runner, cfg Config, log *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("overdue scheduler requires a runner")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Cron == "" {
		cfg.Cron = DefaultCron
	}

	schedule, err := cronParser.Parse(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid overdue cron expression %q: %w", cfg.Cron, err)
	}

	log = log.With("component", "overdue_scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runner:   runner,
		spec:     cfg.Cron,
		schedule: schedule,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.enabled.Store(cfg.Enabled)

	cronLog := &slogCronLogger{logger: log}
	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(s.runScheduled))

	return s, nil
}

// Start begins ticking. It is a no-op after the first call.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.cron.Start()
		s.logger.Info("overdue scheduler started",
			"cron", s.spec,
			"enabled", s.Enabled())
	})
}

// Stop stops future ticks, interrupts a running scheduled sweep between
// tasks and waits for it to return or for ctx to expire. After Stop the
// manual trigger reports ErrSchedulerBusy.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.cron.Stop()
		s.cancel()

		done := make(chan struct{})
		go func() {
			// Held forever: no sweep may start once stopped.
			s.sweepMu.Lock()
			close(done)
		}()

		select {
		case <-done:
			s.logger.Info("overdue scheduler stopped")
		case <-ctx.Done():
			err = fmt.Errorf("waiting for running overdue sweep: %w", ctx.Err())
		}
	})
	return err
}

// SetEnabled switches scheduled sweeps on or off. The manual trigger is not
// affected.
func (s *Scheduler) SetEnabled(enabled bool) {
	if s.enabled.Swap(enabled) != enabled {
		s.logger.Info("overdue scheduler toggled", "enabled", enabled)
	}
}

// Enabled reports whether scheduled sweeps run.
func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}

// TriggerNow runs a sweep immediately, regardless of the enabled flag.
func (s *Scheduler) TriggerNow(ctx context.Context) (Report, error) {
	if !s.sweepMu.TryLock() {
		return Report{}, ErrSchedulerBusy
	}
	defer s.sweepMu.Unlock()

	s.logger.Info("manual overdue check requested")
	return s.sweep(ctx), nil
}

// runScheduled is the cron job.
func (s *Scheduler) runScheduled() {
	if !s.Enabled() {
		s.logger.Debug("scheduled overdue check skipped: disabled")
		return
	}
	if !s.sweepMu.TryLock() {
		s.logger.Info("scheduled overdue check skipped: another check is running")
		return
	}
	defer s.sweepMu.Unlock()

	s.sweep(s.ctx)
}

// sweep must be called with sweepMu held.
func (s *Scheduler) sweep(ctx context.Context) Report {
	s.running.Store(true)
	defer s.running.Store(false)

	report := s.runner.Sweep(ctx)

	s.lastMu.Lock()
	s.last = &report
	s.lastMu.Unlock()

	return report
}

// Status returns the scheduler's current state.
func (s *Scheduler) Status() Status {
	st := Status{
		Enabled: s.Enabled(),
		Cron:    s.spec,
		Running: s.running.Load(),
	}

	s.lastMu.RLock()
	if s.last != nil {
		last := *s.last
		st.LastRun = &last
	}
	s.lastMu.RUnlock()

	if st.Enabled {
		next := s.cron.Entry(s.entryID).Next
		if next.IsZero() {
			next = s.schedule.Next(time.Now())
		}
		st.NextRun = &next
	}

	return st
}

// slogCronLogger adapts the cron logger interface to slog. cron's chatty
// info messages go to debug.
type slogCronLogger struct {
	logger *slog.Logger
}

// Info implements cron.Logger.
func (l *slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

// Error implements cron.Logger.
func (l *slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
