package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Cron specs for the sweeps, evaluated in the scheduler's time zone.
const (
	RemindersSpec  = "0 * * * *"
	OverdueSpec    = "0 0 * * *"
	RecurrenceSpec = "0 1 * * 1"
)

const (
	JobReminders  = "reminders"
	JobOverdue    = "overdue"
	JobRecurrence = "recurrence"
)

type job struct {
	name string
	spec string
	run  func(ctx context.Context) (*Result, error)
}

// Scheduler fires the sweeps on their cron cadence. A sweep never overlaps
// with itself; different sweeps may run at the same time.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]job
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New registers the reminder, overdue and recurrence sweeps in loc.
func New(sw *Sweeper, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   map[string]job{},
		ctx:    context.Background(),
		logger: logger,
	}

	for _, j := range []job{
		{JobReminders, RemindersSpec, sw.Reminders},
		{JobOverdue, OverdueSpec, sw.Overdue},
		{JobRecurrence, RecurrenceSpec, sw.Recurrence},
	} {
		if _, err := s.cron.AddFunc(j.spec, func() { s.fire(j) }); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
		s.jobs[j.name] = j
	}
	return s, nil
}

// Start begins firing sweeps. Cancelling ctx aborts in-flight sweeps.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Debug("sweep scheduled", "next", e.Next)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts the schedule and waits for running sweeps to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	<-done.Done()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

// RunNow runs the named sweep once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*Result, error) {
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown sweep %q", name)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) fire(j job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	// failures are logged in run; the next firing proceeds normally
	_, _ = s.run(ctx, j)
}

func (s *Scheduler) run(ctx context.Context, j job) (*Result, error) {
	logger := s.logger.With("sweep", j.name, "run_id", uuid.NewString())
	start := time.Now()
	logger.Info("sweep started")

	res, err := j.run(ctx)
	if err != nil {
		logger.Error("sweep failed", "duration", time.Since(start), "error", err)
		return nil, err
	}
	if res.Errors != nil {
		logger.Warn("sweep finished with errors",
			"examined", res.Examined, "acted", res.Acted, "duration", time.Since(start), "error", res.Errors)
		return res, nil
	}
	logger.Info("sweep finished", "examined", res.Examined, "acted", res.Acted, "duration", time.Since(start))
	return res, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
