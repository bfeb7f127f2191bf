// Package scheduler runs the time-driven chore sweeps: hourly due-date
// reminders, the midnight overdue pass and the weekly recurrence pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dukerupert/choregate/internal/access"
	"github.com/dukerupert/choregate/internal/chore"
	"github.com/dukerupert/choregate/internal/metrics"
	"github.com/dukerupert/choregate/internal/model"
	"github.com/dukerupert/choregate/internal/notify"
	"github.com/dukerupert/choregate/internal/recurrence"
	"github.com/dukerupert/choregate/internal/store"
)

// reminderHours are the lead times, in whole hours before the due date, at
// which a reminder goes out.
var reminderHours = map[int]bool{24: true, 12: true, 4: true}

const reminderWindow = 24 * time.Hour

type ChoreStore interface {
	List(ctx context.Context, f store.ChoreFilter) ([]model.Chore, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type Notifier interface {
	Create(ctx context.Context, in notify.Input) (*model.Notification, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// OverdueMarker moves a pending chore to overdue, reporting false when the
// chore was no longer pending.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, id int64) (bool, error)
}

type Revoker interface {
	Revoke(ctx context.Context, u *model.User) (access.Result, error)
}

type RecurrenceRunner interface {
	Run(ctx context.Context) (*recurrence.Report, error)
}

// Result summarizes one sweep. Errors collects per-item failures; the sweep
// itself still ran to completion.
type Result struct {
	Examined int
	Acted    int
	Errors   error
}

type Sweeper struct {
	chores     ChoreStore
	users      UserStore
	notifier   Notifier
	overdue    OverdueMarker
	gate       Revoker
	recurrence RecurrenceRunner
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *slog.Logger
}

type SweeperOption func(*Sweeper)

func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

func NewSweeper(
	chores ChoreStore,
	users UserStore,
	notifier Notifier,
	overdue OverdueMarker,
	gate Revoker,
	gen RecurrenceRunner,
	logger *slog.Logger,
	opts ...SweeperOption,
) *Sweeper {
	s := &Sweeper{
		chores:     chores,
		users:      users,
		notifier:   notifier,
		overdue:    overdue,
		gate:       gate,
		recurrence: gen,
		now:        time.Now,
		logger:     logger.With("component", "sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reminders notifies assignees of pending chores due within the next day.
// Each chore gets at most one reminder per lead time.
func (s *Sweeper) Reminders(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := s.reminders(ctx)
	s.metrics.SweepRun("reminders", time.Since(start), err)
	return res, err
}

func (s *Sweeper) reminders(ctx context.Context) (*Result, error) {
	now := s.now()
	to := now.Add(reminderWindow)
	chores, err := s.chores.List(ctx, store.ChoreFilter{
		Status:  model.StatusPending,
		DueFrom: &now,
		DueTo:   &to,
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming chores: %w", err)
	}

	res := &Result{}
	var errs *multierror.Error
	users := map[int64]*model.User{}
	for i := range chores {
		c := &chores[i]
		res.Examined++

		hours := int(math.Round(c.DueDate.Sub(now).Hours()))
		if !reminderHours[hours] {
			continue
		}
		u, err := s.user(ctx, users, c.AssignedTo)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("chore %d: %w", c.ID, err))
			continue
		}
		if u == nil || !u.NotifyEmail {
			continue
		}

		key := notify.ReminderKey(c.ID, hours)
		sent, err := s.notifier.Exists(ctx, key)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("chore %d: %w", c.ID, err))
			continue
		}
		if sent {
			continue
		}
		_, err = s.notifier.Create(ctx, notify.Reminder(c, hours))
		if errors.Is(err, notify.ErrDuplicate) {
			continue
		}
		if err != nil {
			s.logger.Error("create reminder", "chore_id", c.ID, "hours", hours, "error", err)
			errs = multierror.Append(errs, fmt.Errorf("chore %d: %w", c.ID, err))
			continue
		}
		s.logger.Info("reminder sent", "chore_id", c.ID, "user_id", c.AssignedTo, "hours", hours)
		res.Acted++
	}
	res.Errors = errs.ErrorOrNil()
	return res, nil
}

// Overdue moves every pending chore past its due date to overdue, tells the
// assignee and revokes their internet access.
func (s *Sweeper) Overdue(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := s.overdueSweep(ctx)
	s.metrics.SweepRun("overdue", time.Since(start), err)
	return res, err
}

func (s *Sweeper) overdueSweep(ctx context.Context) (*Result, error) {
	now := s.now()
	chores, err := s.chores.List(ctx, store.ChoreFilter{
		Status:    model.StatusPending,
		DueBefore: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("list past-due chores: %w", err)
	}

	res := &Result{}
	var errs *multierror.Error
	for i := range chores {
		c := &chores[i]
		res.Examined++
		if !chore.IsOverdue(c, now) {
			continue
		}
		if err := s.markOverdue(ctx, c); err != nil {
			s.logger.Error("overdue chore", "chore_id", c.ID, "error", err)
			errs = multierror.Append(errs, fmt.Errorf("chore %d: %w", c.ID, err))
			continue
		}
		if c.Status == model.StatusOverdue {
			res.Acted++
		}
	}
	res.Errors = errs.ErrorOrNil()
	return res, nil
}

func (s *Sweeper) markOverdue(ctx context.Context, c *model.Chore) error {
	ok, err := s.overdue.MarkOverdue(ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		// completed or deleted since the list query
		return nil
	}
	c.Status = model.StatusOverdue

	if _, err := s.notifier.Create(ctx, notify.ChoreOverdue(c)); err != nil {
		s.logger.Error("create notification", "chore_id", c.ID, "error", err)
	}

	u, err := s.users.GetByID(ctx, c.AssignedTo)
	if err != nil {
		return fmt.Errorf("load assignee: %w", err)
	}
	if u == nil || !u.InternetAccess {
		return nil
	}
	if _, err := s.gate.Revoke(ctx, u); err != nil {
		return fmt.Errorf("revoke access for user %d: %w", u.ID, err)
	}
	return nil
}

// Recurrence spawns today's instances of recurring chores.
func (s *Sweeper) Recurrence(ctx context.Context) (*Result, error) {
	start := time.Now()
	rep, err := s.recurrence.Run(ctx)
	s.metrics.SweepRun("recurrence", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &Result{Examined: rep.Examined, Acted: len(rep.Spawned), Errors: rep.Errors}, nil
}

func (s *Sweeper) user(ctx context.Context, cache map[int64]*model.User, id int64) (*model.User, error) {
	if u, ok := cache[id]; ok {
		return u, nil
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load assignee: %w", err)
	}
	cache[id] = u
	return u, nil
}
