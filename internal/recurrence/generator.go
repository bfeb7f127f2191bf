package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dukerupert/choregate/internal/metrics"
	"github.com/dukerupert/choregate/internal/model"
	"github.com/dukerupert/choregate/internal/notify"
	"github.com/dukerupert/choregate/internal/store"
	"github.com/dukerupert/choregate/internal/websocket"
)

type ChoreStore interface {
	List(ctx context.Context, f store.ChoreFilter) ([]model.Chore, error)
	Create(ctx context.Context, c *model.Chore) (*model.Chore, error)
	HasInstance(ctx context.Context, templateID int64, from, to time.Time) (bool, error)
}

type Notifier interface {
	Create(ctx context.Context, in notify.Input) (*model.Notification, error)
}

type Publisher interface {
	Publish(e websocket.Event)
}

// Generator spawns pending chores from recurring templates. Every chore
// with recurring set is a template, including the instances it spawned.
type Generator struct {
	chores     ChoreStore
	notifier   Notifier
	events     Publisher
	metrics    *metrics.Metrics
	oncePerDay bool
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Generator)

// WithOncePerDay skips a template when its lineage already has a chore due
// on the computed day. A lineage is the root template plus every instance
// spawned from it or from its instances. Without it every run spawns.
func WithOncePerDay(enabled bool) Option {
	return func(g *Generator) { g.oncePerDay = enabled }
}

func WithPublisher(p Publisher) Option {
	return func(g *Generator) { g.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(chores ChoreStore, notifier Notifier, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		chores:   chores,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With("component", "recurrence"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Report summarizes one generator run.
type Report struct {
	Examined int
	Spawned  []int64
	Skipped  int
	Errors   error
}

// Run evaluates every template against today's date. A failing template is
// recorded in Report.Errors and does not stop the others. The returned error
// is non-nil only when the templates could not be listed.
func (g *Generator) Run(ctx context.Context) (*Report, error) {
	now := g.now()
	recurring := true
	templates, err := g.chores.List(ctx, store.ChoreFilter{Recurring: &recurring})
	if err != nil {
		return nil, fmt.Errorf("list recurring chores: %w", err)
	}

	dues := make(map[int64]time.Time, len(templates))
	for _, t := range templates {
		dues[t.ID] = t.DueDate
	}

	rep := &Report{}
	var errs *multierror.Error
	for i := range templates {
		tmpl := &templates[i]
		rep.Examined++
		if !tmpl.IsTemplate() || !Matches(tmpl, now) {
			continue
		}
		spawned, err := g.spawn(ctx, tmpl, dues, now)
		if err != nil {
			g.logger.Error("spawn recurring chore", "template_id", tmpl.ID, "error", err)
			errs = multierror.Append(errs, fmt.Errorf("template %d: %w", tmpl.ID, err))
			continue
		}
		if spawned == nil {
			rep.Skipped++
			continue
		}
		rep.Spawned = append(rep.Spawned, spawned.ID)
	}
	rep.Errors = errs.ErrorOrNil()

	g.metrics.ChoresSpawned(len(rep.Spawned))
	g.logger.Info("recurrence run finished",
		"examined", rep.Examined, "spawned", len(rep.Spawned), "skipped", rep.Skipped,
		"failed", errorCount(errs))
	return rep, nil
}

// spawn creates one instance of tmpl. It returns nil without error when the
// once-per-day guard finds the day already covered. dues holds the due date
// of every listed template by id.
func (g *Generator) spawn(ctx context.Context, tmpl *model.Chore, dues map[int64]time.Time, now time.Time) (*model.Chore, error) {
	due := NextDueDate(tmpl, now)
	root := RootID(tmpl)

	if g.oncePerDay {
		day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())
		next := day.AddDate(0, 0, 1)
		within := func(t time.Time) bool { return !t.Before(day) && t.Before(next) }
		if within(tmpl.DueDate) {
			return nil, nil
		}
		if rootDue, ok := dues[root]; ok && within(rootDue) {
			return nil, nil
		}
		exists, err := g.chores.HasInstance(ctx, root, day, next)
		if err != nil {
			return nil, err
		}
		if exists {
			g.logger.Debug("instance already spawned for day", "template_id", tmpl.ID, "root_id", root, "due", due)
			return nil, nil
		}
	}

	templateID := root
	instance := &model.Chore{
		Title:                tmpl.Title,
		Description:          tmpl.Description,
		AssignedTo:           tmpl.AssignedTo,
		CreatedBy:            tmpl.CreatedBy,
		DueDate:              due,
		Recurring:            tmpl.Recurring,
		RecurrencePattern:    tmpl.RecurrencePattern,
		CustomRecurrence:     tmpl.CustomRecurrence,
		Status:               model.StatusPending,
		Points:               tmpl.Points,
		RequiresVerification: tmpl.RequiresVerification,
		TemplateID:           &templateID,
	}
	created, err := g.chores.Create(ctx, instance)
	if err != nil {
		return nil, err
	}
	g.logger.Info("recurring chore spawned", "template_id", tmpl.ID, "root_id", root, "chore_id", created.ID, "due", due)

	if _, err := g.notifier.Create(ctx, notify.RecurringSpawned(created)); err != nil {
		g.logger.Error("create notification", "chore_id", created.ID, "error", err)
	}
	if g.events != nil {
		g.events.Publish(websocket.Event{Entity: "chore", Action: "created", ID: created.ID})
	}
	return created, nil
}

// RootID returns the id of the template that started c's lineage. Spawned
// chores carry it in TemplateID; a hand-created chore is its own root.
func RootID(c *model.Chore) int64 {
	if c.TemplateID != nil {
		return *c.TemplateID
	}
	return c.ID
}

func errorCount(errs *multierror.Error) int {
	if errs == nil {
		return 0
	}
	return len(errs.Errors)
}
