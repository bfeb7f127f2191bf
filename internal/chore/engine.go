// Package chore owns the chore lifecycle: creation, completion, parent
// verification and the time-driven move to overdue. Completing a chore is
// what earns a child internet access.
package chore

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/choregate/internal/access"
	"github.com/dukerupert/choregate/internal/apperr"
	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/metrics"
	"github.com/dukerupert/choregate/internal/model"
	"github.com/dukerupert/choregate/internal/notify"
	"github.com/dukerupert/choregate/internal/store"
	"github.com/dukerupert/choregate/internal/websocket"
)

type ChoreStore interface {
	Create(ctx context.Context, c *model.Chore) (*model.Chore, error)
	GetByID(ctx context.Context, id int64) (*model.Chore, error)
	List(ctx context.Context, f store.ChoreFilter) ([]model.Chore, error)
	Update(ctx context.Context, c *model.Chore) (*model.Chore, error)
	MarkOverdue(ctx context.Context, id int64, at time.Time) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

type Notifier interface {
	Create(ctx context.Context, in notify.Input) (*model.Notification, error)
	ForChore(ctx context.Context, choreID int64) ([]model.Notification, error)
	Removed(list []model.Notification)
}

type Granter interface {
	Grant(ctx context.Context, u *model.User) (access.Result, error)
}

type Publisher interface {
	Publish(e websocket.Event)
}

type Engine struct {
	chores   ChoreStore
	users    UserStore
	notifier Notifier
	gate     Granter
	events   Publisher
	metrics  *metrics.Metrics
	locks    *keyedMutex
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Engine)

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(chores ChoreStore, users UserStore, notifier Notifier, gate Granter, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		chores:   chores,
		users:    users,
		notifier: notifier,
		gate:     gate,
		locks:    newKeyedMutex(),
		now:      time.Now,
		logger:   logger.With("component", "chore"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the result of a transition that may grant access. Access is
// empty when no grant was attempted.
type Outcome struct {
	Chore  *model.Chore
	Access access.Result
}

type CreateInput struct {
	Title                string                  `json:"title"`
	Description          string                  `json:"description"`
	AssignedTo           int64                   `json:"assigned_to"`
	DueDate              time.Time               `json:"due_date"`
	Recurring            bool                    `json:"recurring"`
	RecurrencePattern    model.RecurrencePattern `json:"recurrence_pattern"`
	CustomRecurrence     *model.CustomRecurrence `json:"custom_recurrence"`
	Points               *int                    `json:"points"`
	RequiresVerification bool                    `json:"requires_verification"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title                *string                  `json:"title"`
	Description          *string                  `json:"description"`
	AssignedTo           *int64                   `json:"assigned_to"`
	DueDate              *time.Time               `json:"due_date"`
	Recurring            *bool                    `json:"recurring"`
	RecurrencePattern    *model.RecurrencePattern `json:"recurrence_pattern"`
	CustomRecurrence     *model.CustomRecurrence  `json:"custom_recurrence"`
	Points               *int                     `json:"points"`
	RequiresVerification *bool                    `json:"requires_verification"`
}

func (e *Engine) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*model.Chore, error) {
	if err := auth.Authorize(auth.OpChoreCreate, actor, auth.Resource{}); err != nil {
		return nil, err
	}

	points := 1
	if in.Points != nil {
		points = *in.Points
	}
	c := &model.Chore{
		Title:                in.Title,
		Description:          in.Description,
		AssignedTo:           in.AssignedTo,
		CreatedBy:            actor.UserID,
		DueDate:              in.DueDate,
		Recurring:            in.Recurring,
		RecurrencePattern:    in.RecurrencePattern,
		CustomRecurrence:     in.CustomRecurrence,
		Status:               model.StatusPending,
		Points:               points,
		RequiresVerification: in.RequiresVerification,
	}
	if err := validateChore(c); err != nil {
		return nil, err
	}
	if _, err := e.loadAssignee(ctx, c.AssignedTo); err != nil {
		return nil, err
	}

	created, err := e.chores.Create(ctx, c)
	if err != nil {
		return nil, apperr.Internal(err, "save chore")
	}
	e.logger.Info("chore created", "chore_id", created.ID, "assigned_to", created.AssignedTo, "by", actor.UserID)
	e.metrics.ChoreTransition("created")
	e.notify(ctx, notify.ChoreAssigned(created))
	e.publish("created", created.ID)
	return created, nil
}

func (e *Engine) Update(ctx context.Context, actor auth.Actor, id int64, in UpdateInput) (*model.Chore, error) {
	if err := auth.Authorize(auth.OpChoreUpdate, actor, auth.Resource{}); err != nil {
		return nil, err
	}
	defer e.locks.Lock(id)()

	c, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previousAssignee := c.AssignedTo

	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.AssignedTo != nil {
		c.AssignedTo = *in.AssignedTo
	}
	if in.DueDate != nil {
		c.DueDate = *in.DueDate
	}
	if in.Recurring != nil {
		c.Recurring = *in.Recurring
	}
	if in.RecurrencePattern != nil {
		c.RecurrencePattern = *in.RecurrencePattern
	}
	if in.CustomRecurrence != nil {
		c.CustomRecurrence = in.CustomRecurrence
	}
	if in.Points != nil {
		c.Points = *in.Points
	}
	if in.RequiresVerification != nil {
		c.RequiresVerification = *in.RequiresVerification
	}
	if err := validateChore(c); err != nil {
		return nil, err
	}
	reassigned := c.AssignedTo != previousAssignee
	if reassigned {
		if _, err := e.loadAssignee(ctx, c.AssignedTo); err != nil {
			return nil, err
		}
	}

	updated, err := e.chores.Update(ctx, c)
	if err != nil {
		return nil, apperr.Internal(err, "save chore")
	}
	if reassigned {
		e.logger.Info("chore reassigned", "chore_id", id, "from", previousAssignee, "to", updated.AssignedTo)
		e.notify(ctx, notify.ChoreReassigned(updated))
	}
	e.publish("updated", id)
	return updated, nil
}

// Complete marks a chore done. Without verification the assignee is granted
// internet access immediately; otherwise every parent is asked to verify.
func (e *Engine) Complete(ctx context.Context, actor auth.Actor, id int64) (*Outcome, error) {
	defer e.locks.Lock(id)()

	c, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.OpChoreComplete, actor, auth.Resource{OwnerID: c.AssignedTo}); err != nil {
		return nil, err
	}
	if err := checkCompletable(c); err != nil {
		return nil, err
	}
	assignee, err := e.loadAssignee(ctx, c.AssignedTo)
	if err != nil {
		return nil, err
	}

	now := e.now()
	c.Status = model.StatusCompleted
	c.CompletedAt = &now
	c.VerifiedBy = nil
	c.VerifiedAt = nil
	saved, err := e.chores.Update(ctx, c)
	if err != nil {
		return nil, apperr.Internal(err, "save chore")
	}
	e.logger.Info("chore completed", "chore_id", id, "by", actor.UserID, "requires_verification", saved.RequiresVerification)
	e.metrics.ChoreTransition("completed")
	out := &Outcome{Chore: saved}

	if saved.RequiresVerification {
		parents, err := e.users.ListByRole(ctx, model.RoleParent)
		if err != nil {
			e.logger.Error("list parents for verification", "chore_id", id, "error", err)
		}
		for _, p := range parents {
			e.notify(ctx, notify.VerificationNeeded(p.ID, saved, assignee.Name))
		}
	} else {
		res, err := e.grant(ctx, assignee, saved)
		if err != nil {
			return nil, err
		}
		out.Access = res
		if res != access.ResultFailed {
			e.notify(ctx, notify.AccessGranted(saved))
		}
	}

	e.publish("completed", id)
	return out, nil
}

// Verify records a parent's decision on a completed chore. Approval grants
// access; rejection sends the chore back to pending.
func (e *Engine) Verify(ctx context.Context, actor auth.Actor, id int64, approved bool) (*Outcome, error) {
	if err := auth.Authorize(auth.OpChoreVerify, actor, auth.Resource{}); err != nil {
		return nil, err
	}
	defer e.locks.Lock(id)()

	c, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVerifiable(c); err != nil {
		return nil, err
	}

	if !approved {
		c.Status = model.StatusPending
		c.CompletedAt = nil
		saved, err := e.chores.Update(ctx, c)
		if err != nil {
			return nil, apperr.Internal(err, "save chore")
		}
		e.logger.Info("chore rejected", "chore_id", id, "by", actor.UserID)
		e.metrics.ChoreTransition("rejected")
		e.notify(ctx, notify.ChoreRejected(saved))
		e.publish("rejected", id)
		return &Outcome{Chore: saved}, nil
	}

	assignee, err := e.loadAssignee(ctx, c.AssignedTo)
	if err != nil {
		return nil, err
	}
	now := e.now()
	verifier := actor.UserID
	c.VerifiedBy = &verifier
	c.VerifiedAt = &now
	saved, err := e.chores.Update(ctx, c)
	if err != nil {
		return nil, apperr.Internal(err, "save chore")
	}
	e.logger.Info("chore verified", "chore_id", id, "by", actor.UserID)
	e.metrics.ChoreTransition("verified")

	res, err := e.grant(ctx, assignee, saved)
	if err != nil {
		return nil, err
	}
	if res != access.ResultFailed {
		e.notify(ctx, notify.ChoreVerified(saved))
	}
	e.publish("verified", id)
	return &Outcome{Chore: saved, Access: res}, nil
}

func (e *Engine) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if err := auth.Authorize(auth.OpChoreDelete, actor, auth.Resource{}); err != nil {
		return err
	}
	defer e.locks.Lock(id)()

	if _, err := e.load(ctx, id); err != nil {
		return err
	}
	// The store cascades to notifications, so collect them first.
	attached, err := e.notifier.ForChore(ctx, id)
	if err != nil {
		e.logger.Warn("list chore notifications", "chore_id", id, "error", err)
	}
	if err := e.chores.Delete(ctx, id); err != nil {
		return apperr.Internal(err, "delete chore")
	}
	e.logger.Info("chore deleted", "chore_id", id, "by", actor.UserID, "notifications", len(attached))
	e.notifier.Removed(attached)
	e.publish("deleted", id)
	return nil
}

func (e *Engine) Get(ctx context.Context, actor auth.Actor, id int64) (*model.Chore, error) {
	c, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.OpChoreView, actor, auth.Resource{OwnerID: c.AssignedTo}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListFilter narrows List for parents. Children always see only their own chores.
type ListFilter struct {
	Status     model.ChoreStatus
	AssignedTo int64
}

func (e *Engine) List(ctx context.Context, actor auth.Actor, f ListFilter) ([]model.Chore, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", f.Status)
	}
	filter := store.ChoreFilter{Status: f.Status, AssignedTo: f.AssignedTo}
	if !actor.IsParent() {
		filter.AssignedTo = actor.UserID
	}
	chores, err := e.chores.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err, "list chores")
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	return chores, nil
}

// MarkOverdue moves a pending chore to overdue. It reports false when the
// chore is no longer pending.
func (e *Engine) MarkOverdue(ctx context.Context, id int64) (bool, error) {
	defer e.locks.Lock(id)()

	ok, err := e.chores.MarkOverdue(ctx, id, e.now())
	if err != nil {
		return false, apperr.Internal(err, "mark overdue")
	}
	if ok {
		e.logger.Info("chore overdue", "chore_id", id)
		e.metrics.ChoreTransition("overdue")
		e.publish("overdue", id)
	}
	return ok, nil
}

func (e *Engine) grant(ctx context.Context, u *model.User, c *model.Chore) (access.Result, error) {
	res, err := e.gate.Grant(ctx, u)
	switch {
	case err == nil:
		return res, nil
	case res == access.ResultFailed:
		e.logger.Warn("access granted in app but router update failed", "chore_id", c.ID, "user_id", u.ID, "error", err)
		return res, nil
	default:
		return "", apperr.Internal(err, "grant access")
	}
}

func (e *Engine) load(ctx context.Context, id int64) (*model.Chore, error) {
	c, err := e.chores.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "load chore")
	}
	if c == nil {
		return nil, apperr.NotFound("chore %d not found", id)
	}
	return c, nil
}

func (e *Engine) loadAssignee(ctx context.Context, id int64) (*model.User, error) {
	u, err := e.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "load assignee")
	}
	if u == nil {
		return nil, apperr.NotFound("user %d not found", id)
	}
	if u.Role != model.RoleChild {
		return nil, apperr.Validation("chores can only be assigned to children")
	}
	return u, nil
}

// notify enqueues a notification. The transition it describes is already
// saved, so failures are logged and dropped.
func (e *Engine) notify(ctx context.Context, in notify.Input) {
	if _, err := e.notifier.Create(ctx, in); err != nil {
		e.logger.Error("create notification", "user_id", in.UserID, "title", in.Title, "error", err)
	}
}

func (e *Engine) publish(action string, id int64) {
	if e.events == nil {
		return
	}
	e.events.Publish(websocket.Event{Entity: "chore", Action: action, ID: id})
}
