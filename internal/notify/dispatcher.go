// Package notify persists in-app notifications and fans them out to email.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/choregate/internal/apperr"
	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/metrics"
	"github.com/dukerupert/choregate/internal/model"
	"github.com/dukerupert/choregate/internal/store"
	"github.com/dukerupert/choregate/internal/websocket"
)

// ErrDuplicate is returned by Create when the input's dedup key was already used.
var ErrDuplicate = store.ErrDuplicate

type Store interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
	GetByID(ctx context.Context, id int64) (*model.Notification, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	ListByChore(ctx context.Context, choreID int64) ([]model.Notification, error)
	ExistsByDedupKey(ctx context.Context, key string) (bool, error)
	MarkRead(ctx context.Context, id int64) error
	MarkSent(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Sender delivers a notification out of band.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Publisher interface {
	Publish(e websocket.Event)
}

// Input describes a notification to create.
type Input struct {
	UserID         int64
	ChoreID        *int64
	Title          string
	Message        string
	Type           model.NotificationType
	DeliveryMethod model.DeliveryMethod
	ScheduledFor   time.Time
	DedupKey       string
}

type Dispatcher struct {
	store       Store
	users       UserLookup
	sender      Sender
	events      Publisher
	sendTimeout time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Dispatcher)

// WithSender enables email delivery. Without it every notification stays in-app.
func WithSender(s Sender) Option {
	return func(d *Dispatcher) { d.sender = s }
}

func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.sendTimeout = timeout }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(s Store, users UserLookup, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       s,
		users:       users,
		sendTimeout: 10 * time.Second,
		now:         time.Now,
		logger:      logger.With("component", "notify"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create persists a notification and, when its delivery method includes
// email, attempts delivery. Delivery failures are logged and never returned;
// sentAt is stamped only after a successful send.
func (d *Dispatcher) Create(ctx context.Context, in Input) (*model.Notification, error) {
	if in.DeliveryMethod == "" {
		in.DeliveryMethod = model.DeliveryBoth
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	user, err := d.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, apperr.Internal(err, "load recipient")
	}
	if user == nil {
		return nil, apperr.NotFound("user %d not found", in.UserID)
	}

	scheduled := in.ScheduledFor
	if scheduled.IsZero() {
		scheduled = d.now()
	}
	n, err := d.store.Create(ctx, &model.Notification{
		UserID:         in.UserID,
		ChoreID:        in.ChoreID,
		Title:          in.Title,
		Message:        in.Message,
		Type:           in.Type,
		DeliveryMethod: in.DeliveryMethod,
		ScheduledFor:   scheduled,
		DedupKey:       in.DedupKey,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, apperr.Internal(err, "save notification")
	}
	d.metrics.NotificationCreated(string(n.Type))
	d.publish(n, "created")

	if n.DeliveryMethod.IncludesEmail() {
		d.deliver(ctx, n, user)
	}
	return n, nil
}

// CreateManual lets a parent send an ad-hoc notification.
func (d *Dispatcher) CreateManual(ctx context.Context, actor auth.Actor, in Input) (*model.Notification, error) {
	if err := auth.Authorize(auth.OpNotificationCreate, actor, auth.Resource{}); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = model.TypeSystem
	}
	in.DedupKey = ""
	return d.Create(ctx, in)
}

// Exists reports whether a notification was already recorded under key.
func (d *Dispatcher) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := d.store.ExistsByDedupKey(ctx, key)
	if err != nil {
		return false, apperr.Internal(err, "check dedup key")
	}
	return ok, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification, user *model.User) {
	log := d.logger.With("notification_id", n.ID, "user_id", user.ID)
	switch {
	case d.sender == nil:
		log.Debug("email delivery not configured")
		d.metrics.Delivery("skipped")
		return
	case user.Email == "":
		log.Debug("recipient has no email address")
		d.metrics.Delivery("skipped")
		return
	case !user.NotifyEmail:
		log.Debug("recipient disabled email notifications")
		d.metrics.Delivery("skipped")
		return
	}

	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.sender.Send(sctx, user.Email, n.Title, n.Message); err != nil {
		log.Warn("email delivery failed", "error", err)
		d.metrics.Delivery("failed")
		return
	}

	sentAt := d.now()
	if err := d.store.MarkSent(ctx, n.ID, sentAt); err != nil {
		log.Error("record email delivery", "error", err)
		return
	}
	n.SentAt = &sentAt
	d.metrics.Delivery("sent")
}

// MarkRead flags a notification as read. Only the recipient may do so.
func (d *Dispatcher) MarkRead(ctx context.Context, actor auth.Actor, id int64) (*model.Notification, error) {
	n, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.OpNotificationRead, actor, auth.Resource{OwnerID: n.UserID}); err != nil {
		return nil, err
	}
	if err := d.store.MarkRead(ctx, id); err != nil {
		return nil, apperr.Internal(err, "mark read")
	}
	n.IsRead = true
	d.publish(n, "read")
	return n, nil
}

// Delete removes a notification. The recipient or any parent may do so.
func (d *Dispatcher) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	n, err := d.load(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(auth.OpNotificationDelete, actor, auth.Resource{OwnerID: n.UserID}); err != nil {
		return err
	}
	if err := d.store.Delete(ctx, id); err != nil {
		return apperr.Internal(err, "delete notification")
	}
	d.publish(n, "deleted")
	return nil
}

// List returns the actor's own notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, actor auth.Actor) ([]model.Notification, error) {
	list, err := d.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err, "list notifications")
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// ForChore returns every notification that references a chore.
func (d *Dispatcher) ForChore(ctx context.Context, choreID int64) ([]model.Notification, error) {
	list, err := d.store.ListByChore(ctx, choreID)
	if err != nil {
		return nil, apperr.Internal(err, "list chore notifications")
	}
	return list, nil
}

// Removed tells each recipient that notifications deleted on their behalf,
// e.g. together with a chore, are gone.
func (d *Dispatcher) Removed(list []model.Notification) {
	for i := range list {
		d.publish(&list[i], "deleted")
	}
}

func (d *Dispatcher) load(ctx context.Context, id int64) (*model.Notification, error) {
	n, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "load notification")
	}
	if n == nil {
		return nil, apperr.NotFound("notification %d not found", id)
	}
	return n, nil
}

func (d *Dispatcher) publish(n *model.Notification, action string) {
	if d.events == nil {
		return
	}
	d.events.Publish(websocket.Event{Entity: "notification", Action: action, ID: n.ID, Recipients: []int64{n.UserID}})
}

func validate(in Input) error {
	switch {
	case in.UserID == 0:
		return apperr.Validation("recipient is required")
	case in.Title == "":
		return apperr.Validation("title is required")
	case in.Message == "":
		return apperr.Validation("message is required")
	case !in.Type.Valid():
		return apperr.Validation("invalid notification type %q", in.Type)
	case !in.DeliveryMethod.Valid():
		return apperr.Validation("invalid delivery method %q", in.DeliveryMethod)
	}
	return nil
}
