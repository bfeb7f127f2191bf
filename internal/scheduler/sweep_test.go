package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/choregate/internal/access"
	"github.com/dukerupert/choregate/internal/chore"
	"github.com/dukerupert/choregate/internal/database"
	"github.com/dukerupert/choregate/internal/model"
	"github.com/dukerupert/choregate/internal/notify"
	"github.com/dukerupert/choregate/internal/recurrence"
	"github.com/dukerupert/choregate/internal/store"
)

type routerCall struct {
	mac   string
	allow bool
}

type fakeRouter struct {
	mu    sync.Mutex
	calls []routerCall
	err   error
}

func (r *fakeRouter) SetAccess(ctx context.Context, mac string, allow bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, routerCall{mac, allow})
	return r.err
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return nil
}

type fixture struct {
	sweeper *Sweeper
	chores  *store.ChoreStore
	users   *store.UserStore
	notifs  *store.NotificationStore
	router  *fakeRouter
	sender  *fakeSender
	mom     *model.User
	sam     *model.User
	alex    *model.User
	now     time.Time
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(database.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	f := &fixture{
		chores: store.NewChoreStore(db),
		users:  store.NewUserStore(db),
		notifs: store.NewNotificationStore(db),
		router: &fakeRouter{},
		sender: &fakeSender{},
		now:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), // Monday midnight
	}
	ctx := context.Background()
	mk := func(u *model.User) *model.User {
		created, err := f.users.Create(ctx, u)
		if err != nil {
			t.Fatalf("create user %s: %v", u.Name, err)
		}
		return created
	}
	f.mom = mk(&model.User{Name: "Mom", Email: "mom@example.com", Role: model.RoleParent, NotifyEmail: true, NotifyApp: true})
	f.sam = mk(&model.User{Name: "Sam", Email: "sam@example.com", Role: model.RoleChild,
		DeviceMAC: "aa:bb:cc:dd:ee:01", InternetAccess: true, NotifyEmail: true, NotifyApp: true})
	f.alex = mk(&model.User{Name: "Alex", Email: "alex@example.com", Role: model.RoleChild,
		DeviceMAC: "aa:bb:cc:dd:ee:02", InternetAccess: true, NotifyEmail: true, NotifyApp: true})

	clock := func() time.Time { return f.now }
	dispatcher := notify.NewDispatcher(f.notifs, f.users, logger,
		notify.WithSender(f.sender), notify.WithClock(clock))
	gate := access.NewGate(f.users, f.router, time.Second, nil, logger)
	engine := chore.NewEngine(f.chores, f.users, dispatcher, gate, logger, chore.WithClock(clock))
	gen := recurrence.NewGenerator(f.chores, dispatcher, logger, recurrence.WithClock(clock))
	f.sweeper = NewSweeper(f.chores, f.users, dispatcher, engine, gate, gen, logger, WithClock(clock))
	return f
}

func (f *fixture) createChore(t *testing.T, assignee *model.User, due time.Time, status model.ChoreStatus) *model.Chore {
	t.Helper()
	c, err := f.chores.Create(context.Background(), &model.Chore{
		Title:      "Dishes",
		AssignedTo: assignee.ID,
		CreatedBy:  f.mom.ID,
		DueDate:    due,
		Status:     status,
		Points:     1,
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return c
}

func (f *fixture) notificationsOfType(t *testing.T, userID int64, typ model.NotificationType) []model.Notification {
	t.Helper()
	all, err := f.notifs.ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	var out []model.Notification
	for _, n := range all {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func TestRemindersSendOncePerLeadTime(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.createChore(t, f.sam, f.now.Add(12*time.Hour), model.StatusPending)

	res, err := f.sweeper.Reminders(ctx)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res.Acted != 1 {
		t.Fatalf("acted = %d, want 1", res.Acted)
	}
	got := f.notificationsOfType(t, f.sam.ID, model.TypeReminder)
	if len(got) != 1 {
		t.Fatalf("reminders = %d, want 1", len(got))
	}
	if want := `Your chore "Dishes" is due in 12 hours`; got[0].Message != want {
		t.Errorf("message = %q, want %q", got[0].Message, want)
	}
	if got[0].ChoreID == nil || *got[0].ChoreID != c.ID {
		t.Errorf("chore_id = %v, want %d", got[0].ChoreID, c.ID)
	}
	if len(f.sender.sent) != 1 {
		t.Errorf("emails = %d, want 1", len(f.sender.sent))
	}

	res, err = f.sweeper.Reminders(ctx)
	if err != nil {
		t.Fatalf("second reminders: %v", err)
	}
	if res.Acted != 0 {
		t.Errorf("second run acted = %d, want 0", res.Acted)
	}
	if got := f.notificationsOfType(t, f.sam.ID, model.TypeReminder); len(got) != 1 {
		t.Errorf("reminders after second run = %d, want 1", len(got))
	}
}

func TestRemindersLeadTimes(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want int
	}{
		{"24 hours", 24 * time.Hour, 1},
		{"rounds to 24", 23*time.Hour + 40*time.Minute, 1},
		{"4 hours", 4 * time.Hour, 1},
		{"23 hours", 23 * time.Hour, 0},
		{"13 hours", 13 * time.Hour, 0},
		{"past window", 25 * time.Hour, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.createChore(t, f.sam, f.now.Add(tt.in), model.StatusPending)
			res, err := f.sweeper.Reminders(context.Background())
			if err != nil {
				t.Fatalf("reminders: %v", err)
			}
			if res.Acted != tt.want {
				t.Errorf("acted = %d, want %d", res.Acted, tt.want)
			}
		})
	}
}

func TestRemindersSkipEmailOptOutAndNonPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sam := *f.sam
	sam.NotifyEmail = false
	if _, err := f.users.Update(ctx, &sam); err != nil {
		t.Fatalf("update user: %v", err)
	}
	f.createChore(t, f.sam, f.now.Add(12*time.Hour), model.StatusPending)
	f.createChore(t, f.alex, f.now.Add(12*time.Hour), model.StatusCompleted)

	res, err := f.sweeper.Reminders(ctx)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res.Acted != 0 {
		t.Errorf("acted = %d, want 0", res.Acted)
	}
	if res.Examined != 1 {
		t.Errorf("examined = %d, want only the pending chore", res.Examined)
	}
}

func TestOverdueMarksNotifiesAndRevokes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	late := f.createChore(t, f.sam, f.now.Add(-time.Hour), model.StatusPending)
	upcoming := f.createChore(t, f.sam, f.now.Add(time.Hour), model.StatusPending)

	res, err := f.sweeper.Overdue(ctx)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if res.Acted != 1 || res.Errors != nil {
		t.Fatalf("result = %+v", res)
	}

	got, _ := f.chores.GetByID(ctx, late.ID)
	if got.Status != model.StatusOverdue {
		t.Errorf("late chore status = %q, want overdue", got.Status)
	}
	got, _ = f.chores.GetByID(ctx, upcoming.ID)
	if got.Status != model.StatusPending {
		t.Errorf("upcoming chore status = %q, want pending", got.Status)
	}

	sam, _ := f.users.GetByID(ctx, f.sam.ID)
	if sam.InternetAccess {
		t.Error("internet access should be revoked")
	}
	if len(f.router.calls) != 1 || f.router.calls[0] != (routerCall{"aa:bb:cc:dd:ee:01", false}) {
		t.Errorf("router calls = %+v", f.router.calls)
	}
	notifs := f.notificationsOfType(t, f.sam.ID, model.TypeSystem)
	if len(notifs) != 1 || notifs[0].Title != "Chore Overdue" {
		t.Errorf("notifications = %+v", notifs)
	}
}

// unfilteredChores ignores the status and due-date filters so the sweep
// sees chores the query would normally exclude.
type unfilteredChores struct {
	*store.ChoreStore
}

func (u unfilteredChores) List(ctx context.Context, f store.ChoreFilter) ([]model.Chore, error) {
	return u.ChoreStore.List(ctx, store.ChoreFilter{})
}

func TestOverdueIgnoresChoresNotPastDue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	late := f.createChore(t, f.sam, f.now.Add(-time.Hour), model.StatusPending)
	dueNow := f.createChore(t, f.sam, f.now, model.StatusPending)
	done := f.createChore(t, f.alex, f.now.Add(-time.Hour), model.StatusCompleted)

	f.sweeper.chores = unfilteredChores{f.chores}
	res, err := f.sweeper.Overdue(ctx)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if res.Examined != 3 || res.Acted != 1 {
		t.Errorf("result = %+v, want 3 examined and 1 acted", res)
	}
	want := map[int64]model.ChoreStatus{
		late.ID:   model.StatusOverdue,
		dueNow.ID: model.StatusPending,
		done.ID:   model.StatusCompleted,
	}
	for id, status := range want {
		got, _ := f.chores.GetByID(ctx, id)
		if got.Status != status {
			t.Errorf("chore %d status = %q, want %q", id, got.Status, status)
		}
	}
	if len(f.router.calls) != 1 {
		t.Errorf("router calls = %+v, want only the late chore's revoke", f.router.calls)
	}
}

func TestOverdueSkipsRevokeWithoutAccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.users.SetInternetAccess(ctx, f.sam.ID, false); err != nil {
		t.Fatalf("set access: %v", err)
	}
	f.createChore(t, f.sam, f.now.Add(-time.Hour), model.StatusPending)

	if _, err := f.sweeper.Overdue(ctx); err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(f.router.calls) != 0 {
		t.Errorf("router calls = %+v, want none", f.router.calls)
	}
}

func TestOverdueContinuesPastRouterFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.router.err = errors.New("connection refused")
	a := f.createChore(t, f.sam, f.now.Add(-2*time.Hour), model.StatusPending)
	b := f.createChore(t, f.alex, f.now.Add(-time.Hour), model.StatusPending)

	res, err := f.sweeper.Overdue(ctx)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if res.Errors == nil {
		t.Error("expected per-chore router errors to be collected")
	}
	for _, id := range []int64{a.ID, b.ID} {
		got, _ := f.chores.GetByID(ctx, id)
		if got.Status != model.StatusOverdue {
			t.Errorf("chore %d status = %q, want overdue", id, got.Status)
		}
	}
	for _, u := range []*model.User{f.sam, f.alex} {
		got, _ := f.users.GetByID(ctx, u.ID)
		if got.InternetAccess {
			t.Errorf("%s should have access flag cleared", u.Name)
		}
	}
	if len(f.router.calls) != 2 {
		t.Errorf("router calls = %d, want 2", len(f.router.calls))
	}
}

func TestRecurrenceSweep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.chores.Create(ctx, &model.Chore{
		Title:             "Mow lawn",
		AssignedTo:        f.sam.ID,
		CreatedBy:         f.mom.ID,
		DueDate:           time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
		Recurring:         true,
		RecurrencePattern: model.PatternWeekly,
		Points:            2,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	res, err := f.sweeper.Recurrence(ctx)
	if err != nil {
		t.Fatalf("recurrence: %v", err)
	}
	if res.Examined != 1 || res.Acted != 1 {
		t.Errorf("result = %+v, want one spawned", res)
	}
}
