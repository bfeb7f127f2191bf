package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/choregate/internal/model"
)

func TestNotificationCreateAndList(t *testing.T) {
	ctx := context.Background()
	f := setupChoreFixture(t)

	for _, title := range []string{"first", "second"} {
		if _, err := f.notifs.Create(ctx, &model.Notification{
			UserID: f.child.ID, Title: title, Message: "m",
			Type: model.TypeSystem, DeliveryMethod: model.DeliveryBoth,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := f.notifs.ListByUser(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].Title != "second" {
		t.Errorf("first entry = %q, want newest first", list[0].Title)
	}
	if list[0].IsRead || list[0].SentAt != nil {
		t.Error("new notification should be unread and unsent")
	}
	if list[0].ScheduledFor.IsZero() {
		t.Error("expected scheduled_for to default to now")
	}

	other, _ := f.notifs.ListByUser(ctx, f.parent.ID)
	if len(other) != 0 {
		t.Errorf("expected no notifications for parent, got %d", len(other))
	}
}

func TestNotificationDedupKey(t *testing.T) {
	ctx := context.Background()
	f := setupChoreFixture(t)

	n := &model.Notification{
		UserID: f.child.ID, Title: "Upcoming Chore Reminder", Message: "m",
		Type: model.TypeReminder, DeliveryMethod: model.DeliveryEmail,
		DedupKey: "reminder:1:12",
	}

	exists, err := f.notifs.ExistsByDedupKey(ctx, n.DedupKey)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("expected key to be unused")
	}

	if _, err := f.notifs.Create(ctx, n); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.notifs.Create(ctx, n); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second create err = %v, want ErrDuplicate", err)
	}

	exists, _ = f.notifs.ExistsByDedupKey(ctx, n.DedupKey)
	if !exists {
		t.Error("expected key to be recorded")
	}

	// Notifications without a key never collide.
	for i := 0; i < 2; i++ {
		if _, err := f.notifs.Create(ctx, &model.Notification{
			UserID: f.child.ID, Title: "t", Message: "m",
			Type: model.TypeSystem, DeliveryMethod: model.DeliveryApp,
		}); err != nil {
			t.Fatalf("create keyless: %v", err)
		}
	}
}

func TestNotificationMarkReadAndSent(t *testing.T) {
	ctx := context.Background()
	f := setupChoreFixture(t)

	n, err := f.notifs.Create(ctx, &model.Notification{
		UserID: f.child.ID, Title: "t", Message: "m",
		Type: model.TypeSystem, DeliveryMethod: model.DeliveryBoth,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.notifs.MarkRead(ctx, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	sentAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	if err := f.notifs.MarkSent(ctx, n.ID, sentAt); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	got, err := f.notifs.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsRead {
		t.Error("expected is_read = true")
	}
	if got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Errorf("sent_at = %v, want %v", got.SentAt, sentAt)
	}
}

func TestNotificationDelete(t *testing.T) {
	ctx := context.Background()
	f := setupChoreFixture(t)

	n, err := f.notifs.Create(ctx, &model.Notification{
		UserID: f.child.ID, Title: "t", Message: "m",
		Type: model.TypeSystem, DeliveryMethod: model.DeliveryApp,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.notifs.Delete(ctx, n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := f.notifs.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected notification to be deleted")
	}
}
