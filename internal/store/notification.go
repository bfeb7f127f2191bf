package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/choregate/internal/database"
	"github.com/dukerupert/choregate/internal/model"
)

type NotificationStore struct {
	db *database.DB
}

func NewNotificationStore(db *database.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(s scanner) (*model.Notification, error) {
	var n model.Notification
	var choreID sql.NullInt64
	var sentAt sql.NullTime
	var dedupKey sql.NullString
	err := s.Scan(
		&n.ID, &n.UserID, &choreID, &n.Title, &n.Message, &n.Type, &n.DeliveryMethod,
		&n.IsRead, &n.ScheduledFor, &sentAt, &dedupKey, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.ChoreID = int64Ptr(choreID)
	n.SentAt = timePtr(sentAt)
	n.DedupKey = dedupKey.String
	return &n, nil
}

const notificationCols = `id, user_id, chore_id, title, message, type, delivery_method,
	is_read, scheduled_for, sent_at, dedup_key, created_at`

// Create inserts n. When n carries a dedup key that already exists, nothing is
// written and ErrDuplicate is returned.
func (s *NotificationStore) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	now := time.Now().UTC()
	scheduled := n.ScheduledFor
	if scheduled.IsZero() {
		scheduled = now
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`INSERT INTO notifications (user_id, chore_id, title, message, type, delivery_method,
			is_read, scheduled_for, sent_at, dedup_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dedup_key) DO NOTHING
		 RETURNING id`),
		n.UserID, nullInt64(n.ChoreID), n.Title, n.Message, n.Type, n.DeliveryMethod,
		n.IsRead, scheduled.UTC(), nullTime(n.SentAt), nullString(n.DedupKey), now,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *NotificationStore) GetByID(ctx context.Context, id int64) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`), id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListByUser returns a user's notifications, newest first.
func (s *NotificationStore) ListByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.query(ctx, `SELECT `+notificationCols+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

// ListByChore returns the notifications that reference a chore, oldest first.
func (s *NotificationStore) ListByChore(ctx context.Context, choreID int64) ([]model.Notification, error) {
	return s.query(ctx, `SELECT `+notificationCols+` FROM notifications WHERE chore_id = ? ORDER BY id ASC`, choreID)
}

func (s *NotificationStore) query(ctx context.Context, q string, args ...any) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// ExistsByDedupKey reports whether a notification was already recorded under key.
func (s *NotificationStore) ExistsByDedupKey(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE dedup_key = ?`), key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check dedup key: %w", err)
	}
	return n > 0, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE notifications SET is_read = ? WHERE id = ?`), true, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkSent stamps the time an out-of-band delivery succeeded.
func (s *NotificationStore) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE notifications SET sent_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

func (s *NotificationStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM notifications WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
