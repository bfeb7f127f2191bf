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

type UserStore struct {
	db *database.DB
}

func NewUserStore(db *database.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	var mac sql.NullString
	err := s.Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.InternetAccess, &mac,
		&u.NotifyEmail, &u.NotifyApp, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.DeviceMAC = mac.String
	return &u, nil
}

const userCols = `id, name, email, role, internet_access, device_mac, notify_email, notify_app, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, u *model.User) (*model.User, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`INSERT INTO users (name, email, role, internet_access, device_mac, notify_email, notify_app, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		u.Name, u.Email, u.Role, u.InternetAccess, nullString(u.DeviceMAC),
		u.NotifyEmail, u.NotifyApp, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+userCols+` FROM users WHERE email = ? ORDER BY id LIMIT 1`), email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	return s.query(ctx, `SELECT `+userCols+` FROM users ORDER BY name ASC, id ASC`)
}

func (s *UserStore) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return s.query(ctx, `SELECT `+userCols+` FROM users WHERE role = ? ORDER BY id ASC`, role)
}

func (s *UserStore) query(ctx context.Context, q string, args ...any) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetInternetAccess persists the access flag independently of any router call.
func (s *UserStore) SetInternetAccess(ctx context.Context, id int64, allow bool) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET internet_access = ?, updated_at = ? WHERE id = ?`),
		allow, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set internet access: %w", err)
	}
	return nil
}

func (s *UserStore) Update(ctx context.Context, u *model.User) (*model.User, error) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET name = ?, email = ?, role = ?, device_mac = ?, notify_email = ?, notify_app = ?, updated_at = ?
		 WHERE id = ?`),
		u.Name, u.Email, u.Role, nullString(u.DeviceMAC), u.NotifyEmail, u.NotifyApp, time.Now().UTC(), u.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(ctx, u.ID)
}
