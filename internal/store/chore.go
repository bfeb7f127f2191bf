package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/choregate/internal/database"
	"github.com/dukerupert/choregate/internal/model"
)

type ChoreStore struct {
	db *database.DB
}

func NewChoreStore(db *database.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

// ChoreFilter narrows List. Zero fields are ignored.
type ChoreFilter struct {
	Status     model.ChoreStatus
	AssignedTo int64
	Recurring  *bool
	DueFrom    *time.Time // due_date >= DueFrom
	DueTo      *time.Time // due_date <= DueTo
	DueBefore  *time.Time // due_date < DueBefore
}

func scanChore(s scanner) (*model.Chore, error) {
	var c model.Chore
	var pattern sql.NullString
	var custom sql.Null[model.CustomRecurrence]
	var completedAt, verifiedAt sql.NullTime
	var verifiedBy, templateID sql.NullInt64

	err := s.Scan(
		&c.ID, &c.Title, &c.Description, &c.AssignedTo, &c.CreatedBy, &c.DueDate,
		&c.Recurring, &pattern, &custom, &c.Status, &completedAt, &c.Points,
		&c.RequiresVerification, &verifiedBy, &verifiedAt, &templateID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.RecurrencePattern = model.RecurrencePattern(pattern.String)
	if custom.Valid {
		cr := custom.V
		c.CustomRecurrence = &cr
	}
	c.CompletedAt = timePtr(completedAt)
	c.VerifiedAt = timePtr(verifiedAt)
	c.VerifiedBy = int64Ptr(verifiedBy)
	c.TemplateID = int64Ptr(templateID)
	return &c, nil
}

const choreCols = `id, title, description, assigned_to, created_by, due_date,
	recurring, recurrence_pattern, custom_recurrence, status, completed_at, points,
	requires_verification, verified_by, verified_at, template_id, created_at, updated_at`

func (s *ChoreStore) Create(ctx context.Context, c *model.Chore) (*model.Chore, error) {
	now := time.Now().UTC()
	status := c.Status
	if status == "" {
		status = model.StatusPending
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`INSERT INTO chores (title, description, assigned_to, created_by, due_date,
			recurring, recurrence_pattern, custom_recurrence, status, completed_at, points,
			requires_verification, verified_by, verified_at, template_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		c.Title, c.Description, c.AssignedTo, c.CreatedBy, c.DueDate.UTC(),
		c.Recurring, nullString(string(c.RecurrencePattern)), c.CustomRecurrence, status,
		nullTime(c.CompletedAt), c.Points, c.RequiresVerification,
		nullInt64(c.VerifiedBy), nullTime(c.VerifiedAt), nullInt64(c.TemplateID), now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+choreCols+` FROM chores WHERE id = ?`), id)
	c, err := scanChore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) List(ctx context.Context, f ChoreFilter) ([]model.Chore, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.AssignedTo != 0 {
		where = append(where, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.Recurring != nil {
		where = append(where, "recurring = ?")
		args = append(args, *f.Recurring)
	}
	if f.DueFrom != nil {
		where = append(where, "due_date >= ?")
		args = append(args, f.DueFrom.UTC())
	}
	if f.DueTo != nil {
		where = append(where, "due_date <= ?")
		args = append(args, f.DueTo.UTC())
	}
	if f.DueBefore != nil {
		where = append(where, "due_date < ?")
		args = append(args, f.DueBefore.UTC())
	}

	q := `SELECT ` + choreCols + ` FROM chores`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY due_date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// Update writes every mutable column of c.
func (s *ChoreStore) Update(ctx context.Context, c *model.Chore) (*model.Chore, error) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE chores SET title = ?, description = ?, assigned_to = ?, due_date = ?,
			recurring = ?, recurrence_pattern = ?, custom_recurrence = ?, status = ?, completed_at = ?,
			points = ?, requires_verification = ?, verified_by = ?, verified_at = ?, updated_at = ?
		 WHERE id = ?`),
		c.Title, c.Description, c.AssignedTo, c.DueDate.UTC(),
		c.Recurring, nullString(string(c.RecurrencePattern)), c.CustomRecurrence, c.Status,
		nullTime(c.CompletedAt), c.Points, c.RequiresVerification,
		nullInt64(c.VerifiedBy), nullTime(c.VerifiedAt), time.Now().UTC(), c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(ctx, c.ID)
}

// MarkOverdue moves a chore from pending to overdue. It reports false when
// the chore was no longer pending, e.g. because it was completed meanwhile.
func (s *ChoreStore) MarkOverdue(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE chores SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		model.StatusOverdue, at.UTC(), id, model.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark overdue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Delete removes the chore together with every notification that references it.
func (s *ChoreStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM notifications WHERE chore_id = ?`), id); err != nil {
		return fmt.Errorf("delete chore notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM chores WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return tx.Commit()
}

// HasInstance reports whether a chore spawned from templateID is already due
// within [from, to).
func (s *ChoreStore) HasInstance(ctx context.Context, templateID int64, from, to time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM chores WHERE template_id = ? AND due_date >= ? AND due_date < ?`),
		templateID, from.UTC(), to.UTC(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count template instances: %w", err)
	}
	return n > 0, nil
}
