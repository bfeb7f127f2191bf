package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ChoreStatus string

const (
	StatusPending   ChoreStatus = "pending"
	StatusCompleted ChoreStatus = "completed"
	StatusOverdue   ChoreStatus = "overdue"
)

func (s ChoreStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusOverdue:
		return true
	}
	return false
}

type RecurrencePattern string

const (
	PatternDaily   RecurrencePattern = "daily"
	PatternWeekly  RecurrencePattern = "weekly"
	PatternMonthly RecurrencePattern = "monthly"
	PatternCustom  RecurrencePattern = "custom"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly, PatternCustom:
		return true
	}
	return false
}

// CustomRecurrence lists the weekdays (0 = Sunday) and days of the month
// on which a custom recurring chore spawns. It is stored as a JSON column.
type CustomRecurrence struct {
	DaysOfWeek  []int `json:"daysOfWeek,omitempty"`
	DaysOfMonth []int `json:"daysOfMonth,omitempty"`
}

func (c CustomRecurrence) IsEmpty() bool {
	return len(c.DaysOfWeek) == 0 && len(c.DaysOfMonth) == 0
}

func (c CustomRecurrence) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal custom recurrence: %w", err)
	}
	return string(b), nil
}

func (c *CustomRecurrence) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*c = CustomRecurrence{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("scan custom recurrence: unsupported type %T", src)
	}
	if len(b) == 0 {
		*c = CustomRecurrence{}
		return nil
	}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("unmarshal custom recurrence: %w", err)
	}
	return nil
}

type Chore struct {
	ID                   int64             `json:"id"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	AssignedTo           int64             `json:"assigned_to"`
	CreatedBy            int64             `json:"created_by"`
	DueDate              time.Time         `json:"due_date"`
	Recurring            bool              `json:"recurring"`
	RecurrencePattern    RecurrencePattern `json:"recurrence_pattern,omitempty"`
	CustomRecurrence     *CustomRecurrence `json:"custom_recurrence,omitempty"`
	Status               ChoreStatus       `json:"status"`
	CompletedAt          *time.Time        `json:"completed_at"`
	Points               int               `json:"points"`
	RequiresVerification bool              `json:"requires_verification"`
	VerifiedBy           *int64            `json:"verified_by"`
	VerifiedAt           *time.Time        `json:"verified_at"`
	TemplateID           *int64            `json:"template_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// IsTemplate reports whether the chore drives recurrence generation.
func (c *Chore) IsTemplate() bool {
	return c.Recurring && c.RecurrencePattern != ""
}
