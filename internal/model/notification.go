package model

import "time"

type NotificationType string

const (
	TypeReminder     NotificationType = "reminder"
	TypeCompletion   NotificationType = "completion"
	TypeVerification NotificationType = "verification"
	TypeSystem       NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case TypeReminder, TypeCompletion, TypeVerification, TypeSystem:
		return true
	}
	return false
}

type DeliveryMethod string

const (
	DeliveryApp   DeliveryMethod = "app"
	DeliveryEmail DeliveryMethod = "email"
	DeliveryBoth  DeliveryMethod = "both"
)

func (d DeliveryMethod) Valid() bool {
	return d == DeliveryApp || d == DeliveryEmail || d == DeliveryBoth
}

func (d DeliveryMethod) IncludesEmail() bool {
	return d == DeliveryEmail || d == DeliveryBoth
}

type Notification struct {
	ID             int64            `json:"id"`
	UserID         int64            `json:"user_id"`
	ChoreID        *int64           `json:"chore_id"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Type           NotificationType `json:"type"`
	DeliveryMethod DeliveryMethod   `json:"delivery_method"`
	IsRead         bool             `json:"is_read"`
	ScheduledFor   time.Time        `json:"scheduled_for"`
	SentAt         *time.Time       `json:"sent_at"`
	DedupKey       string           `json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
}
