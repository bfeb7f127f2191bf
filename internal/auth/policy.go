package auth

import "github.com/dukerupert/choregate/internal/apperr"

// Op names an operation subject to the household role policy.
type Op string

const (
	OpChoreCreate        Op = "chore.create"
	OpChoreUpdate        Op = "chore.update"
	OpChoreDelete        Op = "chore.delete"
	OpChoreVerify        Op = "chore.verify"
	OpChoreComplete      Op = "chore.complete"
	OpChoreView          Op = "chore.view"
	OpNotificationCreate Op = "notification.create"
	OpNotificationRead   Op = "notification.mark_read"
	OpNotificationDelete Op = "notification.delete"
	OpAccessOverride     Op = "access.override"
	OpAccessViewAll      Op = "access.view_all"
)

// Resource describes what an operation touches. OwnerID is the chore's
// assignee or the notification's recipient.
type Resource struct {
	OwnerID int64
}

// Authorize returns a Forbidden error when actor may not perform op on res.
func Authorize(op Op, actor Actor, res Resource) error {
	owner := actor.UserID != 0 && actor.UserID == res.OwnerID

	var allowed bool
	switch op {
	case OpChoreCreate, OpChoreUpdate, OpChoreDelete, OpChoreVerify,
		OpNotificationCreate, OpAccessOverride, OpAccessViewAll:
		allowed = actor.IsParent()
	case OpChoreComplete, OpChoreView, OpNotificationDelete:
		allowed = actor.IsParent() || owner
	case OpNotificationRead:
		allowed = owner
	}

	if !allowed {
		return apperr.Forbidden("not authorized to %s", op)
	}
	return nil
}
