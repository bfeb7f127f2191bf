package chore

import (
	"time"

	"github.com/dukerupert/choregate/internal/apperr"
	"github.com/dukerupert/choregate/internal/model"
)

// checkCompletable rejects completing a chore that is already completed.
// Pending and overdue chores may both be completed.
func checkCompletable(c *model.Chore) error {
	if c.Status == model.StatusCompleted {
		return apperr.InvalidState("chore %d is already completed", c.ID)
	}
	return nil
}

// checkVerifiable allows verification only for completed chores that
// require it and have not been verified yet.
func checkVerifiable(c *model.Chore) error {
	switch {
	case !c.RequiresVerification:
		return apperr.InvalidState("chore %d does not require verification", c.ID)
	case c.Status != model.StatusCompleted:
		return apperr.InvalidState("chore %d is not completed", c.ID)
	case c.VerifiedAt != nil:
		return apperr.InvalidState("chore %d is already verified", c.ID)
	}
	return nil
}

// IsOverdue reports whether a pending chore's due date has passed.
func IsOverdue(c *model.Chore, now time.Time) bool {
	return c.Status == model.StatusPending && c.DueDate.Before(now)
}

// AwaitingVerification reports whether a parent still has to review c.
func AwaitingVerification(c *model.Chore) bool {
	return checkVerifiable(c) == nil
}

// normalizeRecurrence clears recurrence fields that do not apply and
// validates the rest.
func normalizeRecurrence(c *model.Chore) error {
	if !c.Recurring {
		c.RecurrencePattern = ""
		c.CustomRecurrence = nil
		return nil
	}
	if !c.RecurrencePattern.Valid() {
		return apperr.Validation("recurring chores need a pattern of daily, weekly, monthly or custom")
	}
	if c.RecurrencePattern != model.PatternCustom {
		c.CustomRecurrence = nil
		return nil
	}
	cr := c.CustomRecurrence
	if cr == nil || cr.IsEmpty() {
		return apperr.Validation("custom recurrence needs at least one weekday or day of month")
	}
	for _, d := range cr.DaysOfWeek {
		if d < 0 || d > 6 {
			return apperr.Validation("day of week %d out of range 0-6", d)
		}
	}
	for _, d := range cr.DaysOfMonth {
		if d < 1 || d > 31 {
			return apperr.Validation("day of month %d out of range 1-31", d)
		}
	}
	return nil
}

// normalizeVerification drops completion and verification stamps that no
// longer match the chore's status and verification requirement.
func normalizeVerification(c *model.Chore) {
	if c.Status != model.StatusCompleted {
		c.CompletedAt = nil
	}
	if c.Status != model.StatusCompleted || !c.RequiresVerification {
		c.VerifiedBy = nil
		c.VerifiedAt = nil
	}
}

func validateChore(c *model.Chore) error {
	switch {
	case c.Title == "":
		return apperr.Validation("title is required")
	case c.DueDate.IsZero():
		return apperr.Validation("due date is required")
	case c.Points < 1:
		return apperr.Validation("points must be at least 1")
	case c.AssignedTo == 0:
		return apperr.Validation("assignee is required")
	}
	normalizeVerification(c)
	return normalizeRecurrence(c)
}
