// Package recurrence decides when a recurring chore template is due again
// and spawns the new instances.
package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/choregate/internal/model"
)

// Matches reports whether tmpl should spawn an instance on the calendar day
// containing today. Weekdays and days of month are read in today's location.
func Matches(tmpl *model.Chore, today time.Time) bool {
	due := tmpl.DueDate.In(today.Location())
	switch tmpl.RecurrencePattern {
	case model.PatternDaily:
		return true
	case model.PatternWeekly:
		return today.Weekday() == due.Weekday()
	case model.PatternMonthly:
		return today.Day() == due.Day()
	case model.PatternCustom:
		cr := tmpl.CustomRecurrence
		if cr == nil {
			return false
		}
		return slices.Contains(cr.DaysOfWeek, int(today.Weekday())) ||
			slices.Contains(cr.DaysOfMonth, today.Day())
	}
	return false
}

// NextDueDate anchors the template's time of day to now's date and steps it
// forward by one period: a day for daily and custom, a week for weekly and a
// calendar month for monthly.
func NextDueDate(tmpl *model.Chore, now time.Time) time.Time {
	due := tmpl.DueDate.In(now.Location())
	anchor := time.Date(now.Year(), now.Month(), now.Day(),
		due.Hour(), due.Minute(), due.Second(), 0, now.Location())

	switch tmpl.RecurrencePattern {
	case model.PatternWeekly:
		return anchor.AddDate(0, 0, 7)
	case model.PatternMonthly:
		return anchor.AddDate(0, 1, 0)
	default:
		return anchor.AddDate(0, 0, 1)
	}
}

// Describe returns a human-readable summary of a chore's recurrence.
func Describe(c *model.Chore) string {
	if !c.Recurring {
		return ""
	}
	switch c.RecurrencePattern {
	case model.PatternDaily:
		return "Repeats daily"
	case model.PatternWeekly:
		return "Repeats weekly on " + c.DueDate.Weekday().String()[:3]
	case model.PatternMonthly:
		return fmt.Sprintf("Repeats monthly on day %d", c.DueDate.Day())
	case model.PatternCustom:
		if c.CustomRecurrence == nil {
			return ""
		}
		var parts []string
		if days := c.CustomRecurrence.DaysOfWeek; len(days) > 0 {
			var names []string
			for _, d := range days {
				names = append(names, time.Weekday(d).String()[:3])
			}
			parts = append(parts, strings.Join(names, ", "))
		}
		if days := c.CustomRecurrence.DaysOfMonth; len(days) > 0 {
			var nums []string
			for _, d := range days {
				nums = append(nums, fmt.Sprint(d))
			}
			parts = append(parts, "day "+strings.Join(nums, ", "))
		}
		return "Repeats on " + strings.Join(parts, " and ")
	}
	return ""
}
