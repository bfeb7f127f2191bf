package notify

import (
	"fmt"
	"strconv"

	"github.com/dukerupert/choregate/internal/model"
)

func system(userID int64, c *model.Chore, title, message string) Input {
	return Input{
		UserID:         userID,
		ChoreID:        &c.ID,
		Title:          title,
		Message:        message,
		Type:           model.TypeSystem,
		DeliveryMethod: model.DeliveryBoth,
	}
}

func ChoreAssigned(c *model.Chore) Input {
	return system(c.AssignedTo, c, "New Chore Assigned",
		fmt.Sprintf("You've been assigned a new chore: %s", c.Title))
}

func ChoreReassigned(c *model.Chore) Input {
	return system(c.AssignedTo, c, "Chore Assigned",
		fmt.Sprintf("You've been assigned a chore: %s", c.Title))
}

func AccessGranted(c *model.Chore) Input {
	return system(c.AssignedTo, c, "Internet Access Granted",
		"You have completed your chores and now have internet access!")
}

func VerificationNeeded(parentID int64, c *model.Chore, childName string) Input {
	in := system(parentID, c, "Chore Verification Needed",
		fmt.Sprintf("%s has completed the chore %q and needs verification.", childName, c.Title))
	in.Type = model.TypeVerification
	return in
}

func ChoreVerified(c *model.Chore) Input {
	return system(c.AssignedTo, c, "Chore Verified - Internet Access Granted",
		fmt.Sprintf("Your chore %q has been verified. You now have internet access!", c.Title))
}

func ChoreRejected(c *model.Chore) Input {
	return system(c.AssignedTo, c, "Chore Needs Improvement",
		fmt.Sprintf("Your chore %q was not verified. Please complete it properly.", c.Title))
}

func ChoreOverdue(c *model.Chore) Input {
	return system(c.AssignedTo, c, "Chore Overdue",
		fmt.Sprintf("Your chore %q is now overdue. Complete it as soon as possible.", c.Title))
}

func RecurringSpawned(c *model.Chore) Input {
	return system(c.AssignedTo, c, "New Recurring Chore",
		fmt.Sprintf("Your recurring chore %q has been added to your list.", c.Title))
}

// Reminder builds the email reminder sent hours before c is due. Each
// (chore, hours) pair is sent at most once.
func Reminder(c *model.Chore, hours int) Input {
	return Input{
		UserID:         c.AssignedTo,
		ChoreID:        &c.ID,
		Title:          "Upcoming Chore Reminder",
		Message:        fmt.Sprintf("Your chore %q is due in %d hours", c.Title, hours),
		Type:           model.TypeReminder,
		DeliveryMethod: model.DeliveryBoth,
		DedupKey:       ReminderKey(c.ID, hours),
	}
}

func ReminderKey(choreID int64, hours int) string {
	return "reminder:" + strconv.FormatInt(choreID, 10) + ":" + strconv.Itoa(hours)
}
