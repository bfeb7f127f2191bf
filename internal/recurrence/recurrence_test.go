package recurrence

import (
	"testing"
	"time"

	"github.com/dukerupert/choregate/internal/model"
)

func d(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func template(pattern model.RecurrencePattern, due time.Time) *model.Chore {
	return &model.Chore{Recurring: true, RecurrencePattern: pattern, DueDate: due}
}

func TestMatchesDaily(t *testing.T) {
	tmpl := template(model.PatternDaily, d(2026, 2, 2, 16))
	for day := 1; day <= 7; day++ {
		if !Matches(tmpl, d(2026, 3, day, 1)) {
			t.Errorf("daily should match Mar %d", day)
		}
	}
}

func TestMatchesWeekly(t *testing.T) {
	// Feb 2, 2026 is a Monday.
	tmpl := template(model.PatternWeekly, d(2026, 2, 2, 16))
	tests := []struct {
		today time.Time
		want  bool
	}{
		{d(2026, 2, 9, 1), true},
		{d(2026, 2, 16, 23), true},
		{d(2026, 2, 10, 1), false},
		{d(2026, 2, 8, 1), false},
	}
	for _, tt := range tests {
		if got := Matches(tmpl, tt.today); got != tt.want {
			t.Errorf("Matches(%s) = %v, want %v", tt.today.Format("Mon Jan 2"), got, tt.want)
		}
	}
}

func TestMatchesMonthly(t *testing.T) {
	tmpl := template(model.PatternMonthly, d(2026, 1, 15, 10))
	if !Matches(tmpl, d(2026, 4, 15, 1)) {
		t.Error("monthly should match the same day of month")
	}
	if Matches(tmpl, d(2026, 4, 14, 1)) {
		t.Error("monthly should not match a different day of month")
	}
}

func TestMatchesCustom(t *testing.T) {
	tmpl := template(model.PatternCustom, d(2026, 1, 1, 9))
	tmpl.CustomRecurrence = &model.CustomRecurrence{
		DaysOfWeek:  []int{int(time.Saturday)},
		DaysOfMonth: []int{1, 15},
	}
	tests := []struct {
		name  string
		today time.Time
		want  bool
	}{
		{"saturday", d(2026, 2, 7, 1), true},
		{"first of month", d(2026, 2, 1, 1), true},
		{"fifteenth on a sunday", d(2026, 2, 15, 1), true},
		{"plain tuesday", d(2026, 2, 10, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tmpl, tt.today); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}

	tmpl.CustomRecurrence = nil
	if Matches(tmpl, d(2026, 2, 7, 1)) {
		t.Error("custom pattern without days should never match")
	}
}

func TestMatchesUsesTodaysLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 03:00 UTC Tuesday is still Monday evening in New York.
	tmpl := template(model.PatternWeekly, time.Date(2026, 2, 3, 3, 0, 0, 0, time.UTC))
	if !Matches(tmpl, time.Date(2026, 2, 9, 12, 0, 0, 0, ny)) {
		t.Error("weekly template should match Monday in New York")
	}
}

func TestNextDueDate(t *testing.T) {
	now := time.Date(2026, 2, 9, 1, 0, 0, 0, time.UTC)
	due := time.Date(2026, 1, 5, 16, 30, 15, 0, time.UTC)
	tests := []struct {
		pattern model.RecurrencePattern
		want    time.Time
	}{
		{model.PatternDaily, time.Date(2026, 2, 10, 16, 30, 15, 0, time.UTC)},
		{model.PatternCustom, time.Date(2026, 2, 10, 16, 30, 15, 0, time.UTC)},
		{model.PatternWeekly, time.Date(2026, 2, 16, 16, 30, 15, 0, time.UTC)},
		{model.PatternMonthly, time.Date(2026, 3, 9, 16, 30, 15, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.pattern), func(t *testing.T) {
			got := NextDueDate(template(tt.pattern, due), now)
			if !got.Equal(tt.want) {
				t.Errorf("NextDueDate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextDueDateMonthlyOverflow(t *testing.T) {
	// AddDate normalizes Feb 31 to Mar 3.
	got := NextDueDate(template(model.PatternMonthly, d(2026, 1, 31, 8)), d(2026, 1, 31, 1))
	if want := d(2026, 3, 3, 8); !got.Equal(want) {
		t.Errorf("NextDueDate = %v, want %v", got, want)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		chore *model.Chore
		want  string
	}{
		{&model.Chore{}, ""},
		{template(model.PatternDaily, d(2026, 2, 2, 9)), "Repeats daily"},
		{template(model.PatternWeekly, d(2026, 2, 2, 9)), "Repeats weekly on Mon"},
		{template(model.PatternMonthly, d(2026, 2, 14, 9)), "Repeats monthly on day 14"},
		{&model.Chore{Recurring: true, RecurrencePattern: model.PatternCustom,
			CustomRecurrence: &model.CustomRecurrence{DaysOfWeek: []int{2, 4}, DaysOfMonth: []int{1}}},
			"Repeats on Tue, Thu and day 1"},
	}
	for _, tt := range tests {
		if got := Describe(tt.chore); got != tt.want {
			t.Errorf("Describe(%q) = %q, want %q", tt.chore.RecurrencePattern, got, tt.want)
		}
	}
}
