package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/choregate/internal/model"
)

func TestSpecsParse(t *testing.T) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	from := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC) // Tuesday
	tests := []struct {
		spec string
		next time.Time
	}{
		{RemindersSpec, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)},
		{OverdueSpec, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)},
		{RecurrenceSpec, time.Date(2026, 3, 16, 1, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		sched, err := parser.Parse(tt.spec)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.spec, err)
		}
		if got := sched.Next(from); !got.Equal(tt.next) {
			t.Errorf("%q next = %v, want %v", tt.spec, got, tt.next)
		}
	}
}

func TestRunNow(t *testing.T) {
	f := setup(t)
	s, err := New(f.sweeper, time.UTC, discardLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	f.createChore(t, f.sam, f.now.Add(-time.Hour), model.StatusPending)

	res, err := s.RunNow(context.Background(), JobOverdue)
	if err != nil {
		t.Fatalf("run overdue: %v", err)
	}
	if res.Acted != 1 {
		t.Errorf("acted = %d, want 1", res.Acted)
	}

	if _, err := s.RunNow(context.Background(), "laundry"); err == nil {
		t.Error("expected error for unknown sweep")
	}
}

func TestStartStop(t *testing.T) {
	f := setup(t)
	s, err := New(f.sweeper, time.UTC, discardLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if got := len(s.cron.Entries()); got != 3 {
		t.Errorf("entries = %d, want 3", got)
	}

	s.Start(context.Background())
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
