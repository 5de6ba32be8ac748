package models

import (
	"errors"
	"testing"
	"time"
)

func TestStatusSets(t *testing.T) {
	tests := []struct {
		status   Status
		started  bool
		doneLike bool
	}{
		{StatusBacklog, false, false},
		{StatusTodo, false, false},
		{StatusInProgress, true, false},
		{StatusDone, false, true},
		{StatusTested, false, true},
		{StatusCompleted, false, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsStarted(); got != tt.started {
			t.Errorf("%s.IsStarted() = %v, want %v", tt.status, got, tt.started)
		}
		if got := tt.status.IsDoneLike(); got != tt.doneLike {
			t.Errorf("%s.IsDoneLike() = %v, want %v", tt.status, got, tt.doneLike)
		}
		if !tt.status.Valid() {
			t.Errorf("%s should be valid", tt.status)
		}
	}

	if Status("archived").Valid() {
		t.Error("unknown status should not be valid")
	}
	if StatusDone.Index() != 3 {
		t.Errorf("Expected done at index 3, got %d", StatusDone.Index())
	}
}

func TestParseStatusAndPriority(t *testing.T) {
	if _, err := ParseStatus("nope"); CodeOf(err) != CodeInvalidStatus {
		t.Errorf("Expected INVALID_STATUS, got %v", err)
	}
	if !errors.Is(func() error { _, err := ParseStatus("nope"); return err }(), ErrInvalidStatus) {
		t.Error("Expected error to wrap ErrInvalidStatus")
	}

	p, err := ParsePriority("")
	if err != nil || p != PriorityLow {
		t.Errorf("Expected empty priority to default to low, got %q, %v", p, err)
	}
	if _, err := ParsePriority("urgent"); CodeOf(err) != CodeInvalidPriority {
		t.Errorf("Expected INVALID_PRIORITY, got %v", err)
	}
	if _, err := ParseTicketType("epic"); CodeOf(err) != CodeInvalidInput {
		t.Errorf("Expected INVALID_INPUT for ticket type, got %v", err)
	}
}

func TestTimeLogSeconds(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Minute)
	end := start.Add(30 * time.Minute)
	override := int64(600)

	running := TimeLog{StartedAt: start}
	if got := running.Seconds(now); got != 5400 {
		t.Errorf("running log: expected 5400, got %d", got)
	}

	derived := TimeLog{StartedAt: start, EndedAt: &end}
	if got := derived.Seconds(now); got != 1800 {
		t.Errorf("ended log without duration: expected 1800, got %d", got)
	}

	stored := TimeLog{StartedAt: start, EndedAt: &end, DurationSeconds: &override}
	if got := stored.Seconds(now); got != 600 {
		t.Errorf("ended log with duration: expected 600, got %d", got)
	}

	// A start in the future (clock skew) never yields negative time.
	skewed := TimeLog{StartedAt: now.Add(time.Minute)}
	if got := skewed.Seconds(now); got != 0 {
		t.Errorf("skewed log: expected 0, got %d", got)
	}

	if got := TrackedSeconds([]TimeLog{running, derived, stored, skewed}, now); got != 7800 {
		t.Errorf("Expected total 7800, got %d", got)
	}
}

func TestTicketIsOverdue(t *testing.T) {
	today := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	sameDay := Day(today)

	ticket := Ticket{Status: StatusTodo, Deadline: &yesterday}
	if !ticket.IsOverdue(today) {
		t.Error("Expected ticket with past deadline to be overdue")
	}

	ticket.Deadline = &sameDay
	if ticket.IsOverdue(today) {
		t.Error("Deadline today should not be overdue")
	}

	ticket.Deadline = &yesterday
	ticket.Status = StatusTested
	if ticket.IsOverdue(today) {
		t.Error("Done-like tickets are never overdue")
	}

	ticket.Deadline = nil
	ticket.Status = StatusTodo
	if ticket.IsOverdue(today) {
		t.Error("Ticket without deadline is never overdue")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 3, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 2 {
		t.Errorf("Expected 2 days, got %d", got)
	}
	if got := DaysBetween(b, a); got != -2 {
		t.Errorf("Expected -2 days, got %d", got)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NewError(CodeNoRunningTimer, "", ErrNoRunningTimer)
	if err.Kind() != KindSoft {
		t.Errorf("Expected soft kind, got %s", err.Kind())
	}
	if !errors.Is(err, ErrNoRunningTimer) {
		t.Error("Expected Error to unwrap to its sentinel")
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Error("Untyped errors should map to INTERNAL")
	}
	if KindOf(CodeAssigneeNotAllowed) != KindBusiness {
		t.Error("Expected ASSIGNEE_NOT_ALLOWED to be a business error")
	}
}
