// Package models defines the core domain types for Kaneboard.
package models

import "time"

// Ticket is a unit of work on a project's kanban board.
type Ticket struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Position    int        `json:"position"`
	CreatedBy   string     `json:"created_by"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"` // date only
	Priority    Priority   `json:"priority"`
	Type        TicketType `json:"type"`
	Estimate    *int       `json:"estimate,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsOverdue reports whether the deadline lies strictly before today and
// the ticket is not finished.
func (t *Ticket) IsOverdue(today time.Time) bool {
	if t.Deadline == nil || t.Status.IsDoneLike() {
		return false
	}
	return Day(*t.Deadline).Before(Day(today))
}

// TimeLog is one time-tracking session of a user on a ticket.
// A nil EndedAt means the session is still running.
type TimeLog struct {
	ID              string     `json:"id"`
	TicketID        string     `json:"ticket_id"`
	UserID          string     `json:"user_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	Note            string     `json:"note,omitempty"`
}

// IsRunning reports whether the session has not been ended yet.
func (l *TimeLog) IsRunning() bool {
	return l.EndedAt == nil
}

// Seconds returns the tracked seconds of the log at instant now. Ended
// logs use the stored duration when present and fall back to
// ended_at - started_at; running logs contribute the elapsed time so far.
// The result is never negative.
func (l *TimeLog) Seconds(now time.Time) int64 {
	var secs int64
	switch {
	case l.EndedAt == nil:
		secs = ElapsedSeconds(l.StartedAt, now)
	case l.DurationSeconds != nil:
		secs = *l.DurationSeconds
	default:
		secs = ElapsedSeconds(l.StartedAt, *l.EndedAt)
	}
	if secs < 0 {
		return 0
	}
	return secs
}

// TrackedSeconds sums Seconds over logs at instant now.
func TrackedSeconds(logs []TimeLog, now time.Time) int64 {
	var total int64
	for i := range logs {
		total += logs[i].Seconds(now)
	}
	return total
}

// ElapsedSeconds returns whole seconds from start to end, clamped at zero
// so clock skew never produces a negative duration.
func ElapsedSeconds(start, end time.Time) int64 {
	secs := end.Unix() - start.Unix()
	if secs < 0 {
		return 0
	}
	return secs
}

// Project groups tickets under a schedule.
type Project struct {
	ID                string     `json:"id"`
	WorkspaceID       string     `json:"workspace_id,omitempty"`
	Name              string     `json:"name"`
	OwnerID           string     `json:"owner_id"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	BaselineStartDate *time.Time `json:"baseline_start_date,omitempty"`
	BaselineEndDate   *time.Time `json:"baseline_end_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// UserTime is the tracked time of one user within a project.
type UserTime struct {
	UserID  string `json:"user_id"`
	Seconds int64  `json:"seconds"`
}

// TicketStats is the aggregate view of a project's tickets used by the
// health calculator.
type TicketStats struct {
	Total       int `json:"total"`
	Done        int `json:"done"`
	Open        int `json:"open"`
	Overdue     int `json:"overdue"`
	DueSoon     int `json:"due_soon"`
	TotalPoints int `json:"-"`
	DonePoints  int `json:"-"`
	// CreatedSinceBaseline counts tickets created on or after the
	// project's baseline start date.
	CreatedSinceBaseline int `json:"-"`
}

// EventAction names a ticket mutation.
type EventAction string

const (
	EventCreated  EventAction = "created"
	EventUpdated  EventAction = "updated"
	EventMoved    EventAction = "moved"
	EventAssigned EventAction = "assigned"
	EventDeleted  EventAction = "deleted"
)

// Event is the domain event emitted after every ticket mutation.
type Event struct {
	ID         string      `json:"id"`
	Action     EventAction `json:"action"`
	Message    string      `json:"message"`
	ActorID    string      `json:"actor"`
	ProjectRef string      `json:"project_ref"`
	TicketRef  string      `json:"ticket_ref"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b (negative when
// b is before a), comparing calendar days.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// DateLayout is the wire and storage format of date-only fields.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
