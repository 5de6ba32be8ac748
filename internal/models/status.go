package models

import "fmt"

// Status is a ticket's kanban column.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusTested     Status = "tested"
	StatusCompleted  Status = "completed"
)

// Statuses is the fixed, ordered column set of every board.
var Statuses = []Status{
	StatusBacklog,
	StatusTodo,
	StatusInProgress,
	StatusDone,
	StatusTested,
	StatusCompleted,
}

// StartedStatuses mark work as begun; DoneStatuses mark work as finished.
var (
	StartedStatuses = []Status{StatusInProgress}
	DoneStatuses    = []Status{StatusDone, StatusTested, StatusCompleted}
)

// Valid reports whether s belongs to the fixed status set.
func (s Status) Valid() bool {
	return containsStatus(Statuses, s)
}

// IsStarted reports whether s is a "started" status.
func (s Status) IsStarted() bool {
	return containsStatus(StartedStatuses, s)
}

// IsDoneLike reports whether s counts as finished work.
func (s Status) IsDoneLike() bool {
	return containsStatus(DoneStatuses, s)
}

// Trackable reports whether timers may run on a ticket in status s.
func (s Status) Trackable() bool {
	return s == StatusInProgress
}

// Index returns the column index of s, or -1.
func (s Status) Index() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", NewError(CodeInvalidStatus, "status", fmt.Errorf("%w: %q", ErrInvalidStatus, raw))
	}
	return s, nil
}

func containsStatus(set []Status, s Status) bool {
	for _, st := range set {
		if st == s {
			return true
		}
	}
	return false
}

// Priority ranks tickets.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the valid priorities.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority validates a raw priority. The empty string maps to low.
func ParsePriority(raw string) (Priority, error) {
	if raw == "" {
		return PriorityLow, nil
	}
	for _, p := range Priorities {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", NewError(CodeInvalidPriority, "priority", fmt.Errorf("%w: %q", ErrInvalidPriority, raw))
}

// TicketType classifies tickets.
type TicketType string

const (
	TypeBug         TicketType = "bug"
	TypeFeature     TicketType = "feature"
	TypeImprovement TicketType = "improvement"
)

// TicketTypes lists the valid ticket types.
var TicketTypes = []TicketType{TypeBug, TypeFeature, TypeImprovement}

// Label returns the display name of the type.
func (t TicketType) Label() string {
	switch t {
	case TypeBug:
		return "Bug"
	case TypeFeature:
		return "Feature"
	case TypeImprovement:
		return "Improvement"
	}
	return string(t)
}

// ParseTicketType validates a raw ticket type.
func ParseTicketType(raw string) (TicketType, error) {
	for _, t := range TicketTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", NewError(CodeInvalidInput, "type", fmt.Errorf("invalid ticket type %q", raw))
}
