package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/store"
)

const (
	maxTitleLen       = 120
	maxDescriptionLen = 2000
)

// CreateTicketInput is the payload of CreateTicket. Deadline is a
// YYYY-MM-DD date or empty.
type CreateTicketInput struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Type        string `json:"type"`
	AssigneeID  string `json:"assignee_id"`
	Deadline    string `json:"deadline"`
	Estimate    *int   `json:"estimate"`
}

// UpdateTicketInput is a patch: nil fields stay unchanged. An empty
// AssigneeID or Deadline clears the field.
type UpdateTicketInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Type        *string `json:"type,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Estimate    *int    `json:"estimate,omitempty"`
}

// TicketResult is a ticket after a write, with the timers the write
// stopped.
type TicketResult struct {
	Ticket        *models.Ticket   `json:"ticket"`
	Changed       bool             `json:"changed"`
	StoppedTimers []models.TimeLog `json:"stopped_timers,omitempty"`
}

// CreateTicket validates in and appends the new ticket to the end of its
// status column.
func (s *Service) CreateTicket(ctx context.Context, actor string, in CreateTicketInput) (*models.Ticket, error) {
	project, err := s.viewableProject(ctx, actor, in.ProjectID)
	if err != nil {
		return nil, storeErr(err)
	}

	now := s.now()
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	status, err := models.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	typ, err := models.ParseTicketType(in.Type)
	if err != nil {
		return nil, err
	}
	if err := validateEstimate(in.Estimate); err != nil {
		return nil, err
	}
	deadline, err := parseDeadline(in.Deadline)
	if err != nil {
		return nil, err
	}
	if deadline != nil && deadline.Before(models.Day(now)) {
		return nil, models.Invalid("deadline", "deadline must be today or later")
	}
	if err := s.checkAssignee(ctx, project.ID, in.AssigneeID); err != nil {
		return nil, err
	}

	t := &models.Ticket{
		ID:          uuid.New().String(),
		ProjectID:   project.ID,
		Title:       title,
		Description: in.Description,
		CreatedBy:   actor,
		AssigneeID:  in.AssigneeID,
		Deadline:    deadline,
		Priority:    priority,
		Type:        typ,
		Estimate:    copyInt(in.Estimate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// A new ticket enters its first column through the same policy as a move.
	if _, err := ApplyTransition(t, status, now); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		pos, err := tx.MaxPosition(ctx, t.ProjectID, t.Status)
		if err != nil {
			return err
		}
		t.Position = pos + 1
		return tx.InsertTicket(ctx, t)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info("ticket created", "ticket", t.ID, "project", t.ProjectID, "status", t.Status, "actor", actor)
	s.emit(ctx, models.EventCreated, "New ticket created: "+t.Title, actor, t, now)
	return t, nil
}

// GetTicket returns a ticket the actor may view.
func (s *Service) GetTicket(ctx context.Context, actor, ticketID string) (*models.Ticket, error) {
	t, err := s.viewableTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, storeErr(err)
	}
	return t, nil
}

// UpdateTicket applies a patch as the ticket's creator. The status
// transition, its timestamps, the column position and any timer stops
// commit together or not at all.
func (s *Service) UpdateTicket(ctx context.Context, actor, ticketID string, in UpdateTicketInput) (*TicketResult, error) {
	existing, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err)
	}
	if existing == nil {
		return nil, notFound("ticket", ticketID)
	}
	if !s.authz.CanUpdateTicket(actor, existing) {
		return nil, forbidden("update ticket")
	}

	p, err := parsePatch(in)
	if err != nil {
		return nil, err
	}
	if in.AssigneeID != nil {
		if err := s.checkAssignee(ctx, existing.ProjectID, *in.AssigneeID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var before models.Ticket
	var result TicketResult

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		t, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if t == nil {
			return notFound("ticket", ticketID)
		}
		before = *t

		p.apply(t)

		if p.status != nil {
			tr, err := ApplyTransition(t, *p.status, now)
			if err != nil {
				return err
			}
			if tr.Changed {
				pos, err := tx.MaxPosition(ctx, t.ProjectID, t.Status)
				if err != nil {
					return err
				}
				t.Position = pos + 1
			}
			if tr.StopTimers {
				stopped, err := stopTicketTimers(ctx, tx, t.ID, now)
				if err != nil {
					return err
				}
				result.StoppedTimers = stopped
			}
		}

		result.Ticket = t
		if !ticketChanged(&before, t) {
			return nil
		}
		result.Changed = true
		t.UpdatedAt = now
		return tx.UpdateTicket(ctx, t)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if !result.Changed {
		return &result, nil
	}

	t := result.Ticket
	s.logger.Info("ticket updated", "ticket", t.ID, "status", t.Status, "position", t.Position,
		"stopped_timers", len(result.StoppedTimers), "actor", actor)

	switch {
	case before.AssigneeID != t.AssigneeID:
		s.emit(ctx, models.EventAssigned, "Ticket assignment changed: "+t.Title, actor, t, now)
	case before.Status != t.Status || before.Position != t.Position:
		s.emit(ctx, models.EventMoved, "Ticket moved: "+t.Title, actor, t, now)
	default:
		s.emit(ctx, models.EventUpdated, "Ticket updated: "+t.Title, actor, t, now)
	}
	return &result, nil
}

// MoveTicket changes only the status of a ticket.
func (s *Service) MoveTicket(ctx context.Context, actor, ticketID, status string) (*TicketResult, error) {
	return s.UpdateTicket(ctx, actor, ticketID, UpdateTicketInput{Status: &status})
}

// DeleteTicket removes a ticket and its time logs as the ticket's creator.
func (s *Service) DeleteTicket(ctx context.Context, actor, ticketID string) error {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return storeErr(err)
	}
	if t == nil {
		return notFound("ticket", ticketID)
	}
	if !s.authz.CanDeleteTicket(actor, t) {
		return forbidden("delete ticket")
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteTicket(ctx, ticketID)
	})
	if err != nil {
		return storeErr(err)
	}

	now := s.now()
	s.logger.Info("ticket deleted", "ticket", t.ID, "project", t.ProjectID, "actor", actor)
	s.emit(ctx, models.EventDeleted, "Ticket deleted: "+t.Title, actor, t, now)
	return nil
}

// checkAssignee rejects an assignee who is neither owner nor member.
func (s *Service) checkAssignee(ctx context.Context, projectID, assignee string) error {
	if assignee == "" {
		return nil
	}
	ok, err := s.members.IsParticipant(ctx, projectID, assignee)
	if err != nil {
		return fmt.Errorf("check assignee membership: %w", err)
	}
	if !ok {
		return models.NewError(models.CodeAssigneeNotAllowed, "assignee_id", models.ErrAssigneeNotAllowed)
	}
	return nil
}

// patch is a validated UpdateTicketInput.
type patch struct {
	title       *string
	description *string
	status      *models.Status
	priority    *models.Priority
	typ         *models.TicketType
	assignee    *string
	deadline    **time.Time
	estimate    *int
}

func parsePatch(in UpdateTicketInput) (*patch, error) {
	p := &patch{description: in.Description, assignee: in.AssigneeID}

	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		p.title = &title
	}
	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		st, err := models.ParseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		p.status = &st
	}
	if in.Priority != nil {
		pr, err := models.ParsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		p.priority = &pr
	}
	if in.Type != nil {
		typ, err := models.ParseTicketType(*in.Type)
		if err != nil {
			return nil, err
		}
		p.typ = &typ
	}
	if in.Deadline != nil {
		d, err := parseDeadline(*in.Deadline)
		if err != nil {
			return nil, err
		}
		p.deadline = &d
	}
	if in.Estimate != nil {
		if err := validateEstimate(in.Estimate); err != nil {
			return nil, err
		}
		p.estimate = copyInt(in.Estimate)
	}
	return p, nil
}

// apply sets every field except status, which goes through ApplyTransition.
func (p *patch) apply(t *models.Ticket) {
	if p.title != nil {
		t.Title = *p.title
	}
	if p.description != nil {
		t.Description = *p.description
	}
	if p.priority != nil {
		t.Priority = *p.priority
	}
	if p.typ != nil {
		t.Type = *p.typ
	}
	if p.assignee != nil {
		t.AssigneeID = *p.assignee
	}
	if p.deadline != nil {
		t.Deadline = *p.deadline
	}
	if p.estimate != nil {
		t.Estimate = p.estimate
	}
}

func ticketChanged(a, b *models.Ticket) bool {
	return a.Title != b.Title ||
		a.Description != b.Description ||
		a.Status != b.Status ||
		a.Position != b.Position ||
		a.AssigneeID != b.AssigneeID ||
		a.Priority != b.Priority ||
		a.Type != b.Type ||
		!equalTime(a.Deadline, b.Deadline) ||
		!equalInt(a.Estimate, b.Estimate) ||
		!equalTime(a.StartedAt, b.StartedAt) ||
		!equalTime(a.CompletedAt, b.CompletedAt)
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", models.Invalid("title", "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", models.Invalid("title", fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	return title, nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return models.Invalid("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}
	return nil
}

func validateEstimate(est *int) error {
	if est != nil && *est < 0 {
		return models.Invalid("estimate", "estimate must not be negative")
	}
	return nil
}

func parseDeadline(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, models.Invalid("deadline", "deadline must be a YYYY-MM-DD date")
	}
	return &d, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
