// Package tracker implements the ticket lifecycle engine and the timer
// arbitrator on top of the store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaneboard/kaneboard/internal/clock"
	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/store"
)

// Authorizer decides what an actor may do.
type Authorizer interface {
	CanViewProject(ctx context.Context, userID, projectID string) (bool, error)
	CanUpdateTicket(userID string, t *models.Ticket) bool
	CanDeleteTicket(userID string, t *models.Ticket) bool
	CanManageMembers(userID string, p *models.Project) bool
	CanEditTimeLog(userID string, l *models.TimeLog, p *models.Project) bool
}

// Membership answers whether a user owns or belongs to a project.
type Membership interface {
	IsParticipant(ctx context.Context, projectID, candidate string) (bool, error)
}

// EventSink receives ticket events after their mutation has committed.
type EventSink interface {
	Record(ctx context.Context, ev models.Event) (*models.Event, error)
}

// Service is the write path for projects, tickets and timers. Every
// operation takes the acting user explicitly.
type Service struct {
	store   *store.Store
	authz   Authorizer
	members Membership
	events  EventSink
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a Service. events may be nil.
func New(s *store.Store, authz Authorizer, members Membership, events EventSink, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   s,
		authz:   authz,
		members: members,
		events:  events,
		clock:   clk,
		logger:  logger,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}

func notFound(what, id string) error {
	return models.NewError(models.CodeNotFound, "", fmt.Errorf("%s %s: %w", what, id, models.ErrNotFound))
}

func forbidden(action string) error {
	return models.NewError(models.CodeForbidden, "", fmt.Errorf("%w: %s", models.ErrForbidden, action))
}

// storeErr maps storage failures onto the error taxonomy. Typed errors
// raised inside a transaction pass through unchanged.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var typed *models.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, store.ErrConflict) {
		return models.NewError(models.CodeRetry, "", fmt.Errorf("%w: %v", models.ErrRetry, err))
	}
	if errors.Is(err, models.ErrNotFound) {
		return models.NewError(models.CodeNotFound, "", err)
	}
	return err
}

// viewableProject loads a project the actor may view.
func (s *Service) viewableProject(ctx context.Context, actor, projectID string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("project", projectID)
	}
	ok, err := s.authz.CanViewProject(ctx, actor, projectID)
	if err != nil {
		return nil, fmt.Errorf("authorize project view: %w", err)
	}
	if !ok {
		return nil, forbidden("view project")
	}
	return p, nil
}

// viewableTicket loads a ticket whose project the actor may view.
func (s *Service) viewableTicket(ctx context.Context, actor, ticketID string) (*models.Ticket, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, notFound("ticket", ticketID)
	}
	ok, err := s.authz.CanViewProject(ctx, actor, t.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("authorize project view: %w", err)
	}
	if !ok {
		return nil, forbidden("view ticket")
	}
	return t, nil
}

func (s *Service) emit(ctx context.Context, action models.EventAction, message, actor string, t *models.Ticket, at time.Time) {
	if s.events == nil {
		return
	}
	ev := models.Event{
		Action:     action,
		Message:    message,
		ActorID:    actor,
		ProjectRef: t.ProjectID,
		TicketRef:  t.ID,
		CreatedAt:  at,
	}
	if _, err := s.events.Record(ctx, ev); err != nil {
		s.logger.Warn("record ticket event failed",
			"action", action, "ticket", t.ID, "error", err)
	}
}
