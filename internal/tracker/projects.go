package tracker

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kaneboard/kaneboard/internal/models"
)

// CreateProjectInput is the payload of CreateProject. Dates are
// YYYY-MM-DD or empty.
type CreateProjectInput struct {
	WorkspaceID       string `json:"workspace_id"`
	Name              string `json:"name"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	BaselineStartDate string `json:"baseline_start_date"`
	BaselineEndDate   string `json:"baseline_end_date"`
}

// CreateProject creates a project owned by actor.
func (s *Service) CreateProject(ctx context.Context, actor string, in CreateProjectInput) (*models.Project, error) {
	if actor == "" {
		return nil, forbidden("create project")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.Invalid("name", "name is required")
	}
	if utf8.RuneCountInString(name) > maxTitleLen {
		return nil, models.Invalid("name", "name is too long")
	}

	p := &models.Project{
		ID:          uuid.New().String(),
		WorkspaceID: in.WorkspaceID,
		Name:        name,
		OwnerID:     actor,
		CreatedAt:   s.now(),
	}
	dates := []struct {
		field string
		raw   string
		dst   **time.Time
	}{
		{"start_date", in.StartDate, &p.StartDate},
		{"end_date", in.EndDate, &p.EndDate},
		{"baseline_start_date", in.BaselineStartDate, &p.BaselineStartDate},
		{"baseline_end_date", in.BaselineEndDate, &p.BaselineEndDate},
	}
	for _, d := range dates {
		if d.raw == "" {
			continue
		}
		v, err := models.ParseDate(d.raw)
		if err != nil {
			return nil, models.Invalid(d.field, d.field+" must be a YYYY-MM-DD date")
		}
		*d.dst = &v
	}

	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, storeErr(err)
	}
	s.logger.Info("project created", "project", p.ID, "owner", actor)
	return p, nil
}

// GetProject returns a project the actor may view.
func (s *Service) GetProject(ctx context.Context, actor, projectID string) (*models.Project, error) {
	p, err := s.viewableProject(ctx, actor, projectID)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// ListProjects returns every project the actor owns or belongs to.
func (s *Service) ListProjects(ctx context.Context, actor string) ([]models.Project, error) {
	return s.store.ListProjectsForUser(ctx, actor)
}

// AddMember adds userID to a project owned by actor.
func (s *Service) AddMember(ctx context.Context, actor, projectID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.Invalid("user_id", "user_id is required")
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return storeErr(err)
	}
	if p == nil {
		return notFound("project", projectID)
	}
	if !s.authz.CanManageMembers(actor, p) {
		return forbidden("manage members")
	}
	if err := s.store.AddProjectMember(ctx, projectID, userID, s.now()); err != nil {
		return storeErr(err)
	}
	s.logger.Info("project member added", "project", projectID, "member", userID, "actor", actor)
	return nil
}

// ProjectTime is a project's tracked time at a given instant.
type ProjectTime struct {
	ProjectID    string            `json:"project_id"`
	TotalSeconds int64             `json:"total_seconds"`
	ByUser       []models.UserTime `json:"by_user"`
	At           time.Time         `json:"at"`
}

// ProjectTime returns the project's tracked total and its ranking of
// contributors.
func (s *Service) ProjectTime(ctx context.Context, actor, projectID string) (*ProjectTime, error) {
	if _, err := s.viewableProject(ctx, actor, projectID); err != nil {
		return nil, storeErr(err)
	}
	now := s.now()

	total, err := s.store.ProjectTrackedSeconds(ctx, projectID, now)
	if err != nil {
		return nil, err
	}
	byUser, err := s.store.ProjectTrackedByUser(ctx, projectID, now)
	if err != nil {
		return nil, err
	}
	return &ProjectTime{ProjectID: projectID, TotalSeconds: total, ByUser: byUser, At: now}, nil
}

// Activity lists the project's most recent ticket events.
func (s *Service) Activity(ctx context.Context, actor, projectID string, limit int) ([]models.Event, error) {
	if _, err := s.viewableProject(ctx, actor, projectID); err != nil {
		return nil, storeErr(err)
	}
	return s.store.ListEvents(ctx, projectID, limit)
}

// BoardTicket is a ticket as shown on the board.
type BoardTicket struct {
	models.Ticket
	TrackedSeconds int64 `json:"tracked_seconds"`
	Overdue        bool  `json:"is_overdue"`
}

// BoardColumn holds the tickets of one status, ordered by position.
type BoardColumn struct {
	Status  models.Status `json:"status"`
	Tickets []BoardTicket `json:"tickets"`
}

// Board is a project's kanban board.
type Board struct {
	Project *models.Project `json:"project"`
	Columns []BoardColumn   `json:"columns"`
	At      time.Time       `json:"at"`
}

// Board returns every column of the project in status order.
func (s *Service) Board(ctx context.Context, actor, projectID string) (*Board, error) {
	p, err := s.viewableProject(ctx, actor, projectID)
	if err != nil {
		return nil, storeErr(err)
	}
	now := s.now()

	tickets, err := s.store.ListTicketsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tracked, err := s.store.TrackedSecondsByTicket(ctx, projectID, now)
	if err != nil {
		return nil, err
	}

	board := &Board{Project: p, At: now}
	index := make(map[models.Status]int, len(models.Statuses))
	for i, st := range models.Statuses {
		index[st] = i
		board.Columns = append(board.Columns, BoardColumn{Status: st, Tickets: []BoardTicket{}})
	}
	for _, t := range tickets {
		i, ok := index[t.Status]
		if !ok {
			continue
		}
		board.Columns[i].Tickets = append(board.Columns[i].Tickets, BoardTicket{
			Ticket:         t,
			TrackedSeconds: tracked[t.ID],
			Overdue:        t.IsOverdue(now),
		})
	}
	return board, nil
}
