package tracker

import (
	"context"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

// MaxLogSeconds bounds a corrected duration to one year.
const MaxLogSeconds = 366 * 24 * 60 * 60

// editableLog loads a time log the actor may correct.
func (s *Service) editableLog(ctx context.Context, actor, logID string) (*models.TimeLog, error) {
	l, err := s.store.GetTimeLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, notFound("time log", logID)
	}

	var project *models.Project
	t, err := s.store.GetTicket(ctx, l.TicketID)
	if err != nil {
		return nil, err
	}
	if t != nil {
		if project, err = s.store.GetProject(ctx, t.ProjectID); err != nil {
			return nil, err
		}
	}
	if !s.authz.CanEditTimeLog(actor, l, project) {
		return nil, forbidden("edit time log")
	}
	return l, nil
}

// SetLogDuration overrides a log's duration and moves its end to
// started_at + seconds. A running log becomes ended.
func (s *Service) SetLogDuration(ctx context.Context, actor, logID string, seconds int64) (*models.TimeLog, error) {
	if seconds < 0 {
		return nil, models.Invalid("duration_seconds", "duration must not be negative")
	}
	if seconds > MaxLogSeconds {
		return nil, models.Invalid("duration_seconds", "duration must be at most one year")
	}
	l, err := s.editableLog(ctx, actor, logID)
	if err != nil {
		return nil, storeErr(err)
	}

	ended := time.Unix(l.StartedAt.Unix()+seconds, 0).UTC()
	if err := s.store.SetTimeLogDuration(ctx, l.ID, ended, seconds); err != nil {
		return nil, storeErr(err)
	}
	l.EndedAt = &ended
	l.DurationSeconds = &seconds

	s.logger.Info("time log corrected", "log", l.ID, "ticket", l.TicketID, "seconds", seconds, "actor", actor)
	return l, nil
}

// DeleteLog removes a time log.
func (s *Service) DeleteLog(ctx context.Context, actor, logID string) error {
	l, err := s.editableLog(ctx, actor, logID)
	if err != nil {
		return storeErr(err)
	}
	if err := s.store.DeleteTimeLog(ctx, l.ID); err != nil {
		return storeErr(err)
	}
	s.logger.Info("time log deleted", "log", l.ID, "ticket", l.TicketID, "actor", actor)
	return nil
}

// TicketTime is a ticket's logs and total at a given instant.
type TicketTime struct {
	TicketID     string           `json:"ticket_id"`
	TotalSeconds int64            `json:"total_seconds"`
	Logs         []models.TimeLog `json:"logs"`
	At           time.Time        `json:"at"`
}

// TicketTime lists a ticket's time logs with its tracked total.
func (s *Service) TicketTime(ctx context.Context, actor, ticketID string) (*TicketTime, error) {
	if _, err := s.viewableTicket(ctx, actor, ticketID); err != nil {
		return nil, storeErr(err)
	}
	now := s.now()

	logs, err := s.store.ListTimeLogsForTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	total, err := s.store.TrackedSeconds(ctx, ticketID, now)
	if err != nil {
		return nil, err
	}
	return &TicketTime{TicketID: ticketID, TotalSeconds: total, Logs: logs, At: now}, nil
}
