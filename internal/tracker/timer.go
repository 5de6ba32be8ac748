package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/store"
)

// TimerResult describes the outcome of a timer write.
type TimerResult struct {
	Message string `json:"message"`
	// Log is the running log after a start, or the ended log after a stop.
	Log *models.TimeLog `json:"log,omitempty"`
	// Stopped is the log on another ticket that a start ended.
	Stopped *models.TimeLog `json:"stopped,omitempty"`
	// AlreadyRunning is set when start found this ticket's timer running.
	AlreadyRunning bool `json:"already_running"`
}

// TimerState is the read-only view of a user's timer on one ticket.
type TimerState struct {
	TicketID  string     `json:"ticket_id"`
	Running   bool       `json:"running"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	// LiveSeconds is the elapsed time of the running segment.
	LiveSeconds int64 `json:"live_seconds"`
	// ElapsedSeconds is the user's total on the ticket, running segment
	// included.
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

// RunningTimer is the user's current running timer across all tickets.
type RunningTimer struct {
	LogID        string        `json:"log_id"`
	TicketID     string        `json:"ticket_id"`
	ProjectID    string        `json:"project_id"`
	TicketTitle  string        `json:"ticket_title"`
	TicketStatus models.Status `json:"ticket_status"`
	StartedAt    time.Time     `json:"started_at"`
	// ElapsedSeconds is the user's total on that ticket, running segment
	// included.
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

func notTrackable(t *models.Ticket) error {
	return models.NewError(models.CodeNotTrackable, "status",
		fmt.Errorf("%w (ticket %s is %s)", models.ErrNotTrackable, t.ID, t.Status))
}

// trackableTicket loads a ticket the actor may view and that is in a
// trackable status.
func (s *Service) trackableTicket(ctx context.Context, actor, ticketID string) (*models.Ticket, error) {
	t, err := s.viewableTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !t.Status.Trackable() {
		return nil, notTrackable(t)
	}
	return t, nil
}

// StartTimer starts the actor's timer on a ticket. Any running timer of
// the actor on another ticket is stopped first, in the same transaction.
// Starting the timer that is already running is a no-op.
func (s *Service) StartTimer(ctx context.Context, actor, ticketID string) (*TimerResult, error) {
	if _, err := s.trackableTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}

	now := s.now()
	result := &TimerResult{}

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.LockUser(ctx, actor); err != nil {
			return err
		}

		// Status may have changed since the check above.
		t, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if t == nil {
			return notFound("ticket", ticketID)
		}
		if !t.Status.Trackable() {
			return notTrackable(t)
		}

		running, err := tx.RunningTimeLogsForUser(ctx, actor)
		if err != nil {
			return err
		}

		for i := range running {
			l := running[i]
			if l.TicketID == ticketID && result.Log == nil {
				result.Log = &l
				continue
			}
			if err := stopLog(ctx, tx, &l, now); err != nil {
				return err
			}
			result.Stopped = &l
		}
		if result.Log != nil {
			result.AlreadyRunning = true
			return nil
		}

		l := &models.TimeLog{
			ID:        uuid.New().String(),
			TicketID:  ticketID,
			UserID:    actor,
			StartedAt: now,
		}
		if err := tx.InsertTimeLog(ctx, l); err != nil {
			return err
		}
		result.Log = l
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if result.AlreadyRunning {
		result.Message = "Timer already running."
		return result, nil
	}
	result.Message = "Timer started."
	attrs := []any{"ticket", ticketID, "user", actor, "log", result.Log.ID}
	if result.Stopped != nil {
		attrs = append(attrs, "stopped_ticket", result.Stopped.TicketID, "stopped_seconds", *result.Stopped.DurationSeconds)
	}
	s.logger.Info("timer started", attrs...)
	return result, nil
}

// ResumeTimer is StartTimer.
func (s *Service) ResumeTimer(ctx context.Context, actor, ticketID string) (*TimerResult, error) {
	return s.StartTimer(ctx, actor, ticketID)
}

// PauseTimer ends the actor's running timer on a ticket. With nothing
// running it fails with NO_RUNNING_TIMER and changes nothing.
func (s *Service) PauseTimer(ctx context.Context, actor, ticketID string) (*TimerResult, error) {
	return s.endTimer(ctx, actor, ticketID, "Timer paused.")
}

// StopTimer ends a session exactly like PauseTimer.
func (s *Service) StopTimer(ctx context.Context, actor, ticketID string) (*TimerResult, error) {
	return s.endTimer(ctx, actor, ticketID, "Timer stopped.")
}

func (s *Service) endTimer(ctx context.Context, actor, ticketID, message string) (*TimerResult, error) {
	if _, err := s.trackableTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}

	now := s.now()
	var ended *models.TimeLog

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.LockUser(ctx, actor); err != nil {
			return err
		}

		t, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if t == nil {
			return notFound("ticket", ticketID)
		}
		if !t.Status.Trackable() {
			return notTrackable(t)
		}

		l, err := tx.LatestRunningTimeLog(ctx, ticketID, actor)
		if err != nil {
			return err
		}
		if l == nil {
			return models.NewError(models.CodeNoRunningTimer, "", models.ErrNoRunningTimer)
		}
		if err := stopLog(ctx, tx, l, now); err != nil {
			return err
		}
		ended = l
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info("timer ended", "ticket", ticketID, "user", actor, "log", ended.ID, "seconds", *ended.DurationSeconds)
	return &TimerResult{Message: message, Log: ended}, nil
}

// TimerStatus reports the actor's timer on a ticket without changing
// anything.
func (s *Service) TimerStatus(ctx context.Context, actor, ticketID string) (*TimerState, error) {
	if _, err := s.viewableTicket(ctx, actor, ticketID); err != nil {
		return nil, storeErr(err)
	}

	now := s.now()
	state := &TimerState{TicketID: ticketID}

	l, err := s.store.LatestRunningTimeLog(ctx, ticketID, actor)
	if err != nil {
		return nil, err
	}
	if l != nil {
		started := l.StartedAt
		state.Running = true
		state.StartedAt = &started
		state.LiveSeconds = models.ElapsedSeconds(l.StartedAt, now)
	}

	state.ElapsedSeconds, err = s.store.TrackedSecondsForUser(ctx, ticketID, actor, now)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// CurrentTimer returns the actor's most recently started running timer
// across all tickets, or nil when none is running.
func (s *Service) CurrentTimer(ctx context.Context, actor string) (*RunningTimer, error) {
	now := s.now()

	running, err := s.store.RunningTimeLogsForUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(running) == 0 {
		return nil, nil
	}
	l := running[0]

	rt := &RunningTimer{
		LogID:     l.ID,
		TicketID:  l.TicketID,
		StartedAt: l.StartedAt,
	}

	t, err := s.store.GetTicket(ctx, l.TicketID)
	if err != nil {
		return nil, err
	}
	if t != nil {
		rt.ProjectID = t.ProjectID
		rt.TicketTitle = t.Title
		rt.TicketStatus = t.Status
	}

	rt.ElapsedSeconds, err = s.store.TrackedSecondsForUser(ctx, l.TicketID, actor, now)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
