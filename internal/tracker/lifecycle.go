package tracker

import (
	"context"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/store"
)

// Transition is the side-effect set of a status change.
type Transition struct {
	From    models.Status
	To      models.Status
	Changed bool
	// StopTimers is set when every running log on the ticket must end.
	StopTimers bool
}

// ApplyTransition moves t to status to and applies the lifecycle
// timestamps in place:
//
//   - entering in_progress sets started_at once
//   - entering a done-like status sets completed_at unless already set
//     and requests that running timers stop
//   - leaving done-like for a non-done-like status clears completed_at
//
// An unchanged status is a no-op. Position is the caller's concern.
func ApplyTransition(t *models.Ticket, to models.Status, now time.Time) (Transition, error) {
	if _, err := models.ParseStatus(string(to)); err != nil {
		return Transition{}, err
	}

	tr := Transition{From: t.Status, To: to}
	if t.Status == to {
		return tr, nil
	}
	tr.Changed = true

	wasDone := t.Status.IsDoneLike()
	t.Status = to

	if to.IsStarted() && t.StartedAt == nil {
		started := now
		t.StartedAt = &started
	}

	if to.IsDoneLike() {
		if t.CompletedAt == nil {
			completed := now
			t.CompletedAt = &completed
		}
		tr.StopTimers = true
	} else if wasDone {
		t.CompletedAt = nil
	}

	return tr, nil
}

// stopTicketTimers ends every running log on a ticket, whoever owns it.
func stopTicketTimers(ctx context.Context, tx *store.Tx, ticketID string, now time.Time) ([]models.TimeLog, error) {
	running, err := tx.RunningTimeLogsForTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for i := range running {
		if err := stopLog(ctx, tx, &running[i], now); err != nil {
			return nil, err
		}
	}
	return running, nil
}

// stopLog ends l at now with a duration clamped at zero.
func stopLog(ctx context.Context, tx *store.Tx, l *models.TimeLog, now time.Time) error {
	secs := models.ElapsedSeconds(l.StartedAt, now)
	if err := tx.StopTimeLog(ctx, l.ID, now, secs); err != nil {
		return err
	}
	ended := now
	l.EndedAt = &ended
	l.DurationSeconds = &secs
	return nil
}
