// Package audit records ticket activity and hands it to notification
// delivery.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/notify"
)

// EventStore persists activity and resolves who should hear about it.
type EventStore interface {
	WriteEvent(ctx context.Context, ev *models.Event) error
	ProjectParticipants(ctx context.Context, projectID string) ([]string, error)
}

// Enqueuer accepts notifications for asynchronous delivery.
type Enqueuer interface {
	Enqueue(n notify.Notification) bool
}

// Recorder writes an activity entry for every ticket event and notifies
// the project's owner and members, except the actor.
type Recorder struct {
	store    EventStore
	dispatch Enqueuer
	logger   *slog.Logger
}

// NewRecorder creates a Recorder. dispatch may be nil to only persist.
func NewRecorder(s EventStore, dispatch Enqueuer, logger *slog.Logger) *Recorder {
	return &Recorder{store: s, dispatch: dispatch, logger: logger}
}

// Record persists ev and fans it out. Notification is best effort; only a
// failure to persist is returned.
func (r *Recorder) Record(ctx context.Context, ev models.Event) (*models.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if err := r.store.WriteEvent(ctx, &ev); err != nil {
		return nil, fmt.Errorf("record %s event: %w", ev.Action, err)
	}

	if r.dispatch == nil {
		return &ev, nil
	}

	recipients, err := r.recipients(ctx, ev)
	if err != nil {
		r.logger.Warn("resolve notification recipients", "project", ev.ProjectRef, "error", err)
		return &ev, nil
	}
	for _, userID := range recipients {
		r.dispatch.Enqueue(notify.Notification{Recipient: userID, Event: ev})
	}
	return &ev, nil
}

func (r *Recorder) recipients(ctx context.Context, ev models.Event) ([]string, error) {
	participants, err := r.store.ProjectParticipants(ctx, ev.ProjectRef)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range participants {
		if id != ev.ActorID {
			out = append(out, id)
		}
	}
	return out, nil
}
