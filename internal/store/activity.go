package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kaneboard/kaneboard/internal/models"
)

// WriteEvent persists an activity event. An empty ID is filled in.
func (qs Queries) WriteEvent(ctx context.Context, ev *models.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := qs.exec(ctx, `
		INSERT INTO activity (id, action, message, actor_id, project_id, ticket_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, string(ev.Action), ev.Message, ev.ActorID, ev.ProjectRef, ev.TicketRef, unix(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListEvents returns a project's most recent activity, newest first.
func (qs Queries) ListEvents(ctx context.Context, projectID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := qs.query(ctx, `
		SELECT id, action, message, actor_id, project_id, ticket_id, created_at
		FROM activity
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var action string
		var createdAt int64
		if err := rows.Scan(&ev.ID, &action, &ev.Message, &ev.ActorID, &ev.ProjectRef, &ev.TicketRef, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		ev.Action = models.EventAction(action)
		ev.CreatedAt = fromUnix(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}
