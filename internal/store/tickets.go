package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kaneboard/kaneboard/internal/models"
)

const ticketColumns = `id, project_id, title, description, status, position, created_by,
	assignee_id, deadline, priority, type, estimate, started_at, completed_at,
	created_at, updated_at`

// InsertTicket inserts a fully populated ticket.
func (qs Queries) InsertTicket(ctx context.Context, t *models.Ticket) error {
	_, err := qs.exec(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), t.Position, t.CreatedBy,
		nullString(t.AssigneeID), nullDate(t.Deadline), string(t.Priority), string(t.Type),
		nullInt(t.Estimate), nullUnix(t.StartedAt), nullUnix(t.CompletedAt),
		unix(t.CreatedAt), unix(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// GetTicket retrieves a ticket by ID. It returns nil, nil when the ticket
// does not exist. Inside a Postgres transaction the row stays locked until
// commit.
func (qs Queries) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	row := qs.queryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`+qs.lockSuffix(), id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// UpdateTicket writes every mutable column of t.
func (qs Queries) UpdateTicket(ctx context.Context, t *models.Ticket) error {
	result, err := qs.exec(ctx, `
		UPDATE tickets
		SET title = ?, description = ?, status = ?, position = ?, assignee_id = ?,
		    deadline = ?, priority = ?, type = ?, estimate = ?, started_at = ?,
		    completed_at = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, string(t.Status), t.Position, nullString(t.AssigneeID),
		nullDate(t.Deadline), string(t.Priority), string(t.Type), nullInt(t.Estimate),
		nullUnix(t.StartedAt), nullUnix(t.CompletedAt), unix(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("update ticket %s: %w", t.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteTicket removes a ticket together with its time logs.
func (qs Queries) DeleteTicket(ctx context.Context, id string) error {
	if _, err := qs.exec(ctx, `DELETE FROM time_logs WHERE ticket_id = ?`, id); err != nil {
		return fmt.Errorf("delete ticket time logs: %w", err)
	}
	result, err := qs.exec(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("delete ticket %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// MaxPosition returns the highest position in a board column, or 0 when
// the column is empty.
func (qs Queries) MaxPosition(ctx context.Context, projectID string, status models.Status) (int, error) {
	var pos int64
	err := qs.queryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) FROM tickets
		WHERE project_id = ? AND status = ?
	`, projectID, string(status)).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	return int(pos), nil
}

// ListTicketsByProject returns the project's tickets ordered by column
// position.
func (qs Queries) ListTicketsByProject(ctx context.Context, projectID string) ([]models.Ticket, error) {
	rows, err := qs.query(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE project_id = ?
		ORDER BY position ASC, created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func scanTicket(row scanner) (*models.Ticket, error) {
	var t models.Ticket
	var status, priority, typ string
	var position int64
	var assignee, deadline sql.NullString
	var estimate, startedAt, completedAt sql.NullInt64
	var createdAt, updatedAt int64

	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &position,
		&t.CreatedBy, &assignee, &deadline, &priority, &typ, &estimate, &startedAt,
		&completedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.Status = models.Status(status)
	t.Position = int(position)
	t.AssigneeID = assignee.String
	t.Deadline = fromNullDate(deadline)
	t.Priority = models.Priority(priority)
	t.Type = models.TicketType(typ)
	if estimate.Valid {
		e := int(estimate.Int64)
		t.Estimate = &e
	}
	t.StartedAt = fromNullUnix(startedAt)
	t.CompletedAt = fromNullUnix(completedAt)
	t.CreatedAt = fromUnix(createdAt)
	t.UpdatedAt = fromUnix(updatedAt)
	return &t, nil
}
