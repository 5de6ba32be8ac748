package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

const timeLogColumns = `id, ticket_id, user_id, started_at, ended_at, duration_seconds, note`

// InsertTimeLog inserts a time log. A second running log for the same user
// violates a unique index and surfaces as ErrConflict from WithTx.
func (qs Queries) InsertTimeLog(ctx context.Context, l *models.TimeLog) error {
	_, err := qs.exec(ctx, `
		INSERT INTO time_logs (`+timeLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.TicketID, l.UserID, unix(l.StartedAt), nullUnix(l.EndedAt),
		nullInt64(l.DurationSeconds), l.Note)
	if err != nil {
		return fmt.Errorf("insert time log: %w", err)
	}
	return nil
}

// GetTimeLog retrieves a time log by ID. It returns nil, nil when the log
// does not exist.
func (qs Queries) GetTimeLog(ctx context.Context, id string) (*models.TimeLog, error) {
	row := qs.queryRow(ctx, `SELECT `+timeLogColumns+` FROM time_logs WHERE id = ?`+qs.lockSuffix(), id)
	l, err := scanTimeLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time log: %w", err)
	}
	return l, nil
}

// ListTimeLogsForTicket returns every log of a ticket, most recent first.
func (qs Queries) ListTimeLogsForTicket(ctx context.Context, ticketID string) ([]models.TimeLog, error) {
	return qs.listTimeLogs(ctx, `
		SELECT `+timeLogColumns+` FROM time_logs
		WHERE ticket_id = ?
		ORDER BY started_at DESC, id DESC
	`, ticketID)
}

// RunningTimeLogsForUser returns the user's running logs across all
// tickets, most recently started first.
func (qs Queries) RunningTimeLogsForUser(ctx context.Context, userID string) ([]models.TimeLog, error) {
	return qs.listTimeLogs(ctx, `
		SELECT `+timeLogColumns+` FROM time_logs
		WHERE user_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC, id DESC
	`+qs.lockSuffix(), userID)
}

// RunningTimeLogsForTicket returns every running log on a ticket,
// regardless of user.
func (qs Queries) RunningTimeLogsForTicket(ctx context.Context, ticketID string) ([]models.TimeLog, error) {
	return qs.listTimeLogs(ctx, `
		SELECT `+timeLogColumns+` FROM time_logs
		WHERE ticket_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC, id DESC
	`+qs.lockSuffix(), ticketID)
}

// LatestRunningTimeLog returns the most recently started running log of
// userID on ticketID, or nil.
func (qs Queries) LatestRunningTimeLog(ctx context.Context, ticketID, userID string) (*models.TimeLog, error) {
	logs, err := qs.listTimeLogs(ctx, `
		SELECT `+timeLogColumns+` FROM time_logs
		WHERE ticket_id = ? AND user_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC, id DESC
	`+qs.lockSuffix(), ticketID, userID)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return &logs[0], nil
}

// StopTimeLog ends a running log at endedAt and stores its duration. Logs
// that were already ended are left untouched.
func (qs Queries) StopTimeLog(ctx context.Context, id string, endedAt time.Time, durationSeconds int64) error {
	_, err := qs.exec(ctx, `
		UPDATE time_logs SET ended_at = ?, duration_seconds = ?
		WHERE id = ? AND ended_at IS NULL
	`, unix(endedAt), durationSeconds, id)
	if err != nil {
		return fmt.Errorf("stop time log: %w", err)
	}
	return nil
}

// SetTimeLogDuration overrides the duration of a log and moves its end to
// started_at + durationSeconds. A running log becomes ended.
func (qs Queries) SetTimeLogDuration(ctx context.Context, id string, endedAt time.Time, durationSeconds int64) error {
	result, err := qs.exec(ctx, `
		UPDATE time_logs SET ended_at = ?, duration_seconds = ?
		WHERE id = ?
	`, unix(endedAt), durationSeconds, id)
	if err != nil {
		return fmt.Errorf("set time log duration: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("set time log duration %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeleteTimeLog removes a time log.
func (qs Queries) DeleteTimeLog(ctx context.Context, id string) error {
	result, err := qs.exec(ctx, `DELETE FROM time_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete time log: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("delete time log %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (qs Queries) listTimeLogs(ctx context.Context, query string, args ...any) ([]models.TimeLog, error) {
	rows, err := qs.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time logs: %w", err)
	}
	defer rows.Close()

	var logs []models.TimeLog
	for rows.Next() {
		l, err := scanTimeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func scanTimeLog(row scanner) (*models.TimeLog, error) {
	var l models.TimeLog
	var startedAt int64
	var endedAt, duration sql.NullInt64
	if err := row.Scan(&l.ID, &l.TicketID, &l.UserID, &startedAt, &endedAt, &duration, &l.Note); err != nil {
		return nil, err
	}
	l.StartedAt = fromUnix(startedAt)
	l.EndedAt = fromNullUnix(endedAt)
	if duration.Valid {
		d := duration.Int64
		l.DurationSeconds = &d
	}
	return &l, nil
}
