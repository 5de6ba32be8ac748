package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

// logSecondsExpr is the per-log tracked seconds at instant ?: ended logs
// use duration_seconds, falling back to ended_at - started_at; running
// logs contribute ? - started_at. Every branch is clamped at zero. It must
// stay in step with models.TimeLog.Seconds.
const logSecondsExpr = `CASE
	WHEN l.ended_at IS NULL THEN
		CASE WHEN ? > l.started_at THEN ? - l.started_at ELSE 0 END
	WHEN l.duration_seconds IS NOT NULL THEN
		CASE WHEN l.duration_seconds > 0 THEN l.duration_seconds ELSE 0 END
	WHEN l.ended_at > l.started_at THEN l.ended_at - l.started_at
	ELSE 0
END`

const sumLogSeconds = `CAST(COALESCE(SUM(` + logSecondsExpr + `), 0) AS BIGINT)`

// TrackedSeconds returns the total tracked seconds of a ticket at now.
func (qs Queries) TrackedSeconds(ctx context.Context, ticketID string, now time.Time) (int64, error) {
	var total int64
	err := qs.queryRow(ctx, `
		SELECT `+sumLogSeconds+` FROM time_logs l
		WHERE l.ticket_id = ?
	`, unix(now), unix(now), ticketID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("tracked seconds: %w", err)
	}
	return total, nil
}

// TrackedSecondsForUser returns the seconds userID tracked on a ticket at
// now, including a running segment.
func (qs Queries) TrackedSecondsForUser(ctx context.Context, ticketID, userID string, now time.Time) (int64, error) {
	var total int64
	err := qs.queryRow(ctx, `
		SELECT `+sumLogSeconds+` FROM time_logs l
		WHERE l.ticket_id = ? AND l.user_id = ?
	`, unix(now), unix(now), ticketID, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("tracked seconds for user: %w", err)
	}
	return total, nil
}

// TrackedSecondsByTicket returns tracked seconds per ticket of a project.
// Tickets without logs are absent from the map.
func (qs Queries) TrackedSecondsByTicket(ctx context.Context, projectID string, now time.Time) (map[string]int64, error) {
	rows, err := qs.query(ctx, `
		SELECT l.ticket_id, `+sumLogSeconds+`
		FROM time_logs l
		JOIN tickets t ON t.id = l.ticket_id
		WHERE t.project_id = ?
		GROUP BY l.ticket_id
	`, unix(now), unix(now), projectID)
	if err != nil {
		return nil, fmt.Errorf("tracked seconds by ticket: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var secs int64
		if err := rows.Scan(&id, &secs); err != nil {
			return nil, fmt.Errorf("scan tracked seconds: %w", err)
		}
		out[id] = secs
	}
	return out, rows.Err()
}

// ProjectTrackedSeconds returns the tracked seconds of every ticket in a
// project at now.
func (qs Queries) ProjectTrackedSeconds(ctx context.Context, projectID string, now time.Time) (int64, error) {
	var total int64
	err := qs.queryRow(ctx, `
		SELECT `+sumLogSeconds+`
		FROM time_logs l
		JOIN tickets t ON t.id = l.ticket_id
		WHERE t.project_id = ?
	`, unix(now), unix(now), projectID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("project tracked seconds: %w", err)
	}
	return total, nil
}

// ProjectTrackedByUser returns the project's tracked seconds grouped by
// log owner, highest first and ties broken by user id.
func (qs Queries) ProjectTrackedByUser(ctx context.Context, projectID string, now time.Time) ([]models.UserTime, error) {
	rows, err := qs.query(ctx, `
		SELECT l.user_id, `+sumLogSeconds+` AS seconds
		FROM time_logs l
		JOIN tickets t ON t.id = l.ticket_id
		WHERE t.project_id = ?
		GROUP BY l.user_id
		ORDER BY seconds DESC, l.user_id ASC
	`, unix(now), unix(now), projectID)
	if err != nil {
		return nil, fmt.Errorf("project tracked by user: %w", err)
	}
	defer rows.Close()

	var out []models.UserTime
	for rows.Next() {
		var ut models.UserTime
		if err := rows.Scan(&ut.UserID, &ut.Seconds); err != nil {
			return nil, fmt.Errorf("scan user time: %w", err)
		}
		out = append(out, ut)
	}
	return out, rows.Err()
}

// doneList is the SQL literal list of done-like statuses.
var doneList = func() string {
	quoted := make([]string, len(models.DoneStatuses))
	for i, s := range models.DoneStatuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}()

// TicketStats aggregates a project's tickets for health reporting. Open
// tickets with a deadline before today are overdue; those with a deadline
// in [today, today+7] are due soon. CreatedSinceBaseline counts tickets
// created on or after baseline and stays 0 when baseline is nil.
func (qs Queries) TicketStats(ctx context.Context, projectID string, today time.Time, baseline *time.Time) (models.TicketStats, error) {
	day := models.Day(today)
	todayStr := day.Format(models.DateLayout)
	soonStr := day.AddDate(0, 0, 7).Format(models.DateLayout)

	var baselineUnix int64
	hasBaseline := 0
	if baseline != nil {
		baselineUnix = models.Day(*baseline).Unix()
		hasBaseline = 1
	}

	var st models.TicketStats
	var total, done, overdue, dueSoon, totalPoints, donePoints, sinceBaseline int64
	err := qs.queryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status IN `+doneList+` THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status NOT IN `+doneList+`
				AND deadline IS NOT NULL AND deadline < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status NOT IN `+doneList+`
				AND deadline IS NOT NULL AND deadline >= ? AND deadline <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(COALESCE(estimate, 0)), 0),
			COALESCE(SUM(CASE WHEN status IN `+doneList+` THEN COALESCE(estimate, 0) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ? = 1 AND created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM tickets
		WHERE project_id = ?
	`, todayStr, todayStr, soonStr, hasBaseline, baselineUnix, projectID).Scan(
		&total, &done, &overdue, &dueSoon, &totalPoints, &donePoints, &sinceBaseline)
	if err != nil {
		return st, fmt.Errorf("ticket stats: %w", err)
	}

	st.Total = int(total)
	st.Done = int(done)
	st.Open = int(total - done)
	st.Overdue = int(overdue)
	st.DueSoon = int(dueSoon)
	st.TotalPoints = int(totalPoints)
	st.DonePoints = int(donePoints)
	st.CreatedSinceBaseline = int(sinceBaseline)
	return st, nil
}

// CompletionsSince returns the completed_at instants of the project's
// done-like tickets completed at or after from.
func (qs Queries) CompletionsSince(ctx context.Context, projectID string, from time.Time) ([]time.Time, error) {
	rows, err := qs.query(ctx, `
		SELECT completed_at FROM tickets
		WHERE project_id = ? AND status IN `+doneList+`
		  AND completed_at IS NOT NULL AND completed_at >= ?
		ORDER BY completed_at ASC
	`, projectID, unix(from))
	if err != nil {
		return nil, fmt.Errorf("completions since: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var secs int64
		if err := rows.Scan(&secs); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, fromUnix(secs))
	}
	return out, rows.Err()
}
