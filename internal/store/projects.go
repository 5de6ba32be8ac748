package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

const projectColumns = `id, workspace_id, name, owner_id, start_date, end_date,
	baseline_start_date, baseline_end_date, created_at`

// CreateProject inserts a project. ID and CreatedAt must be set.
func (qs Queries) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := qs.exec(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.WorkspaceID, p.Name, p.OwnerID,
		nullDate(p.StartDate), nullDate(p.EndDate),
		nullDate(p.BaselineStartDate), nullDate(p.BaselineEndDate),
		unix(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID. It returns nil, nil when the
// project does not exist.
func (qs Queries) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := qs.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjectsForUser returns the projects userID owns or is a member of,
// oldest first.
func (qs Queries) ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := qs.query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE owner_id = ?
		   OR id IN (SELECT project_id FROM project_members WHERE user_id = ?)
		ORDER BY created_at ASC, id ASC
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// AddProjectMember adds userID to the project. Adding an existing member
// is a no-op.
func (qs Queries) AddProjectMember(ctx context.Context, projectID, userID string, at time.Time) error {
	_, err := qs.exec(ctx, `
		INSERT INTO project_members (project_id, user_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`, projectID, userID, unix(at))
	if err != nil {
		return fmt.Errorf("add project member: %w", err)
	}
	return nil
}

// ListProjectMembers returns the member user IDs of a project, excluding
// the owner unless the owner was also added as a member.
func (qs Queries) ListProjectMembers(ctx context.Context, projectID string) ([]string, error) {
	rows, err := qs.query(ctx, `
		SELECT user_id FROM project_members
		WHERE project_id = ?
		ORDER BY created_at ASC, user_id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// IsProjectParticipant reports whether userID owns or is a member of the
// project.
func (qs Queries) IsProjectParticipant(ctx context.Context, projectID, userID string) (bool, error) {
	var n int
	err := qs.queryRow(ctx, `
		SELECT COUNT(*) FROM projects p
		WHERE p.id = ?
		  AND (p.owner_id = ?
		       OR EXISTS (SELECT 1 FROM project_members m
		                  WHERE m.project_id = p.id AND m.user_id = ?))
	`, projectID, userID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check project participant: %w", err)
	}
	return n > 0, nil
}

// ProjectParticipants returns the owner followed by every member, without
// duplicates.
func (qs Queries) ProjectParticipants(ctx context.Context, projectID string) ([]string, error) {
	p, err := qs.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	members, err := qs.ListProjectMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := []string{p.OwnerID}
	for _, m := range members {
		if m != p.OwnerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	var start, end, baseStart, baseEnd sql.NullString
	var createdAt int64
	if err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.OwnerID,
		&start, &end, &baseStart, &baseEnd, &createdAt); err != nil {
		return nil, err
	}
	p.StartDate = fromNullDate(start)
	p.EndDate = fromNullDate(end)
	p.BaselineStartDate = fromNullDate(baseStart)
	p.BaselineEndDate = fromNullDate(baseEnd)
	p.CreatedAt = fromUnix(createdAt)
	return &p, nil
}
