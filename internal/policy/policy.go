// Package policy answers authorization and membership questions for the
// tracker and health services.
package policy

import (
	"context"

	"github.com/kaneboard/kaneboard/internal/models"
)

// ParticipantLookup reports whether a user owns or belongs to a project.
type ParticipantLookup interface {
	IsProjectParticipant(ctx context.Context, projectID, userID string) (bool, error)
}

// Policy implements the project and ticket access rules:
//
//   - a project is visible to its owner and members
//   - a ticket is updated or deleted only by its creator
//   - project members are managed only by the owner
//   - a time log is edited by its owner or the project owner
type Policy struct {
	lookup ParticipantLookup
}

// New creates a Policy backed by lookup.
func New(lookup ParticipantLookup) *Policy {
	return &Policy{lookup: lookup}
}

// CanViewProject reports whether userID may read the project.
func (p *Policy) CanViewProject(ctx context.Context, userID, projectID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return p.lookup.IsProjectParticipant(ctx, projectID, userID)
}

// IsParticipant reports whether candidate is the project owner or a member.
func (p *Policy) IsParticipant(ctx context.Context, projectID, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	return p.lookup.IsProjectParticipant(ctx, projectID, candidate)
}

func (p *Policy) CanUpdateTicket(userID string, t *models.Ticket) bool {
	return userID != "" && t.CreatedBy == userID
}

func (p *Policy) CanDeleteTicket(userID string, t *models.Ticket) bool {
	return userID != "" && t.CreatedBy == userID
}

func (p *Policy) CanManageMembers(userID string, project *models.Project) bool {
	return userID != "" && project.OwnerID == userID
}

func (p *Policy) CanEditTimeLog(userID string, l *models.TimeLog, project *models.Project) bool {
	if userID == "" {
		return false
	}
	return l.UserID == userID || (project != nil && project.OwnerID == userID)
}
