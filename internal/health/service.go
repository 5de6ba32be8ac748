package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kaneboard/kaneboard/internal/clock"
	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/store"
)

// maxRisky caps the risky-projects list.
const maxRisky = 6

// ProjectViewer decides whether a user may read a project.
type ProjectViewer interface {
	CanViewProject(ctx context.Context, userID, projectID string) (bool, error)
}

// RiskyProject is a project needing attention.
type RiskyProject struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Status           Status   `json:"status"`
	ExpectedProgress float64  `json:"expected_progress"`
	ActualProgress   float64  `json:"actual_progress"`
	EndDate          string   `json:"end_date,omitempty"`
	ForecastEnd      string   `json:"forecast_end,omitempty"`
	Confidence       *int     `json:"confidence"`
	RiskSignals      []string `json:"risk_signals"`
}

var severity = map[Status]int{
	StatusLate:            1,
	StatusAtRisk:          2,
	StatusInvalidSchedule: 3,
	StatusNoSchedule:      4,
}

// Service serves cached health reports.
type Service struct {
	store   *store.Store
	viewer  ProjectViewer
	clock   clock.Clock
	logger  *slog.Logger
	reports *Cache[*Report]
	risky   *Cache[[]RiskyProject]
}

// NewService creates a Service caching results for ttl.
func NewService(s *store.Store, viewer ProjectViewer, clk clock.Clock, ttl time.Duration, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   s,
		viewer:  viewer,
		clock:   clk,
		logger:  logger,
		reports: NewCache[*Report](ttl, clk),
		risky:   NewCache[[]RiskyProject](ttl, clk),
	}
}

// ProjectHealth returns the health report of a project the actor may view.
func (s *Service) ProjectHealth(ctx context.Context, actor, projectID string) (*Report, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, models.NewError(models.CodeNotFound, "", fmt.Errorf("project %s: %w", projectID, models.ErrNotFound))
	}
	ok, err := s.viewer.CanViewProject(ctx, actor, projectID)
	if err != nil {
		return nil, fmt.Errorf("authorize project view: %w", err)
	}
	if !ok {
		return nil, models.NewError(models.CodeForbidden, "", fmt.Errorf("%w: view project health", models.ErrForbidden))
	}

	key := fmt.Sprintf("project:%s:user:%s", projectID, actor)
	return s.reports.GetOrLoad(ctx, key, func(ctx context.Context) (*Report, error) {
		return s.Compute(ctx, p)
	})
}

// Compute builds a fresh report for p, bypassing the cache.
func (s *Service) Compute(ctx context.Context, p *models.Project) (*Report, error) {
	today := models.Day(s.clock.Now())

	stats, err := s.store.TicketStats(ctx, p.ID, today, BaselineStart(*p))
	if err != nil {
		return nil, err
	}
	completions, err := s.store.CompletionsSince(ctx, p.ID, today.AddDate(0, 0, -(WindowDays-1)))
	if err != nil {
		return nil, err
	}

	r := Calculate(Input{
		Project:     *p,
		Stats:       stats,
		Completions: completions,
		Today:       today,
	})
	s.logger.Debug("project health computed", "project", p.ID, "status", r.Status)
	return &r, nil
}

// RiskyProjects returns up to six of the actor's projects that are late,
// at risk or without a usable schedule, most severe first and lower
// confidence first within a severity.
func (s *Service) RiskyProjects(ctx context.Context, actor string) ([]RiskyProject, error) {
	key := "risky:user:" + actor
	return s.risky.GetOrLoad(ctx, key, func(ctx context.Context) ([]RiskyProject, error) {
		projects, err := s.store.ListProjectsForUser(ctx, actor)
		if err != nil {
			return nil, err
		}

		rows := []RiskyProject{}
		for i := range projects {
			p := &projects[i]
			r, err := s.Compute(ctx, p)
			if err != nil {
				return nil, err
			}
			if _, keep := severity[r.Status]; !keep {
				continue
			}
			row := RiskyProject{
				ID:               p.ID,
				Name:             p.Name,
				Status:           r.Status,
				ExpectedProgress: r.ExpectedProgress,
				ActualProgress:   r.ActualProgress,
				EndDate:          r.EndDate,
				ForecastEnd:      r.ForecastEnd,
				Confidence:       r.Confidence,
				RiskSignals:      r.RiskSignals,
			}
			if row.EndDate == "" && p.EndDate != nil {
				row.EndDate = p.EndDate.Format(models.DateLayout)
			}
			rows = append(rows, row)
		}

		SortRisky(rows)
		if len(rows) > maxRisky {
			rows = rows[:maxRisky]
		}
		return rows, nil
	})
}

// SortRisky orders rows by severity, then by confidence ascending with
// unknown confidence last.
func SortRisky(rows []RiskyProject) {
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := severity[rows[i].Status], severity[rows[j].Status]
		if ri != rj {
			return ri < rj
		}
		return confidenceOf(rows[i]) < confidenceOf(rows[j])
	})
}

func confidenceOf(r RiskyProject) int {
	if r.Confidence == nil {
		return unknownConfidence
	}
	return *r.Confidence
}

// Invalidate drops cached results for a project and for every user's
// risky list.
func (s *Service) Invalidate(projectID string) {
	s.reports.InvalidatePrefix("project:" + projectID + ":")
	s.risky.InvalidatePrefix("risky:")
}
