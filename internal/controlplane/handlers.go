package controlplane

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

// decodeJSON reads the request body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return models.Invalid("body", "invalid json")
	}
	return nil
}

// invalidate drops cached health for the project a write touched.
func (s *Server) invalidate(projectID string) {
	if s.reports != nil && projectID != "" {
		s.reports.Invalidate(projectID)
	}
}

// --- Project handlers ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.tracker.ListProjects(r.Context(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req tracker.CreateProjectInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.tracker.CreateProject(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.invalidate(p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.GetProject(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if err := s.tracker.AddMember(r.Context(), UserFrom(r.Context()), projectID, req.UserID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.invalidate(projectID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": req.UserID})
}

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.tracker.Board(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) getProjectHealth(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.ProjectHealth(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getProjectTime(w http.ResponseWriter, r *http.Request) {
	pt, err := s.tracker.ProjectTime(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

func (s *Server) getActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(w, r, models.Invalid("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	events, err := s.tracker.Activity(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "projectID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Ticket handlers ---

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	var req tracker.CreateTicketInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.ProjectID = chi.URLParam(r, "projectID")

	t, err := s.tracker.CreateTicket(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.invalidate(t.ProjectID)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.tracker.GetTicket(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "ticketID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTicket(w http.ResponseWriter, r *http.Request) {
	var req tracker.UpdateTicketInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.tracker.UpdateTicket(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "ticketID"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.invalidate(res.Ticket.ProjectID)
	writeJSON(w, http.StatusOK, res)
}

type moveRequest struct {
	Status string `json:"status"`
}

func (s *Server) moveTicket(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.tracker.MoveTicket(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "ticketID"), req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.invalidate(res.Ticket.ProjectID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) deleteTicket(w http.ResponseWriter, r *http.Request) {
	actor := UserFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketID")

	t, err := s.tracker.GetTicket(r.Context(), actor, ticketID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.tracker.DeleteTicket(r.Context(), actor, ticketID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.invalidate(t.ProjectID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getTicketTime(w http.ResponseWriter, r *http.Request) {
	tt, err := s.tracker.TicketTime(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "ticketID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tt)
}

// --- Timer handlers ---

// timerResponse is a successful timer write.
type timerResponse struct {
	OK bool `json:"ok"`
	*tracker.TimerResult
}

func (s *Server) timerAction(w http.ResponseWriter, r *http.Request) {
	actor := UserFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketID")

	var (
		res *tracker.TimerResult
		err error
	)
	switch chi.URLParam(r, "action") {
	case "start":
		res, err = s.tracker.StartTimer(r.Context(), actor, ticketID)
	case "resume":
		res, err = s.tracker.ResumeTimer(r.Context(), actor, ticketID)
	case "pause":
		res, err = s.tracker.PauseTimer(r.Context(), actor, ticketID)
	case "stop":
		res, err = s.tracker.StopTimer(r.Context(), actor, ticketID)
	default:
		s.fail(w, r, models.NewError(models.CodeNotFound, "action", fmt.Errorf("timer action %q: %w", chi.URLParam(r, "action"), models.ErrNotFound)))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timerResponse{OK: true, TimerResult: res})
}

func (s *Server) getTimerStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.TimerStatus(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "ticketID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CurrentTimerResponse is the body of GET /timer.
type CurrentTimerResponse struct {
	Running bool                  `json:"running"`
	Timer   *tracker.RunningTimer `json:"timer"`
}

func (s *Server) getCurrentTimer(w http.ResponseWriter, r *http.Request) {
	rt, err := s.tracker.CurrentTimer(r.Context(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CurrentTimerResponse{Running: rt != nil, Timer: rt})
}

func (s *Server) getRiskyProjects(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reports.RiskyProjects(r.Context(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// --- Time log handlers ---

type updateTimeLogRequest struct {
	DurationSeconds *int64 `json:"duration_seconds"`
}

func (s *Server) updateTimeLog(w http.ResponseWriter, r *http.Request) {
	var req updateTimeLogRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.DurationSeconds == nil {
		s.fail(w, r, models.Invalid("duration_seconds", "duration_seconds is required"))
		return
	}

	l, err := s.tracker.SetLogDuration(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "logID"), *req.DurationSeconds)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) deleteTimeLog(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteLog(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "logID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
