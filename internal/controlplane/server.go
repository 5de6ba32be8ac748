// Package controlplane exposes the tracker and health services over HTTP.
package controlplane

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kaneboard/kaneboard/internal/health"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

// Version is reported by /health. Set at build time.
var Version = "dev"

const requestTimeout = 15 * time.Second

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides the HTTP API for Kaneboard.
type Server struct {
	tracker *tracker.Service
	reports *health.Service
	db      Pinger
	logger  *slog.Logger
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(svc *tracker.Service, reports *health.Service, db Pinger, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		tracker: svc,
		reports: reports,
		db:      db,
		logger:  logger,
		addr:    addr,
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(RecoveryMiddleware(s.logger))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.listProjects)
			r.Post("/", s.createProject)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.getProject)
				r.Post("/members", s.addMember)
				r.Get("/board", s.getBoard)
				r.Post("/tickets", s.createTicket)
				r.Get("/health", s.getProjectHealth)
				r.Get("/time", s.getProjectTime)
				r.Get("/activity", s.getActivity)
			})
		})

		r.Route("/tickets/{ticketID}", func(r chi.Router) {
			r.Get("/", s.getTicket)
			r.Patch("/", s.updateTicket)
			r.Delete("/", s.deleteTicket)
			r.Post("/move", s.moveTicket)
			r.Get("/time", s.getTicketTime)
			r.Get("/timer", s.getTimerStatus)
			r.Post("/timer/{action}", s.timerAction)
		})

		r.Get("/timer", s.getCurrentTimer)
		r.Get("/dashboard/risky-projects", s.getRiskyProjects)

		r.Route("/time-logs/{logID}", func(r chi.Router) {
			r.Patch("/", s.updateTimeLog)
			r.Delete("/", s.deleteTimeLog)
		})
	})

	return http.TimeoutHandler(r, requestTimeout, `{"error":{"code":"INTERNAL","message":"request timeout"}}`)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting kaneboard daemon", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = "error: " + err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
