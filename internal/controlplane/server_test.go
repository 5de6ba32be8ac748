package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kaneboard/kaneboard/internal/audit"
	"github.com/kaneboard/kaneboard/internal/clock"
	"github.com/kaneboard/kaneboard/internal/health"
	"github.com/kaneboard/kaneboard/internal/logging"
	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/policy"
	"github.com/kaneboard/kaneboard/internal/store"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

var t0 = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

type testServer struct {
	*Server
	store   *store.Store
	clock   *clock.FakeClock
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLogger(t, logging.Discard())
}

func newTestServerWithLogger(t *testing.T, logger *slog.Logger) *testServer {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clk := clock.Fake(t0)
	pol := policy.New(st)
	recorder := audit.NewRecorder(st, nil, logger)
	svc := tracker.New(st, pol, pol, recorder, clk, logger)
	reports := health.NewService(st, pol, clk, 0, logger)

	srv := NewServer(svc, reports, st, "127.0.0.1:0", logger)
	return &testServer{Server: srv, store: st, clock: clk, handler: srv.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func (ts *testServer) project(t *testing.T, members ...string) *models.Project {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/projects", "owner", map[string]string{
		"name":       "Launch",
		"start_date": "2026-03-27",
		"end_date":   "2026-04-16",
	})
	expectStatus(t, w, http.StatusCreated)
	p := decode[models.Project](t, w)

	for _, m := range members {
		w := ts.do(t, http.MethodPost, "/projects/"+p.ID+"/members", "owner", map[string]string{"user_id": m})
		expectStatus(t, w, http.StatusOK)
	}
	return &p
}

func (ts *testServer) ticket(t *testing.T, projectID, user, status string) *models.Ticket {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/projects/"+projectID+"/tickets", user, map[string]string{
		"title":  "Build the thing",
		"status": status,
		"type":   "feature",
	})
	expectStatus(t, w, http.StatusCreated)
	tk := decode[models.Ticket](t, w)
	return &tk
}

type timerBody struct {
	OK      bool            `json:"ok"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Log     *models.TimeLog `json:"log"`
}

func TestHealthEndpoint_OK(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)

	health := decode[HealthResponse](t, w)
	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	ts.handleHealth(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	ts := newTestServer(t)
	// Close the store to simulate DB error
	ts.store.Close()

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusServiceUnavailable)

	health := decode[HealthResponse](t, w)
	if health.OK {
		t.Error("Expected health.OK to be false when DB is down")
	}
	if health.DB == "ok" {
		t.Error("Expected DB status to indicate error")
	}
}

func TestRequiresUser(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/projects", "", nil)
	expectStatus(t, w, http.StatusUnauthorized)

	body := decode[ErrorBody](t, w)
	if body.Error.Code != CodeUnauthenticated {
		t.Errorf("Expected %s, got %s", CodeUnauthenticated, body.Error.Code)
	}
}

func TestTicketAndTimerFlow(t *testing.T) {
	ts := newTestServer(t)
	p := ts.project(t, "alice")
	tk := ts.ticket(t, p.ID, "alice", "in_progress")

	w := ts.do(t, http.MethodPost, "/tickets/"+tk.ID+"/timer/start", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	started := decode[timerBody](t, w)
	if !started.OK || started.Log == nil || !started.Log.IsRunning() {
		t.Fatalf("Expected a running log, got %+v", started)
	}

	ts.clock.Advance(300 * time.Second)

	w = ts.do(t, http.MethodGet, "/timer", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	current := decode[CurrentTimerResponse](t, w)
	if !current.Running || current.Timer.TicketID != tk.ID || current.Timer.ElapsedSeconds != 300 {
		t.Errorf("Unexpected current timer %+v", current.Timer)
	}

	w = ts.do(t, http.MethodPost, "/tickets/"+tk.ID+"/timer/pause", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	if paused := decode[timerBody](t, w); !paused.OK {
		t.Errorf("Expected pause to succeed, got %+v", paused)
	}

	// Pausing again is a soft failure.
	w = ts.do(t, http.MethodPost, "/tickets/"+tk.ID+"/timer/pause", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	soft := decode[SoftFailure](t, w)
	if soft.OK || soft.Code != models.CodeNoRunningTimer {
		t.Errorf("Expected NO_RUNNING_TIMER soft failure, got %+v", soft)
	}

	w = ts.do(t, http.MethodGet, "/tickets/"+tk.ID+"/time", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	if tt := decode[tracker.TicketTime](t, w); tt.TotalSeconds != 300 || len(tt.Logs) != 1 {
		t.Errorf("Expected 300s in 1 log, got %+v", tt)
	}

	w = ts.do(t, http.MethodPatch, "/tickets/"+tk.ID, "alice", map[string]string{"status": "done"})
	expectStatus(t, w, http.StatusOK)
	if res := decode[tracker.TicketResult](t, w); !res.Changed || res.Ticket.Status != models.StatusDone {
		t.Errorf("Expected ticket moved to done, got %+v", res)
	}

	w = ts.do(t, http.MethodPost, "/tickets/"+tk.ID+"/timer/start", "alice", nil)
	expectStatus(t, w, http.StatusUnprocessableEntity)
	if body := decode[ErrorBody](t, w); body.Error.Code != models.CodeNotTrackable {
		t.Errorf("Expected NOT_TRACKABLE, got %+v", body)
	}

	w = ts.do(t, http.MethodGet, "/projects/"+p.ID+"/board", "owner", nil)
	expectStatus(t, w, http.StatusOK)
	board := decode[tracker.Board](t, w)
	done := board.Columns[models.StatusDone.Index()]
	if len(done.Tickets) != 1 || done.Tickets[0].TrackedSeconds != 300 {
		t.Errorf("Expected the ticket in done with 300s, got %+v", done)
	}

	w = ts.do(t, http.MethodGet, "/projects/"+p.ID+"/activity", "owner", nil)
	expectStatus(t, w, http.StatusOK)
	events := decode[[]models.Event](t, w)
	if len(events) != 2 || events[0].Action != models.EventMoved || events[1].Action != models.EventCreated {
		t.Errorf("Expected moved then created events, got %+v", events)
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	p := ts.project(t, "alice")
	tk := ts.ticket(t, p.ID, "alice", "todo")

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"stranger views project", http.MethodGet, "/projects/" + p.ID, "mallory", nil, http.StatusForbidden, models.CodeForbidden},
		{"unknown project", http.MethodGet, "/projects/missing", "owner", nil, http.StatusNotFound, models.CodeNotFound},
		{"unknown ticket", http.MethodGet, "/tickets/missing", "owner", nil, http.StatusNotFound, models.CodeNotFound},
		{"bad status", http.MethodPatch, "/tickets/" + tk.ID, "alice", map[string]string{"status": "archived"}, http.StatusUnprocessableEntity, models.CodeInvalidStatus},
		{"bad priority", http.MethodPost, "/projects/" + p.ID + "/tickets", "alice", map[string]string{"title": "x", "status": "todo", "priority": "urgent", "type": "bug"}, http.StatusUnprocessableEntity, models.CodeInvalidPriority},
		{"not the creator", http.MethodPatch, "/tickets/" + tk.ID, "owner", map[string]string{"title": "mine"}, http.StatusForbidden, models.CodeForbidden},
		{"foreign assignee", http.MethodPatch, "/tickets/" + tk.ID, "alice", map[string]string{"assignee_id": "mallory"}, http.StatusUnprocessableEntity, models.CodeAssigneeNotAllowed},
		{"bad limit", http.MethodGet, "/projects/" + p.ID + "/activity?limit=-1", "owner", nil, http.StatusUnprocessableEntity, models.CodeInvalidInput},
		{"missing duration", http.MethodPatch, "/time-logs/whatever", "alice", map[string]string{}, http.StatusUnprocessableEntity, models.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.user, tt.body)
			expectStatus(t, w, tt.status)
			if body := decode[ErrorBody](t, w); body.Error.Code != tt.code {
				t.Errorf("Expected %s, got %+v", tt.code, body.Error)
			}
		})
	}
}

func TestUnknownTimerAction(t *testing.T) {
	ts := newTestServer(t)
	p := ts.project(t, "owner")
	tk := ts.ticket(t, p.ID, "owner", "in_progress")

	w := ts.do(t, http.MethodPost, "/tickets/"+tk.ID+"/timer/rewind", "owner", nil)
	expectStatus(t, w, http.StatusNotFound)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON body, got content type %q", ct)
	}
	if body := decode[ErrorBody](t, w); body.Error.Code != models.CodeNotFound || body.Error.Field != "action" {
		t.Errorf("Expected NOT_FOUND on action, got %+v", body.Error)
	}
}

func TestInternalErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	ts := newTestServerWithLogger(t, logging.NewWithWriter(&buf, "prod", "info"))
	ts.store.Close()

	w := ts.do(t, http.MethodGet, "/projects", "owner", nil)
	expectStatus(t, w, http.StatusInternalServerError)
	if body := decode[ErrorBody](t, w); body.Error.Message != "internal error" {
		t.Errorf("Expected generic message, got %+v", body.Error)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"msg":"request failed"`) {
		t.Fatalf("Expected a request failed log line, got %s", logs)
	}
	if !strings.Contains(logs, "database is closed") {
		t.Errorf("Expected the cause in the log, got %s", logs)
	}
	if !strings.Contains(logs, `"level":"ERROR"`) {
		t.Errorf("Expected an ERROR level entry, got %s", logs)
	}
}

func TestInvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString("{not json"))
	req.Header.Set(UserHeader, "owner")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	expectStatus(t, w, http.StatusUnprocessableEntity)
	if body := decode[ErrorBody](t, w); body.Error.Field != "body" {
		t.Errorf("Expected field 'body', got %+v", body.Error)
	}
}

func TestTimeLogCorrection(t *testing.T) {
	ts := newTestServer(t)
	p := ts.project(t, "alice", "bob")
	tk := ts.ticket(t, p.ID, "alice", "in_progress")

	w := ts.do(t, http.MethodPost, "/tickets/"+tk.ID+"/timer/start", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	logID := decode[timerBody](t, w).Log.ID

	w = ts.do(t, http.MethodPatch, "/time-logs/"+logID, "bob", map[string]int{"duration_seconds": 60})
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(t, http.MethodPatch, "/time-logs/"+logID, "alice", map[string]int{"duration_seconds": -5})
	expectStatus(t, w, http.StatusUnprocessableEntity)

	w = ts.do(t, http.MethodPatch, "/time-logs/"+logID, "owner", map[string]int{"duration_seconds": 900})
	expectStatus(t, w, http.StatusOK)
	l := decode[models.TimeLog](t, w)
	if l.DurationSeconds == nil || *l.DurationSeconds != 900 || l.IsRunning() {
		t.Errorf("Expected ended log of 900s, got %+v", l)
	}

	w = ts.do(t, http.MethodDelete, "/time-logs/"+logID, "alice", nil)
	expectStatus(t, w, http.StatusNoContent)

	w = ts.do(t, http.MethodDelete, "/time-logs/"+logID, "alice", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestDeleteTicket(t *testing.T) {
	ts := newTestServer(t)
	p := ts.project(t, "alice")
	tk := ts.ticket(t, p.ID, "alice", "todo")

	w := ts.do(t, http.MethodDelete, "/tickets/"+tk.ID, "owner", nil)
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(t, http.MethodDelete, "/tickets/"+tk.ID, "alice", nil)
	expectStatus(t, w, http.StatusNoContent)

	w = ts.do(t, http.MethodGet, "/tickets/"+tk.ID, "alice", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestHealthAndRiskyProjects(t *testing.T) {
	ts := newTestServer(t)
	p := ts.project(t, "alice")
	for i := 0; i < 4; i++ {
		ts.ticket(t, p.ID, "alice", "todo")
	}

	// Half the schedule has elapsed with nothing done.
	w := ts.do(t, http.MethodGet, "/projects/"+p.ID+"/health", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	report := decode[health.Report](t, w)
	if report.Status != health.StatusLate {
		t.Errorf("Expected LATE, got %s", report.Status)
	}

	w = ts.do(t, http.MethodGet, "/projects/"+p.ID+"/health", "mallory", nil)
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(t, http.MethodGet, "/dashboard/risky-projects", "alice", nil)
	expectStatus(t, w, http.StatusOK)
	rows := decode[[]health.RiskyProject](t, w)
	if len(rows) != 1 || rows[0].ID != p.ID {
		t.Errorf("Expected the project to be risky, got %+v", rows)
	}

	w = ts.do(t, http.MethodGet, "/dashboard/risky-projects", "mallory", nil)
	expectStatus(t, w, http.StatusOK)
	if rows := decode[[]health.RiskyProject](t, w); len(rows) != 0 {
		t.Errorf("Expected no risky projects for a stranger, got %+v", rows)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	expectStatus(t, w, http.StatusInternalServerError)
	if body := decode[ErrorBody](t, w); body.Error.Code != models.CodeInternal {
		t.Errorf("Expected INTERNAL, got %+v", body.Error)
	}
}

func TestWriteErrorHidesUntypedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("sql: connection refused at 10.0.0.3"))

	expectStatus(t, w, http.StatusInternalServerError)
	if body := decode[ErrorBody](t, w); body.Error.Message != "internal error" {
		t.Errorf("Expected generic message, got %q", body.Error.Message)
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	ts := newTestServer(t)
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
