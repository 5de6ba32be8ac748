package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kaneboard/kaneboard/internal/clock"
	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/policy"
	"github.com/kaneboard/kaneboard/internal/store"
)

var t0 = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

// eventLog is an EventSink that remembers what it was given.
type eventLog struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (e *eventLog) Record(ctx context.Context, ev models.Event) (*models.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.events = append(e.events, ev)
	return &ev, nil
}

func (e *eventLog) actions() []models.EventAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.EventAction
	for _, ev := range e.events {
		out = append(out, ev.Action)
	}
	return out
}

func (e *eventLog) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

type fixture struct {
	svc     *Service
	store   *store.Store
	clock   *clock.FakeClock
	events  *eventLog
	project *models.Project
}

// newFixture creates a project owned by "owner" with members alice and bob.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	pol := policy.New(s)
	clk := clock.Fake(t0)
	events := &eventLog{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		svc:    New(s, pol, pol, events, clk, logger),
		store:  s,
		clock:  clk,
		events: events,
	}

	ctx := context.Background()
	f.project, err = f.svc.CreateProject(ctx, "owner", CreateProjectInput{
		Name:      "Launch",
		StartDate: "2026-03-27",
		EndDate:   "2026-04-16",
	})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	for _, u := range []string{"alice", "bob"} {
		if err := f.svc.AddMember(ctx, "owner", f.project.ID, u); err != nil {
			t.Fatalf("AddMember(%s) failed: %v", u, err)
		}
	}
	return f
}

func (f *fixture) ticket(t *testing.T, actor string, status models.Status) *models.Ticket {
	t.Helper()
	tk, err := f.svc.CreateTicket(context.Background(), actor, CreateTicketInput{
		ProjectID: f.project.ID,
		Title:     "Ticket " + string(status),
		Status:    string(status),
		Type:      "feature",
	})
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	return tk
}

func (f *fixture) runningFor(t *testing.T, user string) []models.TimeLog {
	t.Helper()
	logs, err := f.store.RunningTimeLogsForUser(context.Background(), user)
	if err != nil {
		t.Fatalf("RunningTimeLogsForUser failed: %v", err)
	}
	return logs
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s, got nil", code)
	}
	if got := models.CodeOf(err); got != code {
		t.Fatalf("Expected %s, got %s (%v)", code, got, err)
	}
}

func TestStoreErrMapping(t *testing.T) {
	conflict := errors.Join(store.ErrConflict, errors.New("database is locked"))
	if models.CodeOf(storeErr(conflict)) != models.CodeRetry {
		t.Error("Expected conflicts to map to RETRY")
	}
	typed := models.Invalid("title", "bad")
	if storeErr(typed) != error(typed) {
		t.Error("Typed errors must pass through unchanged")
	}
	plain := errors.New("disk I/O error")
	if models.CodeOf(storeErr(plain)) != models.CodeInternal {
		t.Error("Unexpected errors stay internal")
	}
}
