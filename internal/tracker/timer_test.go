package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

func TestStartTimerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, "alice", models.StatusInProgress)

	first, err := f.svc.StartTimer(ctx, "alice", tk.ID)
	if err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	if first.AlreadyRunning || first.Log == nil {
		t.Fatalf("Expected a new running log, got %+v", first)
	}

	f.clock.Advance(5 * time.Minute)
	second, err := f.svc.ResumeTimer(ctx, "alice", tk.ID)
	if err != nil {
		t.Fatalf("ResumeTimer failed: %v", err)
	}
	if !second.AlreadyRunning || second.Log.ID != first.Log.ID {
		t.Errorf("Expected the same running log, got %+v", second)
	}
	if !second.Log.StartedAt.Equal(first.Log.StartedAt) {
		t.Errorf("started_at changed from %v to %v", first.Log.StartedAt, second.Log.StartedAt)
	}

	logs, _ := f.store.ListTimeLogsForTicket(ctx, tk.ID)
	if len(logs) != 1 {
		t.Errorf("Expected exactly 1 log, got %d", len(logs))
	}
}

func TestTimerHandoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.ticket(t, "alice", models.StatusInProgress)
	t2 := f.ticket(t, "alice", models.StatusInProgress)

	if _, err := f.svc.StartTimer(ctx, "alice", t1.ID); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(7 * time.Minute)

	res, err := f.svc.StartTimer(ctx, "alice", t2.ID)
	if err != nil {
		t.Fatalf("StartTimer on second ticket failed: %v", err)
	}
	if res.Stopped == nil || res.Stopped.TicketID != t1.ID {
		t.Fatalf("Expected the first ticket's log to be stopped, got %+v", res.Stopped)
	}
	if *res.Stopped.DurationSeconds != 420 {
		t.Errorf("Expected stopped duration 420s, got %d", *res.Stopped.DurationSeconds)
	}

	running := f.runningFor(t, "alice")
	if len(running) != 1 || running[0].TicketID != t2.ID {
		t.Fatalf("Expected one running log on the second ticket, got %v", running)
	}

	old, _ := f.store.ListTimeLogsForTicket(ctx, t1.ID)
	if len(old) != 1 || old[0].IsRunning() || *old[0].DurationSeconds != 420 {
		t.Errorf("Expected the first ticket's log ended at 420s, got %+v", old)
	}
	next, _ := f.store.ListTimeLogsForTicket(ctx, t2.ID)
	if len(next) != 1 {
		t.Errorf("Expected exactly one new log, got %d", len(next))
	}
}

func TestTimerRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, st := range []models.Status{models.StatusBacklog, models.StatusTodo, models.StatusDone, models.StatusCompleted} {
		tk := f.ticket(t, "alice", st)
		_, err := f.svc.StartTimer(ctx, "alice", tk.ID)
		wantCode(t, err, models.CodeNotTrackable)
		_, err = f.svc.PauseTimer(ctx, "alice", tk.ID)
		wantCode(t, err, models.CodeNotTrackable)
	}
	if len(f.runningFor(t, "alice")) != 0 {
		t.Error("No timers should have started")
	}

	tk := f.ticket(t, "alice", models.StatusInProgress)
	_, err := f.svc.StartTimer(ctx, "mallory", tk.ID)
	wantCode(t, err, models.CodeForbidden)
	_, err = f.svc.StartTimer(ctx, "alice", "missing")
	wantCode(t, err, models.CodeNotFound)
}

func TestPauseWithoutRunningTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, "alice", models.StatusInProgress)

	// Bob's timer on the same ticket does not count as alice's.
	if _, err := f.svc.StartTimer(ctx, "bob", tk.ID); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.PauseTimer(ctx, "alice", tk.ID)
	wantCode(t, err, models.CodeNoRunningTimer)
	if e, ok := err.(*models.Error); !ok || e.Kind() != models.KindSoft {
		t.Errorf("Expected a soft failure, got %v", err)
	}

	logs, _ := f.store.ListTimeLogsForTicket(ctx, tk.ID)
	if len(logs) != 1 || !logs[0].IsRunning() || logs[0].UserID != "bob" {
		t.Errorf("Expected only bob's running log to exist, got %+v", logs)
	}
}

func TestPauseAndStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, "alice", models.StatusInProgress)

	f.svc.StartTimer(ctx, "alice", tk.ID)
	f.clock.Advance(3 * time.Minute)
	res, err := f.svc.PauseTimer(ctx, "alice", tk.ID)
	if err != nil {
		t.Fatalf("PauseTimer failed: %v", err)
	}
	if res.Log.IsRunning() || *res.Log.DurationSeconds != 180 {
		t.Errorf("Expected an ended 180s log, got %+v", res.Log)
	}

	f.svc.ResumeTimer(ctx, "alice", tk.ID)
	f.clock.Advance(2 * time.Minute)
	if _, err := f.svc.StopTimer(ctx, "alice", tk.ID); err != nil {
		t.Fatalf("StopTimer failed: %v", err)
	}

	total, _ := f.store.TrackedSeconds(ctx, tk.ID, f.clock.Now())
	if total != 300 {
		t.Errorf("Expected 300 tracked seconds, got %d", total)
	}
}

func TestDurationNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, "alice", models.StatusInProgress)

	f.svc.StartTimer(ctx, "alice", tk.ID)
	// The clock jumps backwards before the pause.
	f.clock.Advance(-time.Hour)

	res, err := f.svc.PauseTimer(ctx, "alice", tk.ID)
	if err != nil {
		t.Fatalf("PauseTimer failed: %v", err)
	}
	if *res.Log.DurationSeconds != 0 {
		t.Errorf("Expected duration clamped to 0, got %d", *res.Log.DurationSeconds)
	}

	// Same for a running timer observed through the status view.
	f.svc.StartTimer(ctx, "alice", tk.ID)
	f.clock.Advance(-time.Minute)
	state, err := f.svc.TimerStatus(ctx, "alice", tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if state.LiveSeconds != 0 || state.ElapsedSeconds != 0 {
		t.Errorf("Expected no negative time, got %+v", state)
	}
}

func TestConcurrentStartsKeepOneRunningTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var tickets []*models.Ticket
	for i := 0; i < 6; i++ {
		tickets = append(tickets, f.ticket(t, "alice", models.StatusInProgress))
	}

	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for _, tk := range tickets {
			wg.Add(1)
			go func(ticketID string) {
				defer wg.Done()
				_, err := f.svc.StartTimer(ctx, "alice", ticketID)
				if err != nil && models.CodeOf(err) != models.CodeRetry {
					t.Errorf("StartTimer failed: %v", err)
				}
			}(tk.ID)
		}
	}
	wg.Wait()

	if n := len(f.runningFor(t, "alice")); n != 1 {
		t.Errorf("Expected exactly 1 running timer, got %d", n)
	}
}

func TestTimerStatusAndCurrentTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, "alice", models.StatusInProgress)

	current, err := f.svc.CurrentTimer(ctx, "alice")
	if err != nil || current != nil {
		t.Fatalf("Expected no current timer, got %v, %v", current, err)
	}

	f.svc.StartTimer(ctx, "alice", tk.ID)
	f.clock.Advance(10 * time.Minute)
	f.svc.PauseTimer(ctx, "alice", tk.ID)
	f.svc.ResumeTimer(ctx, "alice", tk.ID)
	f.clock.Advance(30 * time.Second)

	state, err := f.svc.TimerStatus(ctx, "alice", tk.ID)
	if err != nil {
		t.Fatalf("TimerStatus failed: %v", err)
	}
	if !state.Running || state.LiveSeconds != 30 || state.ElapsedSeconds != 630 {
		t.Errorf("Unexpected timer state: %+v", state)
	}

	current, err = f.svc.CurrentTimer(ctx, "alice")
	if err != nil {
		t.Fatalf("CurrentTimer failed: %v", err)
	}
	if current == nil || current.TicketID != tk.ID || current.TicketTitle != tk.Title {
		t.Fatalf("Unexpected current timer: %+v", current)
	}
	if current.TicketStatus != models.StatusInProgress || current.ElapsedSeconds != 630 {
		t.Errorf("Unexpected current timer: %+v", current)
	}

	// Status is read-only.
	logs, _ := f.store.ListTimeLogsForTicket(ctx, tk.ID)
	if len(logs) != 2 {
		t.Errorf("Expected 2 logs, got %d", len(logs))
	}

	bobState, _ := f.svc.TimerStatus(ctx, "bob", tk.ID)
	if bobState.Running || bobState.ElapsedSeconds != 0 {
		t.Errorf("Bob has no time on the ticket, got %+v", bobState)
	}
}

func TestSetLogDurationAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, "alice", models.StatusInProgress)

	res, _ := f.svc.StartTimer(ctx, "alice", tk.ID)
	logID := res.Log.ID

	_, err := f.svc.SetLogDuration(ctx, "alice", logID, -5)
	wantCode(t, err, models.CodeInvalidInput)

	for _, secs := range []int64{MaxLogSeconds + 1, 10_000_000_000} {
		_, err = f.svc.SetLogDuration(ctx, "alice", logID, secs)
		wantCode(t, err, models.CodeInvalidInput)
	}
	l, err := f.svc.SetLogDuration(ctx, "alice", logID, MaxLogSeconds)
	if err != nil {
		t.Fatalf("SetLogDuration at the cap failed: %v", err)
	}
	if !l.EndedAt.After(l.StartedAt) || l.EndedAt.Sub(l.StartedAt) != MaxLogSeconds*time.Second {
		t.Errorf("Expected ended_at one year after started_at, got %v -> %v", l.StartedAt, l.EndedAt)
	}

	_, err = f.svc.SetLogDuration(ctx, "bob", logID, 60)
	wantCode(t, err, models.CodeForbidden)

	l, err = f.svc.SetLogDuration(ctx, "alice", logID, 3600)
	if err != nil {
		t.Fatalf("SetLogDuration failed: %v", err)
	}
	if !l.EndedAt.Equal(l.StartedAt.Add(time.Hour)) {
		t.Errorf("Expected ended_at = started_at + 1h, got %v", l.EndedAt)
	}
	if len(f.runningFor(t, "alice")) != 0 {
		t.Error("Correcting a running log ends it")
	}

	// The project owner may correct anyone's log.
	if _, err := f.svc.SetLogDuration(ctx, "owner", logID, 0); err != nil {
		t.Errorf("Expected owner to edit the log, got %v", err)
	}

	tt, err := f.svc.TicketTime(ctx, "bob", tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if tt.TotalSeconds != 0 || len(tt.Logs) != 1 {
		t.Errorf("Unexpected ticket time: %+v", tt)
	}

	wantCode(t, f.svc.DeleteLog(ctx, "bob", logID), models.CodeForbidden)
	if err := f.svc.DeleteLog(ctx, "alice", logID); err != nil {
		t.Fatalf("DeleteLog failed: %v", err)
	}
	wantCode(t, f.svc.DeleteLog(ctx, "alice", logID), models.CodeNotFound)
}

func TestProjectTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.ticket(t, "alice", models.StatusInProgress)
	t2 := f.ticket(t, "alice", models.StatusInProgress)

	f.svc.StartTimer(ctx, "alice", t1.ID)
	f.svc.StartTimer(ctx, "bob", t2.ID)
	f.clock.Advance(time.Minute)
	f.svc.PauseTimer(ctx, "alice", t1.ID)
	f.clock.Advance(time.Minute)

	pt, err := f.svc.ProjectTime(ctx, "owner", f.project.ID)
	if err != nil {
		t.Fatalf("ProjectTime failed: %v", err)
	}
	if pt.TotalSeconds != 180 {
		t.Errorf("Expected 180s total, got %d", pt.TotalSeconds)
	}
	if len(pt.ByUser) != 2 || pt.ByUser[0].UserID != "bob" || pt.ByUser[0].Seconds != 120 {
		t.Errorf("Expected bob first with 120s, got %+v", pt.ByUser)
	}

	_, err = f.svc.ProjectTime(ctx, "mallory", f.project.ID)
	wantCode(t, err, models.CodeForbidden)
}

func TestMembersAndProjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wantCode(t, f.svc.AddMember(ctx, "alice", f.project.ID, "carol"), models.CodeForbidden)
	wantCode(t, f.svc.AddMember(ctx, "owner", f.project.ID, " "), models.CodeInvalidInput)
	wantCode(t, f.svc.AddMember(ctx, "owner", "missing", "carol"), models.CodeNotFound)

	if err := f.svc.AddMember(ctx, "owner", f.project.ID, "carol"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	projects, err := f.svc.ListProjects(ctx, "carol")
	if err != nil || len(projects) != 1 {
		t.Fatalf("Expected carol to see 1 project, got %v, %v", projects, err)
	}

	_, err = f.svc.CreateProject(ctx, "owner", CreateProjectInput{Name: "Bad", StartDate: "04/01/2026"})
	wantCode(t, err, models.CodeInvalidInput)

	_, err = f.svc.GetProject(ctx, "mallory", f.project.ID)
	wantCode(t, err, models.CodeForbidden)
}
