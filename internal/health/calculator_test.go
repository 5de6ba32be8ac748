package health

import (
	"reflect"
	"testing"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

var today = time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)

func day(offset int) *time.Time {
	d := models.Day(today).AddDate(0, 0, offset)
	return &d
}

func scheduled(startOffset, endOffset int) models.Project {
	return models.Project{ID: "p1", Name: "Launch", StartDate: day(startOffset), EndDate: day(endOffset)}
}

func completionsOn(offsets ...int) []time.Time {
	out := make([]time.Time, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, day(o).Add(10*time.Hour))
	}
	return out
}

func TestCalculateLateProject(t *testing.T) {
	r := Calculate(Input{
		Project:     scheduled(-10, 10),
		Stats:       models.TicketStats{Total: 10, Done: 3, Open: 7},
		Completions: completionsOn(-1, -4, -7),
		Today:       today,
	})

	if r.Status != StatusLate {
		t.Fatalf("Expected LATE, got %s", r.Status)
	}
	if r.ExpectedProgress != 0.5 || r.ActualProgress != 0.3 {
		t.Errorf("Expected progress 0.5/0.3, got %v/%v", r.ExpectedProgress, r.ActualProgress)
	}
	if r.ThroughputPerDay != 0.2143 {
		t.Errorf("Expected throughput 0.2143, got %v", r.ThroughputPerDay)
	}
	// ceil(7 / (3/14)) = 33 days out.
	if want := day(33).Format(models.DateLayout); r.ForecastEnd != want {
		t.Errorf("Expected forecast %s, got %s", want, r.ForecastEnd)
	}
	if r.Confidence == nil || *r.Confidence != 87 {
		t.Errorf("Expected confidence 87, got %v", r.Confidence)
	}

	want := []string{
		"Progress significantly behind plan",
		"Forecast end (" + r.ForecastEnd + ") exceeds planned end (" + r.EndDate + ")",
	}
	if !reflect.DeepEqual(r.RiskSignals, want) {
		t.Errorf("Unexpected risk signals:\n got %q\nwant %q", r.RiskSignals, want)
	}
}

func TestCalculateVerdicts(t *testing.T) {
	tests := []struct {
		name        string
		project     models.Project
		stats       models.TicketStats
		completions []time.Time
		want        Status
	}{
		{
			name:    "no schedule",
			project: models.Project{ID: "p1", StartDate: day(0)},
			want:    StatusNoSchedule,
		},
		{
			name:    "end before start",
			project: scheduled(5, 5),
			want:    StatusInvalidSchedule,
		},
		{
			name:    "starts in the future",
			project: scheduled(3, 30),
			stats:   models.TicketStats{Total: 4, Done: 4},
			want:    StatusNotStarted,
		},
		{
			name:    "all done",
			project: scheduled(-20, -1),
			stats:   models.TicketStats{Total: 4, Done: 4},
			want:    StatusCompleted,
		},
		{
			name:    "on track",
			project: scheduled(-10, 10),
			stats:   models.TicketStats{Total: 10, Done: 5, Open: 5},
			want:    StatusOnTrack,
		},
		{
			name:    "at risk",
			project: scheduled(-10, 10),
			stats:   models.TicketStats{Total: 10, Done: 4, Open: 6},
			want:    StatusAtRisk,
		},
		{
			name:    "forecast past the end",
			project: scheduled(-10, 10),
			stats:   models.TicketStats{Total: 20, Done: 10, Open: 10},
			// 1 completion in the window: 140 days to finish.
			completions: completionsOn(-2),
			want:        StatusLate,
		},
		{
			name:    "no tickets",
			project: scheduled(0, 10),
			want:    StatusOnTrack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Calculate(Input{Project: tt.project, Stats: tt.stats, Completions: tt.completions, Today: today})
			if r.Status != tt.want {
				t.Errorf("Expected %s, got %s (%+v)", tt.want, r.Status, r)
			}
		})
	}
}

func TestCalculateScheduleMessages(t *testing.T) {
	r := Calculate(Input{Project: models.Project{ID: "p1"}, Today: today})
	if r.Message != "Project start_date/end_date not set" {
		t.Errorf("Unexpected message %q", r.Message)
	}
	if r.RiskSignals == nil || len(r.RiskSignals) != 0 {
		t.Errorf("Expected empty risk signals, got %v", r.RiskSignals)
	}

	r = Calculate(Input{Project: scheduled(5, 1), Today: today})
	if r.Message != "end_date must be after start_date" {
		t.Errorf("Unexpected message %q", r.Message)
	}
}

func TestExpectedProgressClamps(t *testing.T) {
	start, end := *day(-10), *day(10)
	if got := expectedProgress(start, end, *day(-20)); got != 0 {
		t.Errorf("Before start: expected 0, got %v", got)
	}
	if got := expectedProgress(start, end, *day(40)); got != 1 {
		t.Errorf("After end: expected 1, got %v", got)
	}
	if got := expectedProgress(start, end, *day(0)); got != 0.5 {
		t.Errorf("Midway: expected 0.5, got %v", got)
	}
}

func TestActualProgressPrefersPoints(t *testing.T) {
	st := models.TicketStats{Total: 4, Done: 1, TotalPoints: 10, DonePoints: 8}
	if got := actualProgress(st); got != 0.8 {
		t.Errorf("Expected point based progress 0.8, got %v", got)
	}
	st.TotalPoints = 0
	if got := actualProgress(st); got != 0.25 {
		t.Errorf("Expected count based progress 0.25, got %v", got)
	}
}

func TestForecastIsDeterministic(t *testing.T) {
	in := Input{
		Project:     scheduled(-10, 60),
		Stats:       models.TicketStats{Total: 10, Done: 3, Open: 7},
		Completions: completionsOn(-3, -3, -3),
		Today:       today,
	}
	a, b := Calculate(in), Calculate(in)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Expected identical reports, got\n%+v\n%+v", a, b)
	}
	// Bursty completions lower confidence.
	if a.Confidence == nil || *a.Confidence != 84 {
		t.Errorf("Expected confidence 84, got %v", a.Confidence)
	}
}

func TestForecastWithoutThroughput(t *testing.T) {
	r := Calculate(Input{
		Project:     scheduled(-10, 10),
		Stats:       models.TicketStats{Total: 10, Done: 5, Open: 5},
		Completions: completionsOn(-30),
		Today:       today,
	})
	if r.ForecastEnd != "" || r.Confidence != nil {
		t.Errorf("Expected no forecast, got %q / %v", r.ForecastEnd, r.Confidence)
	}
	if r.ThroughputPerDay != 0 {
		t.Errorf("Expected zero throughput, got %v", r.ThroughputPerDay)
	}
}

func TestDailyCompletions(t *testing.T) {
	daily := DailyCompletions(completionsOn(0, 0, -13, -14, 1), today)
	if len(daily) != WindowDays {
		t.Fatalf("Expected %d buckets, got %d", WindowDays, len(daily))
	}
	if daily[0] != 1 {
		t.Errorf("Expected 1 completion on the oldest day, got %d", daily[0])
	}
	if daily[WindowDays-1] != 2 {
		t.Errorf("Expected 2 completions today, got %d", daily[WindowDays-1])
	}
	sum := 0
	for _, c := range daily {
		sum += c
	}
	if sum != 3 {
		t.Errorf("Expected out-of-window completions dropped, got %d", sum)
	}
}

func TestScopeCreepAndSignals(t *testing.T) {
	p := scheduled(-10, 10)
	p.BaselineStartDate = day(-5)

	r := Calculate(Input{
		Project: p,
		Stats: models.TicketStats{
			Total: 10, Done: 5, Open: 5, Overdue: 2, DueSoon: 6, CreatedSinceBaseline: 3,
		},
		Today: today,
	})
	if r.ScopeCreepPct != 30 {
		t.Errorf("Expected scope creep 30, got %d", r.ScopeCreepPct)
	}
	want := []string{
		"Overdue tickets: 2",
		"Many tickets due soon: 6",
		"Scope creep detected (~30%)",
	}
	if !reflect.DeepEqual(r.RiskSignals, want) {
		t.Errorf("Unexpected risk signals:\n got %q\nwant %q", r.RiskSignals, want)
	}

	p.BaselineStartDate = nil
	p.StartDate = nil
	if got := scopeCreep(models.TicketStats{Total: 10, CreatedSinceBaseline: 3}, p); got != 0 {
		t.Errorf("Expected no scope creep without a baseline, got %d", got)
	}
}

func TestSlightlyBehindSignal(t *testing.T) {
	r := Calculate(Input{
		Project: scheduled(-10, 10),
		Stats:   models.TicketStats{Total: 10, Done: 4, Open: 6},
		Today:   today,
	})
	if len(r.RiskSignals) != 1 || r.RiskSignals[0] != "Progress slightly behind plan" {
		t.Errorf("Unexpected risk signals %q", r.RiskSignals)
	}
}
