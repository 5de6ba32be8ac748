// Package health computes schedule health and completion forecasts for
// projects.
package health

import (
	"fmt"
	"math"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

// Status is a project's schedule verdict.
type Status string

const (
	StatusNoSchedule      Status = "NO_SCHEDULE"
	StatusInvalidSchedule Status = "INVALID_SCHEDULE"
	StatusNotStarted      Status = "NOT_STARTED"
	StatusCompleted       Status = "COMPLETED"
	StatusOnTrack         Status = "ON_TRACK"
	StatusAtRisk          Status = "AT_RISK"
	StatusLate            Status = "LATE"
)

const (
	// WindowDays is the throughput window, today included.
	WindowDays = 14

	onTrackGap = 0.05
	atRiskGap  = 0.15

	minThroughput   = 0.0001
	dueSoonSignal   = 5
	scopeCreepAlert = 20

	maxConfidence     = 90.0
	minConfidence     = 30.0
	confidencePerSD   = 8.0
	unknownConfidence = 999
)

// Input is everything the calculator needs. Completions are the
// completion instants of done-like tickets; those outside the window are
// ignored.
type Input struct {
	Project     models.Project
	Stats       models.TicketStats
	Completions []time.Time
	Today       time.Time
}

// Report is the health verdict of one project.
type Report struct {
	ProjectID        string             `json:"project_id"`
	Status           Status             `json:"status"`
	Message          string             `json:"message,omitempty"`
	ExpectedProgress float64            `json:"expected_progress"`
	ActualProgress   float64            `json:"actual_progress"`
	StartDate        string             `json:"start_date,omitempty"`
	EndDate          string             `json:"end_date,omitempty"`
	ForecastEnd      string             `json:"forecast_end,omitempty"`
	Confidence       *int               `json:"confidence"`
	ThroughputPerDay float64            `json:"throughput_per_day"`
	Tickets          models.TicketStats `json:"tickets"`
	ScopeCreepPct    int                `json:"scope_creep_pct"`
	RiskSignals      []string           `json:"risk_signals"`
}

// Calculate derives the health report. It is a pure function of in.
func Calculate(in Input) Report {
	p := in.Project
	r := Report{ProjectID: p.ID, RiskSignals: []string{}}

	if p.StartDate == nil || p.EndDate == nil {
		r.Status = StatusNoSchedule
		r.Message = "Project start_date/end_date not set"
		return r
	}

	today := models.Day(in.Today)
	start := models.Day(*p.StartDate)
	end := models.Day(*p.EndDate)

	if !end.After(start) {
		r.Status = StatusInvalidSchedule
		r.Message = "end_date must be after start_date"
		return r
	}

	r.StartDate = start.Format(models.DateLayout)
	r.EndDate = end.Format(models.DateLayout)
	r.Tickets = in.Stats

	expected := expectedProgress(start, end, today)
	actual := actualProgress(in.Stats)
	r.ExpectedProgress = round4(expected)
	r.ActualProgress = round4(actual)

	fc := forecast(in.Completions, in.Stats.Open, today)
	r.ThroughputPerDay = round4(fc.throughput)
	r.Confidence = fc.confidence
	if fc.end != nil {
		r.ForecastEnd = fc.end.Format(models.DateLayout)
	}

	r.ScopeCreepPct = scopeCreep(in.Stats, p)
	r.Status = verdict(in.Stats, start, end, today, expected, actual, fc.end)
	r.RiskSignals = riskSignals(expected, actual, in.Stats, r.ScopeCreepPct, fc.end, end)
	return r
}

func expectedProgress(start, end, today time.Time) float64 {
	totalDays := models.DaysBetween(start, end)
	if totalDays < 1 {
		totalDays = 1
	}
	elapsed := 0
	if !start.After(today) {
		elapsed = models.DaysBetween(start, today)
		if elapsed > totalDays {
			elapsed = totalDays
		}
	}
	return clamp(float64(elapsed)/float64(totalDays), 0, 1)
}

func actualProgress(st models.TicketStats) float64 {
	switch {
	case st.TotalPoints > 0:
		return float64(st.DonePoints) / float64(st.TotalPoints)
	case st.Total > 0:
		return float64(st.Done) / float64(st.Total)
	}
	return 0
}

type forecastResult struct {
	end        *time.Time
	confidence *int
	throughput float64
}

// forecast projects the finish date from the daily completion counts of
// the trailing window.
func forecast(completions []time.Time, remaining int, today time.Time) forecastResult {
	daily := DailyCompletions(completions, today)

	sum := 0
	for _, c := range daily {
		sum += c
	}
	throughput := float64(sum) / WindowDays

	fc := forecastResult{throughput: throughput}
	if throughput <= minThroughput || remaining <= 0 {
		return fc
	}

	days := int(math.Ceil(float64(remaining) / throughput))
	end := today.AddDate(0, 0, days)
	fc.end = &end

	var variance float64
	for _, c := range daily {
		d := float64(c) - throughput
		variance += d * d
	}
	variance /= float64(len(daily))
	stddev := math.Sqrt(variance)

	confidence := int(math.Round(clamp(maxConfidence-stddev*confidencePerSD, minConfidence, maxConfidence)))
	fc.confidence = &confidence
	return fc
}

// DailyCompletions buckets completions by UTC day over the window ending
// today, oldest first. Days without completions count as zero.
func DailyCompletions(completions []time.Time, today time.Time) []int {
	today = models.Day(today)
	first := today.AddDate(0, 0, -(WindowDays - 1))

	daily := make([]int, WindowDays)
	for _, c := range completions {
		day := models.Day(c)
		if day.Before(first) || day.After(today) {
			continue
		}
		daily[models.DaysBetween(first, day)]++
	}
	return daily
}

func scopeCreep(st models.TicketStats, p models.Project) int {
	if BaselineStart(p) == nil || st.Total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(st.CreatedSinceBaseline) / float64(st.Total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// BaselineStart returns the baseline start date, falling back to the
// start date.
func BaselineStart(p models.Project) *time.Time {
	if p.BaselineStartDate != nil {
		return p.BaselineStartDate
	}
	return p.StartDate
}

func verdict(st models.TicketStats, start, end, today time.Time, expected, actual float64, forecastEnd *time.Time) Status {
	if today.Before(start) {
		return StatusNotStarted
	}
	if st.Total > 0 && st.Done == st.Total {
		return StatusCompleted
	}
	if forecastEnd != nil && forecastEnd.After(end) {
		return StatusLate
	}

	gap := expected - actual
	switch {
	case gap <= onTrackGap:
		return StatusOnTrack
	case gap <= atRiskGap:
		return StatusAtRisk
	}
	return StatusLate
}

func riskSignals(expected, actual float64, st models.TicketStats, scopeCreepPct int, forecastEnd *time.Time, end time.Time) []string {
	signals := []string{}

	gap := expected - actual
	if gap > atRiskGap {
		signals = append(signals, "Progress significantly behind plan")
	} else if gap > onTrackGap {
		signals = append(signals, "Progress slightly behind plan")
	}

	if st.Overdue > 0 {
		signals = append(signals, fmt.Sprintf("Overdue tickets: %d", st.Overdue))
	}
	if st.DueSoon > dueSoonSignal {
		signals = append(signals, fmt.Sprintf("Many tickets due soon: %d", st.DueSoon))
	}
	if scopeCreepPct >= scopeCreepAlert {
		signals = append(signals, fmt.Sprintf("Scope creep detected (~%d%%)", scopeCreepPct))
	}
	if forecastEnd != nil && forecastEnd.After(end) {
		signals = append(signals, fmt.Sprintf("Forecast end (%s) exceeds planned end (%s)",
			forecastEnd.Format(models.DateLayout), end.Format(models.DateLayout)))
	}
	return signals
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
