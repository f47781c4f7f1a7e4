// Package analytics computes grouped statistics over derived tasks.
//
// Every function is pure and returns zero-filled structures for empty input.
package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"taskdash/backend"
	"taskdash/internal/derive"
)

// DefaultWeeks is the length of the weekly series when none is requested.
const DefaultWeeks = 8

// Filter narrows the collection analytics are computed over.
type Filter struct {
	// WindowDays drops tasks due more than this many days ago. 0 keeps all.
	WindowDays int `json:"windowDays"`
	// Assignee keeps only tasks assigned to this name when set.
	Assignee string `json:"assignee,omitempty"`
}

// Key identifies the filter in caches.
func (f Filter) Key() string {
	return fmt.Sprintf("w%d|a=%s", f.WindowDays, strings.ToLower(strings.TrimSpace(f.Assignee)))
}

// Scope applies f to tasks and returns the matching subset in input order.
// Tasks without a due date are never excluded by the window.
func Scope(tasks []derive.DerivedTask, f Filter, now time.Time) []derive.DerivedTask {
	var cutoff time.Time
	if f.WindowDays > 0 {
		cutoff = now.AddDate(0, 0, -f.WindowDays)
	}
	assignee := strings.TrimSpace(f.Assignee)

	out := make([]derive.DerivedTask, 0, len(tasks))
	for _, t := range tasks {
		if !cutoff.IsZero() && t.DueDate != nil && t.DueDate.Before(cutoff) {
			continue
		}
		if assignee != "" && !strings.EqualFold(strings.TrimSpace(t.Assignee), assignee) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Summary holds the headline counters.
type Summary struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Pending int `json:"pending"`
	Overdue int `json:"overdue"`
	// CompletionRate is a percentage rounded to one decimal.
	CompletionRate float64 `json:"completionRate"`
}

// Summarize counts totals over tasks.
func Summarize(tasks []derive.DerivedTask) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		if t.Status == backend.StatusDone {
			s.Done++
		}
		if t.Overdue {
			s.Overdue++
		}
	}
	s.Pending = s.Total - s.Done
	if s.Total > 0 {
		s.CompletionRate = math.Round(float64(s.Done)/float64(s.Total)*1000) / 10
	}
	return s
}

// Distribution counts tasks per status and per priority.
type Distribution struct {
	Status   map[backend.Status]int   `json:"status"`
	Priority map[backend.Priority]int `json:"priority"`
	Overdue  int                      `json:"overdue"`
}

// Distribute returns per-status and per-priority counts. Every known status
// and priority is present, with zero when no task has it.
func Distribute(tasks []derive.DerivedTask) Distribution {
	d := Distribution{
		Status:   make(map[backend.Status]int, len(backend.Statuses)),
		Priority: make(map[backend.Priority]int, len(backend.Priorities)),
	}
	for _, s := range backend.Statuses {
		d.Status[s] = 0
	}
	for _, p := range backend.Priorities {
		d.Priority[p] = 0
	}
	for _, t := range tasks {
		if t.Status.Valid() {
			d.Status[t.Status]++
		}
		if t.Priority.Valid() {
			d.Priority[t.Priority]++
		}
		if t.Overdue {
			d.Overdue++
		}
	}
	return d
}

// Matrix counts tasks by status (rows, OPEN first) and priority
// (columns, HIGH first).
type Matrix [3][3]int

// PriorityStatusMatrix builds the status × priority grid. Tasks with unknown
// status or priority are skipped.
func PriorityStatusMatrix(tasks []derive.DerivedTask) Matrix {
	var m Matrix
	for _, t := range tasks {
		if t.Status.Valid() && t.Priority.Valid() {
			m[t.Status.Rank()][t.Priority.Rank()]++
		}
	}
	return m
}

// Get returns the count for one cell.
func (m Matrix) Get(s backend.Status, p backend.Priority) int {
	if !s.Valid() || !p.Valid() {
		return 0
	}
	return m[s.Rank()][p.Rank()]
}

// Report is every aggregate a dashboard panel needs, computed at once.
type Report struct {
	Filter       Filter           `json:"filter"`
	GeneratedAt  time.Time        `json:"generatedAt"`
	Summary      Summary          `json:"summary"`
	Distribution Distribution     `json:"distribution"`
	Weekly       Series           `json:"weeklyCompletion"`
	Flow         CreatedCompleted `json:"createdVsCompleted"`
	Trend        StatusTrend      `json:"statusTrend"`
	Matrix       Matrix           `json:"matrix"`
	Assignees    []AssigneeLoad   `json:"assignees"`
	Radar        Radar            `json:"radar"`
}

// Compute scopes tasks with f and builds a Report with weeks-long series.
func Compute(tasks []derive.DerivedTask, f Filter, now time.Time, weeks int) Report {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	scoped := Scope(tasks, f, now)
	return Report{
		Filter:       f,
		GeneratedAt:  now,
		Summary:      Summarize(scoped),
		Distribution: Distribute(scoped),
		Weekly:       WeeklyCompletion(scoped, now, weeks),
		Flow:         CreatedVsCompleted(scoped, now, weeks),
		Trend:        Trend(scoped, now, weeks),
		Matrix:       PriorityStatusMatrix(scoped),
		Assignees:    LoadByAssignee(scoped),
		Radar:        RadarScore(scoped),
	}
}
