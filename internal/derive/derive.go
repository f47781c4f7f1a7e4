// Package derive enriches raw tasks with computed analytic fields.
//
// Several fields are estimates rather than measurements: the creation time
// decoded from an id, the text-length complexity score, the effort span and
// the escalated priority. Renderers label them as such.
package derive

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"taskdash/backend"
)

// MaxComplexity is the upper bound of ComplexityScore.
const MaxComplexity = 100

const day = 24 * time.Hour

// DerivedTask is a task plus the fields computed on every reload.
type DerivedTask struct {
	backend.Task

	// CreatedAtApprox is CreatedAt when the API supplied one, otherwise the
	// timestamp embedded in the id, otherwise nil.
	CreatedAtApprox *time.Time
	// CreatedAtEstimated is true when CreatedAtApprox came from the id.
	CreatedAtEstimated bool

	Overdue           bool
	ComplexityScore   int
	EffortDays        int
	EscalatedPriority backend.Priority
}

// Derive returns the enriched form of every task, in input order. The input
// slice and its tasks are not modified.
func Derive(tasks []backend.Task, now time.Time) []DerivedTask {
	out := make([]DerivedTask, len(tasks))
	for i := range tasks {
		out[i] = DeriveOne(tasks[i], now)
	}
	return out
}

// DeriveOne enriches a single task.
func DeriveOne(t backend.Task, now time.Time) DerivedTask {
	d := DerivedTask{Task: t}

	if t.CreatedAt != nil {
		created := *t.CreatedAt
		d.CreatedAtApprox = &created
	} else if created, ok := CreatedAtFromID(t.ID); ok {
		d.CreatedAtApprox = &created
		d.CreatedAtEstimated = true
	}

	d.Overdue = IsOverdue(t, now)
	d.ComplexityScore = Complexity(t.Title, t.Description)
	d.EffortDays = Effort(d.CreatedAtApprox, t.DueDate)
	d.EscalatedPriority = Escalate(t, d.Overdue, now)
	return d
}

// CreatedAtFromID decodes the first 8 hex characters of id as Unix seconds.
func CreatedAtFromID(id string) (time.Time, bool) {
	if len(id) < 8 {
		return time.Time{}, false
	}
	secs, err := strconv.ParseUint(id[:8], 16, 32)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(int64(secs), 0).UTC(), true
}

// IsOverdue reports whether t has a due date before now and is not DONE.
func IsOverdue(t backend.Task, now time.Time) bool {
	return t.DueDate != nil && t.Status != backend.StatusDone && t.DueDate.Before(now)
}

// Complexity scores a task 0-100 from the length of its trimmed text.
// Lengths are counted in characters, not bytes.
func Complexity(title, description string) int {
	titleLen := utf8.RuneCountInString(strings.TrimSpace(title))
	descLen := utf8.RuneCountInString(strings.TrimSpace(description))
	score := int(math.Round(0.8*float64(titleLen) + 0.25*float64(descLen)))
	if score > MaxComplexity {
		return MaxComplexity
	}
	return score
}

// Effort is the number of whole days between created and due, rounded, and
// never negative. It is 0 when either end is unknown.
func Effort(created, due *time.Time) int {
	if created == nil || due == nil {
		return 0
	}
	days := math.Round(float64(due.Sub(*created)) / float64(day))
	if days < 0 {
		return 0
	}
	return int(days)
}

// Escalate raises the priority of overdue and soon-due tasks. DONE tasks keep
// their priority.
func Escalate(t backend.Task, overdue bool, now time.Time) backend.Priority {
	if t.Status == backend.StatusDone || t.DueDate == nil {
		return t.Priority
	}
	if overdue {
		return backend.PriorityHigh
	}
	if t.DueDate.Sub(now) <= day {
		switch t.Priority {
		case backend.PriorityLow:
			return backend.PriorityMedium
		case backend.PriorityMedium:
			return backend.PriorityHigh
		}
	}
	return t.Priority
}

// Tasks returns the underlying tasks of derived.
func Tasks(derived []DerivedTask) []backend.Task {
	out := make([]backend.Task, len(derived))
	for i := range derived {
		out[i] = derived[i].Task
	}
	return out
}
