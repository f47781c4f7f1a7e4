package analytics

import (
	"time"

	"taskdash/backend"
	"taskdash/internal/derive"
)

// WeekKeyFormat formats bucket keys.
const WeekKeyFormat = "2006-01-02"

// Series is a labelled count per week bucket, oldest first.
type Series struct {
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
}

// CreatedCompleted pairs created and completed counts per week.
type CreatedCompleted struct {
	Labels    []string `json:"labels"`
	Created   []int    `json:"created"`
	Completed []int    `json:"completed"`
}

// StatusTrend counts tasks per status for each week, bucketed by due date.
type StatusTrend struct {
	Labels     []string `json:"labels"`
	Open       []int    `json:"open"`
	InProgress []int    `json:"inProgress"`
	Done       []int    `json:"done"`
}

// WeekStart returns midnight of the Monday on or before t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return d.AddDate(0, 0, -offset)
}

// weeks holds n consecutive Monday buckets ending with the week of ref.
type weeks struct {
	loc    *time.Location
	starts []time.Time
	index  map[string]int
}

func newWeeks(ref time.Time, n int) weeks {
	if n < 0 {
		n = 0
	}
	last := WeekStart(ref)
	w := weeks{loc: ref.Location(), starts: make([]time.Time, n), index: make(map[string]int, n)}
	for i := 0; i < n; i++ {
		start := last.AddDate(0, 0, -7*(n-1-i))
		w.starts[i] = start
		w.index[start.Format(WeekKeyFormat)] = i
	}
	return w
}

func (w weeks) labels() []string {
	out := make([]string, len(w.starts))
	for i, s := range w.starts {
		out[i] = s.Format(WeekKeyFormat)
	}
	return out
}

// bucket returns the index of the week containing t, or -1.
func (w weeks) bucket(t *time.Time) int {
	if t == nil {
		return -1
	}
	key := WeekStart(t.In(w.loc)).Format(WeekKeyFormat)
	if i, ok := w.index[key]; ok {
		return i
	}
	return -1
}

// completedAt is the instant a DONE task is attributed to: its due date,
// else its approximate creation time.
func completedAt(t *derive.DerivedTask) *time.Time {
	if t.DueDate != nil {
		return t.DueDate
	}
	return t.CreatedAtApprox
}

// WeeklyCompletion counts DONE tasks per week for the n weeks ending with
// the week of ref. The series always has exactly n points.
func WeeklyCompletion(tasks []derive.DerivedTask, ref time.Time, n int) Series {
	w := newWeeks(ref, n)
	s := Series{Labels: w.labels(), Counts: make([]int, len(w.starts))}
	for i := range tasks {
		if tasks[i].Status != backend.StatusDone {
			continue
		}
		if b := w.bucket(completedAt(&tasks[i])); b >= 0 {
			s.Counts[b]++
		}
	}
	return s
}

// CreatedVsCompleted returns tasks created per week (by approximate creation
// time) alongside DONE tasks per week (as in WeeklyCompletion).
func CreatedVsCompleted(tasks []derive.DerivedTask, ref time.Time, n int) CreatedCompleted {
	w := newWeeks(ref, n)
	c := CreatedCompleted{
		Labels:    w.labels(),
		Created:   make([]int, len(w.starts)),
		Completed: make([]int, len(w.starts)),
	}
	for i := range tasks {
		if b := w.bucket(tasks[i].CreatedAtApprox); b >= 0 {
			c.Created[b]++
		}
		if tasks[i].Status == backend.StatusDone {
			if b := w.bucket(completedAt(&tasks[i])); b >= 0 {
				c.Completed[b]++
			}
		}
	}
	return c
}

// Trend counts OPEN, IN_PROGRESS and DONE tasks per week of their due date.
// Tasks without a due date are not counted.
func Trend(tasks []derive.DerivedTask, ref time.Time, n int) StatusTrend {
	w := newWeeks(ref, n)
	size := len(w.starts)
	tr := StatusTrend{Labels: w.labels(), Open: make([]int, size), InProgress: make([]int, size), Done: make([]int, size)}
	for i := range tasks {
		b := w.bucket(tasks[i].DueDate)
		if b < 0 {
			continue
		}
		switch tasks[i].Status {
		case backend.StatusOpen:
			tr.Open[b]++
		case backend.StatusInProgress:
			tr.InProgress[b]++
		case backend.StatusDone:
			tr.Done[b]++
		}
	}
	return tr
}
