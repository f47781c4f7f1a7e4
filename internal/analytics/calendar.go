package analytics

import (
	"time"

	"taskdash/internal/derive"
)

// CalendarDay is one cell of a month grid.
type CalendarDay struct {
	Date    time.Time
	InMonth bool
	Tasks   []derive.DerivedTask
}

// Calendar is a Monday-first month grid.
type Calendar struct {
	Year  int
	Month time.Month
	Weeks [][7]CalendarDay
}

// CalendarMonth lays out the month containing ref and places every task on
// the day of its due date. Leading and trailing days from neighbouring months
// fill the first and last weeks.
func CalendarMonth(tasks []derive.DerivedTask, ref time.Time) Calendar {
	loc := ref.Location()
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	byDay := make(map[string][]derive.DerivedTask)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		key := t.DueDate.In(loc).Format(WeekKeyFormat)
		byDay[key] = append(byDay[key], t)
	}

	cal := Calendar{Year: first.Year(), Month: first.Month()}
	for start := WeekStart(first); start.Before(next); start = start.AddDate(0, 0, 7) {
		var week [7]CalendarDay
		for i := 0; i < 7; i++ {
			d := start.AddDate(0, 0, i)
			week[i] = CalendarDay{
				Date:    d,
				InMonth: d.Month() == first.Month(),
				Tasks:   byDay[d.Format(WeekKeyFormat)],
			}
		}
		cal.Weeks = append(cal.Weeks, week)
	}
	return cal
}
