package analytics

import (
	"testing"
	"time"

	"taskdash/backend"
	"taskdash/internal/derive"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "2025-03-10"}, // Monday
		{time.Date(2025, 3, 12, 23, 59, 0, 0, time.UTC), "2025-03-10"},
		{time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC), "2025-03-10"}, // Sunday
		{time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC), "2025-02-24"},   // across a month
		{time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), "2024-12-30"},   // across a year
	}
	for _, tt := range tests {
		got := WeekStart(tt.in)
		if got.Format(WeekKeyFormat) != tt.want || got.Weekday() != time.Monday || got.Hour() != 0 {
			t.Errorf("WeekStart(%v) = %v, want %s", tt.in, got, tt.want)
		}
	}
}

func TestWeeklyCompletionShape(t *testing.T) {
	for _, n := range []int{1, 4, 8, 52} {
		s := WeeklyCompletion(nil, now, n)
		if len(s.Labels) != n || len(s.Counts) != n {
			t.Errorf("n=%d: got %d labels and %d counts", n, len(s.Labels), len(s.Counts))
		}
	}
	s := WeeklyCompletion(nil, now, 3)
	want := []string{"2025-02-24", "2025-03-03", "2025-03-10"}
	for i := range want {
		if s.Labels[i] != want[i] {
			t.Errorf("labels = %v, want %v", s.Labels, want)
			break
		}
	}
	if got := WeeklyCompletion(nil, now, 0); len(got.Counts) != 0 {
		t.Error("zero weeks should produce an empty series")
	}
}

func TestWeeklyCompletionCounts(t *testing.T) {
	created := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	tasks := derive.Derive([]backend.Task{
		{Status: backend.StatusDone, DueDate: daysFromNow(-1)},       // this week
		{Status: backend.StatusDone, DueDate: daysFromNow(-9)},       // last week
		{Status: backend.StatusDone, CreatedAt: &created},            // no due: falls back to created
		{Status: backend.StatusOpen, DueDate: daysFromNow(-1)},       // not done
		{Status: backend.StatusDone, DueDate: daysFromNow(-100)},     // outside window
		{Status: backend.StatusDone},                                 // no dates at all
		{ID: "67c6d2a0ffffffffffffffff", Status: backend.StatusDone}, // created 2025-03-04 via id
	}, now)

	s := WeeklyCompletion(tasks, now, 3)
	want := []int{0, 3, 1}
	for i := range want {
		if s.Counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", s.Counts, want)
		}
	}
}

func TestCreatedVsCompleted(t *testing.T) {
	thisWeek := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	tasks := derive.Derive([]backend.Task{
		{CreatedAt: &thisWeek, Status: backend.StatusOpen},
		{CreatedAt: &lastWeek, Status: backend.StatusDone, DueDate: daysFromNow(-1)},
		{CreatedAt: &lastWeek, Status: backend.StatusOpen},
	}, now)

	c := CreatedVsCompleted(tasks, now, 2)
	if len(c.Labels) != 2 {
		t.Fatalf("labels = %v", c.Labels)
	}
	if c.Created[0] != 2 || c.Created[1] != 1 {
		t.Errorf("created = %v", c.Created)
	}
	if c.Completed[0] != 0 || c.Completed[1] != 1 {
		t.Errorf("completed = %v", c.Completed)
	}
}

func TestTrend(t *testing.T) {
	tasks := derive.Derive([]backend.Task{
		{Status: backend.StatusOpen, DueDate: daysFromNow(1)},
		{Status: backend.StatusInProgress, DueDate: daysFromNow(-8)},
		{Status: backend.StatusDone, DueDate: daysFromNow(0)},
		{Status: backend.StatusOpen},
	}, now)

	tr := Trend(tasks, now, 2)
	if tr.Open[1] != 1 || tr.Done[1] != 1 || tr.InProgress[0] != 1 {
		t.Errorf("unexpected trend %+v", tr)
	}
	if tr.Open[0] != 0 || tr.InProgress[1] != 0 || tr.Done[0] != 0 {
		t.Errorf("unexpected trend %+v", tr)
	}
}

func TestBucketsUseReferenceLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ref := time.Date(2025, 3, 10, 8, 0, 0, 0, loc) // Monday morning local
	// Sunday 23:00 UTC is already Monday in ref's zone.
	due := time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)
	tasks := derive.Derive([]backend.Task{{Status: backend.StatusDone, DueDate: &due}}, ref)

	s := WeeklyCompletion(tasks, ref, 2)
	if s.Counts[1] != 1 {
		t.Errorf("task should land in the current local week, got %v", s.Counts)
	}
}

func TestCalendarMonth(t *testing.T) {
	due := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	prev := time.Date(2025, 2, 28, 15, 0, 0, 0, time.UTC)
	tasks := derive.Derive([]backend.Task{
		{ID: "a", DueDate: &due},
		{ID: "b", DueDate: &due},
		{ID: "c", DueDate: &prev},
		{ID: "d"},
	}, now)

	cal := CalendarMonth(tasks, now)
	if cal.Month != time.March || cal.Year != 2025 {
		t.Fatalf("wrong month %v %d", cal.Month, cal.Year)
	}
	// March 2025 starts on a Saturday and ends on a Monday: 6 rows.
	if len(cal.Weeks) != 6 {
		t.Fatalf("got %d weeks", len(cal.Weeks))
	}
	first := cal.Weeks[0][0]
	if first.Date.Format(WeekKeyFormat) != "2025-02-24" || first.InMonth {
		t.Errorf("grid should start on Monday 2025-02-24 outside the month, got %+v", first)
	}
	if len(cal.Weeks[0][4].Tasks) != 1 || cal.Weeks[0][4].Tasks[0].ID != "c" {
		t.Errorf("Feb 28 should hold task c: %+v", cal.Weeks[0][4])
	}

	found := false
	for _, week := range cal.Weeks {
		for _, d := range week {
			if d.Date.Day() == 12 && d.InMonth {
				found = true
				if len(d.Tasks) != 2 {
					t.Errorf("March 12 should hold 2 tasks, got %d", len(d.Tasks))
				}
			}
		}
	}
	if !found {
		t.Error("March 12 missing from grid")
	}
}
