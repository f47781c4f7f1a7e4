package analytics

import (
	"fmt"
	"testing"
	"time"

	"taskdash/backend"
	"taskdash/internal/derive"
)

// Wednesday
var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func daysFromNow(d int) *time.Time {
	t := now.AddDate(0, 0, d)
	return &t
}

func fixture() []derive.DerivedTask {
	return derive.Derive([]backend.Task{
		{ID: "1", Title: "a", Status: backend.StatusOpen, Priority: backend.PriorityHigh, DueDate: daysFromNow(-2), Assignee: "bob"},
		{ID: "2", Title: "b", Status: backend.StatusInProgress, Priority: backend.PriorityMedium, DueDate: daysFromNow(3), Assignee: "bob"},
		{ID: "3", Title: "c", Status: backend.StatusDone, Priority: backend.PriorityLow, DueDate: daysFromNow(-1), Assignee: "carol"},
		{ID: "4", Title: "d", Status: backend.StatusDone, Priority: backend.PriorityHigh, DueDate: daysFromNow(-60)},
		{ID: "5", Title: "e", Status: backend.StatusOpen, Priority: backend.PriorityLow},
	}, now)
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture())
	want := Summary{Total: 5, Done: 2, Pending: 3, Overdue: 1, CompletionRate: 40}
	if s != want {
		t.Errorf("Summarize = %+v, want %+v", s, want)
	}

	thirds := derive.Derive([]backend.Task{
		{Status: backend.StatusDone}, {Status: backend.StatusOpen}, {Status: backend.StatusOpen},
	}, now)
	if got := Summarize(thirds).CompletionRate; got != 33.3 {
		t.Errorf("CompletionRate = %v, want 33.3", got)
	}
	if got := Summarize(nil); got != (Summary{}) {
		t.Errorf("empty Summarize = %+v", got)
	}
}

func TestDistribute(t *testing.T) {
	d := Distribute(fixture())
	if d.Status[backend.StatusOpen] != 2 || d.Status[backend.StatusInProgress] != 1 || d.Status[backend.StatusDone] != 2 {
		t.Errorf("status counts %v", d.Status)
	}
	if d.Priority[backend.PriorityHigh] != 2 || d.Priority[backend.PriorityMedium] != 1 || d.Priority[backend.PriorityLow] != 2 {
		t.Errorf("priority counts %v", d.Priority)
	}
	if d.Overdue != 1 {
		t.Errorf("overdue = %d", d.Overdue)
	}

	empty := Distribute(nil)
	if len(empty.Status) != 3 || len(empty.Priority) != 3 {
		t.Errorf("empty distribution must be zero-filled: %+v", empty)
	}
	for s, n := range empty.Status {
		if n != 0 {
			t.Errorf("status %s = %d on empty input", s, n)
		}
	}
}

func TestScope(t *testing.T) {
	tasks := fixture()

	windowed := Scope(tasks, Filter{WindowDays: 30}, now)
	if len(windowed) != 4 {
		t.Errorf("30-day window should drop the task due 60 days ago, got %d tasks", len(windowed))
	}

	bob := Scope(tasks, Filter{Assignee: " BOB "}, now)
	if len(bob) != 2 {
		t.Errorf("assignee scope returned %d tasks", len(bob))
	}

	if len(Scope(tasks, Filter{}, now)) != len(tasks) {
		t.Error("empty filter must keep every task")
	}
}

func TestFilterKey(t *testing.T) {
	if (Filter{WindowDays: 7, Assignee: "Bob"}).Key() != (Filter{WindowDays: 7, Assignee: "bob "}).Key() {
		t.Error("keys should ignore assignee case and padding")
	}
	if (Filter{WindowDays: 7}).Key() == (Filter{WindowDays: 30}).Key() {
		t.Error("different windows must have different keys")
	}
}

func TestMatrix(t *testing.T) {
	m := PriorityStatusMatrix(fixture())
	if m.Get(backend.StatusOpen, backend.PriorityHigh) != 1 ||
		m.Get(backend.StatusOpen, backend.PriorityLow) != 1 ||
		m.Get(backend.StatusDone, backend.PriorityHigh) != 1 ||
		m.Get(backend.StatusInProgress, backend.PriorityMedium) != 1 {
		t.Errorf("unexpected matrix %v", m)
	}
	sum := 0
	for _, row := range m {
		for _, n := range row {
			sum += n
		}
	}
	if sum != 5 {
		t.Errorf("matrix total = %d", sum)
	}
	if m.Get("BOGUS", backend.PriorityLow) != 0 {
		t.Error("unknown status should read zero")
	}
}

func TestLoadByAssignee(t *testing.T) {
	loads := LoadByAssignee(fixture())
	if len(loads) != 3 {
		t.Fatalf("got %d groups: %+v", len(loads), loads)
	}
	if loads[0] != (AssigneeLoad{Assignee: UnassignedLabel, Total: 2, Done: 1}) {
		t.Errorf("unexpected first group %+v", loads[0])
	}
	if loads[1] != (AssigneeLoad{Assignee: "bob", Total: 2, Overdue: 1}) {
		t.Errorf("unexpected second group %+v", loads[1])
	}
	if loads[2].Assignee != "carol" {
		t.Errorf("ties must break by name: %+v", loads)
	}
}

func TestLoadByAssigneeTruncates(t *testing.T) {
	var raw []backend.Task
	for i := 0; i < 20; i++ {
		for j := 0; j <= i; j++ {
			raw = append(raw, backend.Task{Assignee: fmt.Sprintf("user%02d", i)})
		}
	}
	loads := LoadByAssignee(derive.Derive(raw, now))
	if len(loads) != MaxAssignees {
		t.Fatalf("got %d groups, want %d", len(loads), MaxAssignees)
	}
	if loads[0].Assignee != "user19" || loads[0].Total != 20 {
		t.Errorf("busiest assignee should come first, got %+v", loads[0])
	}
	for i := 1; i < len(loads); i++ {
		if loads[i].Total > loads[i-1].Total {
			t.Fatalf("not sorted descending at %d", i)
		}
	}
}

func TestRadarScore(t *testing.T) {
	if got := RadarScore(nil); got != (Radar{}) {
		t.Errorf("empty subset must score zero, got %+v", got)
	}

	long := derive.Derive([]backend.Task{
		{Title: "x", Status: backend.StatusDone, Assignee: "bob"},
		{Title: "y", Status: backend.StatusOpen, DueDate: daysFromNow(-1)},
		{Title: "z", Status: backend.StatusOpen},
	}, now)
	long[0].ComplexityScore = 90
	long[1].ComplexityScore = 30
	long[2].ComplexityScore = 0
	long[0].EffortDays = 500 // clamps to 100
	long[1].EffortDays = 20

	r := RadarScore(long)
	want := Radar{Completion: 33, LowOverdue: 67, Assignment: 33, Complexity: 40, Effort: 40}
	if r != want {
		t.Errorf("RadarScore = %+v, want %+v", r, want)
	}
	if len(r.Values()) != len(RadarAxes) {
		t.Error("Values and RadarAxes must line up")
	}
}

func TestCompute(t *testing.T) {
	r := Compute(fixture(), Filter{WindowDays: 30}, now, 0)
	if r.Summary.Total != 4 {
		t.Errorf("report should be scoped, total = %d", r.Summary.Total)
	}
	if len(r.Weekly.Counts) != DefaultWeeks || len(r.Trend.Labels) != DefaultWeeks || len(r.Flow.Created) != DefaultWeeks {
		t.Error("series must default to DefaultWeeks points")
	}

	empty := Compute(nil, Filter{}, now, 4)
	if len(empty.Weekly.Counts) != 4 || empty.Radar != (Radar{}) || len(empty.Assignees) != 0 {
		t.Errorf("unexpected empty report %+v", empty)
	}
}
