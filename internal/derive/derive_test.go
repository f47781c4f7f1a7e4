package derive

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"taskdash/backend"
)

var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func TestCreatedAtFromID(t *testing.T) {
	tests := []struct {
		id   string
		want *time.Time
	}{
		{"507f191e810c19729de860ea", at(time.Date(2012, 10, 17, 20, 46, 22, 0, time.UTC))},
		{"507f191e", at(time.Date(2012, 10, 17, 20, 46, 22, 0, time.UTC))},
		{"not-hex!!", nil},
		{"507f19", nil},
		{"", nil},
		{"zzzzzzzz1234", nil},
	}
	for _, tt := range tests {
		got, ok := CreatedAtFromID(tt.id)
		if ok != (tt.want != nil) {
			t.Errorf("CreatedAtFromID(%q) ok = %v", tt.id, ok)
			continue
		}
		if ok && !got.Equal(*tt.want) {
			t.Errorf("CreatedAtFromID(%q) = %v, want %v", tt.id, got, *tt.want)
		}
	}
}

func TestDeriveCreatedAt(t *testing.T) {
	explicit := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tasks := []backend.Task{
		{ID: "507f191e810c19729de860ea", CreatedAt: &explicit},
		{ID: "507f191e810c19729de860ea"},
		{ID: "not-hex!!"},
	}
	got := Derive(tasks, now)

	if !got[0].CreatedAtApprox.Equal(explicit) || got[0].CreatedAtEstimated {
		t.Errorf("explicit createdAt should win: %+v", got[0])
	}
	if got[1].CreatedAtApprox == nil || got[1].CreatedAtApprox.Unix() != 1350506782 || !got[1].CreatedAtEstimated {
		t.Errorf("id-decoded createdAt wrong: %+v", got[1])
	}
	if got[2].CreatedAtApprox != nil {
		t.Errorf("non-hex id must leave createdAt absent, got %v", got[2].CreatedAtApprox)
	}
}

func TestOverdue(t *testing.T) {
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)
	tests := []struct {
		name string
		task backend.Task
		want bool
	}{
		{"open past due", backend.Task{Status: backend.StatusOpen, DueDate: &yesterday}, true},
		{"in progress past due", backend.Task{Status: backend.StatusInProgress, DueDate: &yesterday}, true},
		{"done past due", backend.Task{Status: backend.StatusDone, DueDate: &yesterday}, false},
		{"open future", backend.Task{Status: backend.StatusOpen, DueDate: &tomorrow}, false},
		{"due exactly now", backend.Task{Status: backend.StatusOpen, DueDate: at(now)}, false},
		{"no due date", backend.Task{Status: backend.StatusOpen}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveOne(tt.task, now).Overdue; got != tt.want {
				t.Errorf("Overdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComplexity(t *testing.T) {
	tests := []struct {
		title, desc string
		want        int
	}{
		{"", "", 0},
		{"  Fix  ", "", 2},
		{"Write report", "", 10},
		{"abcde", "abcdefghij", 7},
		{"Überprüfung", "", 9}, // 11 characters, 13 bytes
		{strings.Repeat("x", 500), "", 100},
		{"t", strings.Repeat("y", 10000), 100},
	}
	for _, tt := range tests {
		if got := Complexity(tt.title, tt.desc); got != tt.want {
			t.Errorf("Complexity(%q, %d chars) = %d, want %d", tt.title, len(tt.desc), got, tt.want)
		}
	}
}

func TestEffort(t *testing.T) {
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  *time.Time
		cr   *time.Time
		want int
	}{
		{"ten days", at(created.AddDate(0, 0, 10)), &created, 10},
		{"rounds up", at(created.Add(36 * time.Hour)), &created, 2},
		{"rounds down", at(created.Add(30 * time.Hour)), &created, 1},
		{"due before created", at(created.AddDate(0, 0, -3)), &created, 0},
		{"no due", nil, &created, 0},
		{"no created", at(created), nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Effort(tt.cr, tt.due); got != tt.want {
				t.Errorf("Effort = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEscalate(t *testing.T) {
	past := now.Add(-time.Hour)
	soon := now.Add(12 * time.Hour)
	later := now.Add(72 * time.Hour)
	tests := []struct {
		name string
		task backend.Task
		want backend.Priority
	}{
		{"overdue low", backend.Task{Status: backend.StatusOpen, Priority: backend.PriorityLow, DueDate: &past}, backend.PriorityHigh},
		{"soon low", backend.Task{Status: backend.StatusOpen, Priority: backend.PriorityLow, DueDate: &soon}, backend.PriorityMedium},
		{"soon medium", backend.Task{Status: backend.StatusInProgress, Priority: backend.PriorityMedium, DueDate: &soon}, backend.PriorityHigh},
		{"later low", backend.Task{Status: backend.StatusOpen, Priority: backend.PriorityLow, DueDate: &later}, backend.PriorityLow},
		{"done overdue", backend.Task{Status: backend.StatusDone, Priority: backend.PriorityLow, DueDate: &past}, backend.PriorityLow},
		{"no due", backend.Task{Status: backend.StatusOpen, Priority: backend.PriorityMedium}, backend.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveOne(tt.task, now).EscalatedPriority; got != tt.want {
				t.Errorf("EscalatedPriority = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveIsPure(t *testing.T) {
	due := now.Add(-48 * time.Hour)
	tasks := []backend.Task{
		{ID: "507f191e810c19729de860ea", Title: "Ship", Status: backend.StatusOpen, Priority: backend.PriorityLow, DueDate: &due},
		{ID: "x", Title: "Other", Status: backend.StatusDone, Priority: backend.PriorityHigh},
	}
	before := make([]backend.Task, len(tasks))
	copy(before, tasks)
	dueBefore := *tasks[0].DueDate

	first := Derive(tasks, now)
	second := Derive(tasks, now)

	if !reflect.DeepEqual(first, second) {
		t.Error("Derive must return the same output for the same input")
	}
	if !reflect.DeepEqual(tasks, before) || !tasks[0].DueDate.Equal(dueBefore) {
		t.Error("Derive mutated its input")
	}
	if !reflect.DeepEqual(Tasks(first), tasks) {
		t.Error("Tasks should recover the source records")
	}
}

func TestOverdueClearsAfterDone(t *testing.T) {
	yesterday := now.AddDate(0, 0, -1)
	task := backend.Task{ID: "t1", Title: "Pay invoice", Status: backend.StatusOpen, DueDate: &yesterday}

	if !DeriveOne(task, now).Overdue {
		t.Fatal("open task due yesterday should be overdue")
	}
	task.Status = backend.StatusDone
	if DeriveOne(task, now).Overdue {
		t.Error("completed task must not be overdue")
	}
}
