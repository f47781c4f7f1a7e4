package analytics

import (
	"math"
	"sort"
	"strings"

	"taskdash/backend"
	"taskdash/internal/derive"
)

const (
	// UnassignedLabel groups tasks with a blank assignee.
	UnassignedLabel = "Unassigned"
	// MaxAssignees bounds the per-assignee load list.
	MaxAssignees = 12
)

// AssigneeLoad is the productivity of one assignee.
type AssigneeLoad struct {
	Assignee string `json:"assignee"`
	Total    int    `json:"total"`
	Done     int    `json:"done"`
	Overdue  int    `json:"overdue"`
}

// LoadByAssignee groups tasks by assignee, sorted by total descending then
// name, and keeps the top MaxAssignees.
func LoadByAssignee(tasks []derive.DerivedTask) []AssigneeLoad {
	groups := make(map[string]*AssigneeLoad)
	for _, t := range tasks {
		name := strings.TrimSpace(t.Assignee)
		if name == "" {
			name = UnassignedLabel
		}
		g, ok := groups[name]
		if !ok {
			g = &AssigneeLoad{Assignee: name}
			groups[name] = g
		}
		g.Total++
		if t.Status == backend.StatusDone {
			g.Done++
		}
		if t.Overdue {
			g.Overdue++
		}
	}

	out := make([]AssigneeLoad, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Assignee < out[j].Assignee
	})
	if len(out) > MaxAssignees {
		out = out[:MaxAssignees]
	}
	return out
}

// Radar is the five-axis team score. Every axis is a whole percentage
// where higher is better.
type Radar struct {
	Completion int `json:"completion"`
	LowOverdue int `json:"lowOverdue"`
	Assignment int `json:"assignment"`
	Complexity int `json:"complexity"`
	Effort     int `json:"effort"`
}

// RadarAxes names the axes in Values order.
var RadarAxes = []string{"Completion", "On time", "Assigned", "Complexity", "Effort"}

// Values returns the axes in RadarAxes order.
func (r Radar) Values() []int {
	return []int{r.Completion, r.LowOverdue, r.Assignment, r.Complexity, r.Effort}
}

// RadarScore computes the team radar over tasks. An empty subset scores zero
// on every axis.
func RadarScore(tasks []derive.DerivedTask) Radar {
	if len(tasks) == 0 {
		return Radar{}
	}
	n := float64(len(tasks))

	var done, overdue, assigned, complexity, effort int
	for _, t := range tasks {
		if t.Status == backend.StatusDone {
			done++
		}
		if t.Overdue {
			overdue++
		}
		if strings.TrimSpace(t.Assignee) != "" {
			assigned++
		}
		complexity += clamp(t.ComplexityScore)
		effort += clamp(t.EffortDays)
	}

	return Radar{
		Completion: percent(float64(done) / n * 100),
		LowOverdue: percent(100 - float64(overdue)/n*100),
		Assignment: percent(float64(assigned) / n * 100),
		Complexity: percent(float64(complexity) / n),
		Effort:     percent(float64(effort) / n),
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func percent(v float64) int {
	return clamp(int(math.Round(v)))
}
