package charts

import (
	"fmt"

	"taskdash/backend"
	"taskdash/internal/analytics"
	"taskdash/internal/views"
)

// Chart ids.
const (
	IDStatus    = "status"
	IDPriority  = "priority"
	IDWeekly    = "weekly"
	IDFlow      = "created-vs-completed"
	IDMatrix    = "matrix"
	IDAssignees = "assignees"
	IDRadar     = "radar"
	IDTrend     = "trend"
)

// UserCharts are shown on the user panel.
var UserCharts = []string{IDStatus, IDPriority, IDWeekly, IDFlow}

// AdminCharts are shown on the admin panel.
var AdminCharts = []string{IDStatus, IDPriority, IDWeekly, IDFlow, IDMatrix, IDAssignees, IDRadar, IDTrend}

const estimateNote = "estimated from ids and text length"

// Build returns the widget config for chart id from report r.
func Build(id string, r analytics.Report, theme Theme) (Config, error) {
	switch id {
	case IDStatus:
		labels := make([]string, len(backend.Statuses))
		values := make([]int, len(backend.Statuses))
		for i, s := range backend.Statuses {
			labels[i] = views.StatusLabel(s)
			values[i] = r.Distribution.Status[s]
		}
		return Config{
			Kind:   KindBar,
			Title:  fmt.Sprintf("Status (%d overdue)", r.Distribution.Overdue),
			Labels: labels,
			Series: []Series{{Name: "Tasks", Values: values}},
			Theme:  theme,
		}, nil

	case IDPriority:
		labels := make([]string, len(backend.Priorities))
		values := make([]int, len(backend.Priorities))
		for i, p := range backend.Priorities {
			labels[i] = views.PriorityLabel(p)
			values[i] = r.Distribution.Priority[p]
		}
		return Config{
			Kind:   KindBar,
			Title:  "Priority",
			Labels: labels,
			Series: []Series{{Name: "Tasks", Values: values}},
			Theme:  theme,
		}, nil

	case IDWeekly:
		return Config{
			Kind:   KindLine,
			Title:  "Completed per week",
			Labels: r.Weekly.Labels,
			Series: []Series{{Name: "Done", Values: r.Weekly.Counts}},
			Theme:  theme,
		}, nil

	case IDFlow:
		return Config{
			Kind:   KindLine,
			Title:  "Created vs completed",
			Labels: r.Flow.Labels,
			Series: []Series{
				{Name: "Created", Values: r.Flow.Created},
				{Name: "Completed", Values: r.Flow.Completed},
			},
			Theme: theme,
			Note:  "created dates " + estimateNote,
		}, nil

	case IDMatrix:
		labels := make([]string, len(backend.Priorities))
		for i, p := range backend.Priorities {
			labels[i] = views.PriorityLabel(p)
		}
		series := make([]Series, len(backend.Statuses))
		for i, s := range backend.Statuses {
			values := make([]int, len(backend.Priorities))
			for j, p := range backend.Priorities {
				values[j] = r.Matrix.Get(s, p)
			}
			series[i] = Series{Name: views.StatusLabel(s), Values: values}
		}
		return Config{Kind: KindMatrix, Title: "Status × priority", Labels: labels, Series: series, Theme: theme}, nil

	case IDAssignees:
		labels := make([]string, len(r.Assignees))
		done := make([]int, len(r.Assignees))
		open := make([]int, len(r.Assignees))
		for i, a := range r.Assignees {
			labels[i] = a.Assignee
			done[i] = a.Done
			open[i] = a.Total - a.Done
		}
		return Config{
			Kind:   KindStacked,
			Title:  "Team load",
			Labels: labels,
			Series: []Series{{Name: "Done", Values: done}, {Name: "Open", Values: open}},
			Theme:  theme,
		}, nil

	case IDRadar:
		return Config{
			Kind:   KindRadar,
			Title:  "Team radar",
			Labels: analytics.RadarAxes,
			Series: []Series{{Name: "Score", Values: r.Radar.Values()}},
			Theme:  theme,
			Note:   "complexity and effort " + estimateNote,
		}, nil

	case IDTrend:
		return Config{
			Kind:   KindStacked,
			Title:  "Status by due week",
			Labels: r.Trend.Labels,
			Series: []Series{
				{Name: views.StatusLabel(backend.StatusOpen), Values: r.Trend.Open},
				{Name: views.StatusLabel(backend.StatusInProgress), Values: r.Trend.InProgress},
				{Name: views.StatusLabel(backend.StatusDone), Values: r.Trend.Done},
			},
			Theme: theme,
		}, nil
	}
	return Config{}, fmt.Errorf("unknown chart %q", id)
}
