package views

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"taskdash/internal/derive"
)

// Renderer writes query results as a bordered table
type Renderer struct {
	view   *View
	writer io.Writer
}

// NewRenderer creates a new view renderer
func NewRenderer(view *View, writer io.Writer) *Renderer {
	if view == nil {
		view = DefaultView()
	}
	return &Renderer{view: view, writer: writer}
}

// Render writes one page of results followed by a page footer.
func (r *Renderer) Render(res Result) {
	if res.Total == 0 {
		_, _ = fmt.Fprintln(r.writer, "No tasks")
		return
	}

	headers := make([]string, len(r.view.Fields))
	for i, f := range r.view.Fields {
		headers[i] = FieldLabel(f.Name)
	}

	rows := make([][]string, 0, len(res.Page))
	for i := range res.Page {
		row := make([]string, len(r.view.Fields))
		for j, f := range r.view.Fields {
			row[j] = formatField(&res.Page[i], f)
		}
		rows = append(rows, row)
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	overdueStyle := cellStyle.Foreground(lipgloss.Color("9"))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			style := cellStyle
			if row >= 0 && row < len(res.Page) && res.Page[row].Overdue {
				style = overdueStyle
			}
			if col < len(r.view.Fields) {
				style = style.Align(alignment(r.view.Fields[col].Align))
			}
			return style
		})

	_, _ = fmt.Fprintln(r.writer, t.Render())
	_, _ = fmt.Fprintf(r.writer, "Page %d/%d (%d tasks)\n", res.PageNumber, res.TotalPages, res.Total)
}

func alignment(align string) lipgloss.Position {
	switch align {
	case "right":
		return lipgloss.Right
	case "center":
		return lipgloss.Center
	}
	return lipgloss.Left
}

// formatField formats a task field according to field configuration
func formatField(t *derive.DerivedTask, field Field) string {
	var value string

	switch field.Name {
	case "id":
		value = t.ID
	case "title":
		value = t.Title
	case "description":
		value = t.Description
	case "status":
		value = StatusLabel(t.Status)
	case "priority":
		value = PriorityLabel(t.Priority)
	case "escalated":
		value = PriorityLabel(t.EscalatedPriority)
	case "due_date":
		value = formatDate(t.DueDate, field.Format)
	case "assignee":
		value = t.Assignee
	case "overdue":
		if t.Overdue {
			value = "yes"
		}
	case "created":
		value = formatDate(t.CreatedAtApprox, field.Format)
		if value != "" && t.CreatedAtEstimated {
			value = "~" + value
		}
	case "complexity":
		value = strconv.Itoa(t.ComplexityScore)
	case "effort":
		value = strconv.Itoa(t.EffortDays) + "d"
	}

	if field.Width > 0 && field.Truncate {
		value = Truncate(value, field.Width)
	}
	return value
}

// Truncate shortens s to at most width characters, ending in "..." when cut.
func Truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// formatDate formats a date pointer for display
func formatDate(t *time.Time, format string) string {
	if t == nil {
		return ""
	}
	if format == "" {
		format = DefaultDateFormat
	}
	return t.Format(format)
}

// RenderTasksWithView is a convenience function for rendering a result with a view
func RenderTasksWithView(res Result, view *View, writer io.Writer) {
	NewRenderer(view, writer).Render(res)
}
