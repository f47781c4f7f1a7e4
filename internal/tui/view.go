package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"taskdash/backend"
	"taskdash/internal/charts"
	"taskdash/internal/dashboard"
	"taskdash/internal/guard"
	"taskdash/internal/notification"
	"taskdash/internal/session"
	"taskdash/internal/views"
)

// wideLayout is the terminal width from which charts sit beside the table.
const wideLayout = 150

type styles struct {
	title     lipgloss.Style
	selected  lipgloss.Style
	help      lipgloss.Style
	muted     lipgloss.Style
	errorText lipgloss.Style
	overdue   lipgloss.Style
	done      lipgloss.Style
	badge     lipgloss.Style
	pane      lipgloss.Style
	dialog    lipgloss.Style
	statusBar lipgloss.Style
	toast     map[notification.Level]lipgloss.Style
}

func newStyles(themeName string) styles {
	theme := charts.ThemeFor(themeName)
	barBg := lipgloss.Color("252")
	if theme.Name == session.ThemeDark {
		barBg = lipgloss.Color("236")
	}
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(theme.Text),
		selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		help:      lipgloss.NewStyle().Foreground(theme.Muted),
		muted:     lipgloss.NewStyle().Foreground(theme.Muted),
		errorText: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		overdue:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		done: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(theme.Muted),
		badge: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1),
		pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBar: lipgloss.NewStyle().
			Background(barBg).
			Foreground(theme.Text).
			Padding(0, 1),
		toast: map[notification.Level]lipgloss.Style{
			notification.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
			notification.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
			notification.LevelInfo:    lipgloss.NewStyle().Foreground(theme.Muted),
		},
	}
}

func errorText(err error) string {
	if err == nil {
		return "Something went wrong; see the log for details"
	}
	return guard.Message(err)
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	// Overlay dialogs
	switch m.mode {
	case ModeLogin:
		return m.centerDialog(m.dialogWithToast(m.login.view(m.styles,
			"Enter: log in  Tab: next field  Ctrl+N: sign up  Esc: quit")))
	case ModeSignup:
		return m.centerDialog(m.dialogWithToast(m.signup.view(m.styles,
			"Enter: create account  Tab: next field  Esc: back to login")))
	case ModeForm:
		return m.centerDialog(m.styles.dialog.Render(m.taskForm.view(m.styles,
			"Enter: save  Tab: next field  Esc: cancel")))
	case ModeSearch:
		return m.centerDialog(m.styles.dialog.Render(
			m.styles.title.Render("Search Tasks") + "\n\n" +
				m.search.View() + "\n\n" +
				m.styles.help.Render("Enter: search  Esc: clear")))
	case ModeConfirmDelete:
		return m.renderConfirmDeleteDialog()
	case ModeCalendar:
		return m.centerDialog(m.styles.dialog.Render(m.renderCalendar()))
	case ModeHelp:
		return m.renderHelpDialog()
	}

	header := m.renderHeader()
	tablePane := m.renderTable()
	// status bar, toast and help take one line each
	avail := m.height - lipgloss.Height(header) - 3
	wide := m.width >= wideLayout
	if !wide {
		avail -= lipgloss.Height(tablePane)
	}
	chartsPane := m.renderCharts(avail)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	if wide && chartsPane != "" {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tablePane, " ", chartsPane))
	} else {
		b.WriteString(tablePane)
		if chartsPane != "" {
			b.WriteString("\n")
			b.WriteString(chartsPane)
		}
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderToast())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) dialogWithToast(body string) string {
	if toast := m.renderToast(); toast != "" {
		body += "\n\n" + toast
	}
	return m.styles.dialog.Render(body)
}

func (m *Model) renderHeader() string {
	left := m.styles.title.Render("taskdash")
	if p := m.state.Profile; p != nil {
		name := p.DisplayName()
		left += "  " + m.styles.badge.Render(session.Initials(name)) + " " + name
	}
	left += m.styles.muted.Render(fmt.Sprintf("  %s panel", m.state.Panel))
	if m.dash.Busy() {
		left += "  " + m.spinner.View()
	}
	return left
}

func (m *Model) tableWidth() int {
	if m.width >= wideLayout {
		return m.width * 3 / 5
	}
	return m.width
}

func (m *Model) renderTable() string {
	width := m.tableWidth() - 4
	if m.result.Total == 0 {
		msg := "No tasks"
		if q := m.dash.QueryState(); q.Term != "" || q.Status != "" || q.Priority != "" {
			msg = "No tasks match the current filters"
		}
		return m.styles.pane.Width(width).Render(m.styles.muted.Render(msg))
	}

	titleW := width - 64
	if titleW < 12 {
		titleW = 12
	}
	rows := make([][]string, 0, len(m.result.Page))
	for i := range m.result.Page {
		t := &m.result.Page[i]
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Local().Format("Jan 02")
		}
		priority := views.PriorityLabel(t.Priority)
		if t.EscalatedPriority != t.Priority {
			priority += "→" + views.PriorityLabel(t.EscalatedPriority) + views.EstimateSuffix
		}
		rows = append(rows, []string{
			cursor,
			views.Truncate(t.Title, titleW),
			views.StatusLabel(t.Status),
			priority,
			due,
			views.Truncate(t.Assignee, 12),
		})
	}

	page := m.result.Page
	cursor := m.cursor
	cell := lipgloss.NewStyle().PaddingRight(1)
	tbl := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("", "Title", "Status", "Priority", "Due", "Assignee").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Inherit(m.styles.title)
			}
			style := cell
			if row < 0 || row >= len(page) {
				return style
			}
			switch {
			case row == cursor:
				style = style.Inherit(m.styles.selected)
			case page[row].Overdue:
				style = style.Inherit(m.styles.overdue)
			case page[row].Status == backend.StatusDone:
				style = style.Inherit(m.styles.done)
			}
			return style
		})

	return m.styles.pane.Width(width).Render(tbl.Render())
}

// renderCharts draws as many charts as fit in maxLines, in registry order.
func (m *Model) renderCharts(maxLines int) string {
	if m.state.Panel == dashboard.PanelPublic {
		return ""
	}
	width := m.width
	if m.width >= wideLayout {
		width = m.width - m.tableWidth() - 1
	}
	width -= 4
	rendered := m.dash.RenderCharts(width)

	title := "Analytics"
	if f := m.dash.AnalyticsFilter(); f.WindowDays > 0 {
		title += fmt.Sprintf(" (last %d days)", f.WindowDays)
	}
	// pane border and title
	used := 3
	var shown []string
	for _, c := range rendered {
		h := lipgloss.Height(c) + 1
		if used+h > maxLines {
			break
		}
		shown = append(shown, c)
		used += h
	}
	if len(shown) == 0 {
		return ""
	}
	body := m.styles.title.Render(title) + "\n" + strings.Join(shown, "\n\n")
	if hidden := len(rendered) - len(shown); hidden > 0 {
		body += "\n" + m.styles.muted.Render(fmt.Sprintf("+%d more charts; enlarge the terminal to see them", hidden))
	}
	return m.styles.pane.Width(width).Render(body)
}

func (m *Model) renderStatusBar() string {
	q := m.dash.QueryState()
	parts := []string{fmt.Sprintf("Page %d/%d", m.result.PageNumber, m.result.TotalPages),
		fmt.Sprintf("%d tasks", m.result.Total)}
	if q.Term != "" {
		parts = append(parts, "search: "+q.Term)
	}
	if q.Status != "" {
		parts = append(parts, "status: "+views.StatusLabel(q.Status))
	}
	if q.Priority != "" {
		parts = append(parts, "priority: "+views.PriorityLabel(q.Priority))
	}
	if q.Sort != views.SortNone {
		parts = append(parts, "sort: "+string(q.Sort))
	}
	left := strings.Join(parts, " · ")

	right := "not loaded"
	if !m.state.LoadedAt.IsZero() {
		right = "updated " + humanize.RelTime(m.state.LoadedAt, m.now(), "ago", "from now")
	}
	if m.dash.AutoRefresh() {
		right += " · auto"
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.styles.statusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderToast() string {
	if m.notifier == nil || m.notifier.Toasts() == nil {
		return ""
	}
	n, ok := m.notifier.Toasts().Current(m.now())
	if !ok {
		return ""
	}
	return m.styles.toast[n.Level].Render(notification.Format(n))
}

func (m *Model) renderCalendar() string {
	cal := m.dash.Calendar(m.calRef)
	var b strings.Builder
	b.WriteString(m.styles.title.Render(fmt.Sprintf("%s %d", cal.Month, cal.Year)))
	b.WriteString("\n\n")
	b.WriteString(m.styles.muted.Render(" Mo   Tu   We   Th   Fr   Sa   Su"))
	b.WriteString("\n")

	today := m.now().Format(views.DefaultDateFormat)
	var due []string
	for _, week := range cal.Weeks {
		for i, day := range week {
			cellText := fmt.Sprintf("%3d", day.Date.Day())
			if n := len(day.Tasks); n > 0 {
				cellText += fmt.Sprintf("%-2s", fmt.Sprintf("•%d", n))
			} else {
				cellText += "  "
			}
			switch {
			case !day.InMonth:
				cellText = m.styles.muted.Render(cellText)
			case day.Date.Format(views.DefaultDateFormat) == today:
				cellText = m.styles.selected.Render(cellText)
			}
			b.WriteString(cellText)
			if i < 6 {
				b.WriteString(" ")
			}
			if day.InMonth {
				for _, t := range day.Tasks {
					due = append(due, fmt.Sprintf("%s  %s (%s)", day.Date.Format("Jan 02"), t.Title, views.StatusLabel(t.Status)))
				}
			}
		}
		b.WriteString("\n")
	}

	if len(due) > 0 {
		b.WriteString("\n")
		for _, line := range due {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n" + m.styles.help.Render("←/→: month  Esc: close"))
	return b.String()
}

func (m *Model) renderHelpDialog() string {
	body := m.styles.title.Render("Help - Key Bindings") + "\n\n" +
		m.help.FullHelpView(m.keys.FullHelp()) + "\n\n" +
		m.styles.muted.Render(fmt.Sprintf("Analytics window cycles %s", windowNames())) + "\n" +
		m.styles.help.Render("Press Esc to close")
	return m.centerDialog(m.styles.dialog.Render(body))
}

func windowNames() string {
	names := make([]string, len(analyticsWindows))
	for i, w := range analyticsWindows {
		if w == 0 {
			names[i] = "all"
		} else {
			names[i] = fmt.Sprintf("%dd", w)
		}
	}
	return strings.Join(names, "/")
}

func (m *Model) renderConfirmDeleteDialog() string {
	title := "Delete selected task?"
	if t, ok := m.selected(); ok {
		title = fmt.Sprintf("Delete %q?", views.Truncate(t.Title, 40))
	}
	dialog := m.styles.dialog.Render(
		title + "\n\n" +
			m.styles.help.Render("y: yes  n: no"),
	)
	return m.centerDialog(dialog)
}

func (m *Model) centerDialog(dialog string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}
