package charts

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	barGlyph     = "█"
	minBarWidth  = 4
	defaultWidth = 60
)

var sparkGlyphs = []rune("▁▂▃▄▅▆▇█")

// termWidget draws a chart as styled terminal text.
type termWidget struct {
	mu        sync.Mutex
	id        string
	cfg       Config
	destroyed bool
	updates   int
}

// NewTermWidget is the default Factory.
func NewTermWidget(id string, cfg Config) (Widget, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &termWidget{id: id, cfg: cfg}, nil
}

func (w *termWidget) Update(cfg Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return ErrDestroyed
	}
	if cfg.Kind != w.cfg.Kind {
		return ErrKindChanged
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	w.cfg = cfg
	w.updates++
	return nil
}

func (w *termWidget) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
	w.cfg = Config{}
}

func (w *termWidget) Render(width int) string {
	w.mu.Lock()
	cfg := w.cfg
	destroyed := w.destroyed
	w.mu.Unlock()
	if destroyed {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}

	var body string
	switch cfg.Kind {
	case KindBar:
		body = renderBars(cfg, width, 0)
	case KindRadar:
		body = renderBars(cfg, width, 100)
	case KindStacked:
		body = renderStacked(cfg, width)
	case KindLine:
		body = renderLines(cfg)
	case KindMatrix:
		body = renderMatrix(cfg)
	}

	parts := []string{lipgloss.NewStyle().Bold(true).Foreground(cfg.Theme.Text).Render(cfg.Title), body}
	if cfg.Note != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(cfg.Theme.Muted).Italic(true).Render(cfg.Note))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func labelWidth(labels []string) int {
	n := 0
	for _, l := range labels {
		if w := lipgloss.Width(l); w > n {
			n = w
		}
	}
	return n
}

func padRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func maxOf(values ...int) int {
	m := 0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// scale maps v in [0, top] onto [0, cells]. Non-zero values get at least one cell.
func scale(v, top, cells int) int {
	if v <= 0 || top <= 0 {
		return 0
	}
	n := int(math.Round(float64(v) / float64(top) * float64(cells)))
	if n < 1 {
		n = 1
	}
	if n > cells {
		n = cells
	}
	return n
}

func barCells(width, labelW, valueW int) int {
	cells := width - labelW - valueW - 2
	if cells < minBarWidth {
		cells = minBarWidth
	}
	return cells
}

// renderBars draws one series. A fixed max of 0 scales to the largest value.
func renderBars(cfg Config, width, fixedMax int) string {
	values := cfg.Series[0].Values
	top := fixedMax
	if top == 0 {
		top = maxOf(values...)
	}
	lw := labelWidth(cfg.Labels)
	vw := len(strconv.Itoa(maxOf(values...)))
	cells := barCells(width, lw, vw)

	lines := make([]string, len(values))
	for i, v := range values {
		color := cfg.Theme.Color(i)
		if cfg.Kind == KindRadar {
			color = cfg.Theme.Color(0)
		}
		bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat(barGlyph, scale(v, top, cells)))
		lines[i] = fmt.Sprintf("%s %s %d", padRight(cfg.Labels[i], lw), bar, v)
	}
	return strings.Join(lines, "\n")
}

func renderStacked(cfg Config, width int) string {
	totals := make([]int, len(cfg.Labels))
	for _, s := range cfg.Series {
		for i, v := range s.Values {
			totals[i] += v
		}
	}
	top := maxOf(totals...)
	lw := labelWidth(cfg.Labels)
	vw := len(strconv.Itoa(top))
	cells := barCells(width, lw, vw)

	lines := make([]string, 0, len(cfg.Labels)+1)
	for i, label := range cfg.Labels {
		var b strings.Builder
		for si, s := range cfg.Series {
			n := scale(s.Values[i], top, cells)
			b.WriteString(lipgloss.NewStyle().Foreground(cfg.Theme.Color(si)).Render(strings.Repeat(barGlyph, n)))
		}
		lines = append(lines, fmt.Sprintf("%s %s %d", padRight(label, lw), b.String(), totals[i]))
	}
	lines = append(lines, legend(cfg))
	return strings.Join(lines, "\n")
}

func renderLines(cfg Config) string {
	var all []int
	names := make([]string, len(cfg.Series))
	for i, s := range cfg.Series {
		all = append(all, s.Values...)
		names[i] = s.Name
	}
	top := maxOf(all...)
	nw := labelWidth(names)

	lines := make([]string, 0, len(cfg.Series)+1)
	for si, s := range cfg.Series {
		spark := make([]rune, len(s.Values))
		for i, v := range s.Values {
			spark[i] = sparkGlyphs[scale(v, top, len(sparkGlyphs)-1)]
		}
		last := 0
		if len(s.Values) > 0 {
			last = s.Values[len(s.Values)-1]
		}
		line := lipgloss.NewStyle().Foreground(cfg.Theme.Color(si)).Render(string(spark))
		lines = append(lines, fmt.Sprintf("%s %s %d", padRight(s.Name, nw), line, last))
	}
	if len(cfg.Labels) > 0 {
		span := cfg.Labels[0]
		if len(cfg.Labels) > 1 {
			span += " … " + cfg.Labels[len(cfg.Labels)-1]
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(cfg.Theme.Muted).Render(span))
	}
	return strings.Join(lines, "\n")
}

func renderMatrix(cfg Config) string {
	headers := append([]string{""}, cfg.Labels...)
	rows := make([][]string, len(cfg.Series))
	for i, s := range cfg.Series {
		row := []string{s.Name}
		for _, v := range s.Values {
			row = append(row, strconv.Itoa(v))
		}
		rows[i] = row
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(cfg.Theme.Text).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(cfg.Theme.Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || col == 0 {
				return header
			}
			return cell
		}).
		Render()
}

func legend(cfg Config) string {
	parts := make([]string, len(cfg.Series))
	for i, s := range cfg.Series {
		parts[i] = lipgloss.NewStyle().Foreground(cfg.Theme.Color(i)).Render(barGlyph) + " " + s.Name
	}
	return strings.Join(parts, "  ")
}
