package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// formField is one labelled input of a dialog form.
type formField struct {
	key   string
	label string
	input textinput.Model
}

// form is a stack of text inputs with a single focused field. Tab and
// shift+tab move between fields; the caller decides what Enter does.
type form struct {
	title  string
	fields []formField
	focus  int
	err    string
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 40
	return ti
}

func (f *form) add(key, label string, ti textinput.Model) {
	f.fields = append(f.fields, formField{key: key, label: label, input: ti})
}

func (f *form) addPassword(key, label string) {
	ti := newInput("", 128)
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	f.add(key, label, ti)
}

// start focuses the first field.
func (f *form) start() tea.Cmd {
	f.focus = 0
	f.err = ""
	for i := range f.fields {
		f.fields[i].input.Blur()
	}
	if len(f.fields) == 0 {
		return nil
	}
	return tea.Batch(f.fields[0].input.Focus(), textinput.Blink)
}

func (f *form) move(delta int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.fields[f.focus].input.Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	return f.fields[f.focus].input.Focus()
}

func (f *form) value(key string) string {
	for _, fl := range f.fields {
		if fl.key == key {
			return strings.TrimSpace(fl.input.Value())
		}
	}
	return ""
}

// raw returns the untrimmed value, for passwords.
func (f *form) raw(key string) string {
	for _, fl := range f.fields {
		if fl.key == key {
			return fl.input.Value()
		}
	}
	return ""
}

func (f *form) set(key, value string) {
	for i := range f.fields {
		if f.fields[i].key == key {
			f.fields[i].input.SetValue(value)
			return
		}
	}
}

// update routes navigation keys and forwards everything else to the
// focused input.
func (f *form) update(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyTab, tea.KeyDown:
			return f.move(1)
		case tea.KeyShiftTab, tea.KeyUp:
			return f.move(-1)
		}
	}
	if len(f.fields) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

func (f *form) view(s styles, hint string) string {
	var b strings.Builder
	b.WriteString(s.title.Render(f.title))
	b.WriteString("\n\n")

	width := 0
	for _, fl := range f.fields {
		if len(fl.label) > width {
			width = len(fl.label)
		}
	}
	for i, fl := range f.fields {
		label := fl.label + strings.Repeat(" ", width-len(fl.label))
		if i == f.focus {
			label = s.selected.Render(label)
		}
		b.WriteString(label + "  " + fl.input.View() + "\n")
	}

	if f.err != "" {
		b.WriteString("\n" + s.errorText.Render(f.err) + "\n")
	}
	b.WriteString("\n" + s.help.Render(hint))
	return b.String()
}
