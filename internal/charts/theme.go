package charts

import "github.com/charmbracelet/lipgloss"

// Theme is the colour palette charts are drawn with.
type Theme struct {
	Name    string
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
	Palette []lipgloss.Color
}

// Light is the default palette.
var Light = Theme{
	Name:    "light",
	Text:    lipgloss.Color("235"),
	Muted:   lipgloss.Color("244"),
	Border:  lipgloss.Color("250"),
	Palette: []lipgloss.Color{"26", "166", "28", "124", "91", "130", "31", "162"},
}

// Dark is the palette for dark terminals.
var Dark = Theme{
	Name:    "dark",
	Text:    lipgloss.Color("252"),
	Muted:   lipgloss.Color("243"),
	Border:  lipgloss.Color("238"),
	Palette: []lipgloss.Color{"75", "215", "114", "203", "177", "180", "80", "212"},
}

// ThemeFor returns the palette named name, falling back to Light.
func ThemeFor(name string) Theme {
	if name == Dark.Name {
		return Dark
	}
	return Light
}

// Color returns the palette colour for series i.
func (t Theme) Color(i int) lipgloss.Color {
	if len(t.Palette) == 0 {
		return t.Text
	}
	return t.Palette[i%len(t.Palette)]
}
