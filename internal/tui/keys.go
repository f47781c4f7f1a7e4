package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the normal-mode bindings.
type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	PrevPage    key.Binding
	NextPage    key.Binding
	Search      key.Binding
	Status      key.Binding
	Priority    key.Binding
	Sort        key.Binding
	Refresh     key.Binding
	AutoRefresh key.Binding
	Theme       key.Binding
	Add         key.Binding
	Edit        key.Binding
	Advance     key.Binding
	Delete      key.Binding
	Window      key.Binding
	Calendar    key.Binding
	Logout      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PrevPage:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev page")),
		NextPage:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next page")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Status:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status filter")),
		Priority:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority filter")),
		Sort:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sort")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		AutoRefresh: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "auto-refresh")),
		Theme:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Add:         key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Advance:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "advance status")),
		Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Window:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "analytics window")),
		Calendar:    key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "calendar")),
		Logout:      key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Advance, k.Search, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPage, k.NextPage, k.Calendar},
		{k.Search, k.Status, k.Priority, k.Sort, k.Window},
		{k.Add, k.Edit, k.Advance, k.Delete},
		{k.Refresh, k.AutoRefresh, k.Theme, k.Logout, k.Help, k.Quit},
	}
}
