// Package tui provides the interactive terminal dashboard.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskdash/backend"
	"taskdash/internal/dashboard"
	"taskdash/internal/notification"
	"taskdash/internal/utils"
	"taskdash/internal/views"
)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeLogin
	ModeSignup
	ModeForm
	ModeSearch
	ModeConfirmDelete
	ModeCalendar
	ModeHelp
)

func (m Mode) String() string {
	switch m {
	case ModeLogin:
		return "login"
	case ModeSignup:
		return "signup"
	case ModeForm:
		return "form"
	case ModeSearch:
		return "search"
	case ModeConfirmDelete:
		return "confirm-delete"
	case ModeCalendar:
		return "calendar"
	case ModeHelp:
		return "help"
	}
	return "normal"
}

// analyticsWindows are the day windows `w` cycles through. 0 means all.
var analyticsWindows = []int{0, 7, 30, 90}

const subscriberKey = "tui"

// Model represents the TUI state
type Model struct {
	dash     *dashboard.Dashboard
	notifier *notification.Manager
	ctx      context.Context
	now      func() time.Time

	// Data
	state  dashboard.State
	result views.Result
	cursor int

	// Mode and input
	mode      Mode
	prevMode  Mode
	login     form
	signup    form
	taskForm  form
	editingID string
	search    textinput.Model
	calRef    time.Time

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	updates chan struct{}

	// UI dimensions
	width  int
	height int

	styles styles
}

// Message types
type stateChangedMsg struct{}

type tickMsg time.Time

type actionDoneMsg struct {
	label   string
	ok      bool
	err     error
	success string
}

// Option configures a Model.
type Option func(*Model)

// WithNotifications shows the toasts of mgr and sends success messages to it.
func WithNotifications(mgr *notification.Manager) Option {
	return func(m *Model) { m.notifier = mgr }
}

// WithContext sets the context API calls run under.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New creates a new TUI model over d. It subscribes to d so background
// reloads repaint the screen; call Close when the program exits.
func New(d *dashboard.Dashboard, opts ...Option) *Model {
	search := newInput("Search title, description, assignee...", 120)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := &Model{
		dash:    d,
		ctx:     context.Background(),
		now:     time.Now,
		search:  search,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: sp,
		updates: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.login = form{title: "Log in"}
	m.login.add("username", "Username", newInput("alice", 64))
	m.login.addPassword("password", "Password")

	m.signup = form{title: "Sign up"}
	m.signup.add("name", "Name", newInput("Full name", 120))
	m.signup.add("email", "Email", newInput("you@example.com", 120))
	m.signup.add("username", "Username", newInput("", 64))
	m.signup.addPassword("password", "Password")
	m.signup.addPassword("confirm", "Confirm")

	m.taskForm = form{title: "Add Task"}
	m.taskForm.add("title", "Title", newInput("What needs doing?", 200))
	m.taskForm.add("description", "Description", newInput("", 4000))
	m.taskForm.add("status", "Status", newInput("OPEN | IN_PROGRESS | DONE", 20))
	m.taskForm.add("priority", "Priority", newInput("LOW | MEDIUM | HIGH", 10))
	m.taskForm.add("due", "Due", newInput("YYYY-MM-DD, today, +3d", 32))
	m.taskForm.add("assignee", "Assignee", newInput("", 120))

	m.calRef = m.now()
	m.refresh()
	if d.Session().IsAuthenticated() {
		m.mode = ModeNormal
	} else {
		m.mode = ModeLogin
		m.login.start()
	}

	d.Subscribe(subscriberKey, func(dashboard.State) {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})
	return m
}

// Close detaches the model from the dashboard.
func (m *Model) Close() {
	m.dash.Unsubscribe(subscriberKey)
}

// Mode returns the current input mode.
func (m *Model) Mode() Mode { return m.mode }

// Run starts the TUI and blocks until the user quits or ctx is done.
func Run(ctx context.Context, d *dashboard.Dashboard, opts ...Option) error {
	m := New(d, append(opts, WithContext(ctx))...)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForUpdate(), m.spinner.Tick, tick()}
	if m.mode == ModeLogin {
		cmds = append(cmds, textinput.Blink)
	}
	cmds = append(cmds, m.run("load", "", func(ctx context.Context) error {
		return m.dash.Load(ctx)
	}))
	return tea.Batch(cmds...)
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-m.updates
		return stateChangedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// run performs fn off the UI goroutine under the dashboard guard, which
// reports failures as toasts.
func (m *Model) run(label, success string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	g := m.dash.Guard()
	return func() tea.Msg {
		var err error
		ok := g.Run(label, func() error {
			err = fn(ctx)
			return err
		})
		return actionDoneMsg{label: label, ok: ok, err: err, success: success}
	}
}

func (m *Model) notify(level notification.Level, msg string) {
	if m.notifier == nil || msg == "" {
		return
	}
	_ = m.notifier.Send(notification.Notification{Level: level, Message: msg, Timestamp: m.now()})
}

// refresh re-reads dashboard state and the current query page.
func (m *Model) refresh() {
	m.state = m.dash.State()
	m.result = m.dash.Query()
	if m.cursor >= len(m.result.Page) {
		m.cursor = len(m.result.Page) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.styles = newStyles(m.dash.Theme())
}

func (m *Model) selected() (backend.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.result.Page) {
		return backend.Task{}, false
	}
	return m.result.Page[m.cursor].Task, true
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case stateChangedMsg:
		m.refresh()
		m.followSession()
		return m, m.waitForUpdate()

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

		switch m.mode {
		case ModeLogin:
			return m.handleLoginMode(msg)
		case ModeSignup:
			return m.handleSignupMode(msg)
		case ModeForm:
			return m.handleFormMode(msg)
		case ModeSearch:
			return m.handleSearchMode(msg)
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		case ModeCalendar:
			return m.handleCalendarMode(msg)
		case ModeHelp:
			return m.handleHelpMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	return m, m.forwardToInput(msg)
}

// forwardToInput passes non-key messages such as cursor blinks to the
// active input.
func (m *Model) forwardToInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.mode {
	case ModeLogin:
		cmd = m.login.update(msg)
	case ModeSignup:
		cmd = m.signup.update(msg)
	case ModeForm:
		cmd = m.taskForm.update(msg)
	case ModeSearch:
		m.search, cmd = m.search.Update(msg)
	}
	return cmd
}

// followSession switches between the login dialog and the dashboard when
// the session changed underneath us, for example from another process.
func (m *Model) followSession() {
	public := m.state.Panel == dashboard.PanelPublic
	switch {
	case public && m.mode != ModeLogin && m.mode != ModeSignup:
		if m.dash.Session().IsAuthenticated() {
			return
		}
		m.mode = ModeLogin
		m.login.start()
	case !public && (m.mode == ModeLogin || m.mode == ModeSignup):
		m.mode = ModeNormal
	}
}

func (m *Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	m.refresh()
	if !msg.ok {
		text := errorText(msg.err)
		switch msg.label {
		case "login":
			m.login.err = text
		case "signup":
			m.signup.err = text
		case "save task":
			m.taskForm.err = text
		}
		return m, nil
	}

	switch msg.label {
	case "login", "signup":
		m.login.set("password", "")
		m.signup.set("password", "")
		m.signup.set("confirm", "")
		m.mode = ModeNormal
	case "save task":
		m.mode = ModeNormal
	}
	m.followSession()
	m.notify(notification.LevelSuccess, msg.success)
	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.result.Page)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		m.setPage(m.result.PageNumber - 1)
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		m.setPage(m.result.PageNumber + 1)
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.mode = ModeSearch
		m.search.SetValue(m.dash.QueryState().Term)
		m.search.CursorEnd()
		return m, tea.Batch(m.search.Focus(), textinput.Blink)

	case key.Matches(msg, m.keys.Status):
		q := m.dash.QueryState()
		q.Status = nextStatusFilter(q.Status)
		m.applyQuery(q)
		return m, nil

	case key.Matches(msg, m.keys.Priority):
		q := m.dash.QueryState()
		q.Priority = nextPriorityFilter(q.Priority)
		m.applyQuery(q)
		return m, nil

	case key.Matches(msg, m.keys.Sort):
		q := m.dash.QueryState()
		q.Sort = nextSortKey(q.Sort)
		m.applyQuery(q)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", "", func(ctx context.Context) error {
			return m.dash.Reload(ctx)
		})

	case key.Matches(msg, m.keys.AutoRefresh):
		on := !m.dash.AutoRefresh()
		m.dash.SetAutoRefresh(on)
		if on {
			m.notify(notification.LevelInfo, "Auto-refresh on")
		} else {
			m.notify(notification.LevelInfo, "Auto-refresh off")
		}
		return m, nil

	case key.Matches(msg, m.keys.Theme):
		if m.dash.Guard().Run("theme", m.dash.ToggleTheme) {
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Add):
		return m, m.openTaskForm(nil)

	case key.Matches(msg, m.keys.Edit):
		if t, ok := m.selected(); ok {
			return m, m.openTaskForm(&t)
		}
		return m, nil

	case key.Matches(msg, m.keys.Advance):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		id := t.ID
		success := "Moved to " + views.StatusLabel(t.Status.Next())
		if t.Status == backend.StatusDone {
			success = "Already done"
		}
		return m, m.run("advance status", success, func(ctx context.Context) error {
			_, err := m.dash.AdvanceStatus(ctx, id)
			return err
		})

	case key.Matches(msg, m.keys.Delete):
		if _, ok := m.selected(); ok {
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case key.Matches(msg, m.keys.Window):
		f := m.dash.AnalyticsFilter()
		f.WindowDays = nextWindow(f.WindowDays)
		m.dash.SetAnalyticsFilter(f)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Calendar):
		m.calRef = m.now()
		m.mode = ModeCalendar
		return m, nil

	case key.Matches(msg, m.keys.Logout):
		if m.dash.Guard().Run("logout", m.dash.Logout) {
			m.notify(notification.LevelInfo, "Logged out")
		}
		m.refresh()
		m.mode = ModeLogin
		return m, m.login.start()

	case key.Matches(msg, m.keys.Help):
		m.prevMode = m.mode
		m.mode = ModeHelp
		return m, nil
	}
	return m, nil
}

func (m *Model) setPage(page int) {
	q := m.dash.QueryState()
	q.Page = page
	m.applyQuery(q)
}

// applyQuery stores q and re-runs it. Filter changes reset the page.
func (m *Model) applyQuery(q views.QueryState) {
	cur := m.dash.QueryState()
	if q.Term != cur.Term || q.Status != cur.Status || q.Priority != cur.Priority || q.Sort != cur.Sort {
		q.Page = 1
	}
	m.result = m.dash.SetQuery(q)
	m.cursor = 0
}

func (m *Model) handleLoginMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		username := m.login.value("username")
		password := m.login.raw("password")
		if username == "" || password == "" {
			m.login.err = "Username and password are required"
			return m, nil
		}
		m.login.err = ""
		return m, m.run("login", "Welcome back", func(ctx context.Context) error {
			return m.dash.Login(ctx, username, password)
		})

	case tea.KeyCtrlN:
		m.mode = ModeSignup
		return m, m.signup.start()

	case tea.KeyEsc:
		return m, tea.Quit
	}
	return m, m.login.update(msg)
}

func (m *Model) handleSignupMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		req := backend.SignupRequest{
			Name:     m.signup.value("name"),
			Email:    m.signup.value("email"),
			Username: m.signup.value("username"),
			Password: m.signup.raw("password"),
			Confirm:  m.signup.raw("confirm"),
		}
		if err := utils.ValidateSignup(req); err != nil {
			m.signup.err = errorText(err)
			return m, nil
		}
		m.signup.err = ""
		return m, m.run("signup", "Account created", func(ctx context.Context) error {
			return m.dash.Signup(ctx, req)
		})

	case tea.KeyEsc:
		m.mode = ModeLogin
		return m, m.login.start()
	}
	return m, m.signup.update(msg)
}

// openTaskForm opens the add dialog, or the edit dialog for t.
func (m *Model) openTaskForm(t *backend.Task) tea.Cmd {
	for _, k := range []string{"title", "description", "status", "priority", "due", "assignee"} {
		m.taskForm.set(k, "")
	}
	m.editingID = ""
	m.taskForm.title = "Add Task"
	if t != nil {
		m.editingID = t.ID
		m.taskForm.title = "Edit: " + views.Truncate(t.Title, 40)
		m.taskForm.set("title", t.Title)
		m.taskForm.set("description", t.Description)
		m.taskForm.set("status", string(t.Status))
		m.taskForm.set("priority", string(t.Priority))
		if t.DueDate != nil {
			m.taskForm.set("due", t.DueDate.Local().Format(views.DefaultDateFormat))
		}
		m.taskForm.set("assignee", t.Assignee)
	}
	m.mode = ModeForm
	return m.taskForm.start()
}

func (m *Model) handleFormMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		in, err := m.formInput()
		if err != nil {
			m.taskForm.err = errorText(err)
			return m, nil
		}
		m.taskForm.err = ""
		id := m.editingID
		if id == "" {
			return m, m.run("save task", "Task created", func(ctx context.Context) error {
				_, err := m.dash.CreateTask(ctx, in)
				return err
			})
		}
		return m, m.run("save task", "Task updated", func(ctx context.Context) error {
			_, err := m.dash.UpdateTask(ctx, id, in)
			return err
		})

	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil
	}
	return m, m.taskForm.update(msg)
}

// formInput reads the task form. Validation beyond date parsing happens in
// the dashboard.
func (m *Model) formInput() (backend.TaskInput, error) {
	due, err := utils.ParseDueFlag(m.taskForm.value("due"), m.now())
	if err != nil {
		return backend.TaskInput{}, backend.NewValidationError("%v", err)
	}
	return backend.TaskInput{
		Title:       m.taskForm.value("title"),
		Description: m.taskForm.value("description"),
		Status:      backend.Status(m.taskForm.value("status")),
		Priority:    backend.Priority(m.taskForm.value("priority")),
		DueDate:     due,
		Assignee:    m.taskForm.value("assignee"),
	}, nil
}

func (m *Model) handleSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		q := m.dash.QueryState()
		q.Term = m.search.Value()
		m.applyQuery(q)
		m.search.Blur()
		m.mode = ModeNormal
		return m, nil

	case tea.KeyEsc:
		q := m.dash.QueryState()
		q.Term = ""
		m.applyQuery(q)
		m.search.Blur()
		m.mode = ModeNormal
		return m, nil
	}

	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		id := t.ID
		return m, m.run("delete task", "Task deleted", func(ctx context.Context) error {
			return m.dash.DeleteTask(ctx, id)
		})

	case "n", "N", "esc", "q":
		m.mode = ModeNormal
		return m, nil
	}
	return m, nil
}

func (m *Model) handleCalendarMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		m.calRef = m.calRef.AddDate(0, -1, 0)
	case "right", "l":
		m.calRef = m.calRef.AddDate(0, 1, 0)
	case "esc", "q", "C":
		m.mode = ModeNormal
	}
	return m, nil
}

func (m *Model) handleHelpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "q", "?":
		m.mode = m.prevMode
	}
	return m, nil
}

func nextStatusFilter(s backend.Status) backend.Status {
	if s == "" {
		return backend.Statuses[0]
	}
	for i, st := range backend.Statuses {
		if st == s && i+1 < len(backend.Statuses) {
			return backend.Statuses[i+1]
		}
	}
	return ""
}

func nextPriorityFilter(p backend.Priority) backend.Priority {
	if p == "" {
		return backend.Priorities[0]
	}
	for i, pr := range backend.Priorities {
		if pr == p && i+1 < len(backend.Priorities) {
			return backend.Priorities[i+1]
		}
	}
	return ""
}

func nextSortKey(k views.SortKey) views.SortKey {
	for i, sk := range views.SortKeys {
		if sk == k {
			return views.SortKeys[(i+1)%len(views.SortKeys)]
		}
	}
	return views.SortKeys[0]
}

func nextWindow(days int) int {
	for i, w := range analyticsWindows {
		if w == days {
			return analyticsWindows[(i+1)%len(analyticsWindows)]
		}
	}
	return analyticsWindows[0]
}
