// Package dashboard owns the application state of taskdash.
//
// A Dashboard is the single coordinator between the session, the task API,
// the derivation and analytics pipeline, and the chart registry. The TUI and
// the CLI hold a reference to it instead of sharing package-level state.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskdash/backend"
	"taskdash/backend/taskapi"
	"taskdash/internal/analytics"
	"taskdash/internal/cache"
	"taskdash/internal/charts"
	"taskdash/internal/derive"
	"taskdash/internal/guard"
	"taskdash/internal/scheduler"
	"taskdash/internal/session"
	"taskdash/internal/utils"
	"taskdash/internal/views"
)

// Panel is the role-dependent view the dashboard shows.
type Panel string

const (
	PanelPublic Panel = "public"
	PanelUser   Panel = "user"
	PanelAdmin  Panel = "admin"
)

// Charts returns the chart ids shown on p.
func (p Panel) Charts() []string {
	switch p {
	case PanelAdmin:
		return charts.AdminCharts
	case PanelUser:
		return charts.UserCharts
	}
	return nil
}

// API is the remote surface the dashboard needs.
type API interface {
	backend.TaskService
	backend.AuthService
}

// Options configures a Dashboard.
type Options struct {
	API      API
	Session  *session.Session
	Notifier guard.Notifier
	Registry *charts.Registry
	Cache    *cache.Cache
	InFlight *taskapi.InFlight

	RefreshInterval time.Duration
	LoadTimeout     time.Duration
	Weeks           int
	PageSize        int
	Filter          analytics.Filter
	Now             func() time.Time
}

// State is one consistent snapshot of the loaded data. Every field comes from
// the same load generation.
type State struct {
	Generation uint64
	Panel      Panel
	Profile    *backend.Profile
	Tasks      []backend.Task
	Derived    []derive.DerivedTask
	Report     analytics.Report
	LoadedAt   time.Time
}

// Dashboard is the application-state coordinator.
type Dashboard struct {
	api      API
	sess     *session.Session
	guard    *guard.Guard
	registry *charts.Registry
	cache    *cache.Cache
	inflight *taskapi.InFlight
	sched    *scheduler.Scheduler
	now      func() time.Time
	weeks    int

	mu        sync.RWMutex
	state     State
	query     views.QueryState
	filter    analytics.Filter
	wasAuthed bool

	subMu    sync.Mutex
	subs     map[string]func(State)
	subOrder []string
}

// New creates a dashboard. Nothing is loaded until Load is called.
func New(opts Options) (*Dashboard, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("dashboard: API is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("dashboard: session is required")
	}

	d := &Dashboard{
		api:      opts.API,
		sess:     opts.Session,
		guard:    guard.New(opts.Notifier),
		registry: opts.Registry,
		cache:    opts.Cache,
		inflight: opts.InFlight,
		now:      opts.Now,
		weeks:    opts.Weeks,
		filter:   opts.Filter,
		subs:     make(map[string]func(State)),
	}
	if d.registry == nil {
		d.registry = charts.NewRegistry(nil)
	}
	if d.cache == nil {
		d.cache = cache.New(0)
	}
	if d.inflight == nil {
		d.inflight = taskapi.NewInFlight(nil)
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.weeks <= 0 {
		d.weeks = analytics.DefaultWeeks
	}
	d.query.Page = 1
	d.query.PageSize = opts.PageSize
	if d.query.PageSize <= 0 {
		d.query.PageSize = views.DefaultPageSize
	}
	d.state.Panel = PanelPublic

	d.sched = scheduler.New(d.load, scheduler.Options{
		Interval:      opts.RefreshInterval,
		LoadTimeout:   opts.LoadTimeout,
		Authenticated: d.sess.IsAuthenticated,
		Runner:        d.guard.Run,
	})
	return d, nil
}

// Guard returns the fault-isolating wrapper UI handlers should run under.
func (d *Dashboard) Guard() *guard.Guard { return d.guard }

// Registry returns the chart registry.
func (d *Dashboard) Registry() *charts.Registry { return d.registry }

// Session returns the session the dashboard resyncs against.
func (d *Dashboard) Session() *session.Session { return d.sess }

// Busy reports whether any API call is in flight.
func (d *Dashboard) Busy() bool { return d.inflight.Busy() }

// State returns the current snapshot.
func (d *Dashboard) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// =============================================================================
// Loading
// =============================================================================

// Load resyncs the session and, when authenticated, fetches and derives the
// task list. Calls that overlap an in-flight load share its result.
func (d *Dashboard) Load(ctx context.Context) error {
	_, err := d.sched.Refresh(ctx)
	return err
}

// Reload supersedes any in-flight load and starts a fresh one. Mutations
// call it so their effect is never hidden behind an older response.
func (d *Dashboard) Reload(ctx context.Context) error {
	d.sched.Invalidate()
	return d.Load(ctx)
}

func (d *Dashboard) load(ctx context.Context, gen uint64) error {
	snap := d.sess.Current()
	if !snap.Authenticated() {
		d.sched.Commit(gen, func() { d.dropAuthLocked(gen) })
		d.publish()
		return nil
	}

	tasks, err := d.api.ListTasks(ctx)
	if err != nil {
		if errors.Is(err, backend.ErrSessionExpired) {
			d.sched.Commit(gen, func() { d.dropAuthLocked(gen) })
			d.publish()
		}
		return err
	}

	now := d.now()
	derived := derive.Derive(tasks, now)
	panel := panelFor(snap)

	committed := d.sched.Commit(gen, func() {
		d.mu.Lock()
		filter := d.filter
		d.mu.Unlock()

		d.cache.Clear()
		report := d.report(derived, filter, gen, now)

		d.mu.Lock()
		d.state = State{
			Generation: gen,
			Panel:      panel,
			Profile:    snap.Profile,
			Tasks:      tasks,
			Derived:    derived,
			Report:     report,
			LoadedAt:   now,
		}
		d.wasAuthed = true
		d.mu.Unlock()

		d.syncCharts(panel, report)
	})
	if committed {
		utils.Debugf("Loaded %d tasks (generation %d, %s panel)", len(tasks), gen, panel)
		d.publish()
	}
	return nil
}

// dropAuthLocked resets to the public panel. The caller holds the commit lock.
func (d *Dashboard) dropAuthLocked(gen uint64) {
	d.mu.Lock()
	wasAuthed := d.wasAuthed
	d.state = State{Generation: gen, Panel: PanelPublic}
	d.wasAuthed = false
	d.mu.Unlock()

	d.registry.DestroyAll()
	d.cache.Clear()
	if wasAuthed {
		d.sched.SetAutoRefresh(false)
	}
}

func panelFor(snap session.Snapshot) Panel {
	switch {
	case !snap.Authenticated():
		return PanelPublic
	case snap.HasRole(session.RoleAdmin):
		return PanelAdmin
	}
	return PanelUser
}

func (d *Dashboard) report(derived []derive.DerivedTask, f analytics.Filter, gen uint64, now time.Time) analytics.Report {
	entry, hit := d.cache.GetOrCompute(f.Key(), gen, func() analytics.Report {
		return analytics.Compute(derived, f, now, d.weeks)
	})
	if hit {
		utils.Debugf("Analytics cache hit for %q (generation %d)", f.Key(), gen)
	}
	return entry.Report
}

// syncCharts brings the registry in line with panel. Each chart is built
// under its own guard so one failing chart leaves the others intact.
func (d *Dashboard) syncCharts(panel Panel, report analytics.Report) {
	want := panel.Charts()
	keep := make(map[string]bool, len(want))
	for _, id := range want {
		keep[id] = true
	}
	for _, id := range d.registry.IDs() {
		if !keep[id] {
			d.registry.Release(id)
		}
	}

	theme := charts.ThemeFor(d.sess.Theme())
	for _, id := range want {
		d.guard.Run("chart "+id, func() error {
			cfg, err := charts.Build(id, report, theme)
			if err != nil {
				return err
			}
			return d.registry.Upsert(id, cfg)
		})
	}
}

// =============================================================================
// Query and analytics
// =============================================================================

// Query runs the current query state over the loaded tasks. The page is
// clamped and the clamped value is kept.
func (d *Dashboard) Query() views.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := views.Query(d.state.Derived, d.query)
	d.query.Page = res.PageNumber
	return res
}

// SetQuery replaces the query state and runs it.
func (d *Dashboard) SetQuery(q views.QueryState) views.Result {
	d.mu.Lock()
	if q.PageSize <= 0 {
		q.PageSize = d.query.PageSize
	}
	d.query = q
	d.mu.Unlock()
	return d.Query()
}

// QueryState returns the current query state.
func (d *Dashboard) QueryState() views.QueryState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.query
}

// AnalyticsFilter returns the current analytics scope.
func (d *Dashboard) AnalyticsFilter() analytics.Filter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filter
}

// SetAnalyticsFilter rescopes the analytics over the loaded tasks and redraws
// the charts. Results are cached per scope for the loaded generation. A load
// committed later picks the new filter up as well.
func (d *Dashboard) SetAnalyticsFilter(f analytics.Filter) analytics.Report {
	var (
		report  analytics.Report
		changed bool
	)
	d.sched.Apply(func() {
		d.mu.Lock()
		d.filter = f
		st := d.state
		d.mu.Unlock()

		if st.Panel == PanelPublic {
			report = st.Report
			return
		}
		report = d.report(st.Derived, f, st.Generation, d.now())
		d.mu.Lock()
		d.state.Report = report
		d.mu.Unlock()
		d.syncCharts(st.Panel, report)
		changed = true
	})
	if changed {
		d.publish()
	}
	return report
}

// Calendar returns the month grid containing ref for the loaded tasks.
func (d *Dashboard) Calendar(ref time.Time) analytics.Calendar {
	return analytics.CalendarMonth(d.State().Derived, ref)
}

// RenderCharts draws every live chart, in registry order. A chart whose
// render fails is reported, released and left out; the next load or filter
// change rebuilds it.
func (d *Dashboard) RenderCharts(width int) []string {
	var out []string
	for _, id := range d.registry.IDs() {
		var (
			s  string
			ok bool
		)
		if !d.guard.Run("render "+id, func() error {
			s, ok = d.registry.Render(id, width)
			return nil
		}) {
			d.guard.Run("release "+id, func() error {
				d.registry.Release(id)
				return nil
			})
			continue
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// Auth
// =============================================================================

// Login authenticates, stores the session and loads.
func (d *Dashboard) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return backend.NewValidationError("username and password are required")
	}
	res, err := d.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := d.sess.Set(res.Token, res.Roles, res.User); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	utils.Infof("Logged in as %s", username)
	return d.Reload(ctx)
}

// Signup registers, stores the session and loads.
func (d *Dashboard) Signup(ctx context.Context, req backend.SignupRequest) error {
	if err := utils.ValidateSignup(req); err != nil {
		return err
	}
	res, err := d.api.Signup(ctx, req)
	if err != nil {
		return err
	}
	if err := d.sess.Set(res.Token, res.Roles, res.User); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	utils.Infof("Signed up as %s", req.Username)
	return d.Reload(ctx)
}

// Logout clears the credential, destroys every chart and stops
// auto-refresh. The theme preference survives.
func (d *Dashboard) Logout() error {
	err := d.sess.Clear()
	gen := d.sched.Invalidate()
	d.sched.Commit(gen, func() { d.dropAuthLocked(gen) })
	d.sched.SetAutoRefresh(false)
	d.publish()
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// SyncSession resyncs against the durable store, typically after another
// process changed it. It reports whether the authentication state flipped.
func (d *Dashboard) SyncSession(ctx context.Context) bool {
	authed := d.sess.IsAuthenticated()
	d.mu.RLock()
	was := d.wasAuthed
	d.mu.RUnlock()

	switch {
	case was && !authed:
		utils.Infof("Session ended by another process")
		gen := d.sched.Invalidate()
		d.sched.Commit(gen, func() { d.dropAuthLocked(gen) })
		d.publish()
		return true
	case !was && authed:
		utils.Infof("Session started by another process")
		d.guard.Go("session sync", func() error { return d.Reload(ctx) })
		return true
	}
	return false
}

// =============================================================================
// Task mutations
// =============================================================================

// CreateTask validates in, creates the task and reloads.
func (d *Dashboard) CreateTask(ctx context.Context, in backend.TaskInput) (*backend.Task, error) {
	in, err := utils.ValidateTaskInput(in, d.now())
	if err != nil {
		return nil, err
	}
	task, err := d.api.CreateTask(ctx, in)
	if err != nil {
		return nil, err
	}
	return task, d.Reload(ctx)
}

// UpdateTask validates in, updates task id and reloads. A status change the
// API would refuse is rejected before any request is made.
func (d *Dashboard) UpdateTask(ctx context.Context, id string, in backend.TaskInput) (*backend.Task, error) {
	in, err := utils.ValidateTaskInput(in, d.now())
	if err != nil {
		return nil, err
	}
	if cur, ok := d.Task(id); ok && !cur.Status.CanTransition(in.Status) {
		return nil, backend.NewValidationError("invalid status transition %s -> %s", cur.Status, in.Status)
	}
	task, err := d.api.UpdateTask(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return task, d.Reload(ctx)
}

// AdvanceStatus moves task id one step along OPEN, IN_PROGRESS, DONE.
func (d *Dashboard) AdvanceStatus(ctx context.Context, id string) (*backend.Task, error) {
	cur, ok := d.Task(id)
	if !ok {
		return nil, utils.ErrTaskNotFound(id)
	}
	if cur.Status == backend.StatusDone {
		return &cur, nil
	}
	in := backend.InputFromTask(cur)
	in.Status = cur.Status.Next()
	return d.UpdateTask(ctx, id, in)
}

// DeleteTask deletes task id and reloads.
func (d *Dashboard) DeleteTask(ctx context.Context, id string) error {
	if err := d.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	return d.Reload(ctx)
}

// Task returns the loaded task with id.
func (d *Dashboard) Task(id string) (backend.Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, t := range d.state.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return backend.Task{}, false
}

// =============================================================================
// Theme, refresh and lifecycle
// =============================================================================

// Theme returns the persisted theme.
func (d *Dashboard) Theme() string { return d.sess.Theme() }

// SetTheme persists theme and repaints every chart from scratch.
func (d *Dashboard) SetTheme(theme string) error {
	if err := d.sess.SetTheme(theme); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	d.sched.Apply(func() {
		st := d.State()
		d.registry.DestroyAll()
		d.syncCharts(st.Panel, st.Report)
	})
	d.publish()
	return nil
}

// ToggleTheme switches between light and dark.
func (d *Dashboard) ToggleTheme() error {
	if d.Theme() == session.ThemeDark {
		return d.SetTheme(session.ThemeLight)
	}
	return d.SetTheme(session.ThemeDark)
}

// SetAutoRefresh starts or stops the periodic reload.
func (d *Dashboard) SetAutoRefresh(enabled bool) { d.sched.SetAutoRefresh(enabled) }

// AutoRefresh reports whether periodic reload is on.
func (d *Dashboard) AutoRefresh() bool { return d.sched.AutoRefresh() }

// Subscribe registers fn under key to run after every state change. It is a
// no-op returning false when key is already subscribed.
func (d *Dashboard) Subscribe(key string, fn func(State)) bool {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if _, ok := d.subs[key]; ok {
		return false
	}
	d.subs[key] = fn
	d.subOrder = append(d.subOrder, key)
	return true
}

// Unsubscribe removes the subscriber under key.
func (d *Dashboard) Unsubscribe(key string) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if _, ok := d.subs[key]; !ok {
		return
	}
	delete(d.subs, key)
	for i, k := range d.subOrder {
		if k == key {
			d.subOrder = append(d.subOrder[:i], d.subOrder[i+1:]...)
			break
		}
	}
}

// publish runs every subscriber under its own guard.
func (d *Dashboard) publish() {
	d.subMu.Lock()
	fns := make([]func(State), 0, len(d.subOrder))
	keys := make([]string, 0, len(d.subOrder))
	for _, k := range d.subOrder {
		fns = append(fns, d.subs[k])
		keys = append(keys, k)
	}
	d.subMu.Unlock()

	st := d.State()
	for i, fn := range fns {
		d.guard.Run("subscriber "+keys[i], func() error {
			fn(st)
			return nil
		})
	}
}

// Close stops auto-refresh, waits for background work and destroys every
// chart.
func (d *Dashboard) Close() {
	d.sched.Close()
	d.guard.Wait()
	d.registry.DestroyAll()
}
