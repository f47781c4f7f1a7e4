package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskdash/backend"
	"taskdash/backend/taskapi"
	"taskdash/internal/analytics"
	"taskdash/internal/cache"
	"taskdash/internal/config"
	"taskdash/internal/credentials"
	"taskdash/internal/dashboard"
	"taskdash/internal/derive"
	"taskdash/internal/guard"
	"taskdash/internal/notification"
	"taskdash/internal/ratelimit"
	"taskdash/internal/session"
	"taskdash/internal/shutdown"
	"taskdash/internal/store"
	"taskdash/internal/utils"
)

// Version is set at build time
var Version = "dev"

// cleanupTimeout bounds how long shutdown cleanups may take.
const cleanupTimeout = 5 * time.Second

// Config holds application configuration
type Config struct {
	Verbose    bool
	ConfigPath string              // Path to config file (for testing)
	StorePath  string              // Overrides store.path (for testing)
	APIURL     string              // Overrides api.base_url (for testing)
	Stdin      io.Reader           // Prompt and --password-stdin input (for testing)
	Keyring    credentials.Keyring // Replaces the OS keyring (for testing)
	Getenv     func(string) string // Replaces os.Getenv for TASKDASH_TOKEN (for testing)
	Now        func() time.Time    // Clock (for testing)
}

func (c *Config) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c *Config) getenv(key string) string {
	if c.Getenv != nil {
		return c.Getenv(key)
	}
	return os.Getenv(key)
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewTaskDash(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// guarded converts a panic inside a command into an ordinary error.
func guarded(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return guard.Protect(func() error { return fn(cmd, args) })
	}
}

// NewTaskDash creates the root command with injectable IO
func NewTaskDash(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "taskdash",
		Short:   "A task dashboard for the task API",
		Long:    "taskdash lists, edits and charts your tasks. Without a subcommand it opens the interactive dashboard.",
		Version: Version,
		Args:    cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cfg.Verbose = true
			}
			utils.GetLogger().SetOutput(stderr)
			utils.SetVerboseMode(cfg.Verbose)
		},
		RunE:          guarded(func(cmd *cobra.Command, args []string) error { return runTUI(cmd, cfg, stderr) }),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().String("config", "", "Path to the config file")

	cmd.AddCommand(newLoginCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSignupCmd(stdout, stderr, cfg))
	cmd.AddCommand(newLogoutCmd(stdout, stderr, cfg))
	cmd.AddCommand(newWhoamiCmd(stdout, stderr, cfg))
	cmd.AddCommand(newListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newAddCmd(stdout, stderr, cfg))
	cmd.AddCommand(newUpdateCmd(stdout, stderr, cfg))
	cmd.AddCommand(newDeleteCmd(stdout, stderr, cfg))
	cmd.AddCommand(newStatsCmd(stdout, stderr, cfg))
	cmd.AddCommand(newThemeCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTUICmd(stderr, cfg))
	cmd.AddCommand(newConfigCmd(stdout, cfg))

	return cmd
}

// =============================================================================
// Application wiring
// =============================================================================

// app is the set of services one command runs against.
type app struct {
	conf     *config.Config
	store    store.Store
	sess     *session.Session
	client   *taskapi.Client
	notify   *notification.Manager
	dash     *dashboard.Dashboard
	shutdown *shutdown.Manager
	sqlite   *store.SQLite
}

type appOptions struct {
	// interactive routes notifications to toasts and a log file instead of stderr.
	interactive bool

	// weeks overrides ui.weeks when positive.
	weeks int
}

func configPath(cmd *cobra.Command, cfg *Config) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if cfg.ConfigPath != "" {
		return cfg.ConfigPath
	}
	return config.DefaultPath()
}

// newApp loads configuration and builds the store, session, API client and
// dashboard. Call close when done.
func newApp(cmd *cobra.Command, cfg *Config, stderr io.Writer, opts appOptions) (*app, error) {
	conf, err := config.Load(configPath(cmd, cfg))
	if err != nil {
		return nil, err
	}
	if cfg.APIURL != "" {
		conf.API.BaseURL = cfg.APIURL
	}
	if cfg.StorePath != "" {
		conf.Store.Path = cfg.StorePath
	}
	if err := conf.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(err, "Fix the value in "+configPath(cmd, cfg))
	}
	if conf.Logging.Verbose {
		utils.SetVerboseMode(true)
	}

	a := &app{conf: conf, shutdown: shutdown.NewManager()}

	a.sqlite, err = store.OpenSQLite(conf.Store.Path)
	if err != nil {
		return nil, err
	}
	a.store = a.sqlite
	if conf.Store.UseKeyring || cfg.getenv(credentials.TokenEnvVar) != "" {
		credOpts := []credentials.ManagerOption{credentials.WithGetenv(cfg.getenv)}
		if cfg.Keyring != nil {
			credOpts = append(credOpts, credentials.WithKeyring(cfg.Keyring))
		}
		a.store = store.NewKeyringOverlay(a.sqlite, credentials.NewManager(conf.API.BaseURL, credOpts...))
	}
	a.shutdown.RegisterCleanup("store", func(ctx context.Context) error { return a.store.Close() })

	a.sess = session.New(a.store, conf.UI.Theme)

	inflight := taskapi.NewInFlight(nil)
	a.client, err = taskapi.New(taskapi.Config{
		BaseURL:        conf.API.BaseURL,
		Timeout:        conf.GetTimeout(),
		MaxRetries:     conf.API.MaxRetries,
		RetryBaseDelay: conf.GetRetryBaseDelay(),
		UserAgent:      "taskdash/" + Version,
	}, a.sess, taskapi.WithInFlight(inflight), taskapi.WithRateLimitStats(ratelimit.NewStats()))
	if err != nil {
		_ = a.close()
		return nil, err
	}

	notifyCfg := &notification.Config{Enabled: true}
	if opts.interactive {
		notifyCfg.Toast = notification.ToastConfig{Enabled: true}
		notifyCfg.LogNotification = notification.LogNotificationConfig{
			Enabled: true,
			Path:    filepath.Join(config.GetCacheDir(), "notifications.log"),
		}
	} else {
		notifyCfg.Writer = stderr
	}
	a.notify, err = notification.NewManager(notifyCfg)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.shutdown.RegisterCleanup("notifications", func(ctx context.Context) error { return a.notify.Close() })

	weeks := conf.UI.Weeks
	if opts.weeks > 0 {
		weeks = opts.weeks
	}
	a.dash, err = dashboard.New(dashboard.Options{
		API:             a.client,
		Session:         a.sess,
		Notifier:        a.notify,
		Cache:           cache.New(conf.GetCacheTTL()),
		InFlight:        inflight,
		RefreshInterval: conf.GetRefreshInterval(),
		LoadTimeout:     a.client.Timeout(),
		Weeks:           weeks,
		PageSize:        conf.UI.PageSize,
		Filter:          analytics.Filter{WindowDays: conf.Analytics.WindowDays},
		Now:             cfg.Now,
	})
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.shutdown.RegisterCleanup("dashboard", func(ctx context.Context) error {
		a.dash.Close()
		return nil
	})
	return a, nil
}

// close runs the registered cleanups in reverse order.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	return a.shutdown.Wait(ctx)
}

// withApp builds the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, cfg *Config, stderr io.Writer, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd, cfg, stderr, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil {
			utils.Warnf("cleanup failed: %v", cerr)
		}
	}()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}

// load fetches tasks for a command that needs a session.
func (a *app) load(ctx context.Context) error {
	if !a.sess.IsAuthenticated() {
		return utils.ErrNotLoggedIn()
	}
	if err := a.dash.Load(ctx); err != nil {
		return utils.WithAPISuggestion(err)
	}
	return nil
}

// =============================================================================
// JSON output
// =============================================================================

type taskJSON struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Status             string `json:"status"`
	Priority           string `json:"priority"`
	DueDate            string `json:"due_date,omitempty"`
	Assignee           string `json:"assignee,omitempty"`
	Owner              string `json:"owner,omitempty"`
	Overdue            bool   `json:"overdue"`
	EscalatedPriority  string `json:"escalated_priority,omitempty"`
	ComplexityScore    int    `json:"complexity_score"`
	EffortDays         int    `json:"effort_days"`
	CreatedAt          string `json:"created_at,omitempty"`
	CreatedAtEstimated bool   `json:"created_at_estimated,omitempty"`
}

type listTasksResponse struct {
	Tasks      []taskJSON `json:"tasks"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
}

type actionResponse struct {
	Action string    `json:"action"`
	Task   *taskJSON `json:"task,omitempty"`
	ID     string    `json:"id,omitempty"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func taskToJSON(t *derive.DerivedTask) taskJSON {
	return taskJSON{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Status:             string(t.Status),
		Priority:           string(t.Priority),
		DueDate:            formatTime(t.DueDate),
		Assignee:           t.Assignee,
		Owner:              t.Owner,
		Overdue:            t.Overdue,
		EscalatedPriority:  string(t.EscalatedPriority),
		ComplexityScore:    t.ComplexityScore,
		EffortDays:         t.EffortDays,
		CreatedAt:          formatTime(t.CreatedAtApprox),
		CreatedAtEstimated: t.CreatedAtEstimated,
	}
}

func writeJSON(stdout io.Writer, v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputErrorJSON(err error, stdout io.Writer) {
	resp := errorResponse{Error: err.Error()}
	var ws *utils.ErrorWithSuggestion
	if errors.As(err, &ws) {
		resp.Error = ws.Err.Error()
		resp.Suggestion = ws.Suggestion
	}
	if kind, ok := backend.KindOf(err); ok {
		resp.Kind = kind.String()
	}
	_ = writeJSON(stdout, resp)
}

// validNames lists enum values for suggestions.
func validNames[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(string(v))
	}
	return out
}
