package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"taskdash/backend"
	"taskdash/internal/config"
	"taskdash/internal/session"
	"taskdash/internal/tui"
	"taskdash/internal/utils"
	"taskdash/internal/watcher"
)

type whoamiResponse struct {
	Username string   `json:"username"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Initials string   `json:"initials"`
	Roles    []string `json:"roles"`
	Theme    string   `json:"theme"`
}

// readSecret reads a password from stdin lines when fromStdin is set, and
// from a hidden terminal prompt otherwise.
func readSecret(prompt string, fromStdin bool, reader *bufio.Reader, stderr io.Writer) (string, error) {
	if !fromStdin {
		return utils.PromptPassword(prompt, stderr)
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptIfEmpty returns value, or prompts for it when blank.
func promptIfEmpty(value, prompt string, reader *bufio.Reader, stderr io.Writer) (string, error) {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return utils.PromptLine(prompt, reader, stderr)
}

func newLoginCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the task API",
		Long:  "Log in and store the session. The password is read from a hidden prompt, or from stdin with --password-stdin.",
		Args:  cobra.NoArgs,
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(cfg.stdin())
			user, err := promptIfEmpty(username, "Username: ", reader, stderr)
			if err != nil {
				return err
			}
			password, err := readSecret("Password: ", passwordStdin, reader, stderr)
			if err != nil {
				return err
			}

			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.dash.Login(ctx, user, password); err != nil {
					return utils.WithAPISuggestion(err)
				}
				_, _ = fmt.Fprintf(stdout, "Logged in as %s\n", a.sess.Current().Profile.DisplayName())
				return nil
			})
		}),
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newSignupCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var req backend.SignupRequest
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Long:  "Create an account. With --password-stdin the password and its confirmation are read as two lines from stdin.",
		Args:  cobra.NoArgs,
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(cfg.stdin())
			var err error
			if req.Name, err = promptIfEmpty(req.Name, "Name: ", reader, stderr); err != nil {
				return err
			}
			if req.Email, err = promptIfEmpty(req.Email, "Email: ", reader, stderr); err != nil {
				return err
			}
			if req.Username, err = promptIfEmpty(req.Username, "Username: ", reader, stderr); err != nil {
				return err
			}
			if req.Password, err = readSecret("Password: ", passwordStdin, reader, stderr); err != nil {
				return err
			}
			if req.Confirm, err = readSecret("Confirm password: ", passwordStdin, reader, stderr); err != nil {
				return err
			}

			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.dash.Signup(ctx, req); err != nil {
					return utils.WithAPISuggestion(err)
				}
				_, _ = fmt.Fprintf(stdout, "Signed up and logged in as %s\n", a.sess.Current().Profile.DisplayName())
				return nil
			})
		}),
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password and confirmation from stdin")
	return cmd
}

func newLogoutCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if !a.sess.IsAuthenticated() {
					_, _ = fmt.Fprintln(stdout, "Not logged in")
					return nil
				}
				if err := a.dash.Logout(); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(stdout, "Logged out")
				return nil
			})
		}),
	}
}

func newWhoamiCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				snap := a.sess.Current()
				if !snap.Authenticated() {
					return utils.ErrNotLoggedIn()
				}
				resp := whoamiResponse{
					Initials: session.Initials(snap.Profile.DisplayName()),
					Roles:    snap.Roles,
					Theme:    a.sess.Theme(),
				}
				if snap.Profile != nil {
					resp.Username = snap.Profile.Username
					resp.Name = snap.Profile.Name
					resp.Email = snap.Profile.Email
				}
				if resp.Roles == nil {
					resp.Roles = []string{}
				}
				if jsonOutput {
					return writeJSON(stdout, resp)
				}

				_, _ = fmt.Fprintf(stdout, "%s (%s)\n", snap.Profile.DisplayName(), resp.Initials)
				if resp.Username != "" {
					_, _ = fmt.Fprintf(stdout, "Username: %s\n", resp.Username)
				}
				if resp.Email != "" {
					_, _ = fmt.Fprintf(stdout, "Email:    %s\n", resp.Email)
				}
				if len(resp.Roles) > 0 {
					_, _ = fmt.Fprintf(stdout, "Roles:    %s\n", strings.Join(resp.Roles, ", "))
				}
				_, _ = fmt.Fprintf(stdout, "Theme:    %s\n", resp.Theme)
				return nil
			})
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newThemeCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{session.ThemeLight, session.ThemeDark},
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if len(args) == 0 {
					_, _ = fmt.Fprintln(stdout, a.dash.Theme())
					return nil
				}
				theme := strings.ToLower(strings.TrimSpace(args[0]))
				if theme != session.ThemeLight && theme != session.ThemeDark {
					return utils.WrapWithSuggestion(fmt.Errorf("invalid theme: %s", args[0]), "Valid options: light, dark")
				}
				if err := a.dash.SetTheme(theme); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(stdout, "Theme set to %s\n", theme)
				return nil
			})
		}),
	}
}

func newConfigCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintln(stdout, configPath(cmd, cfg))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Print the documented sample config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprint(stdout, config.GetSampleConfig())
			return nil
		},
	})
	return cmd
}

func newTUICmd(stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, cfg, stderr)
		}),
	}
}

// runTUI owns the terminal until the user quits or a signal arrives. Log
// output goes to a file meanwhile, and another process logging in or out is
// picked up through the store watcher.
func runTUI(cmd *cobra.Command, cfg *Config, stderr io.Writer) error {
	return withApp(cmd, cfg, stderr, appOptions{interactive: true}, func(ctx context.Context, a *app) error {
		bg, err := utils.NewBackgroundLogger(config.GetCacheDir(), a.conf.IsBackgroundLoggingEnabled())
		if err != nil {
			utils.Warnf("background log unavailable: %v", err)
		}
		utils.GetLogger().SetOutput(bg)
		defer func() {
			utils.GetLogger().SetOutput(stderr)
			bg.Close()
		}()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-a.shutdown.Context().Done():
				cancel()
			case <-ctx.Done():
			}
		}()
		stop := a.shutdown.ListenForSignals()
		defer stop()

		if a.sqlite != nil {
			w, err := watcher.New(watcher.Config{
				Path:     a.sqlite.Path(),
				OnChange: func() { a.dash.SyncSession(ctx) },
			})
			if err != nil {
				utils.Warnf("store watcher unavailable: %v", err)
			} else if err := w.Start(); err != nil {
				utils.Warnf("store watcher unavailable: %v", err)
			} else {
				a.shutdown.RegisterCleanup("watcher", func(context.Context) error {
					w.Stop()
					return nil
				})
			}
		}

		a.dash.SetAutoRefresh(a.conf.Refresh.Auto)
		utils.Infof("Starting dashboard against %s", a.conf.API.BaseURL)

		opts := []tui.Option{tui.WithNotifications(a.notify)}
		if cfg.Now != nil {
			opts = append(opts, tui.WithClock(cfg.Now))
		}
		err = tui.Run(ctx, a.dash, opts...)
		if errors.Is(err, tea.ErrProgramKilled) && a.shutdown.IsShutdown() {
			return nil
		}
		return err
	})
}
