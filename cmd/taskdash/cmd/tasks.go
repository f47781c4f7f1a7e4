package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"taskdash/backend"
	"taskdash/internal/analytics"
	"taskdash/internal/derive"
	"taskdash/internal/utils"
	"taskdash/internal/views"
)

// chartWidth is the render width for charts printed by stats --charts.
const chartWidth = 80

func parseStatusFlag(s string) (backend.Status, error) {
	status := backend.ParseStatus(s)
	if !status.Valid() {
		return "", utils.ErrInvalidStatus(s, validNames(backend.Statuses))
	}
	return status, nil
}

func parsePriorityFlag(p string) (backend.Priority, error) {
	priority := backend.ParsePriority(p)
	if !priority.Valid() {
		return "", utils.ErrInvalidPriority(p, validNames(backend.Priorities))
	}
	return priority, nil
}

// requireSession fails fast for commands that call authenticated endpoints.
func (a *app) requireSession() error {
	if !a.sess.IsAuthenticated() {
		return utils.ErrNotLoggedIn()
	}
	return nil
}

func newListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var (
		search, status, priority, assignee string
		from, to, sortKey, viewName        string
		page, pageSize                     int
		jsonOutput                         bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Long: `List tasks with optional search, filters, sorting and paging.

Dates accept YYYY-MM-DD, today, tomorrow, yesterday or offsets like +3d, -2w.
Sort keys: due_asc, due_desc, priority, status, title.`,
		Args: cobra.NoArgs,
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			now := cfg.now()
			q := views.QueryState{
				Term:     search,
				Assignee: assignee,
				Page:     page,
				PageSize: pageSize,
			}
			var err error
			if status != "" {
				if q.Status, err = parseStatusFlag(status); err != nil {
					return err
				}
			}
			if priority != "" {
				if q.Priority, err = parsePriorityFlag(priority); err != nil {
					return err
				}
			}
			if q.From, err = utils.ParseDateFlagAt(from, now); err != nil {
				return err
			}
			if q.To, err = utils.ParseDateFlagAt(to, now); err != nil {
				return err
			}
			if sortKey != "" {
				key, ok := views.ParseSortKey(strings.ToLower(sortKey))
				if !ok {
					return utils.WrapWithSuggestion(fmt.Errorf("invalid sort key: %s", sortKey),
						"Valid options: due_asc, due_desc, priority, status, title")
				}
				q.Sort = key
			}
			var view *views.View
			switch viewName {
			case "", "default":
				view = views.DefaultView()
			case "all":
				view = views.AllView()
			default:
				return utils.WrapWithSuggestion(fmt.Errorf("unknown view: %s", viewName), "Valid options: default, all")
			}

			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.load(ctx); err != nil {
					return err
				}
				res := a.dash.SetQuery(q)

				if jsonOutput {
					resp := listTasksResponse{
						Tasks:      make([]taskJSON, 0, len(res.Page)),
						Total:      res.Total,
						Page:       res.PageNumber,
						TotalPages: res.TotalPages,
					}
					for i := range res.Page {
						resp.Tasks = append(resp.Tasks, taskToJSON(&res.Page[i]))
					}
					return writeJSON(stdout, resp)
				}
				views.RenderTasksWithView(res, view, stdout)
				return nil
			})
		}),
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive search over title, description and assignee")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (open, in_progress, done)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Filter by priority (low, medium, high)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Filter by assignee")
	cmd.Flags().StringVar(&from, "from", "", "Only tasks due on or after this date")
	cmd.Flags().StringVar(&to, "to", "", "Only tasks due on or before this date")
	cmd.Flags().StringVar(&sortKey, "sort", "", "Sort order")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Tasks per page (default ui.page_size)")
	cmd.Flags().StringVar(&viewName, "view", "default", "Column layout (default, all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var description, status, priority, due, assignee string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			now := cfg.now()
			in := backend.TaskInput{
				Title:       strings.Join(args, " "),
				Description: description,
				Status:      backend.Status(status),
				Priority:    backend.Priority(priority),
				Assignee:    assignee,
			}
			var err error
			if in.DueDate, err = utils.ParseDueFlag(due, now); err != nil {
				return err
			}

			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				task, err := a.dash.CreateTask(ctx, in)
				if err != nil {
					return utils.WithAPISuggestion(err)
				}
				return printAction(stdout, jsonOutput, "created", task, now)
			})
		}),
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (default open)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "Due date")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assignee")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newUpdateCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var title, description, status, priority, due, assignee string
	var clearDue, advance, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Long:  "Update the given fields of a task. Status may only move one step forward; --advance does that for you.",
		Args:  cobra.ExactArgs(1),
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			if advance && cmd.Flags().Changed("status") {
				return fmt.Errorf("--advance and --status cannot be used together")
			}
			if clearDue && cmd.Flags().Changed("due") {
				return fmt.Errorf("--clear-due and --due cannot be used together")
			}
			now := cfg.now()
			id := args[0]

			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.load(ctx); err != nil {
					return err
				}
				cur, ok := a.dash.Task(id)
				if !ok {
					return utils.ErrTaskNotFound(id)
				}

				in := backend.InputFromTask(cur)
				flags := cmd.Flags()
				if flags.Changed("title") {
					in.Title = title
				}
				if flags.Changed("description") {
					in.Description = description
				}
				if flags.Changed("assignee") {
					in.Assignee = assignee
				}
				if flags.Changed("status") {
					s, err := parseStatusFlag(status)
					if err != nil {
						return err
					}
					in.Status = s
				}
				if advance {
					in.Status = cur.Status.Next()
				}
				if flags.Changed("priority") {
					p, err := parsePriorityFlag(priority)
					if err != nil {
						return err
					}
					in.Priority = p
				}
				if flags.Changed("due") {
					d, err := utils.ParseDueFlag(due, now)
					if err != nil {
						return err
					}
					in.DueDate = d
				}
				if clearDue {
					in.DueDate = nil
				}

				task, err := a.dash.UpdateTask(ctx, id, in)
				if err != nil {
					return utils.WithAPISuggestion(err)
				}
				return printAction(stdout, jsonOutput, "updated", task, now)
			})
		}),
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority")
	cmd.Flags().StringVar(&due, "due", "", "New due date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "New assignee")
	cmd.Flags().BoolVar(&advance, "advance", false, "Move the status one step forward")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newDeleteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var yes, jsonOutput bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(cmd, cfg, stderr, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.load(ctx); err != nil {
					return err
				}
				cur, ok := a.dash.Task(id)
				if !ok {
					return utils.ErrTaskNotFound(id)
				}
				if !yes && !jsonOutput {
					if !utils.PromptYesNoWithReader(fmt.Sprintf("Delete %q?", cur.Title), cfg.stdin(), stderr) {
						_, _ = fmt.Fprintln(stdout, "Cancelled")
						return nil
					}
				}
				if err := a.dash.DeleteTask(ctx, id); err != nil {
					return utils.WithAPISuggestion(err)
				}
				if jsonOutput {
					return writeJSON(stdout, actionResponse{Action: "deleted", ID: id})
				}
				_, _ = fmt.Fprintf(stdout, "Deleted task: %s\n", cur.Title)
				return nil
			})
		}),
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (implies --yes)")
	return cmd
}

func printAction(stdout io.Writer, jsonOutput bool, action string, task *backend.Task, now time.Time) error {
	d := derive.DeriveOne(*task, now)
	if jsonOutput {
		tj := taskToJSON(&d)
		return writeJSON(stdout, actionResponse{Action: action, Task: &tj})
	}
	verb := strings.ToUpper(action[:1]) + action[1:]
	_, _ = fmt.Fprintf(stdout, "%s task: %s (%s)\n", verb, task.Title, task.ID)
	return nil
}

func newStatsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	var window, weeks int
	var assignee string
	var jsonOutput, showCharts bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task analytics",
		Long:  "Show completion, distribution and weekly trends over the loaded tasks. --window keeps tasks due within the last N days.",
		Args:  cobra.NoArgs,
		RunE: guarded(func(cmd *cobra.Command, args []string) error {
			if window < 0 {
				return fmt.Errorf("--window must not be negative")
			}
			return withApp(cmd, cfg, stderr, appOptions{weeks: weeks}, func(ctx context.Context, a *app) error {
				if err := a.load(ctx); err != nil {
					return err
				}
				filter := a.dash.AnalyticsFilter()
				if cmd.Flags().Changed("window") {
					filter.WindowDays = window
				}
				filter.Assignee = assignee
				report := a.dash.SetAnalyticsFilter(filter)

				if jsonOutput {
					return writeJSON(stdout, report)
				}
				printReport(stdout, report)
				if showCharts {
					for _, chart := range a.dash.RenderCharts(chartWidth) {
						_, _ = fmt.Fprintln(stdout)
						_, _ = fmt.Fprintln(stdout, chart)
					}
				}
				return nil
			})
		}),
	}

	cmd.Flags().IntVarP(&window, "window", "w", 0, "Only tasks due within the last N days (0 = all)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Only tasks assigned to this person")
	cmd.Flags().IntVar(&weeks, "weeks", 0, "Number of weeks in the weekly series (default ui.weeks)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&showCharts, "charts", false, "Also render the dashboard charts")
	return cmd
}

func printReport(w io.Writer, r analytics.Report) {
	bold := lipgloss.NewStyle().Bold(true)
	s := r.Summary

	_, _ = fmt.Fprintln(w, bold.Render("Summary"))
	_, _ = fmt.Fprintf(w, "  Total:      %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Done:       %d\n", s.Done)
	_, _ = fmt.Fprintf(w, "  Pending:    %d\n", s.Pending)
	_, _ = fmt.Fprintf(w, "  Overdue:    %d\n", s.Overdue)
	_, _ = fmt.Fprintf(w, "  Completion: %.1f%%\n", s.CompletionRate)
	_, _ = fmt.Fprintln(w)

	rows := make([][]string, 0, len(backend.Statuses))
	for _, st := range backend.Statuses {
		row := []string{views.StatusLabel(st)}
		total := 0
		for _, p := range backend.Priorities {
			n := r.Matrix.Get(st, p)
			total += n
			row = append(row, strconv.Itoa(n))
		}
		rows = append(rows, append(row, strconv.Itoa(total)))
	}
	totals := []string{"Total"}
	for _, p := range backend.Priorities {
		totals = append(totals, strconv.Itoa(r.Distribution.Priority[p]))
	}
	rows = append(rows, append(totals, strconv.Itoa(s.Total)))

	headers := []string{"Status"}
	for _, p := range backend.Priorities {
		headers = append(headers, views.PriorityLabel(p))
	}
	headers = append(headers, "Total")

	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Bold(true)
			}
			if col > 0 {
				return cell.Align(lipgloss.Right)
			}
			return cell
		})
	_, _ = fmt.Fprintln(w, t.Render())
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, bold.Render("Weekly completions"))
	for i, label := range r.Weekly.Labels {
		_, _ = fmt.Fprintf(w, "  %s  %d\n", label, r.Weekly.Counts[i])
	}

	if len(r.Assignees) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, bold.Render("By assignee"))
		for _, l := range r.Assignees {
			_, _ = fmt.Fprintf(w, "  %-20s %d tasks, %d done, %d overdue\n", views.Truncate(l.Assignee, 20), l.Total, l.Done, l.Overdue)
		}
	}
}
