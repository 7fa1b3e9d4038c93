package cli

import (
	"fmt"
	"strings"

	"taskify/internal/client"

	"github.com/spf13/cobra"
)

func newListCmd(app *App) *cobra.Command {
	var q client.Query
	var sortKey string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Sort = client.SortKey(sortKey)
			if !q.Sort.IsValid() {
				return fmt.Errorf("unknown sort key %q (date|status|priority|category)", sortKey)
			}

			ctrl, err := app.controller(cmd.Context())
			if err != nil {
				return err
			}
			ctrl.Query = q

			newRenderer(cmd.OutOrStdout(), app.NoColor).taskList(ctrl.Visible())
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Status, "status", client.FilterAll, "Filter by status (all|pending|in_progress|completed)")
	cmd.Flags().StringVar(&q.Category, "category", client.FilterAll, "Filter by category")
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "Case-insensitive search in title and description")
	cmd.Flags().StringVar(&sortKey, "sort", string(client.SortDate), "Sort by date|status|priority|category")
	return cmd
}

type taskFlags struct {
	description string
	category    string
	status      string
	priority    string
	due         string
	reminder    string
	tags        []string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Category (default General)")
	cmd.Flags().StringVar(&f.status, "status", "", "pending|in_progress|completed")
	cmd.Flags().StringVarP(&f.priority, "priority", "P", "", "Low|Medium|High")
	cmd.Flags().StringVar(&f.due, "due", "", "Due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&f.reminder, "reminder", "", "Reminder time (YYYY-MM-DDTHH:MM or RFC3339)")
	cmd.Flags().StringSliceVarP(&f.tags, "tag", "t", nil, "Tag (repeatable)")
}

// apply copies only the flags the user actually passed onto form.
func (f *taskFlags) apply(cmd *cobra.Command, form *client.TaskForm) {
	changed := cmd.Flags().Changed
	if changed("description") {
		form.Description = f.description
	}
	if changed("category") {
		form.Category = f.category
	}
	if changed("status") {
		form.Status = f.status
	}
	if changed("priority") {
		form.Priority = f.priority
	}
	if changed("due") {
		form.DueDate = f.due
	}
	if changed("reminder") {
		form.ReminderDate = f.reminder
	}
	if changed("tag") {
		form.Tags = f.tags
	}
}

func newAddCmd(app *App) *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := app.controller(cmd.Context())
			if err != nil {
				return err
			}

			ctrl.Form = client.TaskForm{Title: strings.Join(args, " ")}
			flags.apply(cmd, &ctrl.Form)
			if err := ctrl.Submit(cmd.Context()); err != nil {
				return viewError(ctrl, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Task added")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd(app *App) *cobra.Command {
	var flags taskFlags
	var title string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := app.controller(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolveTask(ctrl, args[0])
			if err != nil {
				return err
			}
			if !ctrl.BeginEdit(id) {
				return fmt.Errorf("no task matches %q", args[0])
			}

			if cmd.Flags().Changed("title") {
				ctrl.Form.Title = title
			}
			flags.apply(cmd, &ctrl.Form)
			if err := ctrl.Submit(cmd.Context()); err != nil {
				return viewError(ctrl, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Task updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	flags.register(cmd)
	return cmd
}

func newRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := app.controller(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolveTask(ctrl, args[0])
			if err != nil {
				return err
			}
			if err := ctrl.Delete(cmd.Context(), id); err != nil {
				return viewError(ctrl, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Task deleted")
			return nil
		},
	}
}

func newToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := app.controller(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolveTask(ctrl, args[0])
			if err != nil {
				return err
			}
			if err := ctrl.Toggle(cmd.Context(), id); err != nil {
				return viewError(ctrl, err)
			}

			for _, t := range ctrl.Tasks {
				if t.ID == id {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", t.Title, t.Status)
				}
			}
			return nil
		},
	}
}

func newClearCompletedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := app.controller(cmd.Context())
			if err != nil {
				return err
			}

			result, err := ctrl.ClearCompleted(cmd.Context())
			out := cmd.OutOrStdout()
			if result.Attempted == 0 {
				fmt.Fprintln(out, "No completed tasks")
				return nil
			}
			fmt.Fprintf(out, "Deleted %d of %d completed tasks\n", result.Deleted, result.Attempted)
			if result.Failed > 0 {
				return fmt.Errorf("%s (%d failed)", client.MsgClearFailed, result.Failed)
			}
			if err != nil {
				return viewError(ctrl, err)
			}
			return nil
		},
	}
}

func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show task counts and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := app.controller(cmd.Context())
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout(), app.NoColor).summary(ctrl.Summary(), ctrl.Categories())
			return nil
		},
	}
}
