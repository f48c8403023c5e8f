package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"todola/backend/internal/feed"
	"todola/backend/internal/models"
	"todola/backend/internal/store"
)

const msgNoTasks = "No tasks found"

var tasksOwner string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect task records",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List task records",
	Long: `List the records under tasks/ in creation order.

With --owner only that user's tasks are shown, ordered by deadline the
same way the app orders them.

Examples:
  todola tasks list
  todola tasks list --owner 6f1c...
  todola tasks list --json`,
	RunE: runTasksList,
}

func init() {
	tasksListCmd.Flags().StringVar(&tasksOwner, "owner", "", "only show tasks created by this uid")
	tasksCmd.AddCommand(tasksListCmd)
	rootCmd.AddCommand(tasksCmd)
}

type taskRow struct {
	models.Task
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func runTasksList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var tasks []models.Task
	if tasksOwner != "" {
		tasks, err = feed.Snapshot(ctx, rt.store, tasksOwner)
	} else {
		tasks, err = feed.Collection(ctx, rt.store)
	}
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	rows := make([]taskRow, len(tasks))
	for i, t := range tasks {
		rows[i].Task = t
		if at, err := store.KeyTime(t.ID); err == nil {
			rows[i].CreatedAt = &at
		}
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"tasks": rows,
			"count": len(rows),
		})
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, msgNoTasks)
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tOWNER\tNAME\tDEADLINE\tDONE\tCREATED")
	for _, r := range rows {
		created := "-"
		if r.CreatedAt != nil {
			created = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", r.ID, r.CreatedBy, r.Name, r.Deadline, r.Done, created)
	}
	return w.Flush()
}
