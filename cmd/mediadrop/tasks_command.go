package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediadrop/internal/queue"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "tasks [id...]",
		Short: "List task descriptors and their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.taskStore()
			if err != nil {
				return err
			}

			var tasks []queue.Task
			if len(args) > 0 {
				for _, id := range args {
					task, err := store.Lookup(id)
					if err != nil {
						return err
					}
					tasks = append(tasks, task)
				}
			} else {
				tasks, err = store.List()
				if err != nil {
					return err
				}
			}
			if statusFilter != "" {
				tasks = filterTasks(tasks, queue.Status(statusFilter))
			}

			if ctx.JSONMode() {
				payload := make([]map[string]any, 0, len(tasks))
				for _, task := range tasks {
					payload = append(payload, map[string]any{
						"id":        task.ID.Raw,
						"kind":      string(task.ID.Kind),
						"status":    string(task.Status),
						"url":       task.URL,
						"path":      task.Path,
						"queued_at": queuedAt(task),
						"modified":  task.ModTime,
					})
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				kind := string(task.ID.Kind)
				if kind == "" {
					kind = "-"
				}
				rows = append(rows, []string{
					task.ID.Raw,
					kind,
					string(task.Status),
					queuedAt(task),
					formatAge(now.Sub(task.ModTime)),
					task.URL,
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				left("ID"), left("Type"), left("Status"), left("Queued"), right("Age"), left("URL").clip(72),
			}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show tasks in this status (pending, in_progress, succeeded, failed)")
	return cmd
}

func filterTasks(tasks []queue.Task, status queue.Status) []queue.Task {
	out := tasks[:0]
	for _, task := range tasks {
		if task.Status == status {
			out = append(out, task)
		}
	}
	return out
}

// queuedAt renders the timestamp embedded in the task id, in the store's
// timezone. Ids that do not parse have no timestamp.
func queuedAt(task queue.Task) string {
	if task.ID.Timestamp.IsZero() {
		return ""
	}
	return task.ID.Timestamp.Format("2006-01-02 15:04:05")
}
