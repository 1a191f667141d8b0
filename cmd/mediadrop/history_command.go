package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediadrop/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var taskID string
	var eventType string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline events from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return errors.New("journal is disabled (journal.enabled = false)")
			}
			store, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			events, err := store.Recent(cmd.Context(), journal.Filter{
				TaskID: taskID,
				Type:   journal.EventType(eventType),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if events == nil {
					events = []journal.Event{}
				}
				return writeJSON(cmd, events)
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No events recorded")
				return nil
			}
			loc := cfg.Location()
			rows := make([][]string, 0, len(events))
			for _, event := range events {
				attempt := ""
				if event.Attempt > 0 {
					attempt = strconv.Itoa(event.Attempt)
				}
				target := event.RemotePath
				if target == "" {
					target = event.Path
				}
				rows = append(rows, []string{
					event.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
					string(event.Type),
					event.TaskID,
					target,
					attempt,
					event.Detail,
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				left("Time"), left("Event"), left("Task"), left("Target").clip(60), right("Attempt"), left("Detail").clip(48),
			}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Only show events for this task id")
	cmd.Flags().StringVar(&eventType, "type", "", "Only show events of this type (e.g. uploaded, gave_up)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events")
	return cmd
}
