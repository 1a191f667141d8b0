package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"mediadrop/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "add <url>...",
		Short: "Queue URLs for download",
		Long: `Write one task descriptor per URL into the task directory.

The running daemon picks descriptors up as they appear. Use --type audio to
retrieve with the audio configuration.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := queue.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			store, err := ctx.taskStore()
			if err != nil {
				return err
			}

			created := make([]queue.Task, 0, len(args))
			for _, raw := range args {
				target := strings.TrimSpace(raw)
				if err := validateTaskURL(target); err != nil {
					return err
				}
				task, err := store.Create(kind, target)
				if err != nil {
					return fmt.Errorf("queue %s: %w", target, err)
				}
				created = append(created, task)
			}

			if ctx.JSONMode() {
				payload := make([]map[string]string, 0, len(created))
				for _, task := range created {
					payload = append(payload, map[string]string{
						"id":   task.ID.Raw,
						"kind": string(task.ID.Kind),
						"url":  task.URL,
						"path": task.Path,
					})
				}
				return writeJSON(cmd, payload)
			}
			out := cmd.OutOrStdout()
			for _, task := range created {
				fmt.Fprintf(out, "Queued %s %s\n", task.ID.Raw, task.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "type", "t", "video", "Media type: video or audio")
	return cmd
}

func validateTaskURL(value string) error {
	if value == "" {
		return fmt.Errorf("url must not be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", value, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid url %q: scheme and host are required", value)
	}
	return nil
}
