package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mediadrop/internal/config"
	"mediadrop/internal/daemon"
	"mediadrop/internal/journal"
	"mediadrop/internal/queue"
	"mediadrop/internal/staging"
)

type statusSnapshot struct {
	Running      bool                 `json:"running"`
	PID          int                  `json:"pid,omitempty"`
	Tasks        map[queue.Status]int `json:"tasks"`
	HoldingFiles int                  `json:"holding_files"`
	HoldingBytes int64                `json:"holding_bytes"`
	OldestAge    string               `json:"oldest_holding_age,omitempty"`
	Journal      map[string]int       `json:"journal,omitempty"`
	UploadOn     bool                 `json:"upload_enabled"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, task, and holding directory status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.taskStore()
			if err != nil {
				return err
			}
			snapshot, err := buildStatusSnapshot(cmd, cfg, store)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, snapshot)
			}

			w := newStatusWriter(cmd.OutOrStdout())
			w.Section("Daemon")
			switch {
			case snapshot.Running && snapshot.PID > 0:
				w.Line("Daemon", statusOK, "Running (pid "+strconv.Itoa(snapshot.PID)+")")
			case snapshot.Running:
				w.Line("Daemon", statusOK, "Running")
			default:
				w.Line("Daemon", statusWarn, "Not running")
			}
			uploadKind := statusOK
			if !snapshot.UploadOn {
				uploadKind = statusWarn
			}
			w.Line("Uploads enabled", uploadKind, yesNo(snapshot.UploadOn))

			w.Section("Holding Directory")
			w.Line("Path", statusInfo, cfg.Paths.FilesDir)
			holding := fmt.Sprintf("%d files, %s", snapshot.HoldingFiles, formatBytes(snapshot.HoldingBytes))
			if snapshot.OldestAge != "" {
				holding += ", oldest " + snapshot.OldestAge
			}
			w.Line("Contents", statusInfo, holding)

			w.Section("Tasks")
			rows := make([][]string, 0, len(snapshot.Tasks))
			for _, status := range queue.AllStatuses() {
				if count := snapshot.Tasks[status]; count > 0 {
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
			}
			if len(rows) == 0 {
				w.Text("No tasks")
				return nil
			}
			w.Text(renderTable([]column{left("Status"), right("Count")}, rows))
			return nil
		},
	}
}

func buildStatusSnapshot(cmd *cobra.Command, cfg *config.Config, store *queue.Store) (statusSnapshot, error) {
	snapshot := statusSnapshot{
		Tasks:    make(map[queue.Status]int),
		UploadOn: cfg.Upload.Enabled,
	}

	running, pid, err := daemon.Probe(cfg)
	if err != nil {
		return snapshot, err
	}
	snapshot.Running = running
	snapshot.PID = pid

	tasks, err := store.List()
	if err != nil {
		return snapshot, fmt.Errorf("list tasks: %w", err)
	}
	for _, task := range tasks {
		snapshot.Tasks[task.Status]++
	}

	entries, err := staging.List(cfg.Paths.FilesDir)
	if err != nil {
		return snapshot, fmt.Errorf("list holding directory: %w", err)
	}
	for _, entry := range entries {
		snapshot.HoldingFiles++
		snapshot.HoldingBytes += entry.Size
	}
	if len(entries) > 0 {
		snapshot.OldestAge = formatAge(entries[0].Age(time.Now()))
	}

	if cfg.Journal.Enabled {
		if counts, err := journalCounts(cmd, cfg); err == nil {
			snapshot.Journal = counts
		}
	}
	return snapshot, nil
}

func journalCounts(cmd *cobra.Command, cfg *config.Config) (map[string]int, error) {
	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	counts, err := store.Counts(cmd.Context())
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counts))
	for eventType, count := range counts {
		out[string(eventType)] = count
	}
	return out, nil
}
