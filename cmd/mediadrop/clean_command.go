package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediadrop/internal/journal"
	"mediadrop/internal/logging"
	"mediadrop/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var days int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove expired files from the holding directory",
		Long: `Remove holding directory entries older than upload.expire_days.

Use --days to override the configured retention for this run and --dry-run to
list what would be removed without deleting anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Upload.ExpireDays
			}
			maxAge := staging.ExpireAfter(days)
			out := cmd.OutOrStdout()
			if maxAge <= 0 {
				fmt.Fprintln(out, "Expiration disabled (upload.expire_days = 0)")
				return nil
			}

			if dryRun {
				return printExpirationPreview(cmd, cfg.Paths.FilesDir, maxAge)
			}

			result := staging.CleanExpired(cmd.Context(), cfg.Paths.FilesDir, maxAge, logging.NewNop())
			if cfg.Journal.Enabled && len(result.Removed) > 0 {
				if store, err := journal.Open(cfg.Journal.Path); err == nil {
					recorder := journal.NewRecorder(store, logging.NewNop())
					for _, path := range result.Removed {
						recorder.Record(cmd.Context(), journal.Event{Type: journal.EventExpired, Path: path, Detail: "manual clean"})
					}
					store.Close()
				}
			}
			if ctx.JSONMode() {
				errs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
				}
				return writeJSON(cmd, map[string]any{"removed": result.Removed, "errors": errs})
			}
			return printCleanResult(cmd, result)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Override upload.expire_days for this run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List expired entries without removing them")
	return cmd
}

func printExpirationPreview(cmd *cobra.Command, dir string, maxAge time.Duration) error {
	entries, err := staging.List(dir)
	if err != nil {
		return fmt.Errorf("list holding directory: %w", err)
	}
	now := time.Now()
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Age(now) < maxAge {
			continue
		}
		rows = append(rows, []string{entry.Name, formatAge(entry.Age(now)), formatBytes(entry.Size)})
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "Nothing to clean")
		return nil
	}
	fmt.Fprintln(out, renderTable([]column{left("Name"), right("Age"), right("Size")}, rows))
	fmt.Fprintf(out, "%d entries would be removed\n", len(rows))
	return nil
}

func printCleanResult(cmd *cobra.Command, result staging.CleanResult) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "Nothing to clean")
		return nil
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d entries, %d errors\n", len(result.Removed), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d entries\n", len(result.Removed))
	return nil
}
