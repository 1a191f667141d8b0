package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediadrop/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, yt-dlp, remotes, and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			failed := preflight.Failed(results)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				w := newStatusWriter(cmd.OutOrStdout())
				w.Section("Preflight")
				for _, result := range results {
					w.Line(result.Name, checkKind(result.Passed, result.Optional), result.Detail)
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}
