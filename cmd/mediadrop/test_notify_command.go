package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediadrop/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg)
			if !notifications.Enabled(svc) {
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				return errors.New("notifications are not configured; set notifications.provider and its destination")
			}
			if err := svc.Notify(cmd.Context(), notifications.Test()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent via %s\n", cfg.Notifications.Provider)
			return nil
		},
	}
}
