package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mediadrop/internal/daemonctl"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 15 * time.Second
)

// daemonReport is the --json shape shared by start, stop and restart.
type daemonReport struct {
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	PID        int    `json:"pid,omitempty"`
	StoppedPID int    `json:"stopped_pid,omitempty"`
	ForcedKill bool   `json:"forced_kill,omitempty"`
}

func (r daemonReport) String() string {
	switch r.Outcome {
	case "already_running":
		return fmt.Sprintf("Daemon already running (pid %d)", r.PID)
	case "not_running":
		return "Daemon is not running"
	case "killed":
		return fmt.Sprintf("Daemon did not exit within %s; killed pid %d", stopGracePeriod, r.PID)
	case "stopped":
		return fmt.Sprintf("Daemon stopped (pid %d)", r.PID)
	}
	if r.StoppedPID > 0 {
		return fmt.Sprintf("Stopped pid %d\nDaemon started (pid %d)", r.StoppedPID, r.PID)
	}
	return fmt.Sprintf("Daemon started (pid %d)", r.PID)
}

func (c *commandContext) emitDaemonReport(cmd *cobra.Command, report daemonReport) error {
	if c.JSONMode() {
		return writeJSON(cmd, report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.String())
	return nil
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newRestartCommand(ctx),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cfg, exe, ctx.launchOptions(logLevel), startWaitTimeout)
			if err != nil {
				return err
			}
			return ctx.emitDaemonReport(cmd, daemonReport{Action: "start", Outcome: string(result.State), PID: result.PID})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cfg, stopGracePeriod)
			report := daemonReport{Action: "stop", PID: result.PID, ForcedKill: result.ForcedKill}
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
				report.Outcome = "not_running"
			case err != nil:
				return err
			case result.ForcedKill:
				report.Outcome = "killed"
			default:
				report.Outcome = "stopped"
			}
			return ctx.emitDaemonReport(cmd, report)
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.Restart(cfg, exe, ctx.launchOptions(logLevel), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			report := daemonReport{Action: "restart", Outcome: string(result.Start.State), PID: result.Start.PID}
			if result.WasRunning {
				report.StoppedPID = result.Stop.PID
				report.ForcedKill = result.Stop.ForcedKill
			}
			return ctx.emitDaemonReport(cmd, report)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")
	return cmd
}
