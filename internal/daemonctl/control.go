// Package daemonctl starts and stops a background "mediadrop run" process
// using the daemon's lock and pid files.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"mediadrop/internal/config"
	"mediadrop/internal/daemon"
)

const pollInterval = 100 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// ErrDaemonNotRunning indicates no process holds the daemon lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached "mediadrop run" in its own session. Its output
// goes to the run log, so stdio is discarded here.
func Launch(executablePath string, opts LaunchOptions) (*os.Process, error) {
	if strings.TrimSpace(executablePath) == "" {
		return nil, fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process, nil
}

// EnsureStarted launches the daemon unless one already holds the lock, then
// waits until the new process has taken it.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	running, pid, err := daemon.Probe(cfg)
	if err != nil {
		return StartResult{}, err
	}
	if running {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}

	proc, err := Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	exited := make(chan error, 1)
	go func() {
		_, waitErr := proc.Wait()
		exited <- waitErr
	}()

	deadline := time.After(waitTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-exited:
			return StartResult{}, fmt.Errorf("daemon exited during startup; check the run log in %s", cfg.Paths.LogDir)
		case <-deadline:
			return StartResult{}, fmt.Errorf("daemon failed to start within %s", waitTimeout)
		case <-ticker.C:
			running, pid, err := daemon.Probe(cfg)
			if err != nil {
				return StartResult{}, err
			}
			if running && pid > 0 {
				return StartResult{State: StartStateStarted, PID: pid}, nil
			}
		}
	}
}

// Stop sends SIGTERM to the running daemon and waits up to gracePeriod for
// it to exit before sending SIGKILL.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, pid, err := daemon.Probe(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("daemon holds %s but pid file %s is unreadable", daemon.LockPath(cfg), daemon.PIDPath(cfg))
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			_ = os.Remove(daemon.PIDPath(cfg))
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(cfg, pid, gracePeriod) {
		return result, nil
	}

	if err := ForceKill(cfg, pid); err != nil {
		return result, err
	}
	result.ForcedKill = true
	return result, nil
}

// ForceKill sends SIGKILL to pid and removes the stale pid file.
func ForceKill(cfg *config.Config, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid daemon pid %d", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(daemon.PIDPath(cfg)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// Restart stops the daemon if running, then starts a new one.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := Stop(cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(cfg, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// waitForExit reports whether pid exited or released the daemon lock
// within timeout.
func waitForExit(cfg *config.Config, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !processAlive(pid) {
			return true
		}
		if running, _, err := daemon.Probe(cfg); err == nil && !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
