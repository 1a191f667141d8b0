package daemonctl_test

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"mediadrop/internal/config"
	"mediadrop/internal/daemon"
	"mediadrop/internal/daemonctl"
	"mediadrop/internal/testsupport"
)

// fakeDaemon holds the daemon lock in the test process and records the pid
// of a child process standing in for the daemon.
func fakeDaemon(t *testing.T, cfg *config.Config, script string) (*exec.Cmd, <-chan struct{}) {
	t.Helper()

	lock := flock.New(daemon.LockPath(cfg))
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	child := exec.Command("sh", "-c", script)
	if err := child.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = child.Wait()
		close(exited)
	}()
	t.Cleanup(func() {
		_ = child.Process.Kill()
		<-exited
	})

	pid := strconv.Itoa(child.Process.Pid) + "\n"
	if err := os.WriteFile(daemon.PIDPath(cfg), []byte(pid), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	return child, exited
}

func TestStopWhenNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemonctl.Stop(cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopSendsSIGTERM(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	child, exited := fakeDaemon(t, cfg, "exec sleep 30")

	result, err := daemonctl.Stop(cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.PID != child.Process.Pid || result.ForcedKill {
		t.Fatalf("unexpected stop result: %+v", result)
	}
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("child still running after Stop")
	}
}

func TestStopForceKillsWhenTermIgnored(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	child, exited := fakeDaemon(t, cfg, `trap "" TERM; exec sleep 30`)
	time.Sleep(200 * time.Millisecond)

	result, err := daemonctl.Stop(cfg, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !result.ForcedKill || result.PID != child.Process.Pid {
		t.Fatalf("expected forced kill of %d, got %+v", child.Process.Pid, result)
	}
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("child still running after forced kill")
	}
	if _, err := os.Stat(daemon.PIDPath(cfg)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestEnsureStartedReportsRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	child, _ := fakeDaemon(t, cfg, "exec sleep 30")

	result, err := daemonctl.EnsureStarted(cfg, "/nonexistent/mediadrop", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning || result.PID != child.Process.Pid {
		t.Fatalf("unexpected start result: %+v", result)
	}
}

func TestEnsureStartedFailsWhenProcessExits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemonctl.EnsureStarted(cfg, "/bin/false", daemonctl.LaunchOptions{}, 5*time.Second); err == nil {
		t.Fatal("expected error when the launched process exits")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if _, err := daemonctl.Launch("  ", daemonctl.LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}
