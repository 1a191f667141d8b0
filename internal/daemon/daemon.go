package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediadrop/internal/config"
	"mediadrop/internal/journal"
	"mediadrop/internal/logging"
	"mediadrop/internal/queue"
)

const (
	lockFileName = "mediadrop.lock"
	pidFileName  = "mediadrop.pid"
)

// Component is a pipeline with a start/stop lifecycle.
type Component interface {
	Start(ctx context.Context) error
	Stop()
}

// Daemon runs the download and upload pipelines and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	tasks     *queue.Store
	journal   *journal.Store
	downloads Component
	uploads   Component

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	PIDFilePath  string
	JournalPath  string
	Tasks        map[queue.Status]int
}

// New constructs a daemon. journalStore may be nil when the journal is disabled.
func New(cfg *config.Config, tasks *queue.Store, journalStore *journal.Store, downloads, uploads Component, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || tasks == nil || downloads == nil || uploads == nil {
		return nil, errors.New("daemon requires config, task store, and both pipelines")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		tasks:     tasks,
		journal:   journalStore,
		downloads: downloads,
		uploads:   uploads,
		lockPath:  lockPath,
		pidPath:   PIDPath(cfg),
		lock:      flock.New(lockPath),
	}, nil
}

// LockPath returns the lock file guarding a single daemon per log directory.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, lockFileName)
}

// PIDPath returns the pid file written while the daemon runs.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, pidFileName)
}

// Start acquires the daemon lock and starts the upload pipeline, then the
// download orchestrator, so files relocated by early downloads are seen.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediadrop daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.uploads.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start upload pipeline: %w", err)
	}
	if err := d.downloads.Start(runCtx); err != nil {
		d.uploads.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start download orchestrator: %w", err)
	}
	if err := writePIDFile(d.pidPath); err != nil {
		logging.WarnWithContext(d.logger, "failed to write pid file", "daemon_pid_failed",
			logging.String("path", d.pidPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "status commands cannot report the daemon pid"),
		)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("mediadrop daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops the download orchestrator, then the upload pipeline, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.downloads.Stop()
	d.uploads.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediadrop daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		PIDFilePath:  d.pidPath,
		Tasks:        make(map[queue.Status]int),
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
	}
	tasks, err := d.tasks.List()
	if err != nil {
		d.logger.Warn("task listing failed", logging.Error(err))
		return status
	}
	for _, task := range tasks {
		status.Tasks[task.Status]++
	}
	return status
}

// Probe reports whether a daemon holds the lock for cfg, and its pid when
// the pid file is readable.
func Probe(cfg *config.Config) (bool, int, error) {
	lock := flock.New(LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, 0, nil
	}
	data, err := os.ReadFile(PIDPath(cfg))
	if err != nil {
		return true, 0, nil
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return true, pid, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
