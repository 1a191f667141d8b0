// Package daemonrun wires configuration, logging, the pipelines, and the
// daemon lifecycle into the process started by "mediadrop run".
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mediadrop/internal/config"
	"mediadrop/internal/daemon"
	"mediadrop/internal/deps"
	"mediadrop/internal/download"
	"mediadrop/internal/journal"
	"mediadrop/internal/logging"
	"mediadrop/internal/logs"
	"mediadrop/internal/notifications"
	"mediadrop/internal/preflight"
	"mediadrop/internal/queue"
	"mediadrop/internal/services/webdav"
	"mediadrop/internal/services/ytdlp"
	"mediadrop/internal/staging"
	"mediadrop/internal/upload"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the mediadrop daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mediadrop-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Location:         cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update mediadrop.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "mediadrop-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "v*.log"},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "a*.log"},
	)
	logDependencySnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	journalStore := openJournal(signalCtx, logger, cfg)
	recorder := journal.NewRecorder(journalStore, logger)
	sweepExpired(signalCtx, logger, cfg, recorder)

	notifier := notifications.NewService(cfg)
	fetcher, err := ytdlp.New(cfg.YTDLPBinary())
	if err != nil {
		return fmt.Errorf("yt-dlp client: %w", err)
	}
	tasks := queue.NewStore(cfg.Paths.URLsDir, cfg.Location())
	downloads := download.New(download.OptionsFromConfig(cfg), tasks, fetcher, notifier, recorder, logger)

	var uploads daemon.Component
	if cfg.Upload.Enabled {
		uploads = upload.New(upload.OptionsFromConfig(cfg), connectRemotes(signalCtx, cfg, logger), notifier, recorder, logger)
	} else {
		uploads = disabledUploads{logger: logger}
	}

	d, err := daemon.New(cfg, tasks, journalStore, downloads, uploads, logger)
	if err != nil {
		_ = journalStore.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check directory permissions and that no other instance is running"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("mediadrop daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

// connectRemotes dials one client per kind. The audio client is shared with
// video when no dedicated audio account is configured.
func connectRemotes(ctx context.Context, cfg *config.Config, logger *slog.Logger) upload.Remotes {
	remotes := upload.Remotes{Video: webdav.Connect(ctx, "video", cfg.Remote.Video, logger)}
	if endpoint, dedicated := cfg.AudioEndpoint(); dedicated {
		remotes.Audio = webdav.Connect(ctx, "audio", endpoint, logger)
	}
	return remotes
}

func openJournal(ctx context.Context, logger *slog.Logger, cfg *config.Config) *journal.Store {
	if !cfg.Journal.Enabled {
		return nil
	}
	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logging.WarnWithContext(logger, "event journal unavailable", "journal_open_failed",
			logging.String("path", cfg.Journal.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path or set journal.enabled = false"),
			logging.String(logging.FieldImpact, "history is not recorded for this run"),
		)
		return nil
	}
	if cfg.Logging.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Logging.RetentionDays)
		if pruned, err := store.Prune(ctx, cutoff); err != nil {
			logger.Warn("journal prune failed", logging.Error(err))
		} else if pruned > 0 {
			logger.Info("journal pruned",
				logging.Int64("removed", pruned),
				logging.String(logging.FieldEventType, "journal_pruned"),
			)
		}
	}
	return store
}

func sweepExpired(ctx context.Context, logger *slog.Logger, cfg *config.Config, recorder *journal.Recorder) {
	maxAge := staging.ExpireAfter(cfg.Upload.ExpireDays)
	if maxAge <= 0 {
		return
	}
	result := staging.CleanExpired(ctx, cfg.Paths.FilesDir, maxAge, logging.NewComponentLogger(logger, "staging"))
	for _, path := range result.Removed {
		recorder.Record(ctx, journal.Event{Type: journal.EventExpired, Path: path})
	}
	logger.Info("expiration sweep complete",
		logging.String(logging.FieldEventType, "staging_sweep"),
		logging.Int("removed", len(result.Removed)),
		logging.Int("errors", len(result.Errors)),
		logging.Int("expire_days", cfg.Upload.ExpireDays),
	)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunLocal(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'mediadrop check' for the full report"),
		)
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	statuses := deps.Check(cfg.YTDLPBinary())
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		attrs = append(attrs, logging.Group(status.Name,
			logging.Bool("available", status.Available),
			logging.String("command", status.Command),
		))
	}
	attrs = append(attrs,
		logging.Bool("upload_enabled", cfg.Upload.Enabled),
		logging.String("notify_provider", cfg.Notifications.Provider),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentLogPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

type disabledUploads struct {
	logger *slog.Logger
}

func (u disabledUploads) Start(context.Context) error {
	u.logger.Info("uploads disabled by configuration; files stay in the holding directory",
		logging.String(logging.FieldEventType, "upload_disabled"),
	)
	return nil
}

func (disabledUploads) Stop() {}
