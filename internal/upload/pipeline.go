package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"mediadrop/internal/fileutil"
	"mediadrop/internal/journal"
	"mediadrop/internal/logging"
	"mediadrop/internal/notifications"
	"mediadrop/internal/queue"
	"mediadrop/internal/retry"
	"mediadrop/internal/services"
	"mediadrop/internal/watch"
)

// RemoteStore is the subset of the WebDAV client the pipeline uses.
type RemoteStore interface {
	Enabled() bool
	Root() string
	Exists(ctx context.Context, remotePath string) (bool, error)
	MkdirAll(ctx context.Context, dir string) error
	Upload(ctx context.Context, localPath, remotePath string) error
	WriteBytes(ctx context.Context, remotePath string, data []byte) error
}

// Remotes holds one store per media kind. A nil Audio store uses Video.
type Remotes struct {
	Video RemoteStore
	Audio RemoteStore
}

func (r Remotes) forKind(kind queue.Kind) RemoteStore {
	if kind == queue.KindAudio && r.Audio != nil {
		return r.Audio
	}
	return r.Video
}

// anyEnabled reports whether at least one store accepts uploads.
func (r Remotes) anyEnabled() bool {
	for _, store := range []RemoteStore{r.Video, r.Audio} {
		if store != nil && store.Enabled() {
			return true
		}
	}
	return false
}

// Recorder receives journal events.
type Recorder interface {
	Record(ctx context.Context, event journal.Event)
}

// Pipeline uploads artifacts that appear in the holding directory.
type Pipeline struct {
	opts    Options
	remotes Remotes
	notify  *notifications.Dispatcher
	journal Recorder
	logger  *slog.Logger

	table *retry.Table
	now   func() time.Time

	mu        sync.Mutex
	scheduler *retry.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	watcher   *watch.Watcher
	running   bool
	schedDone chan struct{}
	scanWG    sync.WaitGroup
}

// New constructs a Pipeline. notifier and recorder may be nil.
func New(opts Options, remotes Remotes, notifier notifications.Service, recorder Recorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger = logging.NewComponentLogger(logger, "upload")
	return &Pipeline{
		opts:      opts,
		remotes:   remotes,
		notify:    notifications.NewDispatcher(notifier),
		journal:   recorder,
		logger:    logger,
		table:     retry.NewTable(opts.MaxRetries),
		scheduler: retry.NewScheduler(logger),
		now:       time.Now,
	}
}

// Start begins watching the holding directory and runs the retry scheduler.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w := watch.New(watch.Options{
		Dir:       p.opts.FilesDir,
		Ops:       fsnotify.Create | fsnotify.Write,
		Match:     func(path string) bool { return !fileutil.IsHidden(path) },
		Component: "upload-watch",
	}, p.handleEvent, p.logger)
	if err := w.Start(runCtx); err != nil {
		cancel()
		p.mu.Unlock()
		return fmt.Errorf("watch files directory: %w", err)
	}
	p.ctx = runCtx
	p.cancel = cancel
	p.watcher = w
	p.running = true
	p.scheduler = retry.NewScheduler(p.logger)
	p.schedDone = make(chan struct{})
	sched, done := p.scheduler, p.schedDone
	p.mu.Unlock()

	go func() {
		defer close(done)
		sched.Run(runCtx)
	}()

	p.logger.Info("upload pipeline started",
		logging.String(logging.FieldEventType, "upload_started"),
		logging.String("files_dir", p.opts.FilesDir),
		logging.Int("max_retries", p.table.MaxAttempts()),
		logging.Duration("retry_delay", p.opts.RetryDelay),
	)

	if p.opts.ScanOnStart {
		p.scanWG.Add(1)
		go func() {
			defer p.scanWG.Done()
			p.scanExisting(runCtx)
		}()
	}
	return nil
}

// Stop stops the watcher, drops queued retries, and waits for running
// attempts to return.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	w := p.watcher
	cancel := p.cancel
	done := p.schedDone
	p.mu.Unlock()

	cancel()
	w.Stop()
	p.scanWG.Wait()
	<-done
	p.table.Reset()
	p.notify.Wait()

	p.logger.Info("upload pipeline stopped",
		logging.String(logging.FieldEventType, "upload_stopped"),
	)
}

// Tracked returns how many artifacts currently hold a retry record.
func (p *Pipeline) Tracked() int {
	return p.table.Len()
}

// PendingRetries returns the queued retries ordered by fire time.
func (p *Pipeline) PendingRetries() []retry.Job {
	return p.retries().Pending()
}

func (p *Pipeline) retries() *retry.Scheduler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduler
}

func (p *Pipeline) handleEvent(ctx context.Context, ev watch.Event) {
	p.attempt(ctx, ev.Path, false)
}

func (p *Pipeline) warnDisabled(logger *slog.Logger, kind queue.Kind) {
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorHint, "fix the remote settings and restart the daemon"),
		logging.String(logging.FieldImpact, "file stays in the holding directory"),
	}
	if kind != "" {
		attrs = append(attrs, logging.String("kind", string(kind)))
	}
	logging.WarnWithContext(logger, "remote store disabled; upload skipped", "upload_remote_disabled", attrs...)
}

func (p *Pipeline) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(p.opts.FilesDir)
	if err != nil {
		logging.WarnWithContext(p.logger, "scan of holding directory failed", "upload_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check files_dir permissions"),
			logging.String(logging.FieldImpact, "files present before start are not uploaded until they change"),
		)
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || fileutil.IsHidden(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)
	p.logger.Info("processing files found at start",
		logging.Int("count", len(names)),
		logging.String(logging.FieldEventType, "upload_scan"),
	)
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		p.attempt(ctx, filepath.Join(p.opts.FilesDir, name), false)
	}
}

// attempt runs one upload try for localPath. isRetry marks invocations from
// the scheduler.
func (p *Pipeline) attempt(ctx context.Context, localPath string, isRetry bool) {
	if fileutil.IsHidden(localPath) {
		return
	}
	name := filepath.Base(localPath)
	logger := p.logger.With(logging.String("file", name))

	// Nothing in the holding directory is touched, unsupported files
	// included, until a remote store is reachable.
	if !p.remotes.anyEnabled() {
		p.warnDisabled(logger, "")
		return
	}

	kind, ok := Classify(name)
	if !ok {
		p.removeUnsupported(ctx, logger, localPath)
		return
	}

	remote := p.remotes.forKind(kind)
	if remote == nil || !remote.Enabled() {
		p.warnDisabled(logger, kind)
		return
	}

	if !p.table.Begin(localPath, isRetry) {
		logger.Debug("upload already running or retry pending; event dropped")
		return
	}

	info, err := os.Stat(localPath)
	if err != nil || info.IsDir() {
		p.table.Clear(localPath)
		if isRetry {
			logger.Info("file vanished before retry; record cleared",
				logging.String(logging.FieldEventType, "upload_retry_vanished"),
			)
		} else {
			logger.Debug("file vanished before upload")
		}
		return
	}

	ctx = services.WithStage(ctx, "upload")
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger = logging.WithContext(ctx, logger)

	remotePath := RemotePath(remote.Root(), kind, name, p.now(), p.opts.Location, p.opts.CategoryDirs)
	started := time.Now()
	skipped, err := p.push(ctx, logger, remote, localPath, remotePath)
	if err != nil {
		p.handleFailure(ctx, logger, localPath, remotePath, err)
		return
	}
	p.table.Clear(localPath)

	if skipped {
		logger.Info("remote copy already exists; upload skipped",
			logging.String(logging.FieldEventType, "upload_skipped_existing"),
			logging.String("remote_path", remotePath),
		)
		p.record(ctx, journal.Event{Type: journal.EventSkippedExisting, Path: localPath, RemotePath: remotePath, Bytes: info.Size()})
	} else {
		elapsed := time.Since(started)
		logger.Info("upload complete",
			logging.String(logging.FieldEventType, "upload_completed"),
			logging.String("remote_path", remotePath),
			logging.Int64("bytes", info.Size()),
			logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
		)
		p.record(ctx, journal.Event{Type: journal.EventUploaded, Path: localPath, RemotePath: remotePath, Bytes: info.Size()})
		if p.opts.NotifyUploads {
			p.notify.Send(ctx, logger, notifications.UploadCompleted(remotePath, info.Size(), elapsed))
		}
	}

	if p.opts.DeleteAfterUpload {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "local copy could not be removed", "upload_local_delete_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "file stays in the holding directory"),
			)
			return
		}
		logger.Debug("local copy removed")
	}
}

// push uploads localPath unless remotePath already exists. skipped reports
// the idempotent case.
func (p *Pipeline) push(ctx context.Context, logger *slog.Logger, remote RemoteStore, localPath, remotePath string) (bool, error) {
	exists, err := remote.Exists(ctx, remotePath)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	dir := remoteDir(remotePath)
	if dir != "/" {
		if err := remote.MkdirAll(ctx, dir); err != nil {
			return false, err
		}
	}
	streamErr := remote.Upload(ctx, localPath, remotePath)
	if streamErr == nil {
		return false, nil
	}
	if ctx.Err() != nil {
		return false, streamErr
	}
	logger.Debug("streaming upload failed; trying single write", logging.Error(streamErr))
	data, err := os.ReadFile(localPath)
	if err != nil {
		return false, errors.Join(streamErr, fmt.Errorf("read for fallback: %w", err))
	}
	if err := remote.WriteBytes(ctx, remotePath, data); err != nil {
		return false, errors.Join(streamErr, err)
	}
	return false, nil
}

func (p *Pipeline) handleFailure(ctx context.Context, logger *slog.Logger, localPath, remotePath string, cause error) {
	if ctx.Err() != nil {
		p.table.Clear(localPath)
		logger.Info("upload interrupted by shutdown",
			logging.String(logging.FieldEventType, "upload_interrupted"),
		)
		return
	}
	decision, attempts := p.table.Fail(localPath)
	p.record(ctx, journal.Event{Type: journal.EventUploadFailed, Path: localPath, RemotePath: remotePath, Attempt: attempts, Detail: cause.Error()})

	if decision == retry.DecisionRetry {
		logging.WarnWithContext(logger, "upload failed; retry scheduled", "upload_retry_scheduled",
			logging.String("remote_path", remotePath),
			logging.Int("attempt", attempts),
			logging.Int("max_attempts", p.table.MaxAttempts()),
			logging.Duration("retry_in", p.opts.RetryDelay),
			logging.Error(cause),
		)
		retryCtx := p.runContext(ctx)
		scheduled := p.retries().Schedule(localPath, p.opts.RetryDelay, func() {
			p.attempt(retryCtx, localPath, true)
		})
		if !scheduled {
			p.table.Clear(localPath)
		}
		return
	}

	logging.ErrorWithContext(logger, "upload failed; giving up", "upload_gave_up",
		logging.String("remote_path", remotePath),
		logging.Int("attempts", attempts),
		logging.String("error_kind", services.Kind(cause)),
		logging.String("error_source", services.StageOf(cause)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check the remote store; the file is re-uploaded when it changes or on the next start"),
		logging.String(logging.FieldImpact, "local copy kept in the holding directory"),
	)
	p.record(ctx, journal.Event{Type: journal.EventGaveUp, Path: localPath, RemotePath: remotePath, Attempt: attempts, Detail: cause.Error()})
	if p.opts.NotifyErrors {
		p.notify.Send(ctx, logger, notifications.UploadGaveUp(localPath, attempts, cause))
	}
}

func (p *Pipeline) removeUnsupported(ctx context.Context, logger *slog.Logger, localPath string) {
	info, err := os.Lstat(localPath)
	if err != nil || info.IsDir() {
		return
	}
	if err := os.Remove(localPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "unsupported file could not be removed", "upload_unsupported_delete_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file stays in the holding directory"),
		)
		return
	}
	logger.Info("unsupported file removed",
		logging.String(logging.FieldEventType, "upload_unsupported_removed"),
		logging.String("extension", filepath.Ext(localPath)),
	)
	p.record(ctx, journal.Event{Type: journal.EventDeletedUnsupported, Path: localPath, Bytes: info.Size()})
}

// runContext returns the pipeline's lifetime context so retries outlive the
// event that scheduled them.
func (p *Pipeline) runContext(fallback context.Context) context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		return p.ctx
	}
	return fallback
}

func (p *Pipeline) record(ctx context.Context, event journal.Event) {
	if p.journal != nil {
		p.journal.Record(ctx, event)
	}
}
