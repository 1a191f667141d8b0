package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"mediadrop/internal/fileutil"
	"mediadrop/internal/journal"
	"mediadrop/internal/logging"
	"mediadrop/internal/logs"
	"mediadrop/internal/notifications"
	"mediadrop/internal/queue"
	"mediadrop/internal/services"
	"mediadrop/internal/services/ytdlp"
	"mediadrop/internal/watch"
)

// Fetcher retrieves one URL into a directory, streaming tool output lines.
type Fetcher interface {
	Fetch(ctx context.Context, req ytdlp.Request, onLine func(string)) error
}

// Recorder receives journal events.
type Recorder interface {
	Record(ctx context.Context, event journal.Event)
}

// Task is a claimed descriptor handed to a worker.
type Task struct {
	ID  queue.ID
	URL string
}

// Orchestrator runs the download half of the pipeline.
type Orchestrator struct {
	opts    Options
	store   *queue.Store
	fetcher Fetcher
	notify  *notifications.Dispatcher
	journal Recorder
	logger  *slog.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	watcher *watch.Watcher
	timers  map[string]*time.Timer
	running bool
}

// New constructs an Orchestrator. notifier and recorder may be nil.
func New(opts Options, store *queue.Store, fetcher Fetcher, notifier notifications.Service, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		opts:    opts,
		store:   store,
		fetcher: fetcher,
		notify:  notifications.NewDispatcher(notifier),
		journal: recorder,
		logger:  logging.NewComponentLogger(logger, "download"),
		slots:   make(chan struct{}, opts.MaxWorkers),
		timers:  make(map[string]*time.Timer),
	}
}

// Start begins watching the urls directory and, when configured, enqueues
// descriptors that were already pending.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w := watch.New(watch.Options{
		Dir:       o.opts.URLsDir,
		Ops:       fsnotify.Create,
		Match:     isPendingDescriptor,
		Component: "download-watch",
	}, o.handleEvent, o.logger)
	if err := w.Start(runCtx); err != nil {
		cancel()
		o.mu.Unlock()
		return fmt.Errorf("watch urls directory: %w", err)
	}
	o.ctx = runCtx
	o.cancel = cancel
	o.watcher = w
	o.running = true
	o.mu.Unlock()

	o.logger.Info("download orchestrator started",
		logging.String(logging.FieldEventType, "download_started"),
		logging.String("urls_dir", o.opts.URLsDir),
		logging.Int("max_workers", o.opts.MaxWorkers),
	)

	if o.opts.ScanOnStart {
		o.scanExisting()
	}
	return nil
}

// Stop cancels running downloads, drops unclaimed settle timers, and waits
// for workers to return.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	w := o.watcher
	cancel := o.cancel
	for id, timer := range o.timers {
		timer.Stop()
		delete(o.timers, id)
	}
	o.mu.Unlock()

	w.Stop()
	cancel()
	o.wg.Wait()
	o.notify.Wait()

	o.logger.Info("download orchestrator stopped",
		logging.String(logging.FieldEventType, "download_stopped"),
	)
}

// Enqueue schedules a claim attempt for id after the settle delay. Repeated
// calls for an id that is already waiting are ignored.
func (o *Orchestrator) Enqueue(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	if _, waiting := o.timers[id]; waiting {
		return
	}
	o.timers[id] = time.AfterFunc(o.opts.SettleDelay, func() {
		o.mu.Lock()
		delete(o.timers, id)
		if !o.running {
			o.mu.Unlock()
			return
		}
		ctx := o.ctx
		o.wg.Add(1)
		o.mu.Unlock()
		defer o.wg.Done()
		o.claim(ctx, id)
	})
}

// Wait blocks until every submitted task has finished and its notifications
// have been delivered.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
	o.notify.Wait()
}

func (o *Orchestrator) handleEvent(_ context.Context, ev watch.Event) {
	id, status, ok := queue.IDFromPath(ev.Path)
	if !ok || status != queue.StatusPending {
		return
	}
	o.logger.Debug("task descriptor detected", logging.String(logging.FieldTaskID, id))
	o.Enqueue(id)
}

func (o *Orchestrator) scanExisting() {
	ids, err := o.store.Pending()
	if err != nil {
		logging.WarnWithContext(o.logger, "scan of pending descriptors failed", "download_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check urls_dir permissions"),
			logging.String(logging.FieldImpact, "descriptors written while the daemon was down are not picked up"),
		)
		return
	}
	if len(ids) == 0 {
		return
	}
	o.logger.Info("enqueuing pending descriptors found at start",
		logging.Int("count", len(ids)),
		logging.String(logging.FieldEventType, "download_scan"),
	)
	for _, id := range ids {
		o.Enqueue(id)
	}
}

// claim reads and claims a pending descriptor, then submits it to the pool.
func (o *Orchestrator) claim(ctx context.Context, rawID string) {
	logger := o.logger.With(logging.String(logging.FieldTaskID, rawID))
	path := o.store.Path(rawID, queue.StatusPending)

	url, err := queue.ReadURL(path)
	switch {
	case errors.Is(err, queue.ErrNotFound):
		logger.Debug("descriptor vanished before claim")
		return
	case err != nil:
		logging.WarnWithContext(logger, "descriptor unreadable; left pending", "download_descriptor_invalid",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "write the URL into the descriptor and re-create it"),
			logging.String(logging.FieldImpact, "task is not downloaded"),
		)
		return
	}

	id, parseErr := o.store.ParseID(rawID)
	if parseErr != nil {
		logging.WarnWithContext(logger, "task id not in expected format; continuing", "download_id_invalid",
			logging.Error(parseErr),
			logging.String("kind", string(id.Kind)),
			logging.String(logging.FieldErrorHint, "ids should look like v20240601123456abc"),
			logging.String(logging.FieldImpact, "media kind defaulted from the first character"),
		)
	}

	if ctx.Err() != nil {
		return
	}
	if err := o.store.Transition(rawID, queue.StatusPending, queue.StatusInProgress); err != nil {
		logger.Debug("claim lost", logging.Error(err))
		return
	}
	logger.Info("task claimed",
		logging.String(logging.FieldEventType, "download_claimed"),
		logging.String("kind", string(id.Kind)),
		logging.String("url", url),
	)
	o.record(ctx, journal.Event{Type: journal.EventClaimed, TaskID: rawID, Detail: url})
	o.submit(ctx, Task{ID: id, URL: url})
}

func (o *Orchestrator) submit(ctx context.Context, task Task) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		select {
		case o.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-o.slots }()
		o.process(ctx, task)
	}()
}

// process runs one claimed task to a terminal state, or leaves it in
// progress when ctx is cancelled mid-run.
func (o *Orchestrator) process(ctx context.Context, task Task) {
	ctx = services.WithTaskID(ctx, task.ID.Raw)
	ctx = services.WithStage(ctx, "download")
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.logger)

	taskDir := filepath.Join(o.opts.TmpDir, task.ID.Raw)
	started := time.Now()

	err := o.fetch(ctx, logger, task, taskDir)
	if err != nil && ctx.Err() != nil {
		logger.Info("download interrupted by shutdown; task left in progress",
			logging.String(logging.FieldEventType, "download_interrupted"),
			logging.String("tmp_dir", taskDir),
		)
		return
	}
	if err != nil {
		o.fail(ctx, logger, task, taskDir, err)
		return
	}

	moved := o.relocate(logger, taskDir)
	if err := os.RemoveAll(taskDir); err != nil {
		logging.WarnWithContext(logger, "scratch directory cleanup failed", "download_tmp_cleanup_failed",
			logging.String("tmp_dir", taskDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scratch files remain on disk"),
		)
	}
	if err := o.store.Transition(task.ID.Raw, queue.StatusInProgress, queue.StatusSucceeded); err != nil {
		logging.ErrorWithContext(logger, "could not mark task succeeded", "download_mark_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect urls_dir for duplicate descriptors"),
		)
	}
	if moved == 0 {
		logging.WarnWithContext(logger, "download produced no files", "download_no_output",
			logging.String("url", task.URL),
			logging.String(logging.FieldErrorHint, "check the task log and the yt-dlp config"),
			logging.String(logging.FieldImpact, "nothing will be uploaded for this task"),
		)
	}
	logger.Info("download complete",
		logging.String(logging.FieldEventType, "download_completed"),
		logging.Int("files", moved),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	o.record(ctx, journal.Event{Type: journal.EventDownloaded, TaskID: task.ID.Raw, Detail: fmt.Sprintf("%d file(s)", moved)})
	if o.opts.NotifySuccess {
		o.notify.Send(ctx, logger, notifications.DownloadCompleted(task.ID.Raw, task.URL, moved))
	}
}

func (o *Orchestrator) fetch(ctx context.Context, logger *slog.Logger, task Task, taskDir string) error {
	if o.fetcher == nil {
		return services.Wrap(services.ErrConfiguration, "download", "fetch", "no fetcher configured", nil)
	}
	if err := os.RemoveAll(taskDir); err != nil {
		return fmt.Errorf("reset scratch directory: %w", err)
	}
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	if err := os.MkdirAll(o.opts.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logPath := logs.TaskLogPath(o.opts.LogDir, task.ID.Raw)
	taskLog, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open task log: %w", err)
	}
	defer taskLog.Close()

	req := ytdlp.Request{
		URL:            task.URL,
		ConfigPath:     ytdlp.ResolveConfigPath(o.opts.configFor(task.ID.Kind)),
		OutputDir:      taskDir,
		OutputTemplate: o.opts.templateFor(task.ID.Kind),
	}
	logger.Info("starting yt-dlp",
		logging.String(logging.FieldEventType, "ytdlp_started"),
		logging.String("config", req.ConfigPath),
		logging.String("task_log", logPath),
	)
	_, _ = fmt.Fprintf(taskLog, "# %s %s %s\n", time.Now().Format(time.RFC3339), task.ID.Raw, task.URL)

	onLine := func(line string) {
		_, _ = taskLog.WriteString(line + "\n")
		if _, ok := ytdlp.ParseProgress(line); ok {
			logger.Debug("yt-dlp progress", logging.String("line", line))
			return
		}
		logger.Info("yt-dlp", logging.String("line", line))
	}
	if err := o.fetcher.Fetch(ctx, req, onLine); err != nil {
		return services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "", err)
	}
	return nil
}

// relocate moves every entry of taskDir into the holding directory and
// returns how many moved. Individual failures are logged and skipped.
func (o *Orchestrator) relocate(logger *slog.Logger, taskDir string) int {
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		logging.WarnWithContext(logger, "scratch directory unreadable", "download_tmp_unreadable",
			logging.String("tmp_dir", taskDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "downloaded files were not moved"),
		)
		return 0
	}
	if err := os.MkdirAll(o.opts.FilesDir, 0o755); err != nil {
		logging.WarnWithContext(logger, "holding directory unavailable", "download_files_dir_failed",
			logging.String("files_dir", o.opts.FilesDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "downloaded files were not moved"),
		)
		return 0
	}
	moved := 0
	for _, entry := range entries {
		src := filepath.Join(taskDir, entry.Name())
		dst := filepath.Join(o.opts.FilesDir, entry.Name())
		if err := fileutil.MoveFile(src, dst); err != nil {
			logging.WarnWithContext(logger, "move to holding directory failed", "download_move_failed",
				logging.String("source", src),
				logging.String("destination", dst),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions on files_dir"),
				logging.String(logging.FieldImpact, "this file is discarded with the scratch directory"),
			)
			continue
		}
		moved++
		logger.Info("file moved to holding directory",
			logging.String(logging.FieldEventType, "download_file_moved"),
			logging.String("file", entry.Name()),
		)
	}
	return moved
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, task Task, taskDir string, cause error) {
	if err := os.RemoveAll(taskDir); err != nil {
		logging.WarnWithContext(logger, "scratch directory cleanup failed", "download_tmp_cleanup_failed",
			logging.String("tmp_dir", taskDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "partial files remain on disk"),
		)
	}
	if err := o.store.Transition(task.ID.Raw, queue.StatusInProgress, queue.StatusFailed); err != nil {
		logging.ErrorWithContext(logger, "could not mark task failed", "download_mark_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect urls_dir for duplicate descriptors"),
		)
	}
	detail := failureDetail(cause)
	logging.ErrorWithContext(logger, "download failed", "download_failed",
		logging.String("url", task.URL),
		logging.String("error_kind", services.Kind(cause)),
		logging.String("error_source", services.StageOf(cause)),
		logging.String("detail", detail),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "see "+logs.TaskLogPath(o.opts.LogDir, task.ID.Raw)),
	)
	o.record(ctx, journal.Event{Type: journal.EventDownloadFailed, TaskID: task.ID.Raw, Detail: detail})
	if o.opts.NotifyErrors {
		o.notify.Send(ctx, logger, notifications.DownloadFailed(task.ID.Raw, task.URL, errors.New(detail)))
	}
}

func (o *Orchestrator) record(ctx context.Context, event journal.Event) {
	if o.journal != nil {
		o.journal.Record(ctx, event)
	}
}

func failureDetail(err error) string {
	var exitErr *ytdlp.ExitError
	if errors.As(err, &exitErr) {
		if last := exitErr.LastLine(); last != "" {
			return fmt.Sprintf("exit status %d: %s", exitErr.Code, last)
		}
		return fmt.Sprintf("exit status %d", exitErr.Code)
	}
	return err.Error()
}

func isPendingDescriptor(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && strings.HasSuffix(base, queue.StatusPending.Extension())
}
