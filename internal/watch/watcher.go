// Package watch wraps fsnotify for the non-recursive directory watches used by
// the download and upload pipelines.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"mediadrop/internal/logging"
)

// Event is a filtered filesystem notification.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Handler receives events on the watcher's dispatch goroutine.
type Handler func(ctx context.Context, event Event)

// Options configures a Watcher.
type Options struct {
	// Dir is the directory to watch. Subdirectories are not watched.
	Dir string
	// Ops selects which operations are delivered, e.g. fsnotify.Create.
	Ops fsnotify.Op
	// Match filters paths; nil accepts every path.
	Match func(path string) bool
	// Component names the logger for this watcher.
	Component string
}

// Watcher delivers matching events for one directory to a handler.
type Watcher struct {
	opts    Options
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// New creates a stopped Watcher.
func New(opts Options, handler Handler, logger *slog.Logger) *Watcher {
	component := opts.Component
	if component == "" {
		component = "watch"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		opts:    opts,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, component),
	}
}

// Start begins watching. A directory that cannot be watched is a startup error.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.opts.Dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}

	w.fsw = fsw
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx, fsw, w.quit, w.done)

	w.logger.Info("directory watch started",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String("dir", w.opts.Dir),
	)
	return nil
}

// Stop ends the watch and waits for the dispatch goroutine to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.quit)
	_ = w.fsw.Close()
	done := w.done
	w.fsw = nil
	w.quit = nil
	w.running = false
	w.mu.Unlock()

	<-done
	w.logger.Info("directory watch stopped",
		logging.String(logging.FieldEventType, "watch_stopped"),
		logging.String("dir", w.opts.Dir),
	)
}

// Running reports whether the watch is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.WarnWithContext(w.logger, "watch event queue overflowed", "watch_overflow",
					logging.String("dir", w.opts.Dir),
					logging.String(logging.FieldErrorHint, "restart the daemon to rescan the directory"),
					logging.String(logging.FieldImpact, "some files may not be picked up until restart"),
				)
				continue
			}
			logging.WarnWithContext(w.logger, "watch error", "watch_error",
				logging.String("dir", w.opts.Dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inotify limits and directory permissions"),
				logging.String(logging.FieldImpact, "file detection may be affected"),
			)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if w.opts.Ops != 0 && ev.Op&w.opts.Ops == 0 {
		return
	}
	if w.opts.Match != nil && !w.opts.Match(ev.Name) {
		return
	}
	if w.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(w.logger, "watch handler panicked", "watch_handler_panic",
				logging.String("path", ev.Name),
				logging.Any("panic", r),
				logging.String(logging.FieldErrorHint, "report this with the daemon log"),
			)
		}
	}()
	w.logger.Debug("file event",
		logging.String("path", ev.Name),
		logging.String("op", ev.Op.String()),
	)
	w.handler(ctx, Event{Path: ev.Name, Op: ev.Op})
}
