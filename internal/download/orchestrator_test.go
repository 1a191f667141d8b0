package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mediadrop/internal/download"
	"mediadrop/internal/journal"
	"mediadrop/internal/logging"
	"mediadrop/internal/notifications"
	"mediadrop/internal/queue"
	"mediadrop/internal/services/ytdlp"
)

type fetchFunc func(ctx context.Context, req ytdlp.Request, onLine func(string)) error

type fakeFetcher struct {
	mu       sync.Mutex
	requests []ytdlp.Request
	fn       fetchFunc
}

func (f *fakeFetcher) Fetch(ctx context.Context, req ytdlp.Request, onLine func(string)) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, req, onLine)
}

func (f *fakeFetcher) calls() []ytdlp.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ytdlp.Request(nil), f.requests...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notifications.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingNotifier) all() []notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Message(nil), r.messages...)
}

type recordingJournal struct {
	mu     sync.Mutex
	events []journal.Event
}

func (r *recordingJournal) Record(_ context.Context, event journal.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingJournal) types() []journal.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]journal.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	opts     download.Options
	store    *queue.Store
	fetcher  *fakeFetcher
	notifier *recordingNotifier
	journal  *recordingJournal
	orch     *download.Orchestrator
}

func newHarness(t *testing.T, fn fetchFunc, mutate func(*download.Options)) *harness {
	t.Helper()
	base := t.TempDir()
	opts := download.Options{
		URLsDir:       filepath.Join(base, "urls"),
		TmpDir:        filepath.Join(base, "tmp"),
		FilesDir:      filepath.Join(base, "files"),
		LogDir:        filepath.Join(base, "logs"),
		MaxWorkers:    2,
		SettleDelay:   20 * time.Millisecond,
		VideoConfig:   filepath.Join(base, "conf", "yt-dlp.conf"),
		AudioConfig:   filepath.Join(base, "conf", "yta-dlp.conf"),
		VideoTemplate: "%(title)s.%(ext)s",
		AudioTemplate: "%(title)s-audio.%(ext)s",
		NotifySuccess: true,
		NotifyErrors:  true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	for _, dir := range []string{opts.URLsDir, opts.TmpDir, opts.FilesDir, opts.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	h := &harness{
		opts:     opts,
		store:    queue.NewStore(opts.URLsDir, time.UTC),
		fetcher:  &fakeFetcher{fn: fn},
		notifier: &recordingNotifier{},
		journal:  &recordingJournal{},
	}
	h.orch = download.New(opts, h.store, h.fetcher, h.notifier, h.journal, logging.NewNop())
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.orch.Stop)
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(store.Path(id, want)); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	task, err := store.Lookup(id)
	t.Fatalf("timed out waiting for %s to reach %s (current %+v, err %v)", id, want, task, err)
}

func writeOutput(name, body string) fetchFunc {
	return func(_ context.Context, req ytdlp.Request, onLine func(string)) error {
		onLine("[download] Destination: " + name)
		onLine("[download]  50.0% of 1.00MiB")
		onLine("[download] 100% of 1.00MiB")
		return os.WriteFile(filepath.Join(req.OutputDir, name), []byte(body), 0o644)
	}
}

func TestSuccessfulDownloadMovesFilesAndMarksOK(t *testing.T) {
	h := newHarness(t, writeOutput("clip.mp4", "video"), nil)
	h.start(t)

	task, err := h.store.Create(queue.KindVideo, "https://example.com/watch?v=1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := task.ID.Raw
	waitForStatus(t, h.store, id, queue.StatusSucceeded)
	h.orch.Wait()

	if data, err := os.ReadFile(filepath.Join(h.opts.FilesDir, "clip.mp4")); err != nil || string(data) != "video" {
		t.Fatalf("expected clip in holding directory, got %q %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(h.opts.TmpDir, id)); !os.IsNotExist(err) {
		t.Fatalf("expected scratch directory removed, stat err=%v", err)
	}
	logData, err := os.ReadFile(filepath.Join(h.opts.LogDir, id+".log"))
	if err != nil {
		t.Fatalf("read task log: %v", err)
	}
	if !strings.Contains(string(logData), "[download] 100% of 1.00MiB") {
		t.Fatalf("expected tool output in task log, got %q", logData)
	}

	calls := h.fetcher.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one fetch, got %d", len(calls))
	}
	if calls[0].URL != "https://example.com/watch?v=1" || calls[0].OutputTemplate != "%(title)s.%(ext)s" {
		t.Fatalf("unexpected request: %+v", calls[0])
	}
	if calls[0].ConfigPath != h.opts.VideoConfig {
		t.Fatalf("expected video config, got %q", calls[0].ConfigPath)
	}

	msgs := h.notifier.all()
	if len(msgs) != 1 || msgs[0].Title != "Download complete" {
		t.Fatalf("unexpected notifications: %+v", msgs)
	}
	types := h.journal.types()
	if len(types) != 2 || types[0] != journal.EventClaimed || types[1] != journal.EventDownloaded {
		t.Fatalf("unexpected journal events: %v", types)
	}
}

func TestFailedDownloadCleansUpAndNotifies(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req ytdlp.Request, onLine func(string)) error {
		_ = os.WriteFile(filepath.Join(req.OutputDir, "partial.part"), []byte("x"), 0o644)
		onLine("ERROR: [youtube] abc: Video unavailable")
		return &ytdlp.ExitError{Code: 1, Tail: []string{"ERROR: [youtube] abc: Video unavailable"}}
	}, nil)
	h.start(t)

	task, err := h.store.Create(queue.KindAudio, "https://example.com/gone")
	if err != nil {
		t.Fatal(err)
	}
	id := task.ID.Raw
	waitForStatus(t, h.store, id, queue.StatusFailed)
	h.orch.Wait()

	if _, err := os.Stat(filepath.Join(h.opts.TmpDir, id)); !os.IsNotExist(err) {
		t.Fatalf("expected scratch directory removed, stat err=%v", err)
	}
	entries, _ := os.ReadDir(h.opts.FilesDir)
	if len(entries) != 0 {
		t.Fatalf("expected nothing in holding directory, got %d entries", len(entries))
	}
	msgs := h.notifier.all()
	if len(msgs) != 1 || msgs[0].Title != "Download failed" {
		t.Fatalf("unexpected notifications: %+v", msgs)
	}
	if !strings.Contains(msgs[0].Body, "https://example.com/gone") || !strings.Contains(msgs[0].Body, "Video unavailable") {
		t.Fatalf("expected url and detail in failure notification, got %q", msgs[0].Body)
	}
	if calls := h.fetcher.calls(); calls[0].ConfigPath != h.opts.AudioConfig || calls[0].OutputTemplate != "%(title)s-audio.%(ext)s" {
		t.Fatalf("expected audio settings, got %+v", calls[0])
	}
}

func TestEmptyDescriptorStaysPending(t *testing.T) {
	h := newHarness(t, writeOutput("x.mp4", "x"), nil)
	h.start(t)

	id := "v20240601123456abc"
	if err := os.WriteFile(h.store.Path(id, queue.StatusPending), []byte("   \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if _, err := os.Stat(h.store.Path(id, queue.StatusPending)); err != nil {
		t.Fatalf("expected empty descriptor left pending: %v", err)
	}
	if len(h.fetcher.calls()) != 0 {
		t.Fatal("expected no fetch for empty descriptor")
	}
}

func TestInvalidIDStillProcessed(t *testing.T) {
	h := newHarness(t, writeOutput("song.mp3", "a"), nil)
	h.start(t)

	id := "abad-id"
	if err := os.WriteFile(h.store.Path(id, queue.StatusPending), []byte("https://example.com/s"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, h.store, id, queue.StatusSucceeded)
	if calls := h.fetcher.calls(); calls[0].ConfigPath != h.opts.AudioConfig {
		t.Fatalf("expected kind from prefix to select audio config, got %q", calls[0].ConfigPath)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	h := newHarness(t, func(_ context.Context, req ytdlp.Request, _ func(string)) error {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(60 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return os.WriteFile(filepath.Join(req.OutputDir, filepath.Base(req.OutputDir)+".mp4"), []byte("v"), 0o644)
	}, func(o *download.Options) { o.MaxWorkers = 2 })
	h.start(t)

	var ids []string
	for i := 0; i < 5; i++ {
		task, err := h.store.Create(queue.KindVideo, "https://example.com/"+string(rune('a'+i)))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, task.ID.Raw)
	}
	for _, id := range ids {
		waitForStatus(t, h.store, id, queue.StatusSucceeded)
	}
	h.orch.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxSeen > 2 {
		t.Fatalf("expected at most 2 concurrent downloads, saw %d", maxSeen)
	}
	entries, _ := os.ReadDir(h.opts.FilesDir)
	if len(entries) != 5 {
		t.Fatalf("expected 5 files in holding directory, got %d", len(entries))
	}
}

func TestScanOnStartPicksUpPendingOnly(t *testing.T) {
	h := newHarness(t, writeOutput("old.mp4", "v"), func(o *download.Options) { o.ScanOnStart = true })

	pending := "v20240601000000aaa"
	stuck := "v20240601000000bbb"
	if err := os.WriteFile(h.store.Path(pending, queue.StatusPending), []byte("https://example.com/p"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.store.Path(stuck, queue.StatusInProgress), []byte("https://example.com/s"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.start(t)

	waitForStatus(t, h.store, pending, queue.StatusSucceeded)
	h.orch.Wait()
	if _, err := os.Stat(h.store.Path(stuck, queue.StatusInProgress)); err != nil {
		t.Fatalf("expected in-progress descriptor untouched: %v", err)
	}
	if len(h.fetcher.calls()) != 1 {
		t.Fatalf("expected only the pending task fetched, got %d", len(h.fetcher.calls()))
	}
}

func TestShutdownLeavesTaskInProgress(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req ytdlp.Request, _ func(string)) error {
		_ = os.WriteFile(filepath.Join(req.OutputDir, "partial.part"), []byte("x"), 0o644)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	if err := h.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	task, err := h.store.Create(queue.KindVideo, "https://example.com/long")
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never started")
	}
	h.orch.Stop()

	id := task.ID.Raw
	if _, err := os.Stat(h.store.Path(id, queue.StatusInProgress)); err != nil {
		t.Fatalf("expected descriptor to stay in progress: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.opts.TmpDir, id, "partial.part")); err != nil {
		t.Fatalf("expected scratch directory retained: %v", err)
	}
	if len(h.notifier.all()) != 0 {
		t.Fatal("expected no notification on shutdown")
	}
}

func TestLocalConfigPreferred(t *testing.T) {
	h := newHarness(t, writeOutput("c.mp4", "v"), nil)
	local := strings.TrimSuffix(h.opts.VideoConfig, ".conf") + ".local.conf"
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("-f best"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.start(t)

	task, err := h.store.Create(queue.KindVideo, "https://example.com/c")
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, h.store, task.ID.Raw, queue.StatusSucceeded)
	if got := h.fetcher.calls()[0].ConfigPath; got != local {
		t.Fatalf("expected local config %q, got %q", local, got)
	}
}

func TestMissingFetcherFailsTask(t *testing.T) {
	base := t.TempDir()
	opts := download.Options{
		URLsDir:     filepath.Join(base, "urls"),
		TmpDir:      filepath.Join(base, "tmp"),
		FilesDir:    filepath.Join(base, "files"),
		LogDir:      filepath.Join(base, "logs"),
		MaxWorkers:  1,
		SettleDelay: time.Millisecond,
	}
	if err := os.MkdirAll(opts.URLsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	store := queue.NewStore(opts.URLsDir, time.UTC)
	orch := download.New(opts, store, nil, nil, nil, logging.NewNop())
	if err := orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer orch.Stop()

	task, err := store.Create(queue.KindVideo, "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, store, task.ID.Raw, queue.StatusFailed)
}

func TestStartFailsWithoutURLsDir(t *testing.T) {
	opts := download.Options{URLsDir: filepath.Join(t.TempDir(), "missing")}
	orch := download.New(opts, queue.NewStore(opts.URLsDir, time.UTC), &fakeFetcher{}, nil, nil, logging.NewNop())
	err := orch.Start(context.Background())
	if err == nil {
		t.Fatal("expected start error for missing directory")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: %v", err)
	}
}
