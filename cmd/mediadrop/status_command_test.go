package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"mediadrop/internal/daemon"
	"mediadrop/internal/journal"
	"mediadrop/internal/queue"
	"mediadrop/internal/testsupport"
)

func TestStatusReportsStoppedDaemonAndCounts(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.NewTaskStore(t, env.cfg)
	testsupport.NewTask(t, store, queue.KindVideo, "https://example.test/1")
	testsupport.NewTask(t, store, queue.KindVideo, "https://example.test/2")
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.FilesDir, "clip.mp4"), 2048)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "1 files, 2.0 KiB")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"--json", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var snapshot statusSnapshot
	if err := json.Unmarshal([]byte(out), &snapshot); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if snapshot.Running || snapshot.Tasks[queue.StatusPending] != 2 || snapshot.HoldingBytes != 2048 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestStatusDetectsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	lock := flock.New(daemon.LockPath(env.cfg))
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()
	if err := os.WriteFile(daemon.PIDPath(env.cfg), []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid "+strconv.Itoa(4242)+")")
}

func TestHistoryFiltersJournalEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenJournal(t, env.cfg)
	ctx := context.Background()
	for _, event := range []journal.Event{
		{Type: journal.EventClaimed, TaskID: "v20240601120000abc"},
		{Type: journal.EventUploaded, Path: "/files/clip.mp4", RemotePath: "/media/20240601/clip.mp4", Attempt: 2, Bytes: 10},
		{Type: journal.EventGaveUp, Path: "/files/other.mp4", Detail: "503 Service Unavailable", Attempt: 3},
	} {
		if _, err := store.Append(ctx, event); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"history", "--type", "uploaded"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "/media/20240601/clip.mp4")
	if strings.Contains(out, "other.mp4") {
		t.Fatalf("expected gave_up event filtered out:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"--json", "history"}, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var events []journal.Event
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}

func TestHistoryRequiresJournal(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Journal.Enabled = false
	writeTestConfig(t, env.configPath, env.cfg)

	if _, _, err := runCLI(t, []string{"history"}, env.configPath); err == nil {
		t.Fatal("expected history to fail with the journal disabled")
	}
}
