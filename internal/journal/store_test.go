package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mediadrop/internal/journal"
	"mediadrop/internal/logging"
)

func openStore(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "logs", "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, event := range []journal.Event{
		{Type: journal.EventClaimed, TaskID: "v20240102030405abc"},
		{Type: journal.EventDownloaded, TaskID: "v20240102030405abc", Detail: "2 files"},
		{Type: journal.EventUploaded, Path: "/files/clip.mp4", RemotePath: "/media/20240102/clip.mp4", Bytes: 2048, Attempt: 1},
	} {
		saved, err := store.Append(ctx, event)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if saved.ID == 0 || saved.CreatedAt.IsZero() {
			t.Fatalf("expected id and timestamp, got %+v", saved)
		}
	}

	recent, err := store.Recent(ctx, journal.Filter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	if recent[0].Type != journal.EventUploaded || recent[0].Bytes != 2048 {
		t.Fatalf("expected newest event first, got %+v", recent[0])
	}

	byTask, err := store.Recent(ctx, journal.Filter{TaskID: "v20240102030405abc"})
	if err != nil {
		t.Fatalf("Recent by task: %v", err)
	}
	if len(byTask) != 2 {
		t.Fatalf("expected 2 task events, got %d", len(byTask))
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[journal.EventClaimed] != 1 || counts[journal.EventUploaded] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestAppendRequiresType(t *testing.T) {
	store := openStore(t)
	if _, err := store.Append(context.Background(), journal.Event{TaskID: "x"}); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestPruneRemovesOldEvents(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	old := time.Now().AddDate(0, 0, -40)
	if _, err := store.Append(ctx, journal.Event{Type: journal.EventExpired, CreatedAt: old}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(ctx, journal.Event{Type: journal.EventClaimed}); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Prune(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one pruned event, got %d", removed)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(context.Background(), journal.Event{Type: journal.EventClaimed}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := journal.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	events, err := reopened.Recent(context.Background(), journal.Filter{})
	if err != nil || len(events) != 1 {
		t.Fatalf("expected persisted event, got %v %v", events, err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := journal.Open(path); !errors.Is(err, journal.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := journal.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecorderSwallowsFailures(t *testing.T) {
	store := openStore(t)
	recorder := journal.NewRecorder(store, logging.NewNop())
	recorder.Record(context.Background(), journal.Event{Type: journal.EventClaimed, TaskID: "a1"})
	_ = store.Close()
	recorder.Record(context.Background(), journal.Event{Type: journal.EventClaimed, TaskID: "a2"})

	var nilRecorder *journal.Recorder
	nilRecorder.Record(context.Background(), journal.Event{Type: journal.EventClaimed})
}
