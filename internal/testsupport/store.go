package testsupport

import (
	"testing"

	"mediadrop/internal/config"
	"mediadrop/internal/journal"
	"mediadrop/internal/queue"
)

// NewTaskStore returns a queue.Store over the config's urls directory.
func NewTaskStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return queue.NewStore(cfg.Paths.URLsDir, cfg.Location())
}

// MustOpenJournal opens the config's journal database and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask writes a pending descriptor for url and returns it.
func NewTask(t testing.TB, store *queue.Store, kind queue.Kind, url string) queue.Task {
	t.Helper()

	task, err := store.Create(kind, url)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return task
}
