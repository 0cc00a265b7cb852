package testsupport

import (
	"context"
	"testing"

	"datefixer/internal/config"
	"datefixer/internal/journal"
)

// MustOpenJournal opens the journal configured in cfg and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewRun begins a journal run over roots.
func NewRun(t testing.TB, store *journal.Store, roots ...string) journal.Run {
	t.Helper()

	run, err := store.BeginRun(context.Background(), roots, false)
	if err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
	return run
}
