package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"datefixer/internal/journal"
	"datefixer/internal/stamp"
	"datefixer/internal/testsupport"
)

func openStore(t *testing.T) *journal.Store {
	t.Helper()
	return testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, []string{"/media/discs"}, false)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run id")
	}

	previous := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	applied := time.Date(2004, time.June, 2, 9, 30, 0, 0, time.UTC)
	recorder := store.Recorder(run.ID)
	if err := recorder.Record(ctx, stamp.Change{Path: "/media/discs/a.iso", Kind: stamp.KindFile, Previous: previous, Applied: applied}, "container"); err != nil {
		t.Fatalf("Record file: %v", err)
	}
	if err := recorder.Record(ctx, stamp.Change{Path: "/media/discs", Kind: stamp.KindDirectory, Previous: previous, Applied: applied}, "aggregate"); err != nil {
		t.Fatalf("Record dir: %v", err)
	}
	if err := store.FinishRun(ctx, run.ID, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.FindRun(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("FindRun by prefix: %v", err)
	}
	if got.ID != run.ID || got.Modified != 1 || got.FinishedAt == nil || got.DryRun {
		t.Fatalf("unexpected run %+v", got)
	}
	if len(got.Roots) != 1 || got.Roots[0] != "/media/discs" {
		t.Fatalf("unexpected roots %v", got.Roots)
	}

	entries, err := store.Changes(ctx, run.ID)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != stamp.KindFile || entries[1].Kind != stamp.KindDirectory {
		t.Fatalf("unexpected kinds %v %v", entries[0].Kind, entries[1].Kind)
	}
	if !entries[0].Previous.Equal(previous) || !entries[0].Applied.Equal(applied) || entries[0].Source != "container" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}

	if err := store.MarkReverted(ctx, run.ID); err != nil {
		t.Fatalf("MarkReverted: %v", err)
	}
	got, err = store.FindRun(ctx, run.ID)
	if err != nil || got.RevertedAt == nil {
		t.Fatalf("expected reverted run, got %+v err=%v", got, err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.BeginRun(ctx, []string{"."}, i == 1)
		if err != nil {
			t.Fatalf("BeginRun: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected limit to apply, got %d runs", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("expected newest first, got %s %s", runs[0].ID, runs[1].ID)
	}
	if !runs[1].DryRun {
		t.Fatal("expected dry-run flag to persist")
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all runs, got %d err=%v", len(all), err)
	}
}

func TestFindRunUnknown(t *testing.T) {
	store := openStore(t)
	if _, err := store.FindRun(context.Background(), "does-not-exist"); !errors.Is(err, journal.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run, err := store.BeginRun(context.Background(), []string{"/x"}, false)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := journal.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.FindRun(context.Background(), run.ID); err != nil {
		t.Fatalf("expected run after reopen: %v", err)
	}
}
