package main

import (
	"context"
	"testing"
	"time"

	"datefixer/internal/testsupport"
)

func TestHistoryAndRevertRestoreDates(t *testing.T) {
	env := setupCLITestEnv(t)
	dir, dated := seedTree(t, env)
	original := time.Date(2024, time.January, 1, 8, 30, 0, 0, time.UTC)
	testsupport.SetModTime(t, dated, original)

	if _, err := runCLI(t, env.configPath, "-f", dir); err != nil {
		t.Fatalf("fix: %v", err)
	}
	if got := testsupport.ModTime(t, dated); !got.Equal(fileNameDate) {
		t.Fatalf("fix did not apply: %v", got)
	}

	out, err := runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	store := testsupport.MustOpenJournal(t, env.cfg)
	runs, err := store.ListRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v %+v", err, runs)
	}
	runID := runs[0].ID
	requireContains(t, out, runID[:8])

	out, err = runCLI(t, env.configPath, "history", runID[:8])
	if err != nil {
		t.Fatalf("history run: %v", err)
	}
	requireContains(t, out, dated)
	requireContains(t, out, "filename")

	out, err = runCLI(t, env.configPath, "revert", runID)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	requireContains(t, out, "Restored 1 of 1 dates")
	if got := testsupport.ModTime(t, dated); !got.Equal(original) {
		t.Fatalf("revert restored %v, want %v", got, original)
	}

	if _, err := runCLI(t, env.configPath, "revert", runID); err == nil {
		t.Fatal("expected second revert to be refused")
	}
	if _, err := runCLI(t, env.configPath, "revert", "--force", runID); err != nil {
		t.Fatalf("forced revert: %v", err)
	}
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestHistoryRequiresJournal(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutJournal())
	_, err := runCLI(t, env.configPath, "history")
	if err == nil {
		t.Fatal("expected error with journal disabled")
	}
	requireContains(t, err.Error(), "disabled")
}

func TestRevertRefusesDryRun(t *testing.T) {
	env := setupCLITestEnv(t)
	dir, _ := seedTree(t, env)
	if _, err := runCLI(t, env.configPath, "-f", "-n", dir); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	store := testsupport.MustOpenJournal(t, env.cfg)
	runs, err := store.ListRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v %+v", err, runs)
	}
	_, err = runCLI(t, env.configPath, "revert", runs[0].ID)
	if err == nil {
		t.Fatal("expected dry run revert to be refused")
	}
	requireContains(t, err.Error(), "dry run")
}

func TestRevertUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env.configPath, "revert", "does-not-exist"); err == nil {
		t.Fatal("expected unknown run error")
	}
}
