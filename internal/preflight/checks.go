package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"datefixer/internal/archive"
	"datefixer/internal/config"
	"datefixer/internal/deps"
	"datefixer/internal/journal"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckJournal opens the journal database, which creates and migrates it
// when missing.
func CheckJournal(ctx context.Context, path string) Result {
	const name = "Journal"

	store, err := journal.Open(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s (no runs yet)", path)
	if len(runs) > 0 {
		detail = fmt.Sprintf("%s (last run %s)", path, runs[0].StartedAt.Local().Format("2006-01-02 15:04"))
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external tools used by the configured
// strategies. 7-Zip is optional unless the archive format is pinned to the
// external extractor.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil || !cfg.Strategies.Archive {
		return nil
	}
	format, err := archive.ParseFormat(cfg.Archive.Format)
	if err != nil {
		format = archive.FormatAuto
	}
	req := deps.Requirement{
		Name:        "7-Zip",
		Command:     cfg.Archive.SevenZipBinary,
		Description: "Fallback extractor for archives the built-in readers cannot open",
		Optional:    format != archive.FormatExternal,
		Candidates:  archive.SevenZipNames,
	}
	return deps.CheckBinaries([]deps.Requirement{req})
}
