package preflight

import (
	"context"
	"path/filepath"

	"datefixer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// State directory (always checked)
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.Logging.File {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	// The scratch directory is recreated per extraction, so only its parent
	// has to exist.
	if cfg.Strategies.Archive {
		results = append(results, CheckDirectoryAccess("Scratch parent", filepath.Dir(cfg.Paths.ScratchDir)))
	}

	if cfg.Journal.Enabled {
		results = append(results, CheckJournal(ctx, cfg.JournalPath()))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
