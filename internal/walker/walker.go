package walker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"

	"datefixer/internal/logging"
	"datefixer/internal/resolve"
	"datefixer/internal/stamp"
)

// Resolver yields at most one accepted date for a path.
type Resolver interface {
	Resolve(ctx context.Context, path string) (resolve.Result, bool, error)
}

// Stamper writes a date onto a path.
type Stamper interface {
	Apply(path string, t time.Time, kind stamp.Kind) (stamp.Change, error)
}

// Recorder persists applied changes.
type Recorder interface {
	Record(ctx context.Context, change stamp.Change, source string) error
}

// Options controls traversal and writing.
type Options struct {
	Recursive        bool
	StampDirectories bool
	Propagate        bool
	DryRun           bool
	// Quiet demotes per-file lines from info to debug.
	Quiet bool
	// Exclude holds doublestar patterns matched against the slash-separated
	// path relative to the walk root and against the base name.
	Exclude []string
}

// Option customises a Walker.
type Option func(*Walker)

// WithRecorder journals every applied change.
func WithRecorder(r Recorder) Option {
	return func(w *Walker) {
		w.recorder = r
	}
}

// Walker applies resolved dates across paths.
type Walker struct {
	resolver Resolver
	stamper  Stamper
	recorder Recorder
	opts     Options
	fold     cases.Caser
	logger   *slog.Logger
}

// New constructs a Walker.
func New(resolver Resolver, stamper Stamper, opts Options, logger *slog.Logger, options ...Option) *Walker {
	w := &Walker{
		resolver: resolver,
		stamper:  stamper,
		opts:     opts,
		fold:     cases.Fold(),
		logger:   logging.NewComponentLogger(logger, "walker"),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Walk processes each path: a file is resolved on its own, a directory is
// walked. Invalid paths are logged and counted. The only error returned is a
// cancelled context.
func (w *Walker) Walk(ctx context.Context, paths ...string) (Stats, error) {
	var stats Stats
	logger := logging.WithContext(ctx, w.logger)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		info, err := os.Stat(path)
		if err != nil {
			logging.WarnWithContext(logger, "invalid path", "invalid_path",
				logging.String(logging.FieldPath, path),
				logging.String(logging.FieldErrorHint, "check that the path exists and is accessible"),
				logging.Error(err),
			)
			stats.Failed++
			continue
		}
		if info.IsDir() {
			if _, _, err := w.walkDir(ctx, logger, path, path, &stats); err != nil {
				return stats, err
			}
			continue
		}
		if _, _, err := w.processFile(ctx, logger, path, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

type fileEntry struct {
	name string
	path string
	stem string
}

// walkDir handles one directory and returns its aggregate.
func (w *Walker) walkDir(ctx context.Context, logger *slog.Logger, root, dir string, stats *Stats) (aggregate time.Time, defined bool, err error) {
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		logging.WarnWithContext(logger, "directory unreadable", "directory_unreadable",
			logging.String(logging.FieldPath, dir),
			logging.String(logging.FieldErrorHint, "check directory permissions"),
			logging.Error(readErr),
		)
		stats.Failed++
		return time.Time{}, false, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []fileEntry
	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if w.excluded(root, path) {
			stats.Excluded++
			continue
		}
		switch {
		case entry.IsDir():
			subdirs = append(subdirs, path)
		case entry.Type().IsRegular():
			files = append(files, fileEntry{name: entry.Name(), path: path, stem: w.stem(entry.Name())})
		}
	}

	var latest Aggregate
	processed := make(map[string]struct{}, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return time.Time{}, false, err
		}
		if _, done := processed[file.path]; done {
			continue
		}
		date, ok, err := w.processFile(ctx, logger, file.path, stats)
		if err != nil {
			return time.Time{}, false, err
		}
		if !ok {
			continue
		}
		processed[file.path] = struct{}{}
		latest.Observe(date)
		if w.opts.Propagate {
			w.propagate(ctx, logger, files, i, date, processed, stats)
		}
	}

	if w.opts.Recursive {
		for _, sub := range subdirs {
			subDate, subOK, err := w.walkDir(ctx, logger, root, sub, stats)
			if err != nil {
				return time.Time{}, false, err
			}
			if subOK {
				latest.Observe(subDate)
			}
		}
	}

	aggregate, defined = latest.Value()
	if !defined || !w.opts.StampDirectories {
		return time.Time{}, false, nil
	}
	if w.write(ctx, logger, dir, aggregate, stamp.KindDirectory, SourceAggregate, stats) {
		stats.Directories++
	}
	return aggregate, true, nil
}

// propagate copies date from files[from] to unprocessed siblings sharing its
// case-folded stem.
func (w *Walker) propagate(ctx context.Context, logger *slog.Logger, files []fileEntry, from int, date time.Time, processed map[string]struct{}, stats *Stats) {
	source := files[from]
	for i, sibling := range files {
		if i == from || sibling.stem != source.stem {
			continue
		}
		if _, done := processed[sibling.path]; done {
			continue
		}
		processed[sibling.path] = struct{}{}
		if w.write(ctx, logger, sibling.path, date, stamp.KindFile, SourcePropagated, stats) {
			stats.Modified++
			stats.Propagated++
		}
	}
}

// processFile resolves and writes one file. The returned date is the accepted
// candidate even when the write itself failed.
func (w *Walker) processFile(ctx context.Context, logger *slog.Logger, path string, stats *Stats) (time.Time, bool, error) {
	stats.Examined++
	result, ok, err := w.resolver.Resolve(ctx, path)
	if cerr := ctx.Err(); cerr != nil {
		return time.Time{}, false, cerr
	}
	if err != nil {
		impact := "timestamp left unchanged"
		if errors.Is(err, resolve.ErrUnreadable) {
			impact = "file skipped; no resolver could read it"
		}
		logging.WarnWithContext(logger, "file unreadable", "file_unreadable",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldErrorHint, "check file permissions"),
			logging.String(logging.FieldImpact, impact),
			logging.Error(err),
		)
		stats.Failed++
		return time.Time{}, false, nil
	}
	if !ok {
		stats.Unresolved++
		logger.Debug("no date found", logging.String(logging.FieldPath, path))
		return time.Time{}, false, nil
	}
	if w.write(ctx, logger, path, result.Date, stamp.KindFile, result.Source, stats) {
		stats.Modified++
	}
	return result.Date, true, nil
}

// write applies date to path, logs the outcome and journals it. It reports
// whether the path counts as modified.
func (w *Walker) write(ctx context.Context, logger *slog.Logger, path string, date time.Time, kind stamp.Kind, source string, stats *Stats) bool {
	attrs := []any{
		logging.String(logging.FieldPath, path),
		logging.Time(logging.FieldDate, date),
		logging.String(logging.FieldSource, source),
	}
	if w.opts.DryRun {
		w.fileLine(logger, "would set date", attrs...)
		stats.countSource(source)
		return true
	}

	change, err := w.stamper.Apply(path, date, kind)
	if err != nil {
		logging.WarnWithContext(logger, "stamp failed", "stamp_failed",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldErrorHint, "check ownership and file system support for timestamps"),
			logging.Error(err),
		)
		stats.Failed++
		return false
	}
	w.fileLine(logger, "date set", attrs...)
	stats.countSource(source)

	if w.recorder != nil {
		if err := w.recorder.Record(ctx, change, source); err != nil {
			logging.WarnWithContext(logger, "journal write failed", "journal_failed",
				logging.String(logging.FieldPath, path),
				logging.String(logging.FieldImpact, "change applied but cannot be reverted"),
				logging.Error(err),
			)
		}
	}
	return true
}

func (w *Walker) fileLine(logger *slog.Logger, msg string, attrs ...any) {
	if w.opts.Quiet {
		logger.Debug(msg, attrs...)
		return
	}
	logger.Info(msg, attrs...)
}

func (w *Walker) stem(name string) string {
	return w.fold.String(strings.TrimSuffix(name, filepath.Ext(name)))
}

func (w *Walker) excluded(root, path string) bool {
	if len(w.opts.Exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	for _, pattern := range w.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Aggregate is the running maximum of accepted dates. The zero value has no
// aggregate.
type Aggregate struct {
	value   time.Time
	defined bool
}

func (a *Aggregate) Observe(t time.Time) {
	if !a.defined || t.After(a.value) {
		a.value = t
		a.defined = true
	}
}

func (a Aggregate) Value() (time.Time, bool) {
	return a.value, a.defined
}
