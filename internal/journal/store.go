package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"datefixer/internal/stamp"
)

// ErrRunNotFound reports an unknown run identifier.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRun reports a run prefix matching more than one run.
var ErrAmbiguousRun = errors.New("run prefix is ambiguous")

// Store persists runs and their changes.
type Store struct {
	db   *sql.DB
	path string
}

// Run summarises one invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Roots      []string
	DryRun     bool
	Modified   int
	RevertedAt *time.Time
}

// Entry is one recorded timestamp write.
type Entry struct {
	ID       int64
	RunID    string
	Path     string
	Kind     stamp.Kind
	Source   string
	Previous time.Time
	Applied  time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or opens the journal database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun registers a new run and returns it with a fresh identifier.
func (s *Store) BeginRun(ctx context.Context, roots []string, dryRun bool) (Run, error) {
	rootsJSON, err := json.Marshal(roots)
	if err != nil {
		return Run{}, fmt.Errorf("marshal roots: %w", err)
	}
	run := Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Roots:     append([]string(nil), roots...),
		DryRun:    dryRun,
	}
	err = s.exec(ctx,
		`INSERT INTO runs (id, started_at, roots_json, dry_run) VALUES (?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), string(rootsJSON), boolToInt(dryRun),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Record appends one change to a run.
func (s *Store) Record(ctx context.Context, runID string, change stamp.Change, source string) error {
	err := s.exec(ctx,
		`INSERT INTO changes (run_id, path, kind, source, previous, applied) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, change.Path, change.Kind.String(), source, formatTime(change.Previous), formatTime(change.Applied),
	)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

// FinishRun stamps the run's completion and modified count.
func (s *Store) FinishRun(ctx context.Context, runID string, modified int) error {
	err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, modified = ? WHERE id = ?`,
		formatTime(time.Now()), modified, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// MarkReverted flags a run as undone.
func (s *Store) MarkReverted(ctx context.Context, runID string) error {
	err := s.exec(ctx, `UPDATE runs SET reverted_at = ? WHERE id = ?`, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("mark reverted: %w", err)
	}
	return nil
}

const runColumns = "id, started_at, finished_at, roots_json, dry_run, modified, reverted_at"

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindRun resolves a full run identifier or a unique prefix of one.
func (s *Store) FindRun(ctx context.Context, idOrPrefix string) (Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY started_at LIMIT 2`,
		idOrPrefix, len(idOrPrefix), idOrPrefix,
	)
	if err != nil {
		return Run{}, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, idOrPrefix)
	}
}

// Changes returns the changes of a run in the order they were written.
func (s *Store) Changes(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, path, kind, source, previous, applied FROM changes WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                       Entry
			kind, previous, applied string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Path, &kind, &e.Source, &previous, &applied); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		if kind == stamp.KindDirectory.String() {
			e.Kind = stamp.KindDirectory
		}
		if e.Previous, err = parseTime(previous); err != nil {
			return nil, fmt.Errorf("change %d previous time: %w", e.ID, err)
		}
		if e.Applied, err = parseTime(applied); err != nil {
			return nil, fmt.Errorf("change %d applied time: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Recorder binds a Store to one run.
type Recorder struct {
	store *Store
	runID string
}

// Recorder returns a change recorder for runID.
func (s *Store) Recorder(runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// Record appends change to the bound run.
func (r *Recorder) Record(ctx context.Context, change stamp.Change, source string) error {
	return r.store.Record(ctx, r.runID, change, source)
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run                Run
		started, rootsJSON string
		finished, reverted sql.NullString
		dryRun             int
	)
	if err := scanner.Scan(&run.ID, &started, &finished, &rootsJSON, &dryRun, &run.Modified, &reverted); err != nil {
		return Run{}, err
	}
	run.DryRun = dryRun != 0
	if t, err := parseTime(started); err == nil {
		run.StartedAt = t
	}
	if finished.Valid {
		if t, err := parseTime(finished.String); err == nil {
			run.FinishedAt = &t
		}
	}
	if reverted.Valid {
		if t, err := parseTime(reverted.String); err == nil {
			run.RevertedAt = &t
		}
	}
	if err := json.Unmarshal([]byte(rootsJSON), &run.Roots); err != nil {
		return Run{}, fmt.Errorf("decode roots: %w", err)
	}
	return run, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
