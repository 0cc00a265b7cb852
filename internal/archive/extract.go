package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"datefixer/internal/deps"
	"datefixer/internal/fileutil"
	"datefixer/internal/logging"
)

// SevenZipNames are the executable names probed when no binary is configured.
var SevenZipNames = []string{"7z", "7zz", "7za"}

// ErrExtractorMissing reports that no 7-Zip executable could be located.
var ErrExtractorMissing = errors.New("7-zip executable not found")

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) ExtractorOption {
	return func(e *Extractor) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// WithLookPath overrides how executable names are resolved against PATH.
func WithLookPath(lookPath func(string) (string, error)) ExtractorOption {
	return func(e *Extractor) {
		if lookPath != nil {
			e.lookPath = lookPath
		}
	}
}

// WithClock overrides the time source used for the freshness guard.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// Extractor unpacks archives with 7-Zip into a shared scratch directory.
type Extractor struct {
	binary     string
	scratchDir string
	timeout    time.Duration
	exec       Executor
	lookPath   func(string) (string, error)
	now        func() time.Time
	logger     *slog.Logger

	once     sync.Once
	resolved string
	findErr  error
}

// NewExtractor constructs an Extractor. binary may be empty, a bare name, or a path.
func NewExtractor(binary, scratchDir string, timeoutSeconds int, logger *slog.Logger, opts ...ExtractorOption) (*Extractor, error) {
	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return nil, errors.New("scratch directory required")
	}
	e := &Extractor{
		binary:     strings.TrimSpace(binary),
		scratchDir: filepath.Clean(scratchDir),
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		exec:       commandExecutor{},
		lookPath:   exec.LookPath,
		now:        time.Now,
		logger:     logging.NewComponentLogger(logger, "extract"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ScratchDir returns the directory archives are unpacked into.
func (e *Extractor) ScratchDir() string { return e.scratchDir }

// LockPath returns the lock file guarding the scratch directory.
func (e *Extractor) LockPath() string { return e.scratchDir + ".lock" }

// Binary locates the 7-Zip executable: the configured value, then next to the
// running executable, then PATH.
func (e *Extractor) Binary() (string, error) {
	e.once.Do(func() {
		e.resolved, e.findErr = e.locate()
	})
	return e.resolved, e.findErr
}

func (e *Extractor) locate() (string, error) {
	path, err := deps.Locate(e.binary, SevenZipNames, e.lookPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractorMissing, err)
	}
	return path, nil
}

// Extract unpacks path and returns the newest member modification time. A
// missing 7-Zip binary yields no date and no error.
func (e *Extractor) Extract(ctx context.Context, path string) (time.Time, bool, error) {
	logger := logging.WithContext(ctx, e.logger).With(logging.String(logging.FieldPath, path))

	binary, err := e.Binary()
	if err != nil {
		logger.Debug("external extraction skipped", logging.Error(err))
		return time.Time{}, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(e.scratchDir), 0o755); err != nil {
		return time.Time{}, false, fmt.Errorf("create scratch parent: %w", err)
	}
	lock := flock.New(e.LockPath())
	locked, err := lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("lock scratch directory: %w", err)
	}
	if !locked {
		return time.Time{}, false, errors.New("scratch directory lock not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	if err := fileutil.ForceRemoveAll(e.scratchDir); err != nil {
		return time.Time{}, false, fmt.Errorf("clear scratch directory: %w", err)
	}
	defer func() {
		if err := fileutil.ForceRemoveAll(e.scratchDir); err != nil {
			logger.Warn("scratch directory not cleared", logging.String("scratch", e.scratchDir), logging.Error(err))
		}
	}()
	if err := os.MkdirAll(e.scratchDir, 0o755); err != nil {
		return time.Time{}, false, fmt.Errorf("create scratch directory: %w", err)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := e.now()
	args := []string{"x", "-y", "-bd", "-o" + e.scratchDir, path}
	if err := e.exec.Run(runCtx, binary, args, func(line string) {
		logger.Debug("7z", logging.String("line", line))
	}); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return time.Time{}, false, fmt.Errorf("7z extract: %w", ctxErr)
		}
		// 7-Zip exits non-zero on warnings; whatever it unpacked is still scanned.
		logger.Debug("7z exited with error", logging.Error(err))
	}

	latest, err := newestFile(e.scratchDir)
	if err != nil {
		return time.Time{}, false, err
	}
	date, ok := latest.Value()
	if !ok {
		return time.Time{}, false, nil
	}
	if date.After(started) {
		logger.Debug("extracted timestamps rejected as extraction time",
			logging.Time(logging.FieldDate, date),
			logging.Time("started", started),
		)
		return time.Time{}, false, nil
	}
	return date, true, nil
}

func newestFile(root string) (Latest, error) {
	var latest Latest
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		latest.Observe(info.ModTime())
		return nil
	})
	if err != nil {
		return Latest{}, fmt.Errorf("scan extracted tree: %w", err)
	}
	return latest, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	scanErr := forwardLines(stdout, onOutput)
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	return nil
}

func forwardLines(r io.Reader, onOutput func(string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && onOutput != nil {
			onOutput(line)
		}
	}
	return scanner.Err()
}
