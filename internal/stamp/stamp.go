// Package stamp writes resolved dates onto files and directories.
//
// The owner write bit is granted for the duration of a write and the original
// permission bits are put back on every path out of Apply, including failures
// of the timestamp write itself. Access times are left untouched.
package stamp

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"datefixer/internal/fileutil"
	"datefixer/internal/logging"
)

// ErrCreationTimeUnsupported reports that the platform cannot set a birth time.
var ErrCreationTimeUnsupported = errors.New("creation time cannot be set on this platform")

// Kind distinguishes file and directory writes; creation-time handling is
// configured separately for each.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Change describes one successful write.
type Change struct {
	Path     string
	Kind     Kind
	Previous time.Time
	Applied  time.Time
}

// Options selects which kinds also receive a creation-time write.
type Options struct {
	FileCreationTime      bool
	DirectoryCreationTime bool
}

// Writer applies timestamps.
type Writer struct {
	opts        Options
	logger      *slog.Logger
	setModTime  func(path string, t time.Time) error
	setCreation func(path string, t time.Time) error
	warnOnce    sync.Once
}

// New constructs a Writer.
func New(opts Options, logger *slog.Logger) *Writer {
	return &Writer{
		opts:        opts,
		logger:      logging.NewComponentLogger(logger, "stamp"),
		setModTime:  setModTime,
		setCreation: setCreationTime,
	}
}

// Apply sets the modification time of path to t (in UTC) and, when enabled
// for kind, its creation time.
func (w *Writer) Apply(path string, t time.Time, kind Kind) (change Change, err error) {
	t = t.UTC()
	info, err := os.Lstat(path)
	if err != nil {
		return Change{}, fmt.Errorf("stat %s: %w", path, err)
	}

	perm, relaxed, err := fileutil.AddOwnerWrite(path)
	if err != nil {
		return Change{}, err
	}
	if relaxed {
		defer func() {
			if restoreErr := os.Chmod(path, perm); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("restore permissions: %w", restoreErr))
			}
		}()
	}

	if err := w.setModTime(path, t); err != nil {
		return Change{}, fmt.Errorf("set modification time: %w", err)
	}

	if w.creationEnabled(kind) {
		if err := w.setCreation(path, t); err != nil {
			if !errors.Is(err, ErrCreationTimeUnsupported) {
				return Change{}, fmt.Errorf("set creation time: %w", err)
			}
			w.warnOnce.Do(func() {
				w.logger.Debug("creation time not written", logging.Error(err))
			})
		}
	}

	return Change{Path: path, Kind: kind, Previous: info.ModTime().UTC(), Applied: t}, nil
}

func (w *Writer) creationEnabled(kind Kind) bool {
	if kind == KindDirectory {
		return w.opts.DirectoryCreationTime
	}
	return w.opts.FileCreationTime
}

func setModTime(path string, t time.Time) error {
	ts := []unix.Timespec{
		{Sec: 0, Nsec: unix.UTIME_OMIT},
		{Sec: t.Unix(), Nsec: int64(t.Nanosecond())},
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return &os.PathError{Op: "utimensat", Path: path, Err: err}
	}
	return nil
}

// setCreationTime reports ErrCreationTimeUnsupported: Linux exposes birth time
// through statx but offers no call to change it.
func setCreationTime(string, time.Time) error {
	return ErrCreationTimeUnsupported
}
