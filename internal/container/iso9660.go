package container

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/kdomanski/iso9660"
)

// maxDirectoryDepth bounds recursion into malformed or looping directory trees.
const maxDirectoryDepth = 64

// maxRecordingOffset is the largest zone offset ECMA-119 9.1.5 allows (+13:00).
const maxRecordingOffset = 52 * 15 * 60

// ISO9660 decodes ECMA-119 images.
type ISO9660 struct{}

func (ISO9660) Name() string { return "iso9660" }

func (ISO9660) Open(r io.ReaderAt, _ int64) (Image, error) {
	img, err := iso9660.OpenImage(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotContainer, err)
	}
	root, err := img.RootDir()
	if err != nil {
		return nil, fmt.Errorf("iso9660 root directory: %w", err)
	}
	return &isoImage{root: root}, nil
}

type isoImage struct {
	root *iso9660.File
}

func (i *isoImage) Root() (time.Time, bool) {
	t := recordingTime(i.root.ModTime())
	return t, !t.IsZero()
}

func (i *isoImage) Walk(fn func(Entry) error) error {
	return walkISO(i.root, "/", 0, fn)
}

func walkISO(dir *iso9660.File, dirPath string, depth int, fn func(Entry) error) error {
	if depth > maxDirectoryDepth {
		return fmt.Errorf("iso9660: directory depth exceeds %d at %s", maxDirectoryDepth, dirPath)
	}
	children, err := dir.GetChildren()
	if err != nil {
		return fmt.Errorf("iso9660 list %s: %w", dirPath, err)
	}
	for _, child := range children {
		childPath := path.Join(dirPath, child.Name())
		if err := fn(Entry{Path: childPath, Created: recordingTime(child.ModTime())}); err != nil {
			return err
		}
		if child.IsDir() {
			if err := walkISO(child, childPath, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordingTime corrects the zone of a decoded directory record date. The
// offset byte is signed, but the iso9660 package reads it as unsigned, so
// offsets west of UTC arrive as +(256-n) quarter hours.
func recordingTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	_, off := t.Zone()
	if off <= maxRecordingOffset {
		return t
	}
	zone := time.FixedZone("", off-256*15*60)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}
