package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ownerWrite is the permission bit that must be present to modify an entry's
// metadata or, for directories, to delete its children.
const ownerWrite fs.FileMode = 0o200

// AddOwnerWrite grants the owner write permission on path when it is missing.
// It returns the permission bits observed before the change and whether a
// change was made, so the caller can restore them.
func AddOwnerWrite(path string) (fs.FileMode, bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, false, err
	}
	perm := info.Mode().Perm()
	if perm&ownerWrite != 0 {
		return perm, false, nil
	}
	if err := os.Chmod(path, perm|ownerWrite); err != nil {
		return perm, false, fmt.Errorf("add owner write: %w", err)
	}
	return perm, true, nil
}

// ForceRemoveAll deletes path and everything beneath it, first granting the
// owner write and search permission on every directory so protected entries
// do not block removal. A missing path is not an error.
func ForceRemoveAll(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				_ = os.Chmod(p, 0o700)
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			_ = os.Chmod(p, 0o700)
			return nil
		}
		_, _, _ = AddOwnerWrite(p)
		return nil
	})
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
