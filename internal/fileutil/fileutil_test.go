package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddOwnerWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.txt")
	if err := os.WriteFile(path, []byte("x"), 0o444); err != nil {
		t.Fatal(err)
	}

	prev, changed, err := AddOwnerWrite(path)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || prev != 0o444 {
		t.Fatalf("expected change from 0444, got prev=%o changed=%v", prev, changed)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		t.Fatalf("expected owner write, got %o", info.Mode().Perm())
	}

	if _, changed, err := AddOwnerWrite(path); err != nil || changed {
		t.Fatalf("expected no-op on writable file, changed=%v err=%v", changed, err)
	}
}

func TestForceRemoveAllClearsProtectedTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(nested, "member.txt")
	if err := os.WriteFile(file, []byte("data"), 0o444); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(nested, 0o555); err != nil {
		t.Fatal(err)
	}

	if err := ForceRemoveAll(root); err != nil {
		t.Fatalf("ForceRemoveAll: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed, stat err=%v", root, err)
	}
}

func TestForceRemoveAllMissingPath(t *testing.T) {
	if err := ForceRemoveAll(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("expected nil for missing path, got %v", err)
	}
}
