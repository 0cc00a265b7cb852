package stamp

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func accessTime(t *testing.T, path string) time.Time {
	t.Helper()
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return time.Unix(st.Atim.Unix())
}
