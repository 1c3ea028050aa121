//go:build linux

package store

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// TouchAfter sets path's mtime (and atime) strictly after t, with
// nanosecond precision, so that path dominates a file whose mtime is t in
// the "newer than" comparison used by the fast path (spec.md §4.1) and by
// output extraction (spec.md §4.4).
//
// os.Chtimes ultimately issues the same utimensat(2) syscall on Linux, but
// we call unix.UtimesNanoAt directly and pad by a full microsecond rather than a
// single nanosecond, since some filesystems (e.g. ext4 with coarse mount
// options) round sub-microsecond timestamps down.
func TouchAfter(path string, t time.Time) error {
	newer := t.Add(time.Microsecond)
	ts := unix.NsecToTimespec(newer.UnixNano())

	err := unix.UtimesNanoAt(unix.AT_FDCWD, path, []unix.Timespec{ts, ts}, 0)
	if err != nil {
		return fmt.Errorf("touching %s: %w", path, err)
	}

	return nil
}
