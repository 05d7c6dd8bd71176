//go:build darwin

package dirty

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushRange is a no-op: macOS has no ranged writeback call, syncFile covers
// the whole file.
func flushRange(*os.File, Range) error { return nil }

// syncFile uses F_FULLFSYNC when full is set so data reaches the physical
// disk and not just the drive cache. macOS has no fdatasync.
func syncFile(f *os.File, full bool) error {
	if full {
		_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
		return err
	}
	return unix.Fsync(int(f.Fd()))
}
