//go:build linux

package dirty

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushRange starts writeback of one range and waits for it to complete.
func flushRange(f *os.File, r Range) error {
	return unix.SyncFileRange(int(f.Fd()), r.Off, r.Len,
		unix.SYNC_FILE_RANGE_WAIT_BEFORE|unix.SYNC_FILE_RANGE_WRITE|unix.SYNC_FILE_RANGE_WAIT_AFTER)
}

// syncFile makes the written data durable. fdatasync skips metadata that is
// not needed to read the data back; full asks for fsync.
func syncFile(f *os.File, full bool) error {
	if full {
		return unix.Fsync(int(f.Fd()))
	}
	return unix.Fdatasync(int(f.Fd()))
}
