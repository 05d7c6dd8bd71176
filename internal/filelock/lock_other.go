//go:build !unix && !windows

package filelock

import "os"

// Lock is a no-op on platforms without advisory locking.
func Lock(*os.File, bool) error { return nil }

// Unlock is a no-op on platforms without advisory locking.
func Unlock(*os.File) error { return nil }
