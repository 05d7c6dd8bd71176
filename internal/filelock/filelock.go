// Package filelock takes non-blocking advisory locks on open files so that a
// file opened for in-place editing is not edited by two owners at once.
package filelock

import "errors"

// ErrLocked is returned when another owner already holds a conflicting lock.
var ErrLocked = errors.New("file is locked by another owner")
