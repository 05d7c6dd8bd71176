package delta

import (
	"errors"
	"fmt"

	"github.com/joshuapare/deltakit/internal/filelock"
)

var (
	// ErrOutOfRange is returned when a position or length falls outside the
	// current document size. Positional errors are *RangeError values that
	// unwrap to it.
	ErrOutOfRange = errors.New("delta: position out of range")

	// ErrUnsupported is returned for operations the document cannot perform,
	// such as a streamed insert of unknown length.
	ErrUnsupported = errors.New("delta: operation not supported")

	// ErrClosed is returned when a closed document, source or repository is used.
	ErrClosed = errors.New("delta: closed")

	// ErrReadOnly is returned when saving into a file source opened ReadOnly.
	ErrReadOnly = errors.New("delta: file source is read-only")

	// ErrNoFileSource is returned by Save on a document without a bound file.
	ErrNoFileSource = errors.New("delta: document has no file source")

	// ErrLocked is returned by OpenFile when another owner holds the file lock.
	ErrLocked = filelock.ErrLocked

	// ErrForeignDocument is returned when a document from another repository
	// is passed to an operation.
	ErrForeignDocument = errors.New("delta: document belongs to another repository")

	// ErrForeignSource is returned when a source that was not created by this
	// repository is passed to an operation.
	ErrForeignSource = errors.New("delta: source belongs to another repository")

	// ErrSaveIncomplete wraps any failure that happened after a save started
	// writing to the file. The file content is then undefined.
	ErrSaveIncomplete = errors.New("delta: save did not complete")

	// ErrSourceDamaged is returned by reads through a file source whose last
	// save failed part way.
	ErrSourceDamaged = errors.New("delta: file source damaged by failed save")

	// ErrCorrupt is returned by Validate when a structural invariant does not hold.
	ErrCorrupt = errors.New("delta: inconsistent segment state")
)

// RangeError describes an out-of-range position.
type RangeError struct {
	Op   string
	Pos  int64
	Len  int64
	Size int64
}

func (e *RangeError) Error() string {
	if e.Len == 0 {
		return fmt.Sprintf("delta: %s: position %d out of range [0, %d]", e.Op, e.Pos, e.Size)
	}
	return fmt.Sprintf("delta: %s: range [%d, +%d) out of range [0, %d)", e.Op, e.Pos, e.Len, e.Size)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

func rangeErr(op string, pos, n, size int64) error {
	return &RangeError{Op: op, Pos: pos, Len: n, Size: size}
}

// consistencyError is the panic value for broken internal invariants. It is
// never returned: a segment missing from its index, or a chain whose lengths
// do not add up, means the repository state can no longer be trusted.
type consistencyError string

func (e consistencyError) Error() string { return "delta: inconsistent state: " + string(e) }

func inconsistent(format string, args ...any) {
	panic(consistencyError(fmt.Sprintf(format, args...)))
}
