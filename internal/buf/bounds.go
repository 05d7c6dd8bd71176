// Package buf holds overflow-safe range arithmetic for int64 byte positions.
package buf

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNegative reports a negative position or length.
	ErrNegative = errors.New("negative position or length")
	// ErrOverflow reports a pos+len sum that does not fit in int64.
	ErrOverflow = errors.New("range overflows int64")
	// ErrBounds reports a range extending past the end of the sequence.
	ErrBounds = errors.New("range exceeds size")
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int64.
func AddOverflowSafe(a, b int64) (int64, bool) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, false
	case b < 0 && a < math.MinInt64-b:
		return 0, false
	default:
		return a + b, true
	}
}

// CheckRange validates that [pos, pos+n) lies within a sequence of size bytes
// and returns the exclusive end.
//
//	end, err := buf.CheckRange(doc.Size(), pos, n)
//	if err != nil {
//	    return fmt.Errorf("remove: %w", err)
//	}
func CheckRange(size, pos, n int64) (int64, error) {
	if pos < 0 || n < 0 {
		return 0, fmt.Errorf("%w: pos=%d len=%d", ErrNegative, pos, n)
	}
	end, ok := AddOverflowSafe(pos, n)
	if !ok {
		return 0, fmt.Errorf("%w: pos=%d + len=%d", ErrOverflow, pos, n)
	}
	if end > size {
		return 0, fmt.Errorf("%w: end=%d > size=%d", ErrBounds, end, size)
	}
	return end, nil
}

// Has reports whether [pos, pos+n) is within a sequence of size bytes.
func Has(size, pos, n int64) bool {
	_, err := CheckRange(size, pos, n)
	return err == nil
}

// Slice returns the sub-slice b[off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int64) ([]byte, bool) {
	end, err := CheckRange(int64(len(b)), off, n)
	if err != nil {
		return nil, false
	}
	return b[off:end], true
}

// Overlap returns the intersection of [a, a+alen) and [b, b+blen). The
// returned length is zero when the ranges are disjoint.
func Overlap(a, alen, b, blen int64) (start, length int64) {
	start = max(a, b)
	end := min(a+alen, b+blen)
	if end <= start {
		return start, 0
	}
	return start, end - start
}
