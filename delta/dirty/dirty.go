// Package dirty tracks the byte ranges a save pass has written to a file and
// flushes them to stable storage.
//
// The tracker keeps a list of written ranges, coalesces them into
// page-aligned ranges, and flushes them with platform-specific calls
// (sync_file_range + fdatasync on Linux, F_FULLFSYNC on macOS,
// FlushFileBuffers on Windows).
package dirty

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// FlushMode controls durability after a save.
type FlushMode int

const (
	// FlushNone leaves written data to the OS page cache.
	FlushNone FlushMode = iota

	// FlushData writes out the dirty ranges and syncs file data
	// (fdatasync where available).
	FlushData

	// FlushFull writes out the dirty ranges and syncs data and metadata.
	// On macOS, uses F_FULLFSYNC.
	FlushFull
)

func (m FlushMode) String() string {
	switch m {
	case FlushNone:
		return "none"
	case FlushData:
		return "data"
	case FlushFull:
		return "full"
	default:
		return fmt.Sprintf("FlushMode(%d)", int(m))
	}
}

// ParseFlushMode parses the names produced by FlushMode.String.
func ParseFlushMode(s string) (FlushMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FlushNone, nil
	case "data":
		return FlushData, nil
	case "full":
		return FlushFull, nil
	}
	return FlushNone, fmt.Errorf("unknown flush mode %q (want none, data or full)", s)
}

// Range represents a dirty byte range (absolute file offsets).
type Range struct {
	Off int64 // Absolute offset in file
	Len int64 // Length in bytes
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges   []Range
	pageSize int64
}

// NewTracker creates an empty tracker using 4KB pages.
func NewTracker() *Tracker {
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range. Empty ranges are ignored.
func (t *Tracker) Add(off, length int64) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: off, Len: length})
}

// Len returns the number of raw (uncoalesced) ranges.
func (t *Tracker) Len() int { return len(t.ranges) }

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Ranges returns the page-aligned, sorted and merged ranges that Flush would
// write out.
func (t *Tracker) Ranges() []Range {
	return t.coalesce()
}

// Flush pushes the tracked ranges of f to stable storage according to mode
// and clears the tracker. It returns the number of coalesced ranges flushed.
//
// The context is checked before each range; a cancelled flush may leave some
// ranges flushed and others not.
func (t *Tracker) Flush(ctx context.Context, f *os.File, mode FlushMode) (int, error) {
	if mode == FlushNone || len(t.ranges) == 0 {
		t.Reset()
		return 0, nil
	}

	ranges := t.Ranges()
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := flushRange(f, r); err != nil {
			return 0, fmt.Errorf("flush range %d+%d: %w", r.Off, r.Len, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := syncFile(f, mode == FlushFull); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	t.Reset()
	return len(ranges), nil
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping/adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize

		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}

		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.Off+current.Len {
			end := max(current.Off+current.Len, next.Off+next.Len)
			current.Len = end - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
