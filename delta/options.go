package delta

import (
	"log/slog"

	"github.com/joshuapare/deltakit/delta/dirty"
	"github.com/joshuapare/deltakit/internal/logger"
)

const (
	// DefaultProcessingLimit bounds the bytes moved or preloaded per step of a save.
	DefaultProcessingLimit = 4096

	// DefaultPageSize is the size of one cached file page.
	DefaultPageSize = 1024

	// DefaultCachePages is the number of pages each file source keeps cached.
	DefaultCachePages = 2

	// inplaceInsertLimit is the largest memory buffer that is shifted to make
	// room for an insert. Larger buffers get a new segment instead.
	inplaceInsertLimit = 64 << 10
)

// FileMode selects how OpenFile opens a file.
type FileMode int

const (
	// ReadWrite opens the file for editing in place under an exclusive lock.
	ReadWrite FileMode = iota
	// ReadOnly opens the file under a shared lock; documents bound to it
	// cannot be saved.
	ReadOnly
)

func (m FileMode) String() string {
	if m == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

// Options configures a Repository. The zero value is usable.
type Options struct {
	// ProcessingLimit is the chunk size, in bytes, used by save when copying
	// and when preloading conflicting regions. Default 4096.
	ProcessingLimit int

	// PageSize and CachePages size each file source's read cache.
	// Defaults 1024 and 2.
	PageSize   int
	CachePages int

	// Flush selects durability after a successful save. Default FlushNone.
	Flush dirty.FlushMode

	// Logger receives save and lifecycle records. Default: logger.L.
	Logger *slog.Logger
}

// DefaultOptions returns the options NewRepository uses for nil.
func DefaultOptions() Options {
	return Options{
		ProcessingLimit: DefaultProcessingLimit,
		PageSize:        DefaultPageSize,
		CachePages:      DefaultCachePages,
		Flush:           dirty.FlushNone,
	}
}

func (o Options) withDefaults() Options {
	if o.ProcessingLimit <= 0 {
		o.ProcessingLimit = DefaultProcessingLimit
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.CachePages <= 0 {
		o.CachePages = DefaultCachePages
	}
	if o.Logger == nil {
		o.Logger = logger.L
	}
	return o
}
