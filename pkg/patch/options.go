package patch

import (
	"log/slog"

	"github.com/joshuapare/deltakit/delta"
	"github.com/joshuapare/deltakit/delta/dirty"
)

// Options controls how Apply edits a file.
type Options struct {
	// CreateBackup copies the file to <path>.bak before it is modified.
	CreateBackup bool

	// DryRun applies the operations to a read-only document and reports the
	// result without touching the file.
	DryRun bool

	// Flush selects how written ranges reach stable storage after the save.
	// Default: dirty.FlushNone
	Flush dirty.FlushMode

	// ProcessingLimit bounds the bytes moved per copy chunk during the save.
	// Default: delta.DefaultProcessingLimit
	ProcessingLimit int

	// OnProgress is called before each operation with its 1-based index.
	OnProgress func(current, total int)

	// OnError is called when an operation fails. Returning true skips the
	// operation and continues; returning false aborts Apply. Without a
	// handler the first failure aborts.
	OnError func(op EditOp, err error) bool

	// Logger receives save diagnostics. Default: logger.L
	Logger *slog.Logger
}

// Result describes an applied (or dry-run) patch.
type Result struct {
	OldSize    int64
	NewSize    int64
	Applied    int
	Skipped    int
	Digest     uint64
	BackupPath string
	// Stats is nil for dry runs and when nothing was applied.
	Stats *delta.SaveStats
}

func (o *Options) repoOptions() *delta.Options {
	return &delta.Options{
		ProcessingLimit: o.ProcessingLimit,
		Flush:           o.Flush,
		Logger:          o.Logger,
	}
}
