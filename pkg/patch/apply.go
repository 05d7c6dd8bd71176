package patch

import (
	"context"
	"fmt"
	"io"

	"github.com/joshuapare/deltakit/delta"
)

// Apply applies ops to the file at path in order and saves the result in
// place.
//
// The file is opened with an exclusive lock. Operations are applied to an
// in-memory view first; if one fails (and OnError does not skip it) Apply
// returns without writing anything. A failure during the save itself is
// reported with delta.ErrSaveIncomplete and the backup, if requested, holds
// the original content.
//
// Example:
//
//	res, err := patch.Apply(ctx, "disk.img", []patch.EditOp{
//	    patch.OpFill{Offset: 0, Length: 512, Value: 0},
//	}, nil)
func Apply(ctx context.Context, path string, ops []EditOp, opts *Options) (*Result, error) {
	if !fileExists(path) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if opts == nil {
		opts = &Options{}
	}

	res := &Result{}
	if opts.CreateBackup && !opts.DryRun {
		res.BackupPath = path + ".bak"
		if err := copyFile(path, res.BackupPath); err != nil {
			return nil, fmt.Errorf("failed to create backup at %s: %w", res.BackupPath, err)
		}
	}

	repo := delta.NewRepository(opts.repoOptions())
	defer repo.Close()

	mode := delta.ReadWrite
	if opts.DryRun {
		mode = delta.ReadOnly
	}
	fs, err := repo.OpenFile(path, mode)
	if err != nil {
		return nil, err
	}
	doc, err := repo.OpenDocument(fs)
	if err != nil {
		return nil, err
	}
	res.OldSize = doc.Size()

	total := len(ops)
	for i, op := range ops {
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total)
		}
		if applyErr := applyOperation(repo, doc, op); applyErr != nil {
			if opts.OnError != nil && opts.OnError(op, applyErr) {
				res.Skipped++
				continue
			}
			return nil, fmt.Errorf("operation %d/%d failed: %w", i+1, total, applyErr)
		}
		res.Applied++
	}

	res.NewSize = doc.Size()
	if res.Digest, err = doc.Digest(); err != nil {
		return nil, err
	}
	if opts.DryRun || res.Applied == 0 {
		return res, nil
	}

	if res.Stats, err = doc.Save(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// applyOperation applies a single edit operation to doc.
func applyOperation(repo *delta.Repository, doc *delta.Document, op EditOp) error {
	switch op := op.(type) {
	case OpInsert:
		return doc.Insert(op.Offset, op.Data)

	case OpRemove:
		return doc.Remove(op.Offset, op.Length)

	case OpReplace:
		if op.Offset < 0 || op.Offset > doc.Size() {
			return fmt.Errorf("replace at %d beyond size %d: %w", op.Offset, doc.Size(), delta.ErrOutOfRange)
		}
		w := doc.NewWriter()
		if _, err := w.Seek(op.Offset, io.SeekStart); err != nil {
			return err
		}
		_, err := w.Write(op.Data)
		return err

	case OpFill:
		return doc.Fill(op.Offset, op.Length, op.Value)

	case OpTruncate:
		return doc.SetSize(op.Size)

	case OpSplice:
		return splice(repo, doc, op)

	default:
		return fmt.Errorf("unknown operation type: %T", op)
	}
}

// splice inserts a range of another file by reference. A splice from the
// target file itself reads the document's current content.
func splice(repo *delta.Repository, doc *delta.Document, op OpSplice) error {
	src := doc
	if !samePath(op.Source, doc.FileSource().Path()) {
		fs, err := repo.OpenFile(op.Source, delta.ReadOnly)
		if err != nil {
			return err
		}
		if src, err = repo.OpenDocument(fs); err != nil {
			return err
		}
		// The inserted segments keep the source open until the save.
		defer src.Close()
	}
	n := op.Length
	if n < 0 {
		n = src.Size() - op.SourceOffset
	}
	return doc.InsertDocument(op.Offset, src, op.SourceOffset, n)
}
