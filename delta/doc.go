// Package delta edits binary documents of any size as chains of segments
// over shared sources, and saves them back into their own file in place.
//
// # Model
//
// A Document is a gapless chain of segments. Each segment names a byte range
// of one source: a FileSource (a locked on-disk file read through a small
// page cache) or a MemorySource (a growable buffer). Inserting, removing or
// copying bytes splits and links segments; existing bytes are never moved,
// so edits cost in proportion to the edited range.
//
// Every source has an interval index of the segments referencing it. The
// Repository owns sources, indices and documents, and is the only place that
// creates or changes segments:
//
//	repo := delta.NewRepository(nil)
//	defer repo.Close()
//
//	fs, err := repo.OpenFile("disk.img", delta.ReadWrite)
//	if err != nil {
//	    return err
//	}
//	doc, err := repo.OpenDocument(fs)
//	if err != nil {
//	    return err
//	}
//	_ = doc.Remove(0, 512)
//	_ = doc.Insert(doc.Size(), []byte("trailer"))
//	stats, err := doc.Save(ctx)
//
// # Sharing
//
// Copies share sources by reference. A memory segment whose bytes are shared
// is detached onto a private buffer before it is written, so a write through
// one document never shows through another.
//
// # Saving in place
//
// Save writes the chain back into its own file even when the new layout
// overlaps the old one, moving bytes directly where nothing pending is in the
// way and loading at most ProcessingLimit bytes at a time into memory to
// break cycles. Other documents reading the same file are re-pointed to the
// new offsets or given memory copies of bytes the save overwrites.
//
// # Concurrency
//
// Nothing in this package is safe for concurrent use. Callers serialize all
// access to a Repository and its documents.
package delta
