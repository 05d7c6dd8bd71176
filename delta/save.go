package delta

import (
	"context"
	"fmt"
	"time"

	"github.com/joshuapare/deltakit/delta/dirty"
	"github.com/joshuapare/deltakit/delta/interval"
	"github.com/joshuapare/deltakit/internal/buf"
)

// SaveStats reports what a save did.
type SaveStats struct {
	Length         int64 // New file length
	BytesWritten   int64
	BytesInPlace   int64 // File bytes already at their destination
	DirectWrites   int   // Pieces written without preloading
	ConflictChunks int   // Chunks written after preloading what they overwrite
	PreloadedBytes int64

	SiblingSegments          int   // Segments of other documents re-pointed into the new layout
	SiblingBytesMaterialized int64 // Bytes of other documents moved to memory

	FlushedRanges int
	Duration      time.Duration
}

// savePiece is one chain segment scheduled for writing at dst. Pieces are
// separate from the chain, which stays untouched until every write has
// succeeded. A written piece becomes KindSpace.
type savePiece struct {
	kind   SegmentKind
	file   *FileSource
	mem    *MemorySource
	start  int64
	length int64
	dst    int64
}

func (p *savePiece) end() int64 { return p.start + p.length }

// saveRun holds the state of one in-place save of d into its file source.
//
// Invariant: no write ever lands on the source range of a pending piece read
// from the target file, other than the piece being written itself. bySource
// indexes exactly those pending pieces.
type saveRun struct {
	r       *Repository
	d       *Document
	fs      *FileSource
	st      *SaveStats
	limit   int64
	buf     []byte
	tracker *dirty.Tracker

	coverage *interval.Tree[*savePiece] // every target-file piece, by source, as planned
	bySource *interval.Tree[*savePiece] // pending target-file pieces, by source
	byDest   *interval.Tree[*savePiece] // pending pieces, by destination
	work     []*savePiece
}

// siblingEdit replaces segment id of another document by parts.
type siblingEdit struct {
	id    segID
	parts []siblingPart
}

type siblingPart struct {
	inFile bool
	start  int64 // New file offset when inFile
	length int64
	data   []byte
}

// SaveDocument writes d back into its bound file source in place.
//
// The new layout may read from and write to overlapping regions of the same
// file. Pieces whose destination holds no pending source are written
// directly; the rest are resolved one chunk of at most ProcessingLimit bytes
// at a time by first loading the pending sources the chunk would overwrite.
// Segments of other documents that reference the file are re-pointed to
// their new offsets, or loaded into memory when their bytes do not survive.
//
// ctx is honoured until writing begins. If a write fails the error wraps
// ErrSaveIncomplete, the file content is undefined and the source is marked
// damaged; d keeps its previous chain.
func (r *Repository) SaveDocument(ctx context.Context, d *Document) (*SaveStats, error) {
	if d.repo != r {
		return nil, ErrForeignDocument
	}
	if err := d.usable(); err != nil {
		return nil, err
	}
	fs := d.fs
	if fs == nil {
		return nil, ErrNoFileSource
	}
	if err := fs.usable(); err != nil {
		return nil, err
	}
	if fs.mode == ReadOnly {
		return nil, fmt.Errorf("save %s: %w", fs.path, ErrReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	began := time.Now()
	r.log.Debug("save started", "path", fs.path, "length", d.size, "segments", d.count)
	run, err := r.newSaveRun(d)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", fs.path, err)
	}
	siblings, err := run.planSiblings(ctx)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", fs.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := run.execute(); err != nil {
		fs.markDamaged(err)
		fs.ClearCache()
		r.log.Error("save failed", "path", fs.path, "written", run.st.BytesWritten, "error", err)
		return run.st, fmt.Errorf("%w: %s: %w", ErrSaveIncomplete, fs.path, err)
	}

	fs.size = d.size
	run.applySiblings(siblings)
	d.resetToFile()
	fs.ClearCache()

	st := run.st
	n, ferr := run.tracker.Flush(context.WithoutCancel(ctx), fs.f, r.opts.Flush)
	st.FlushedRanges = n
	st.Duration = time.Since(began)
	r.log.Debug("document saved",
		"path", fs.path,
		"length", st.Length,
		"written", st.BytesWritten,
		"in_place", st.BytesInPlace,
		"direct", st.DirectWrites,
		"chunks", st.ConflictChunks,
		"preloaded", st.PreloadedBytes,
		"sibling_segments", st.SiblingSegments,
		"sibling_materialized", st.SiblingBytesMaterialized,
		"flush", r.opts.Flush.String(),
		"duration", st.Duration,
	)
	if ferr != nil {
		return st, fmt.Errorf("save %s: %w", fs.path, ferr)
	}
	return st, nil
}

// newSaveRun computes the destination of every segment (the running sum of
// lengths) and indexes the pieces that still need writing.
func (r *Repository) newSaveRun(d *Document) (*saveRun, error) {
	run := &saveRun{
		r:        r,
		d:        d,
		fs:       d.fs,
		st:       &SaveStats{Length: d.size},
		limit:    int64(r.opts.ProcessingLimit),
		buf:      make([]byte, r.opts.ProcessingLimit),
		tracker:  dirty.NewTracker(),
		coverage: interval.New[*savePiece](),
		bySource: interval.New[*savePiece](),
		byDest:   interval.New[*savePiece](),
	}
	var dst int64
	for id := d.head; id != nilSeg; {
		s := r.seg(id)
		id = s.next
		p := &savePiece{kind: s.kind, file: s.file, mem: s.mem, start: s.start, length: s.length, dst: dst}
		dst += s.length
		if s.kind == KindFile && s.file != run.fs {
			if err := s.file.usable(); err != nil {
				return nil, err
			}
		}
		if run.fromTarget(p) {
			run.coverage.Insert(p, p.start, p.length)
			if p.start == p.dst {
				p.kind = KindSpace
				run.st.BytesInPlace += p.length
				continue
			}
			run.bySource.Insert(p, p.start, p.length)
		}
		run.byDest.Insert(p, p.dst, p.length)
		run.work = append(run.work, p)
	}
	return run, nil
}

func (run *saveRun) fromTarget(p *savePiece) bool {
	return p.kind == KindFile && p.file == run.fs
}

// execute runs the direct pass, then breaks the remaining dependency cycles
// one chunk at a time, then trims the file to the new length.
func (run *saveRun) execute() error {
	if err := run.drain(); err != nil {
		return err
	}
	for run.byDest.Len() > 0 {
		p, _, _, _ := run.byDest.First()
		if p.length > run.limit {
			run.split(p, run.limit)
		}
		if err := run.preload(p); err != nil {
			return err
		}
		if err := run.write(p); err != nil {
			return err
		}
		run.complete(p)
		run.st.ConflictChunks++
		if err := run.drain(); err != nil {
			return err
		}
	}
	if run.d.size < run.fs.size {
		return run.fs.truncate(run.d.size)
	}
	return nil
}

// drain writes every queued piece whose destination no longer overlaps a
// pending source. Completing a piece requeues the pieces it was blocking.
func (run *saveRun) drain() error {
	for len(run.work) > 0 {
		p := run.work[0]
		run.work = run.work[1:]
		if p.kind == KindSpace || !run.byDest.Has(p) || !run.safe(p) {
			continue
		}
		if err := run.write(p); err != nil {
			return err
		}
		run.complete(p)
		run.st.DirectWrites++
	}
	return nil
}

func (run *saveRun) safe(p *savePiece) bool {
	for c := run.bySource.Overlaps(p.dst, p.length); c.Next(); {
		if c.Value() != p {
			return false
		}
	}
	return true
}

func (run *saveRun) complete(p *savePiece) {
	run.byDest.Remove(p)
	if run.fromTarget(p) {
		run.release(p)
	}
	p.kind = KindSpace
}

// release drops p from the pending sources and requeues every piece whose
// destination overlaps the range it frees.
func (run *saveRun) release(p *savePiece) {
	run.bySource.Remove(p)
	for c := run.byDest.Overlaps(p.start, p.length); c.Next(); {
		run.work = append(run.work, c.Value())
	}
}

// split cuts p after k bytes and returns the new tail piece.
func (run *saveRun) split(p *savePiece, k int64) *savePiece {
	q := &savePiece{
		kind: p.kind, file: p.file, mem: p.mem,
		start: p.start + k, length: p.length - k, dst: p.dst + k,
	}
	p.length = k
	run.byDest.Update(p, p.dst, p.length)
	run.byDest.Insert(q, q.dst, q.length)
	if run.fromTarget(p) {
		run.bySource.Update(p, p.start, p.length)
		run.bySource.Insert(q, q.start, q.length)
	}
	run.work = append(run.work, q)
	return q
}

// preload loads into memory every part of another pending source that lies
// in chunk's destination, so writing chunk destroys nothing still needed.
// At most chunk.length bytes are read.
func (run *saveRun) preload(chunk *savePiece) error {
	lo, hi := chunk.dst, chunk.dst+chunk.length
	var conflicts []*savePiece
	for c := run.bySource.Overlaps(chunk.dst, chunk.length); c.Next(); {
		if c.Value() != chunk {
			conflicts = append(conflicts, c.Value())
		}
	}
	if len(conflicts) == 0 {
		return nil
	}

	a0, b0 := hi, lo
	for _, v := range conflicts {
		a0 = min(a0, max(v.start, lo))
		b0 = max(b0, min(v.end(), hi))
	}
	data := make([]byte, b0-a0)
	if err := run.fs.readFull(data, a0); err != nil {
		return err
	}
	ms := &MemorySource{data: data}
	run.st.PreloadedBytes += int64(len(data))

	for _, v := range conflicts {
		a, n := buf.Overlap(v.start, v.length, a0, b0-a0)
		part := v
		if a > v.start {
			part = run.split(v, a-v.start)
		}
		if n < part.length {
			run.split(part, n)
		}
		run.release(part)
		part.kind, part.file, part.mem, part.start = KindMemory, nil, ms, a-a0
		run.work = append(run.work, part)
	}
	run.r.log.Debug("save conflict preloaded",
		"path", run.fs.path, "dst", chunk.dst, "len", chunk.length, "preloaded", len(data), "pieces", len(conflicts))
	return nil
}

// write copies p to its destination in chunks of at most limit bytes. A
// move within the target file runs backwards when the destination lies
// above the source, like memmove.
func (run *saveRun) write(p *savePiece) error {
	fs := run.fs
	switch p.kind {
	case KindMemory:
		for off := int64(0); off < p.length; off += run.limit {
			k := min(run.limit, p.length-off)
			if err := fs.writeAt(p.mem.bytes(p.start+off, k), p.dst+off); err != nil {
				return err
			}
		}
	case KindFile:
		backward := p.file == fs && p.dst > p.start && p.dst < p.end()
		chunks := (p.length + run.limit - 1) / run.limit
		for i := int64(0); i < chunks; i++ {
			idx := i
			if backward {
				idx = chunks - 1 - i
			}
			off := idx * run.limit
			k := min(run.limit, p.length-off)
			b := run.buf[:k]
			if err := p.file.readFull(b, p.start+off); err != nil {
				return err
			}
			if err := fs.writeAt(b, p.dst+off); err != nil {
				return err
			}
		}
	default:
		inconsistent("writing %s piece", p.kind)
	}
	run.tracker.Add(p.dst, p.length)
	run.st.BytesWritten += p.length
	return nil
}

// planSiblings works out, before anything is written, where every segment of
// another document that reads the target file will find its bytes after the
// save. Ranges that the save moves are re-pointed to their new offsets using
// the destination of the piece that carries them; ranges that do not
// survive are read into memory now.
func (run *saveRun) planSiblings(ctx context.Context) ([]siblingEdit, error) {
	r := run.r
	var edits []siblingEdit
	for c := r.files[run.fs].Ascend(0); c.Next(); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := c.Value()
		s := r.seg(id)
		if s.doc == run.d {
			continue
		}
		parts, err := run.relocate(s.start, s.length)
		if err != nil {
			return nil, err
		}
		if len(parts) == 1 && parts[0].inFile && parts[0].start == s.start {
			continue
		}
		edits = append(edits, siblingEdit{id: id, parts: parts})
	}
	return edits, nil
}

func (run *saveRun) relocate(a, n int64) ([]siblingPart, error) {
	var parts []siblingPart
	b := a + n
	for p := a; p < b; {
		var best *savePiece
		bestEnd, next := p, b
		for c := run.coverage.Overlaps(p, b-p); c.Next(); {
			if c.Start() > p {
				next = c.Start()
				break
			}
			if c.End() > bestEnd {
				best, bestEnd = c.Value(), c.End()
			}
		}
		if best != nil {
			end := min(bestEnd, b)
			at := best.dst + (p - best.start)
			if k := len(parts) - 1; k >= 0 && parts[k].inFile && parts[k].start+parts[k].length == at {
				parts[k].length += end - p
			} else {
				parts = append(parts, siblingPart{inFile: true, start: at, length: end - p})
			}
			p = end
			continue
		}
		end := min(next, b)
		data := make([]byte, end-p)
		if err := run.fs.readFull(data, p); err != nil {
			return nil, err
		}
		parts = append(parts, siblingPart{length: end - p, data: data})
		run.st.SiblingBytesMaterialized += end - p
		p = end
	}
	return parts, nil
}

func (run *saveRun) applySiblings(edits []siblingEdit) {
	r := run.r
	for _, e := range edits {
		s := r.seg(e.id)
		d, next := s.doc, s.next
		for _, part := range e.parts {
			var id segID
			if part.inFile {
				id = r.createFileSegment(d, run.fs, part.start, part.length)
			} else {
				id = r.createPrivateMemory(d, part.data)
			}
			d.linkBefore(next, id)
		}
		d.unlink(e.id)
		r.dropSegment(e.id)
		d.bump()
		run.st.SiblingSegments++
	}
}

// resetToFile replaces the chain with one segment spanning the saved file.
func (d *Document) resetToFile() {
	size := d.size
	d.clearChain()
	if size > 0 {
		d.linkBefore(nilSeg, d.repo.createFileSegment(d, d.fs, 0, size))
		d.size = size
	}
	d.bump()
}
