package delta

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/joshuapare/deltakit/delta/interval"
)

// Repository owns every source, every per-source interval index and the
// registry of open documents. It is the only component that creates, resizes
// or drops segments, so the indices always describe exactly the segments
// linked into document chains.
//
// A Repository is NOT safe for concurrent use; callers serialize all access
// to it and to its documents.
type Repository struct {
	opts Options
	log  *slog.Logger

	segs []*segment
	free []segID

	files map[*FileSource]*interval.Tree[segID]
	mems  map[*MemorySource]*interval.Tree[segID]
	docs  []*Document

	closed bool
}

// NewRepository creates an empty repository. A nil opts uses DefaultOptions.
func NewRepository(opts *Options) *Repository {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	o = o.withDefaults()
	return &Repository{
		opts:  o,
		log:   o.Logger,
		segs:  []*segment{nil},
		files: make(map[*FileSource]*interval.Tree[segID]),
		mems:  make(map[*MemorySource]*interval.Tree[segID]),
	}
}

// Options returns the resolved options.
func (r *Repository) Options() Options { return r.opts }

// OpenFile opens path as a file source. ReadWrite takes an exclusive lock
// and fails with ErrLocked if the file is already open elsewhere.
func (r *Repository) OpenFile(path string, mode FileMode) (*FileSource, error) {
	if r.closed {
		return nil, ErrClosed
	}
	fs, err := openFileSource(r, path, mode)
	if err != nil {
		return nil, fmt.Errorf("open file source: %w", err)
	}
	r.files[fs] = interval.New[segID]()
	r.log.Debug("file source opened", "path", path, "mode", mode.String(), "size", fs.size)
	return fs, nil
}

// CloseFile closes fs. Every segment still referencing it, from any
// document, is first loaded into private memory so no document is left
// pointing at a closed file. Documents bound to fs are unbound.
func (r *Repository) CloseFile(fs *FileSource) error {
	if fs.repo != r {
		return ErrForeignSource
	}
	if fs.closed {
		return nil
	}
	if err := r.detachFileSource(fs); err != nil {
		return err
	}
	for _, d := range r.docs {
		if d.fs == fs {
			d.unbind()
		}
	}
	delete(r.files, fs)
	r.log.Debug("file source closed", "path", fs.path)
	return fs.close()
}

// detachFileSource converts every segment referencing fs into a memory
// segment holding the same bytes. Nothing is changed unless all reads succeed.
func (r *Repository) detachFileSource(fs *FileSource) error {
	tree := r.files[fs]
	if tree == nil || tree.Len() == 0 {
		return nil
	}
	if fs.damaged != nil {
		return fmt.Errorf("detach %s: %w", fs.path, ErrSourceDamaged)
	}

	type loaded struct {
		id   segID
		data []byte
	}
	var all []loaded
	for c := tree.Ascend(0); c.Next(); {
		data := make([]byte, c.Length())
		if err := fs.readFull(data, c.Start()); err != nil {
			return fmt.Errorf("detach %s: %w", fs.path, err)
		}
		all = append(all, loaded{id: c.Value(), data: data})
	}
	for _, l := range all {
		r.repoint(l.id, KindMemory, nil, r.newMemorySource(l.data), 0)
		r.seg(l.id).doc.bump()
	}
	return nil
}

// NewDocument creates an empty document with no file source.
func (r *Repository) NewDocument() *Document {
	d := &Document{repo: r}
	r.docs = append(r.docs, d)
	r.log.Debug("document created", "documents", len(r.docs))
	return d
}

// OpenDocument creates a document bound to fs whose content is the whole
// file.
func (r *Repository) OpenDocument(fs *FileSource) (*Document, error) {
	if fs.repo != r {
		return nil, ErrForeignSource
	}
	if err := fs.usable(); err != nil {
		return nil, err
	}
	d := r.NewDocument()
	d.bind(fs)
	if fs.size > 0 {
		d.linkBefore(nilSeg, r.createFileSegment(d, fs, 0, fs.size))
		d.size = fs.size
	}
	return d, nil
}

// Documents returns the open documents in creation order.
func (r *Repository) Documents() []*Document {
	return slices.Clone(r.docs)
}

// Close closes every document and file source.
func (r *Repository) Close() error {
	if r.closed {
		return nil
	}
	var errs []error
	for _, d := range slices.Clone(r.docs) {
		errs = append(errs, d.Close())
	}
	for fs := range r.files {
		errs = append(errs, fs.close())
		delete(r.files, fs)
	}
	r.closed = true
	return errors.Join(errs...)
}

// Validate checks every document chain and every interval index.
func (r *Repository) Validate() error {
	live := 0
	for _, d := range r.docs {
		if err := d.Validate(); err != nil {
			return err
		}
		live += d.count
	}
	indexed := 0
	for fs, t := range r.files {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: index of %s: %w", ErrCorrupt, fs.path, err)
		}
		indexed += t.Len()
	}
	for _, t := range r.mems {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: memory index: %w", ErrCorrupt, err)
		}
		if t.Len() == 0 {
			return fmt.Errorf("%w: empty memory source still registered", ErrCorrupt)
		}
		indexed += t.Len()
	}
	if live != indexed {
		return fmt.Errorf("%w: %d segments in chains, %d indexed", ErrCorrupt, live, indexed)
	}
	return nil
}

func (r *Repository) dropDocument(d *Document) {
	if i := slices.Index(r.docs, d); i >= 0 {
		r.docs = slices.Delete(r.docs, i, i+1)
	}
}

// fileInUse reports whether any segment or document still needs fs.
func (r *Repository) fileInUse(fs *FileSource) bool {
	if t := r.files[fs]; t != nil && t.Len() > 0 {
		return true
	}
	for _, d := range r.docs {
		if d.fs == fs {
			return true
		}
	}
	return false
}

// Segment lifecycle. Every change to a segment's source range goes through
// these helpers so the owning index is updated with it.

func (r *Repository) seg(id segID) *segment {
	if id == nilSeg || int(id) >= len(r.segs) || r.segs[id] == nil {
		inconsistent("segment %d is not allocated", id)
	}
	return r.segs[id]
}

func (r *Repository) alloc(s *segment) segID {
	if n := len(r.free); n > 0 {
		id := r.free[n-1]
		r.free = r.free[:n-1]
		r.segs[id] = s
		return id
	}
	r.segs = append(r.segs, s)
	return segID(len(r.segs) - 1)
}

func (r *Repository) index(s *segment) *interval.Tree[segID] {
	var t *interval.Tree[segID]
	switch s.kind {
	case KindFile:
		t = r.files[s.file]
	case KindMemory:
		t = r.mems[s.mem]
	}
	if t == nil {
		inconsistent("no index for %s segment", s.kind)
	}
	return t
}

func (r *Repository) newMemorySource(data []byte) *MemorySource {
	ms := &MemorySource{repo: r, data: data}
	r.mems[ms] = interval.New[segID]()
	return ms
}

func (r *Repository) register(s *segment) segID {
	if s.length <= 0 {
		inconsistent("creating %s segment of length %d", s.kind, s.length)
	}
	id := r.alloc(s)
	r.index(s).Insert(id, s.start, s.length)
	return id
}

// registerPieces allocates unlinked segments for pieces. Until they are
// linked into a chain they still hold their source ranges in the index.
func (r *Repository) registerPieces(pieces []segment) []segID {
	ids := make([]segID, len(pieces))
	for i := range pieces {
		p := pieces[i]
		ids[i] = r.register(&p)
	}
	return ids
}

func (r *Repository) createFileSegment(d *Document, fs *FileSource, start, n int64) segID {
	return r.register(&segment{kind: KindFile, file: fs, start: start, length: n, doc: d})
}

func (r *Repository) createMemorySegment(d *Document, ms *MemorySource, start, n int64) segID {
	return r.register(&segment{kind: KindMemory, mem: ms, start: start, length: n, doc: d})
}

// createPrivateMemory wraps data, which the repository takes ownership of,
// in a new memory source referenced by one new segment.
func (r *Repository) createPrivateMemory(d *Document, data []byte) segID {
	return r.createMemorySegment(d, r.newMemorySource(data), 0, int64(len(data)))
}

// copySegment creates a segment for d referencing [off, off+n) of id's range.
// No bytes are copied.
func (r *Repository) copySegment(d *Document, id segID, off, n int64) segID {
	s := r.seg(id)
	c := &segment{kind: s.kind, file: s.file, mem: s.mem, start: s.start + off, length: n, doc: d}
	return r.register(c)
}

func (r *Repository) dropSegment(id segID) {
	r.dropFromIndex(id)
	r.segs[id] = nil
	r.free = append(r.free, id)
}

func (r *Repository) resizeSegment(id segID, start, n int64) {
	s := r.seg(id)
	if n <= 0 {
		inconsistent("resizing segment %d to length %d", id, n)
	}
	if !r.index(s).Update(id, start, n) {
		inconsistent("segment %d missing from its %s index", id, s.kind)
	}
	s.start, s.length = start, n
}

// isShared reports whether another segment overlaps id's source range.
func (r *Repository) isShared(id segID) bool {
	s := r.seg(id)
	for c := r.index(s).Overlaps(s.start, s.length); c.Next(); {
		if c.Value() != id {
			return true
		}
	}
	return false
}

// soleOwner reports whether id is the only segment referencing its source.
func (r *Repository) soleOwner(id segID) bool {
	return r.index(r.seg(id)).Len() == 1
}

// ensureExclusive gives memory segment id sole ownership of its bytes before
// they are mutated. If another segment overlaps its range, id is moved onto a
// new private source holding a copy of its bytes. It reports whether a copy
// was made.
func (r *Repository) ensureExclusive(id segID) bool {
	s := r.seg(id)
	if s.kind != KindMemory {
		inconsistent("detaching %s segment %d", s.kind, id)
	}
	if !r.isShared(id) {
		return false
	}
	data := slices.Clone(s.mem.bytes(s.start, s.length))
	r.repoint(id, KindMemory, nil, r.newMemorySource(data), 0)
	return true
}

// dropFromIndex removes id from its index without freeing it, releasing an
// emptied memory source.
func (r *Repository) dropFromIndex(id segID) {
	s := r.seg(id)
	t := r.index(s)
	if !t.Remove(id) {
		inconsistent("segment %d missing from its %s index", id, s.kind)
	}
	if s.kind == KindMemory && t.Len() == 0 {
		delete(r.mems, s.mem)
	}
}

// shiftSegments moves every segment of ms starting at or after from by
// delta, except skip.
func (r *Repository) shiftSegments(ms *MemorySource, from, delta int64, skip segID) {
	t := r.mems[ms]
	var ids []segID
	for c := t.Ascend(from); c.Next(); {
		if c.Value() != skip {
			ids = append(ids, c.Value())
		}
	}
	for _, id := range ids {
		s := r.seg(id)
		r.resizeSegment(id, s.start+delta, s.length)
	}
}

// repoint moves segment id onto another source range in one index update.
func (r *Repository) repoint(id segID, kind SegmentKind, fs *FileSource, ms *MemorySource, start int64) {
	s := r.seg(id)
	r.dropFromIndex(id)
	s.kind, s.file, s.mem, s.start = kind, fs, ms, start
	r.index(s).Insert(id, s.start, s.length)
}
