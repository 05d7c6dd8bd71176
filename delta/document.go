package delta

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/joshuapare/deltakit/internal/buf"
	"github.com/joshuapare/deltakit/internal/writer"
)

// Document is an editable byte sequence backed by a chain of segments. Edits
// cost in proportion to the edited range, not to the document size.
//
// A Document is NOT safe for concurrent use.
type Document struct {
	repo *Repository
	fs   *FileSource

	cancelCache func()

	head, tail segID
	count      int
	size       int64

	version uint64
	cur     window

	listeners    []changeListener
	nextListener int

	closed bool
}

// ChangeKind classifies a content change.
type ChangeKind int

const (
	ChangeInsert ChangeKind = iota + 1
	ChangeRemove
	ChangeModify
	// ChangeReset reports that the whole content was replaced.
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeRemove:
		return "remove"
	case ChangeModify:
		return "modify"
	case ChangeReset:
		return "reset"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change describes one content change. For ChangeReset, Len is the new size.
type Change struct {
	Kind ChangeKind
	Pos  int64
	Len  int64
}

type changeListener struct {
	id int
	fn func(Change)
}

// OnChange registers fn to be called after every content change.
func (d *Document) OnChange(fn func(Change)) (cancel func()) {
	d.nextListener++
	id := d.nextListener
	d.listeners = append(d.listeners, changeListener{id: id, fn: fn})
	return func() {
		for i, l := range d.listeners {
			if l.id == id {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

func (d *Document) notify(kind ChangeKind, pos, n int64) {
	for _, l := range append([]changeListener(nil), d.listeners...) {
		l.fn(Change{Kind: kind, Pos: pos, Len: n})
	}
}

// Repository returns the owning repository.
func (d *Document) Repository() *Repository { return d.repo }

// FileSource returns the bound file source, or nil.
func (d *Document) FileSource() *FileSource { return d.fs }

// SetFileSource binds d to fs, which Save then writes into. A nil fs unbinds.
// The content is unchanged.
func (d *Document) SetFileSource(fs *FileSource) error {
	if err := d.usable(); err != nil {
		return err
	}
	if fs != nil && fs.repo != d.repo {
		return ErrForeignSource
	}
	d.unbind()
	if fs != nil {
		d.bind(fs)
	}
	return nil
}

func (d *Document) bind(fs *FileSource) {
	d.fs = fs
	d.cancelCache = fs.OnCacheClear(d.bump)
}

func (d *Document) unbind() {
	if d.cancelCache != nil {
		d.cancelCache()
		d.cancelCache = nil
	}
	d.fs = nil
}

func (d *Document) usable() error {
	if d.closed {
		return fmt.Errorf("document: %w", ErrClosed)
	}
	return nil
}

// Size returns the document length in bytes.
func (d *Document) Size() int64 { return d.size }

// IsEmpty reports whether the document has no bytes.
func (d *Document) IsEmpty() bool { return d.size == 0 }

// ByteAt returns the byte at pos.
func (d *Document) ByteAt(pos int64) (byte, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	if pos < 0 || pos >= d.size {
		return 0, rangeErr("byte at", pos, 0, d.size)
	}
	return d.byteAt(&d.cur, pos)
}

func (d *Document) byteAt(w *window, pos int64) (byte, error) {
	id, segPos := d.locate(w, pos)
	s := d.repo.seg(id)
	if s.kind == KindMemory {
		return s.mem.ByteAt(s.start + pos - segPos), nil
	}
	return s.file.ByteAt(s.start + pos - segPos)
}

// ReadAt implements io.ReaderAt.
func (d *Document) ReadAt(p []byte, off int64) (int, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	return d.readAt(&d.cur, p, off)
}

func (d *Document) readAt(w *window, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, rangeErr("read", off, int64(len(p)), d.size)
	}
	if off >= d.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	want := min(int64(len(p)), d.size-off)
	r := d.repo
	n := int64(0)
	for n < want {
		pos := off + n
		id, segPos := d.locate(w, pos)
		s := r.seg(id)
		srcPos := s.start + pos - segPos
		k := min(want-n, segPos+s.length-pos)
		if s.kind == KindMemory {
			copy(p[n:n+k], s.mem.bytes(srcPos, k))
		} else if _, err := s.file.ReadAt(p[n:n+k], srcPos); err != nil {
			return int(n), err
		}
		n += k
	}
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// CopyTo copies n bytes starting at pos into target[offset:].
func (d *Document) CopyTo(pos int64, target []byte, offset int, n int64) error {
	if err := d.usable(); err != nil {
		return err
	}
	if !buf.Has(d.size, pos, n) {
		return rangeErr("copy to buffer", pos, n, d.size)
	}
	dst, ok := buf.Slice(target, int64(offset), n)
	if !ok {
		return fmt.Errorf("copy to buffer: target too small: %w", io.ErrShortBuffer)
	}
	_, err := d.ReadAt(dst, pos)
	return err
}

// WriteTo implements io.WriterTo, streaming the whole content to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	r := d.repo
	chunk := make([]byte, r.opts.ProcessingLimit)
	var total int64
	for id := d.head; id != nilSeg; id = r.seg(id).next {
		s := r.seg(id)
		if s.kind == KindMemory {
			n, err := w.Write(s.mem.bytes(s.start, s.length))
			total += int64(n)
			if err != nil {
				return total, err
			}
			continue
		}
		for off := int64(0); off < s.length; {
			k := min(int64(len(chunk)), s.length-off)
			if _, err := s.file.ReadAt(chunk[:k], s.start+off); err != nil {
				return total, err
			}
			n, err := w.Write(chunk[:k])
			total += int64(n)
			if err != nil {
				return total, err
			}
			off += k
		}
	}
	return total, nil
}

// Bytes returns the whole content as one slice.
func (d *Document) Bytes() ([]byte, error) {
	out := make([]byte, d.size)
	if _, err := d.ReadAt(out, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

// Digest returns the xxhash64 of the content.
func (d *Document) Digest() (uint64, error) {
	h := xxhash.New()
	if _, err := d.WriteTo(h); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// Copy returns a new unbound document with the same content. Segments are
// shared by reference; no bytes are copied until one side writes.
func (d *Document) Copy() (*Document, error) {
	return d.CopyRange(0, d.size)
}

// CopyRange returns a new unbound document holding [pos, pos+n).
func (d *Document) CopyRange(pos, n int64) (*Document, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	if !buf.Has(d.size, pos, n) {
		return nil, rangeErr("copy range", pos, n, d.size)
	}
	c := d.repo.NewDocument()
	for _, id := range d.repo.registerPieces(d.pieces(pos, n)) {
		c.linkBefore(nilSeg, id)
	}
	c.size = n
	return c, nil
}

// pieces describes [pos, pos+n) as detached segment values, in order.
func (d *Document) pieces(pos, n int64) []segment {
	if n == 0 {
		return nil
	}
	r := d.repo
	var out []segment
	id, segPos := d.locate(&d.cur, pos)
	for n > 0 {
		s := r.seg(id)
		off := pos - segPos
		k := min(n, s.length-off)
		out = append(out, segment{kind: s.kind, file: s.file, mem: s.mem, start: s.start + off, length: k})
		pos += k
		n -= k
		segPos += s.length
		id = s.next
	}
	return out
}

// Segments describes the current chain.
func (d *Document) Segments() []SegmentInfo {
	r := d.repo
	out := make([]SegmentInfo, 0, d.count)
	var pos int64
	for id := d.head; id != nilSeg; {
		s := r.seg(id)
		out = append(out, SegmentInfo{
			Kind: s.kind, Offset: pos, Start: s.start, Length: s.length,
			File: s.file, Memory: s.mem,
		})
		pos += s.length
		id = s.next
	}
	return out
}

// Save writes the content back into the bound file source in place.
func (d *Document) Save(ctx context.Context) (*SaveStats, error) {
	return d.repo.SaveDocument(ctx, d)
}

// SaveAs writes the content to path atomically through a temp file. The
// document stays bound to its current file source.
func (d *Document) SaveAs(path string) error {
	if err := d.usable(); err != nil {
		return err
	}
	n, err := (&writer.FileWriter{Path: path}).WriteFrom(d)
	if err != nil {
		return fmt.Errorf("save as %s: %w", path, err)
	}
	d.repo.log.Debug("document saved as", "path", path, "bytes", n)
	return nil
}

// Close disposes of d, dropping its segments. Every file source that d was
// bound to or read from is closed too once nothing else uses it.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	r := d.repo
	files := d.fileSources()
	d.clearChain()
	d.unbind()
	d.listeners = nil
	d.closed = true
	r.dropDocument(d)
	r.log.Debug("document disposed", "documents", len(r.docs), "files", len(files))
	var first error
	for _, fs := range files {
		if fs.closed || r.fileInUse(fs) {
			continue
		}
		if err := r.CloseFile(fs); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// fileSources lists the bound file source and every file source the chain
// reads from, without duplicates.
func (d *Document) fileSources() []*FileSource {
	var out []*FileSource
	if d.fs != nil {
		out = append(out, d.fs)
	}
	for id := d.head; id != nilSeg; id = d.repo.seg(id).next {
		if fs := d.repo.seg(id).file; fs != nil && !slices.Contains(out, fs) {
			out = append(out, fs)
		}
	}
	return out
}

// Validate checks chain links, sizes, index membership and the edit window.
func (d *Document) Validate() error {
	r := d.repo
	var (
		pos   int64
		count int
		prev  = nilSeg
		curOK = d.cur.version != d.version || d.cur.seg == nilSeg
	)
	for id := d.head; id != nilSeg; {
		if int(id) >= len(r.segs) || r.segs[id] == nil {
			return fmt.Errorf("%w: chain links freed segment %d", ErrCorrupt, id)
		}
		s := r.segs[id]
		switch {
		case s.prev != prev:
			return fmt.Errorf("%w: segment %d prev link %d, want %d", ErrCorrupt, id, s.prev, prev)
		case s.length <= 0:
			return fmt.Errorf("%w: segment %d has length %d", ErrCorrupt, id, s.length)
		case s.kind != KindFile && s.kind != KindMemory:
			return fmt.Errorf("%w: %s segment %d in chain", ErrCorrupt, s.kind, id)
		case s.doc != d:
			return fmt.Errorf("%w: segment %d owned by another document", ErrCorrupt, id)
		}
		start, length, ok := r.index(s).Get(id)
		if !ok || start != s.start || length != s.length {
			return fmt.Errorf("%w: segment %d [%d,+%d) indexed as [%d,+%d) (present=%v)",
				ErrCorrupt, id, s.start, s.length, start, length, ok)
		}
		if s.kind == KindMemory && s.end() > s.mem.Len() {
			return fmt.Errorf("%w: segment %d ends past its memory source", ErrCorrupt, id)
		}
		if id == d.cur.seg && d.cur.version == d.version {
			curOK = d.cur.pos == pos
		}
		pos += s.length
		count++
		prev = id
		id = s.next
	}
	switch {
	case prev != d.tail:
		return fmt.Errorf("%w: tail %d, chain ends at %d", ErrCorrupt, d.tail, prev)
	case pos != d.size:
		return fmt.Errorf("%w: chain holds %d bytes, size is %d", ErrCorrupt, pos, d.size)
	case count != d.count:
		return fmt.Errorf("%w: chain has %d segments, count is %d", ErrCorrupt, count, d.count)
	case !curOK:
		return fmt.Errorf("%w: edit window at segment %d offset %d is stale", ErrCorrupt, d.cur.seg, d.cur.pos)
	}
	return nil
}
