package delta

import (
	"fmt"
	"io"
	"slices"

	"github.com/joshuapare/deltakit/internal/buf"
)

func (d *Document) checkInsert(op string, pos, n int64) error {
	if err := d.usable(); err != nil {
		return err
	}
	if n < 0 || pos < 0 || pos > d.size {
		return rangeErr(op, pos, n, d.size)
	}
	if _, ok := buf.AddOverflowSafe(d.size, n); !ok {
		return rangeErr(op, pos, n, d.size)
	}
	return nil
}

func (d *Document) checkRange(op string, pos, n int64) error {
	if err := d.usable(); err != nil {
		return err
	}
	if !buf.Has(d.size, pos, n) {
		return rangeErr(op, pos, n, d.size)
	}
	return nil
}

// Insert inserts a copy of data at pos. pos == Size() appends.
func (d *Document) Insert(pos int64, data []byte) error {
	if err := d.checkInsert("insert", pos, int64(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	d.insertBytes(pos, slices.Clone(data))
	d.notify(ChangeInsert, pos, int64(len(data)))
	return nil
}

// InsertZeros inserts n zero bytes at pos.
func (d *Document) InsertZeros(pos, n int64) error {
	if err := d.checkInsert("insert zeros", pos, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	d.insertRepeated(pos, n, 0)
	d.notify(ChangeInsert, pos, n)
	return nil
}

// InsertUninitialized inserts n bytes of unspecified content at pos.
// Memory is always zeroed, so the bytes read as zero.
func (d *Document) InsertUninitialized(pos, n int64) error {
	return d.InsertZeros(pos, n)
}

// InsertDocument inserts [off, off+n) of src at pos by reference: the new
// segments share src's sources and no bytes are copied. src may be d.
func (d *Document) InsertDocument(pos int64, src *Document, off, n int64) error {
	if src.repo != d.repo {
		return ErrForeignDocument
	}
	if err := src.checkRange("insert document", off, n); err != nil {
		return err
	}
	if err := d.checkInsert("insert document", pos, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	d.linkSegments(pos, d.repo.registerPieces(src.pieces(off, n)))
	d.notify(ChangeInsert, pos, n)
	return nil
}

// InsertFrom inserts exactly n bytes read from r at pos. Nothing is inserted
// if r ends early. A negative n (unknown length) is unsupported.
func (d *Document) InsertFrom(pos int64, r io.Reader, n int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("insert from stream of unknown length: %w", ErrUnsupported)
	}
	if err := d.checkInsert("insert from", pos, n); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	var data []byte
	chunk := make([]byte, min(n, int64(d.repo.opts.ProcessingLimit)))
	for int64(len(data)) < n {
		k := min(int64(len(chunk)), n-int64(len(data)))
		read, err := io.ReadFull(r, chunk[:k])
		data = append(data, chunk[:read]...)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return int64(len(data)), fmt.Errorf("insert from: %w", err)
		}
	}
	d.insertBytes(pos, data)
	d.notify(ChangeInsert, pos, n)
	return n, nil
}

// Remove deletes [pos, pos+n).
func (d *Document) Remove(pos, n int64) error {
	if err := d.checkRange("remove", pos, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	d.removeRange(pos, n)
	d.notify(ChangeRemove, pos, n)
	return nil
}

// Replace overwrites [pos, pos+len(data)) with data. The range must lie
// within the document.
func (d *Document) Replace(pos int64, data []byte) error {
	n := int64(len(data))
	if err := d.checkRange("replace", pos, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	d.overwrite(pos, n, func(dst []byte) { copy(dst, data) })
	d.notify(ChangeModify, pos, n)
	return nil
}

// ReplaceDocument overwrites [pos, pos+n) with [off, off+n) of src by
// reference.
func (d *Document) ReplaceDocument(pos int64, src *Document, off, n int64) error {
	if src.repo != d.repo {
		return ErrForeignDocument
	}
	if err := src.checkRange("replace document", off, n); err != nil {
		return err
	}
	if err := d.checkRange("replace document", pos, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	// Registered pieces keep their source ranges indexed while the removal
	// runs, even when src is d.
	ids := d.repo.registerPieces(src.pieces(off, n))
	d.removeRange(pos, n)
	d.linkSegments(pos, ids)
	d.notify(ChangeModify, pos, n)
	return nil
}

// SetByte sets the byte at pos. pos == Size() appends one byte.
func (d *Document) SetByte(pos int64, v byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	if pos == d.size {
		d.insertBytes(pos, []byte{v})
		d.notify(ChangeInsert, pos, 1)
		return nil
	}
	if err := d.checkRange("set byte", pos, 1); err != nil {
		return err
	}
	d.overwrite(pos, 1, func(dst []byte) { dst[0] = v })
	d.notify(ChangeModify, pos, 1)
	return nil
}

// Fill sets [pos, pos+n) to v, growing the document if the range extends
// past its end.
func (d *Document) Fill(pos, n int64, v byte) error {
	if err := d.checkInsert("fill", pos, 0); err != nil {
		return err
	}
	if n < 0 {
		return rangeErr("fill", pos, n, d.size)
	}
	if _, ok := buf.AddOverflowSafe(pos, n); !ok {
		return rangeErr("fill", pos, n, d.size)
	}
	inside := min(n, d.size-pos)
	if inside > 0 {
		d.overwrite(pos, inside, func(dst []byte) {
			for i := range dst {
				dst[i] = v
			}
		})
		d.notify(ChangeModify, pos, inside)
	}
	if extra := n - inside; extra > 0 {
		at := d.size
		d.insertRepeated(at, extra, v)
		d.notify(ChangeInsert, at, extra)
	}
	return nil
}

// SetSize truncates the document or grows it with zero bytes.
func (d *Document) SetSize(n int64) error {
	if err := d.usable(); err != nil {
		return err
	}
	switch {
	case n < 0:
		return rangeErr("set size", n, 0, d.size)
	case n < d.size:
		return d.Remove(n, d.size-n)
	case n > d.size:
		return d.InsertZeros(d.size, n-d.size)
	}
	return nil
}

// Clear removes all content.
func (d *Document) Clear() {
	if d.closed || d.size == 0 {
		return
	}
	d.clearChain()
	d.notify(ChangeReset, 0, 0)
}

// Load replaces the content with everything read from r until EOF.
func (d *Document) Load(r io.Reader) (int64, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	d.clearChain()
	chunk := make([]byte, d.repo.opts.ProcessingLimit)
	var total int64
	var err error
	for {
		var n int
		n, err = r.Read(chunk)
		if n > 0 {
			d.insertBytes(d.size, slices.Clone(chunk[:n]))
			total += int64(n)
		}
		if err != nil {
			break
		}
	}
	d.notify(ChangeReset, 0, d.size)
	if err == io.EOF {
		err = nil
	}
	return total, err
}

// insertBytes inserts data, which d takes ownership of, at pos.
func (d *Document) insertBytes(pos int64, data []byte) {
	n := int64(len(data))
	r := d.repo
	if !d.insertIntoMemory(pos, data) {
		next := d.splitAt(pos)
		id := r.createPrivateMemory(d, data)
		d.linkBefore(next, id)
		d.size += n
		d.bump()
		d.anchor(id, pos)
	}
	d.mergeAt(pos + n)
	d.mergeAt(pos)
}

// insertIntoMemory grows the memory segment ending at or spanning pos in
// place. Appending to a segment that ends its source only extends the
// buffer; inserting elsewhere shifts a small buffer and the other segments
// after the insertion point.
func (d *Document) insertIntoMemory(pos int64, data []byte) bool {
	if pos == 0 {
		return false
	}
	r := d.repo
	id, segPos := d.locate(&d.cur, pos-1)
	s := r.seg(id)
	if s.kind != KindMemory {
		return false
	}
	n := int64(len(data))
	off := pos - segPos
	switch {
	case off == s.length && s.end() == s.mem.Len():
		s.mem.append(data)
	case s.mem.Len() <= inplaceInsertLimit:
		r.ensureExclusive(id)
		srcPos := s.start + off
		r.shiftSegments(s.mem, srcPos, n, id)
		s.mem.insert(srcPos, data)
	default:
		return false
	}
	r.resizeSegment(id, s.start, s.length+n)
	d.size += n
	d.bump()
	d.anchor(id, segPos)
	return true
}

// insertRepeated inserts n copies of v at pos, one ProcessingLimit-sized
// buffer at a time. Consecutive buffers grow one memory source in place.
func (d *Document) insertRepeated(pos, n int64, v byte) {
	limit := int64(d.repo.opts.ProcessingLimit)
	for off := int64(0); off < n; {
		k := min(limit, n-off)
		data := make([]byte, k)
		if v != 0 {
			for i := range data {
				data[i] = v
			}
		}
		d.insertBytes(pos+off, data)
		off += k
	}
}

// linkSegments links registered, unlinked segments at pos in order.
func (d *Document) linkSegments(pos int64, ids []segID) {
	r := d.repo
	next := d.splitAt(pos)
	var total int64
	for _, id := range ids {
		d.linkBefore(next, id)
		total += r.seg(id).length
	}
	d.size += total
	d.bump()
	d.mergeAt(pos + total)
	d.mergeAt(pos)
}

// removeRange drops [pos, pos+n), which must be in range and non-empty.
func (d *Document) removeRange(pos, n int64) {
	r := d.repo
	id, segPos := d.locate(&d.cur, pos)
	s := r.seg(id)
	inside := pos+n <= segPos+s.length && n < s.length
	if s.kind == KindMemory && inside && r.soleOwner(id) {
		s.mem.remove(s.start+pos-segPos, n)
		r.resizeSegment(id, s.start, s.length-n)
		d.size -= n
		d.bump()
		d.anchor(id, segPos)
		return
	}

	end := d.splitAt(pos + n)
	for id := d.splitAt(pos); id != end; {
		next := r.seg(id).next
		d.unlink(id)
		r.dropSegment(id)
		id = next
	}
	d.size -= n
	d.bump()
	d.mergeAt(pos)
}

// overwrite sets [pos, pos+n) through set. A range inside one memory
// segment is written in place once the segment owns its bytes; anything else
// becomes a remove followed by an insert of new bytes.
func (d *Document) overwrite(pos, n int64, set func([]byte)) {
	r := d.repo
	id, segPos := d.locate(&d.cur, pos)
	s := r.seg(id)
	if s.kind == KindMemory && pos+n <= segPos+s.length {
		if r.ensureExclusive(id) {
			d.bump()
			d.anchor(id, segPos)
		}
		set(s.mem.bytes(s.start+pos-segPos, n))
		return
	}
	data := make([]byte, n)
	set(data)
	d.removeRange(pos, n)
	d.insertBytes(pos, data)
}
