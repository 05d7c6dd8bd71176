package delta

// window is a position cursor over a document chain: the segment holding a
// document offset together with that segment's own document offset. It is
// valid only while version matches the document's, so a structural edit
// silently invalidates every other window.
type window struct {
	seg     segID
	pos     int64
	version uint64
}

// bump invalidates every window of d.
func (d *Document) bump() { d.version++ }

// anchor points the edit window at a segment whose document offset is known.
func (d *Document) anchor(id segID, pos int64) {
	d.cur = window{seg: id, pos: pos, version: d.version}
}

// locate returns the segment covering pos and its document offset, moving w
// there. pos == Size() yields (nilSeg, Size()). Sequential access walks from
// the previous position; a stale or distant window restarts at the nearer end.
func (d *Document) locate(w *window, pos int64) (segID, int64) {
	if pos >= d.size {
		return nilSeg, d.size
	}
	r := d.repo
	if w.version != d.version || w.seg == nilSeg || abs64(pos-w.pos) > min(pos, d.size-pos) {
		if pos < d.size-pos {
			*w = window{seg: d.head, pos: 0, version: d.version}
		} else {
			*w = window{seg: d.tail, pos: d.size - r.seg(d.tail).length, version: d.version}
		}
	}
	s := r.seg(w.seg)
	for pos < w.pos {
		w.seg = s.prev
		s = r.seg(w.seg)
		w.pos -= s.length
	}
	for pos >= w.pos+s.length {
		w.pos += s.length
		w.seg = s.next
		s = r.seg(w.seg)
	}
	return w.seg, w.pos
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// linkBefore inserts id in front of next, or at the tail when next is nilSeg.
func (d *Document) linkBefore(next, id segID) {
	r := d.repo
	s := r.seg(id)
	s.doc = d
	s.next = next
	if next == nilSeg {
		s.prev = d.tail
		if d.tail != nilSeg {
			r.seg(d.tail).next = id
		} else {
			d.head = id
		}
		d.tail = id
	} else {
		n := r.seg(next)
		s.prev = n.prev
		if n.prev != nilSeg {
			r.seg(n.prev).next = id
		} else {
			d.head = id
		}
		n.prev = id
	}
	d.count++
}

func (d *Document) unlink(id segID) {
	r := d.repo
	s := r.seg(id)
	if s.prev != nilSeg {
		r.seg(s.prev).next = s.next
	} else {
		d.head = s.next
	}
	if s.next != nilSeg {
		r.seg(s.next).prev = s.prev
	} else {
		d.tail = s.prev
	}
	s.prev, s.next = nilSeg, nilSeg
	d.count--
}

// splitAt makes pos a segment boundary and returns the segment starting
// there, or nilSeg when pos == Size().
func (d *Document) splitAt(pos int64) segID {
	id, segPos := d.locate(&d.cur, pos)
	if id == nilSeg || segPos == pos {
		return id
	}
	r := d.repo
	s := r.seg(id)
	off := pos - segPos
	tail := r.copySegment(d, id, off, s.length-off)
	r.resizeSegment(id, s.start, off)
	d.linkBefore(s.next, tail)
	d.bump()
	d.anchor(tail, pos)
	return tail
}

// mergeAt joins the segments meeting at pos when the left one ends exactly
// where the right one starts in the same source.
func (d *Document) mergeAt(pos int64) {
	if pos <= 0 || pos >= d.size {
		return
	}
	id, segPos := d.locate(&d.cur, pos)
	if segPos != pos {
		return
	}
	r := d.repo
	b := r.seg(id)
	if b.prev == nilSeg {
		return
	}
	a := r.seg(b.prev)
	if !a.sameSource(b) || a.end() != b.start {
		return
	}
	left, aLen := b.prev, a.length
	r.resizeSegment(left, a.start, aLen+b.length)
	d.unlink(id)
	r.dropSegment(id)
	d.bump()
	d.anchor(left, pos-aLen)
}

// clearChain drops every segment of d.
func (d *Document) clearChain() {
	r := d.repo
	for id := d.head; id != nilSeg; {
		next := r.seg(id).next
		r.dropSegment(id)
		id = next
	}
	d.head, d.tail, d.count, d.size = nilSeg, nilSeg, 0, 0
	d.bump()
}
