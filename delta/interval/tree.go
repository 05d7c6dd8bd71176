// Package interval implements the per-source interval index: an augmented
// treap ordering ranges by start position, where every node caches the
// maximum end position of its subtree.
//
// Values are opaque comparable handles (segment IDs, save pieces). Each value
// may be present at most once. Overlap and ordered traversal go through an
// explicit Cursor rather than hidden focus state on the tree.
package interval

import (
	"errors"
	"fmt"
	"math"
)

// Tree is an interval index keyed by [start, start+length).
//
// Entries are ordered by (start, length, insertion sequence), so equal ranges
// keep insertion order. Tree is NOT safe for concurrent use.
type Tree[V comparable] struct {
	root  *node[V]
	nodes map[V]*node[V]
	seq   uint64
}

type key struct {
	start  int64
	length int64
	seq    uint64
}

func (a key) less(b key) bool {
	if a.start != b.start {
		return a.start < b.start
	}
	if a.length != b.length {
		return a.length < b.length
	}
	return a.seq < b.seq
}

type node[V comparable] struct {
	key
	prio   uint64
	maxEnd int64
	left   *node[V]
	right  *node[V]
	value  V
}

func (n *node[V]) end() int64 { return n.start + n.length }

// fix recomputes the cached subtree maximum from the children.
func (n *node[V]) fix() {
	m := n.end()
	if n.left != nil && n.left.maxEnd > m {
		m = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd > m {
		m = n.right.maxEnd
	}
	n.maxEnd = m
}

// New returns an empty tree. The zero Tree is also ready to use.
func New[V comparable]() *Tree[V] {
	return &Tree[V]{nodes: make(map[V]*node[V])}
}

// Len returns the number of entries.
func (t *Tree[V]) Len() int { return len(t.nodes) }

// Has reports whether v is indexed.
func (t *Tree[V]) Has(v V) bool {
	_, ok := t.nodes[v]
	return ok
}

// Get returns the range recorded for v.
func (t *Tree[V]) Get(v V) (start, length int64, ok bool) {
	n, ok := t.nodes[v]
	if !ok {
		return 0, 0, false
	}
	return n.start, n.length, true
}

// Insert adds v with range [start, start+length). It returns false if v is
// already present.
func (t *Tree[V]) Insert(v V, start, length int64) bool {
	if t.nodes == nil {
		t.nodes = make(map[V]*node[V])
	}
	if _, ok := t.nodes[v]; ok {
		return false
	}
	t.seq++
	n := &node[V]{
		key:   key{start: start, length: length, seq: t.seq},
		prio:  splitmix64(t.seq),
		value: v,
	}
	n.fix()
	l, r := split(t.root, n.key)
	t.root = merge(merge(l, n), r)
	t.nodes[v] = n
	return true
}

// Remove deletes v. It returns false if v is not present.
func (t *Tree[V]) Remove(v V) bool {
	n, ok := t.nodes[v]
	if !ok {
		return false
	}
	t.root = remove(t.root, n.key)
	delete(t.nodes, v)
	return true
}

// Update moves v to a new range. It is a remove followed by a reinsert, so
// the cached maxima along both paths are repaired.
func (t *Tree[V]) Update(v V, start, length int64) bool {
	if !t.Remove(v) {
		return false
	}
	return t.Insert(v, start, length)
}

// First returns the entry with the lowest key.
func (t *Tree[V]) First() (v V, start, length int64, ok bool) {
	n := t.root
	if n == nil {
		return v, 0, 0, false
	}
	for n.left != nil {
		n = n.left
	}
	return n.value, n.start, n.length, true
}

// Overlaps returns a cursor over every entry intersecting [pos, pos+length),
// in key order. Zero or negative length queries match nothing.
func (t *Tree[V]) Overlaps(pos, length int64) *Cursor[V] {
	return &Cursor[V]{t: t, lo: pos, hi: pos + length, overlap: true}
}

// Ascend returns a cursor over every entry whose start is >= from, in key
// order.
func (t *Tree[V]) Ascend(from int64) *Cursor[V] {
	return &Cursor[V]{t: t, lo: from, hi: math.MaxInt64}
}

// Cursor iterates entries in key order. It remembers the key of the entry it
// last returned rather than a node pointer, so the tree may be modified
// between calls to Next: removed entries are never revisited and entries
// inserted after the cursor's position are returned when reached.
type Cursor[V comparable] struct {
	t       *Tree[V]
	lo, hi  int64
	overlap bool
	started bool
	last    key
	cur     *node[V]
}

// Next advances to the next matching entry and reports whether one exists.
func (c *Cursor[V]) Next() bool {
	if c.overlap {
		if c.hi <= c.lo {
			c.cur = nil
			return false
		}
		c.cur = firstOverlapAfter(c.t.root, c.last, c.started, c.lo, c.hi)
	} else {
		if !c.started {
			c.last = key{start: c.lo, length: math.MinInt64}
			c.started = true
		}
		c.cur = successor(c.t.root, c.last)
	}
	if c.cur == nil {
		return false
	}
	c.last = c.cur.key
	c.started = true
	return true
}

// Value returns the current entry's value.
func (c *Cursor[V]) Value() V { return c.cur.value }

// Start returns the current entry's start position.
func (c *Cursor[V]) Start() int64 { return c.cur.start }

// Length returns the current entry's length.
func (c *Cursor[V]) Length() int64 { return c.cur.length }

// End returns the current entry's end position (exclusive).
func (c *Cursor[V]) End() int64 { return c.cur.end() }

// firstOverlapAfter finds the lowest-keyed node intersecting [lo, hi) whose
// key is strictly greater than after (or any key when !bounded).
func firstOverlapAfter[V comparable](n *node[V], after key, bounded bool, lo, hi int64) *node[V] {
	for n != nil {
		if n.maxEnd <= lo {
			return nil
		}
		if bounded && !after.less(n.key) {
			n = n.right
			continue
		}
		if r := firstOverlapAfter(n.left, after, bounded, lo, hi); r != nil {
			return r
		}
		if n.start >= hi {
			return nil
		}
		if n.end() > lo {
			return n
		}
		n = n.right
	}
	return nil
}

func successor[V comparable](n *node[V], after key) *node[V] {
	var best *node[V]
	for n != nil {
		if after.less(n.key) {
			best = n
			n = n.left
		} else {
			n = n.right
		}
	}
	return best
}

// split partitions n into keys < k and keys >= k.
func split[V comparable](n *node[V], k key) (*node[V], *node[V]) {
	if n == nil {
		return nil, nil
	}
	if n.key.less(k) {
		l, r := split(n.right, k)
		n.right = l
		n.fix()
		return n, r
	}
	l, r := split(n.left, k)
	n.left = r
	n.fix()
	return l, n
}

// merge joins a and b where every key in a is below every key in b.
func merge[V comparable](a, b *node[V]) *node[V] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.prio > b.prio {
		a.right = merge(a.right, b)
		a.fix()
		return a
	}
	b.left = merge(a, b.left)
	b.fix()
	return b
}

func remove[V comparable](n *node[V], k key) *node[V] {
	if n == nil {
		panic(fmt.Sprintf("interval: key %+v indexed but not in tree", k))
	}
	switch {
	case k.less(n.key):
		n.left = remove(n.left, k)
	case n.key.less(k):
		n.right = remove(n.right, k)
	default:
		return merge(n.left, n.right)
	}
	n.fix()
	return n
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// ErrCorrupt is returned by Validate when a structural invariant is broken.
var ErrCorrupt = errors.New("interval: tree corrupt")

// Validate checks ordering, heap priority, cached maxima and the value map.
func (t *Tree[V]) Validate() error {
	count := 0
	var prev *key
	var walk func(n *node[V]) error
	walk = func(n *node[V]) error {
		if n == nil {
			return nil
		}
		if err := walk(n.left); err != nil {
			return err
		}
		count++
		if prev != nil && !prev.less(n.key) {
			return fmt.Errorf("%w: key %+v out of order", ErrCorrupt, n.key)
		}
		k := n.key
		prev = &k
		want := n.end()
		for _, c := range []*node[V]{n.left, n.right} {
			if c == nil {
				continue
			}
			if c.prio > n.prio {
				return fmt.Errorf("%w: heap order broken at %+v", ErrCorrupt, n.key)
			}
			if c.maxEnd > want {
				want = c.maxEnd
			}
		}
		if n.maxEnd != want {
			return fmt.Errorf("%w: max end %d at %+v, want %d", ErrCorrupt, n.maxEnd, n.key, want)
		}
		if t.nodes[n.value] != n {
			return fmt.Errorf("%w: value map out of sync at %+v", ErrCorrupt, n.key)
		}
		return walk(n.right)
	}
	if err := walk(t.root); err != nil {
		return err
	}
	if count != len(t.nodes) {
		return fmt.Errorf("%w: %d nodes reachable, %d indexed", ErrCorrupt, count, len(t.nodes))
	}
	return nil
}
