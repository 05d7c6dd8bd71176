package delta

// MemorySource is a growable in-memory byte buffer. Any number of memory
// segments, possibly from different documents, may reference ranges of one
// source; the repository detaches a segment onto a private source before
// any byte it shares is changed.
//
// Mutation is reserved to the repository. Callers may read through a source
// obtained from SegmentInfo.
type MemorySource struct {
	repo *Repository
	data []byte
}

// Len returns the buffer length.
func (m *MemorySource) Len() int64 { return int64(len(m.data)) }

// ByteAt returns the byte at pos. pos must be in [0, Len()).
func (m *MemorySource) ByteAt(pos int64) byte { return m.data[pos] }

// ReadAt copies bytes starting at off into p.
func (m *MemorySource) ReadAt(p []byte, off int64) int {
	if off >= int64(len(m.data)) {
		return 0
	}
	return copy(p, m.data[off:])
}

// bytes returns the live slice [pos, pos+n). Callers must not retain it
// across mutations.
func (m *MemorySource) bytes(pos, n int64) []byte { return m.data[pos : pos+n] }

func (m *MemorySource) append(p []byte) { m.data = append(m.data, p...) }

// insert opens a gap of len(p) bytes at pos and copies p into it.
func (m *MemorySource) insert(pos int64, p []byte) {
	n := len(p)
	m.data = append(m.data, make([]byte, n)...)
	copy(m.data[pos+int64(n):], m.data[pos:int64(len(m.data))-int64(n)])
	copy(m.data[pos:], p)
}

// remove deletes [pos, pos+n) and closes the gap.
func (m *MemorySource) remove(pos, n int64) {
	m.data = append(m.data[:pos], m.data[pos+n:]...)
}
