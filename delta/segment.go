package delta

import "fmt"

// SegmentKind identifies where a segment's bytes live.
type SegmentKind uint8

const (
	// KindFile segments reference a byte range of a file source.
	KindFile SegmentKind = iota + 1
	// KindMemory segments reference a byte range of a memory source.
	KindMemory
	// KindSpace marks a destination range already written during a save.
	// It never appears in a document chain.
	KindSpace
)

func (k SegmentKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindMemory:
		return "memory"
	case KindSpace:
		return "space"
	default:
		return fmt.Sprintf("SegmentKind(%d)", uint8(k))
	}
}

// segID addresses a segment in the repository arena. Zero is the nil link.
type segID uint32

const nilSeg segID = 0

// segment is one contiguous range of a single source, linked into exactly
// one document chain. Its position in the document is the running sum of the
// lengths before it and is never stored.
type segment struct {
	kind   SegmentKind
	file   *FileSource
	mem    *MemorySource
	start  int64
	length int64
	prev   segID
	next   segID
	doc    *Document
}

func (s *segment) end() int64 { return s.start + s.length }

// sameSource reports whether s and o reference the same source.
func (s *segment) sameSource(o *segment) bool {
	if s.kind != o.kind {
		return false
	}
	if s.kind == KindFile {
		return s.file == o.file
	}
	return s.mem == o.mem
}

// SegmentInfo is a read-only description of one segment of a document chain.
type SegmentInfo struct {
	Kind   SegmentKind
	Offset int64 // Position of the first byte within the document
	Start  int64 // Position of the first byte within the source
	Length int64
	File   *FileSource   // Set for KindFile
	Memory *MemorySource // Set for KindMemory
}

// End returns the exclusive end of the segment within its source.
func (i SegmentInfo) End() int64 { return i.Start + i.Length }

func (i SegmentInfo) String() string {
	src := "mem"
	if i.Kind == KindFile {
		src = i.File.Path()
	}
	return fmt.Sprintf("%s@%d %s[%d,+%d)", i.Kind, i.Offset, src, i.Start, i.Length)
}
