package delta

import (
	"errors"
	"io"
)

var errNegativeSeek = errors.New("delta: negative seek position")

// Reader reads a document lazily. It keeps its own position window, so it
// does not disturb the document's edit cursor, and it sees edits made after
// it was created.
type Reader struct {
	d   *Document
	pos int64
	w   window
}

// NewReader returns a Reader positioned at the start of d.
func (d *Document) NewReader() *Reader { return &Reader{d: d} }

func (rd *Reader) Read(p []byte) (int, error) {
	if err := rd.d.usable(); err != nil {
		return 0, err
	}
	if rd.pos >= rd.d.size {
		return 0, io.EOF
	}
	n, err := rd.d.readAt(&rd.w, p, rd.pos)
	rd.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// ReadAt implements io.ReaderAt without moving the read position.
func (rd *Reader) ReadAt(p []byte, off int64) (int, error) {
	if err := rd.d.usable(); err != nil {
		return 0, err
	}
	return rd.d.readAt(&rd.w, p, off)
}

// ReadByte implements io.ByteReader.
func (rd *Reader) ReadByte() (byte, error) {
	if err := rd.d.usable(); err != nil {
		return 0, err
	}
	if rd.pos >= rd.d.size {
		return 0, io.EOF
	}
	b, err := rd.d.byteAt(&rd.w, rd.pos)
	if err != nil {
		return 0, err
	}
	rd.pos++
	return b, nil
}

// Seek implements io.Seeker. Seeking past the end is allowed; reads there
// return io.EOF.
func (rd *Reader) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(rd.pos, rd.d.size, offset, whence)
	if err != nil {
		return rd.pos, err
	}
	rd.pos = pos
	return pos, nil
}

// WriteTo implements io.WriterTo from the current position to the end.
func (rd *Reader) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, rd.d.repo.opts.ProcessingLimit)
	var total int64
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			total += int64(m)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Writer is an output stream over a document. Bytes written overwrite the
// content at the current position and extend the document past its end.
type Writer struct {
	d   *Document
	pos int64
}

// NewWriter returns a Writer positioned at the end of d, so plain writes
// append.
func (d *Document) NewWriter() *Writer { return &Writer{d: d, pos: d.size} }

func (wr *Writer) Write(p []byte) (int, error) {
	d := wr.d
	if err := d.usable(); err != nil {
		return 0, err
	}
	if wr.pos > d.size {
		// Seeking past the end leaves a zero-filled gap.
		if err := d.InsertZeros(d.size, wr.pos-d.size); err != nil {
			return 0, err
		}
	}
	over := min(int64(len(p)), d.size-wr.pos)
	if over > 0 {
		if err := d.Replace(wr.pos, p[:over]); err != nil {
			return 0, err
		}
	}
	if rest := p[over:]; len(rest) > 0 {
		if err := d.Insert(d.size, rest); err != nil {
			return int(over), err
		}
	}
	wr.pos += int64(len(p))
	return len(p), nil
}

// WriteByte implements io.ByteWriter.
func (wr *Writer) WriteByte(c byte) error {
	_, err := wr.Write([]byte{c})
	return err
}

// Seek implements io.Seeker.
func (wr *Writer) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(wr.pos, wr.d.size, offset, whence)
	if err != nil {
		return wr.pos, err
	}
	wr.pos = pos
	return pos, nil
}

func seek(cur, size, offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = cur + offset
	case io.SeekEnd:
		pos = size + offset
	default:
		return 0, errors.New("delta: invalid whence")
	}
	if pos < 0 {
		return 0, errNegativeSeek
	}
	return pos, nil
}
