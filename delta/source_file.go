package delta

import (
	"errors"
	"fmt"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/joshuapare/deltakit/internal/filelock"
)

// fileWriter is the write side of a file source used by save.
type fileWriter interface {
	io.WriterAt
	Truncate(size int64) error
}

// FileSource is a locked handle on one on-disk file plus a small page cache.
// Many file segments across many documents may reference one source.
//
// File sources are opened and closed through the Repository.
type FileSource struct {
	repo     *Repository
	path     string
	mode     FileMode
	f        *os.File
	w        fileWriter
	size     int64
	pageSize int64
	cache    *lru.Cache[int64, []byte]

	listeners    []cacheListener
	nextListener int

	damaged error
	closed  bool
}

type cacheListener struct {
	id int
	fn func()
}

func openFileSource(r *Repository, path string, mode FileMode) (*FileSource, error) {
	flag := os.O_RDWR
	if mode == ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	if err := filelock.Lock(f, mode == ReadWrite); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = filelock.Unlock(f)
		_ = f.Close()
		return nil, err
	}
	cache, err := lru.New[int64, []byte](r.opts.CachePages)
	if err != nil {
		_ = filelock.Unlock(f)
		_ = f.Close()
		return nil, err
	}
	return &FileSource{
		repo:     r,
		path:     path,
		mode:     mode,
		f:        f,
		w:        f,
		size:     st.Size(),
		pageSize: int64(r.opts.PageSize),
		cache:    cache,
	}, nil
}

// Path returns the path the source was opened with.
func (s *FileSource) Path() string { return s.path }

// Mode returns the mode the source was opened with.
func (s *FileSource) Mode() FileMode { return s.mode }

// Size returns the file length as last observed by the repository.
func (s *FileSource) Size() int64 { return s.size }

// Closed reports whether the source has been closed.
func (s *FileSource) Closed() bool { return s.closed }

// Damaged returns the write error of a failed save, or nil.
func (s *FileSource) Damaged() error { return s.damaged }

func (s *FileSource) usable() error {
	if s.closed {
		return fmt.Errorf("file %s: %w", s.path, ErrClosed)
	}
	if s.damaged != nil {
		return fmt.Errorf("file %s: %w", s.path, ErrSourceDamaged)
	}
	return nil
}

// ByteAt returns the byte at pos through the page cache.
func (s *FileSource) ByteAt(pos int64) (byte, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if pos < 0 || pos >= s.size {
		return 0, rangeErr("file byte", pos, 0, s.size)
	}
	idx := pos / s.pageSize
	page, err := s.page(idx)
	if err != nil {
		return 0, err
	}
	return page[pos-idx*s.pageSize], nil
}

// ReadAt implements io.ReaderAt over the file content. Reads no longer than
// one page are served through the cache.
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, rangeErr("file read", off, int64(len(p)), s.size)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	var eof error
	if off+want > s.size {
		want = s.size - off
		eof = io.EOF
	}
	if want > s.pageSize {
		if err := s.readFull(p[:want], off); err != nil {
			return 0, err
		}
		return int(want), eof
	}
	n := int64(0)
	for n < want {
		pos := off + n
		idx := pos / s.pageSize
		page, err := s.page(idx)
		if err != nil {
			return int(n), err
		}
		n += int64(copy(p[n:want], page[pos-idx*s.pageSize:]))
	}
	return int(n), eof
}

func (s *FileSource) page(idx int64) ([]byte, error) {
	if page, ok := s.cache.Get(idx); ok {
		return page, nil
	}
	off := idx * s.pageSize
	n := min(s.pageSize, s.size-off)
	page := make([]byte, n)
	if err := s.readFull(page, off); err != nil {
		return nil, err
	}
	s.cache.Add(idx, page)
	return page, nil
}

// readFull reads exactly len(p) bytes at off, bypassing the cache.
func (s *FileSource) readFull(p []byte, off int64) error {
	n, err := s.f.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read %s at %d: %w", s.path, off, err)
}

func (s *FileSource) writeAt(p []byte, off int64) error {
	n, err := s.w.WriteAt(p, off)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("write %s at %d: %w", s.path, off, err)
	}
	return nil
}

func (s *FileSource) truncate(n int64) error {
	if err := s.w.Truncate(n); err != nil {
		return fmt.Errorf("truncate %s to %d: %w", s.path, n, err)
	}
	return nil
}

// ClearCache drops every cached page and notifies the cache listeners.
func (s *FileSource) ClearCache() {
	s.cache.Purge()
	for _, l := range append([]cacheListener(nil), s.listeners...) {
		l.fn()
	}
}

// OnCacheClear registers fn to run whenever the cache is cleared, which
// happens after a save restructures the file.
func (s *FileSource) OnCacheClear(fn func()) (cancel func()) {
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, cacheListener{id: id, fn: fn})
	return func() {
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *FileSource) markDamaged(err error) {
	s.damaged = err
	s.cache.Purge()
}

func (s *FileSource) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()
	s.listeners = nil
	uerr := filelock.Unlock(s.f)
	cerr := s.f.Close()
	return errors.Join(uerr, cerr)
}
