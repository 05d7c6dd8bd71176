package delta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Repository_CloseFileMaterializes(t *testing.T) {
	r := newTestRepo(t, nil)
	path := writeTestFile(t, []byte("persistent bytes"))
	fs, d := openTestDoc(t, r, path)
	require.NoError(t, d.Insert(0, []byte(">")))
	cp, err := d.Copy()
	require.NoError(t, err)

	require.NoError(t, r.CloseFile(fs))
	require.True(t, fs.Closed())
	require.Nil(t, d.FileSource())

	requireContent(t, d, []byte(">persistent bytes"))
	requireContent(t, cp, []byte(">persistent bytes"))
	for _, s := range append(d.Segments(), cp.Segments()...) {
		require.Equal(t, KindMemory, s.Kind)
	}

	_, err = d.Save(context.Background())
	require.ErrorIs(t, err, ErrNoFileSource)

	// Closing twice is a no-op.
	require.NoError(t, r.CloseFile(fs))
}

func Test_Repository_OpenDocumentOnClosedSource(t *testing.T) {
	r := newTestRepo(t, nil)
	path := writeTestFile(t, []byte("x"))
	fs, err := r.OpenFile(path, ReadOnly)
	require.NoError(t, err)
	require.NoError(t, r.CloseFile(fs))

	_, err = r.OpenDocument(fs)
	require.ErrorIs(t, err, ErrClosed)
}

func Test_Repository_ForeignSource(t *testing.T) {
	r1 := newTestRepo(t, nil)
	r2 := newTestRepo(t, nil)
	path := writeTestFile(t, []byte("x"))
	fs, err := r1.OpenFile(path, ReadOnly)
	require.NoError(t, err)

	_, err = r2.OpenDocument(fs)
	require.ErrorIs(t, err, ErrForeignSource)
	require.ErrorIs(t, r2.CloseFile(fs), ErrForeignSource)

	d := r2.NewDocument()
	require.ErrorIs(t, d.SetFileSource(fs), ErrForeignSource)

	other := r1.NewDocument()
	require.ErrorIs(t, d.InsertDocument(0, other, 0, 0), ErrForeignDocument)
}

func Test_Repository_SetFileSource(t *testing.T) {
	r := newTestRepo(t, nil)
	path := writeTestFile(t, []byte("old file content"))
	fs, err := r.OpenFile(path, ReadWrite)
	require.NoError(t, err)

	d := r.NewDocument()
	require.NoError(t, d.Insert(0, []byte("brand new")))
	require.NoError(t, d.SetFileSource(fs))
	require.Same(t, fs, d.FileSource())

	saveAndCheck(t, d, path, []byte("brand new"))

	require.NoError(t, d.SetFileSource(nil))
	require.Nil(t, d.FileSource())
	requireContent(t, d, []byte("brand new"))
}

func Test_Repository_Documents(t *testing.T) {
	r := newTestRepo(t, nil)
	a := r.NewDocument()
	b := r.NewDocument()
	require.Equal(t, []*Document{a, b}, r.Documents())

	require.NoError(t, a.Close())
	require.Equal(t, []*Document{b}, r.Documents())
	require.ErrorIs(t, a.Insert(0, []byte("x")), ErrClosed)
}

func Test_Repository_Close(t *testing.T) {
	r := NewRepository(nil)
	path := writeTestFile(t, []byte("abc"))
	fs, d := openTestDoc(t, r, path)

	require.NoError(t, r.Close())
	require.True(t, fs.Closed())
	require.Empty(t, r.Documents())
	_, err := d.ByteAt(0)
	require.ErrorIs(t, err, ErrClosed)

	_, err = r.OpenFile(path, ReadOnly)
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, r.Close())
}

func Test_Repository_ValidateAfterSharing(t *testing.T) {
	r := newTestRepo(t, nil)
	path := writeTestFile(t, []byte("0123456789"))
	_, d := openTestDoc(t, r, path)
	require.NoError(t, d.Insert(5, []byte("abc")))

	cp, err := d.CopyRange(2, 8)
	require.NoError(t, err)
	require.NoError(t, cp.InsertDocument(0, d, 4, 3))
	require.NoError(t, d.Remove(0, 6))
	require.NoError(t, r.Validate())

	requireContent(t, d, []byte("bc56789"))
	requireContent(t, cp, []byte("4ab234abc56"))
}

func Test_FileSource_ReadAt(t *testing.T) {
	r := newTestRepo(t, &Options{PageSize: 4, CachePages: 1})
	path := writeTestFile(t, []byte("0123456789"))
	fs, err := r.OpenFile(path, ReadOnly)
	require.NoError(t, err)
	require.Equal(t, int64(10), fs.Size())
	require.Equal(t, ReadOnly, fs.Mode())
	require.Equal(t, path, fs.Path())

	b, err := fs.ByteAt(9)
	require.NoError(t, err)
	require.Equal(t, byte('9'), b)

	p := make([]byte, 6)
	n, err := fs.ReadAt(p, 2)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "234567", string(p))

	_, err = fs.ByteAt(10)
	require.ErrorIs(t, err, ErrOutOfRange)
}
