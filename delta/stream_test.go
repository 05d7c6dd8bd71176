package delta

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Reader_ReadsAcrossSegments(t *testing.T) {
	r := newTestRepo(t, &Options{PageSize: 4})
	path := writeTestFile(t, []byte("hello world"))
	_, d := openTestDoc(t, r, path)
	require.NoError(t, d.Insert(5, []byte(",")))

	got, err := io.ReadAll(d.NewReader())
	require.NoError(t, err)
	require.Equal(t, "hello, world", string(got))
}

func Test_Reader_SeekAndReadByte(t *testing.T) {
	r := newTestRepo(t, nil)
	d := r.NewDocument()
	require.NoError(t, d.Insert(0, []byte("abcdef")))

	rd := d.NewReader()
	pos, err := rd.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(4), pos)

	b, err := rd.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('e'), b)
	b, err = rd.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('f'), b)
	_, err = rd.ReadByte()
	require.ErrorIs(t, err, io.EOF)

	_, err = rd.Seek(-1, io.SeekStart)
	require.Error(t, err)

	pos, err = rd.Seek(100, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(100), pos)
	n, err := rd.Read(make([]byte, 4))
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)
}

func Test_Reader_SeesLaterEdits(t *testing.T) {
	r := newTestRepo(t, nil)
	d := r.NewDocument()
	require.NoError(t, d.Insert(0, []byte("abc")))

	rd := d.NewReader()
	p := make([]byte, 1)
	_, err := rd.Read(p)
	require.NoError(t, err)
	require.Equal(t, byte('a'), p[0])

	require.NoError(t, d.Replace(1, []byte("X")))
	rest, err := io.ReadAll(rd)
	require.NoError(t, err)
	require.Equal(t, "Xc", string(rest))
}

func Test_Reader_ReadAtAndWriteTo(t *testing.T) {
	r := newTestRepo(t, &Options{ProcessingLimit: 3})
	d := r.NewDocument()
	require.NoError(t, d.Insert(0, []byte("0123456789")))

	rd := d.NewReader()
	p := make([]byte, 4)
	n, err := rd.ReadAt(p, 3)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "3456", string(p))

	_, err = rd.Seek(2, io.SeekStart)
	require.NoError(t, err)
	var buf bytes.Buffer
	written, err := rd.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(8), written)
	require.Equal(t, "23456789", buf.String())
}

func Test_Writer_AppendsByDefault(t *testing.T) {
	r := newTestRepo(t, nil)
	d := r.NewDocument()
	require.NoError(t, d.Insert(0, []byte("head")))

	w := d.NewWriter()
	_, err := w.Write([]byte("-tail"))
	require.NoError(t, err)
	require.NoError(t, w.WriteByte('!'))
	requireContent(t, d, []byte("head-tail!"))
}

func Test_Writer_OverwritesThenExtends(t *testing.T) {
	r := newTestRepo(t, nil)
	path := writeTestFile(t, []byte("abcdef"))
	_, d := openTestDoc(t, r, path)

	w := d.NewWriter()
	_, err := w.Seek(4, io.SeekStart)
	require.NoError(t, err)
	n, err := w.Write([]byte("XYZW"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	requireContent(t, d, []byte("abcdXYZW"))

	pos, err := w.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(8), pos)
}

func Test_Writer_SeekPastEndZeroFills(t *testing.T) {
	r := newTestRepo(t, nil)
	d := r.NewDocument()
	require.NoError(t, d.Insert(0, []byte("ab")))

	w := d.NewWriter()
	_, err := w.Seek(3, io.SeekEnd)
	require.NoError(t, err)
	_, err = w.Write([]byte("z"))
	require.NoError(t, err)
	requireContent(t, d, []byte{'a', 'b', 0, 0, 0, 'z'})
}

func Test_Stream_ClosedDocument(t *testing.T) {
	r := newTestRepo(t, nil)
	d := r.NewDocument()
	require.NoError(t, d.Insert(0, []byte("x")))
	rd, w := d.NewReader(), d.NewWriter()
	require.NoError(t, d.Close())

	_, err := rd.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrClosed)
	_, err = w.Write([]byte("y"))
	require.ErrorIs(t, err, ErrClosed)
}
