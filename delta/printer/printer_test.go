package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func dump(t *testing.T, opts Options, data []byte, off, n int64) string {
	t.Helper()
	var buf bytes.Buffer
	p, err := New(&buf, opts)
	require.NoError(t, err)
	require.NoError(t, p.Dump(bytes.NewReader(data), off, n))
	return buf.String()
}

func TestPrinter_Dump_Text(t *testing.T) {
	data := []byte("Hello, world!\x00\x00\x00 tail")
	out := dump(t, DefaultOptions(), data, 0, int64(len(data)))

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t,
		"00000000  48 65 6c 6c 6f 2c 20 77  6f 72 6c 64 21 00 00 00  |Hello, world!...|",
		lines[0])
	require.True(t, strings.HasPrefix(lines[1], "00000010  20 74 61 69 6c   "), lines[1])
	require.True(t, strings.HasSuffix(lines[1], "  | tail|"), lines[1])
}

func TestPrinter_Dump_PartialLinePadding(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 4
	out := dump(t, opts, []byte("AB\x00"), 0, 3)
	require.Equal(t, "00000000  41 42 00     |AB.|\n", out)
}

func TestPrinter_Dump_UpperNoOffsets(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 2
	opts.Upper = true
	opts.ShowOffsets = false
	out := dump(t, opts, []byte{0xab, 0xcd, 0xef}, 0, 3)
	require.Equal(t, "AB CD  |..|\nEF     |.|\n", strings.Map(func(r rune) rune {
		if r > 0x7f {
			return '.'
		}
		return r
	}, out))
}

func TestPrinter_Dump_Range(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 4
	data := []byte("0123456789")
	out := dump(t, opts, data, 6, 100)
	require.Equal(t, "00000006  36 37 38 39  |6789|\n", out)

	require.Empty(t, dump(t, opts, data, 20, 4))
}

func TestPrinter_Dump_JSON(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = FormatJSON
	opts.Width = 3
	out := dump(t, opts, []byte("abcd"), 0, 4)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	var first, second jsonLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, jsonLine{Offset: 0, Hex: "61 62 63", Text: "abc"}, first)
	require.Equal(t, jsonLine{Offset: 3, Hex: "64", Text: "d"}, second)
}

func TestPrinter_Charsets(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 1

	opts.Charset = "iso8859-1"
	require.Equal(t, "00000000  e9  |é|\n", dump(t, opts, []byte{0xe9}, 0, 1))

	opts.Charset = "cp437"
	require.Equal(t, "00000000  e1  |ß|\n", dump(t, opts, []byte{0xe1}, 0, 1))

	opts.Charset = "ASCII"
	require.Equal(t, "00000000  e9  |.|\n", dump(t, opts, []byte{0xe9}, 0, 1))

	names := Charsets()
	require.Contains(t, names, "ascii")
	require.Contains(t, names, "windows-1252")
	require.IsIncreasing(t, names)
}

func TestPrinter_New_Errors(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Options{Charset: "ebcdic"})
	require.ErrorIs(t, err, ErrUnknownCharset)

	_, err = New(&bytes.Buffer{}, Options{Width: 1000})
	require.Error(t, err)

	_, err = New(&bytes.Buffer{}, Options{Format: "xml"})
	require.Error(t, err)
}

type failingReader struct{}

var errRead = errors.New("read failed")

func (failingReader) ReadAt([]byte, int64) (int, error) { return 0, errRead }

func TestPrinter_Dump_ReadError(t *testing.T) {
	p, err := New(&bytes.Buffer{}, DefaultOptions())
	require.NoError(t, err)
	require.ErrorIs(t, p.Dump(failingReader{}, 0, 16), errRead)
	require.Error(t, p.Dump(failingReader{}, -1, 16))
}
