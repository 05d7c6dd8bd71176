package delta

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestRepo creates a repository closed at the end of the test.
func newTestRepo(t *testing.T, opts *Options) *Repository {
	t.Helper()
	r := NewRepository(opts)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// writeTestFile writes data to a fresh file in the test's temp dir.
func writeTestFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// openTestDoc opens path read-write and returns its source and a document on it.
func openTestDoc(t *testing.T, r *Repository, path string) (*FileSource, *Document) {
	t.Helper()
	fs, err := r.OpenFile(path, ReadWrite)
	require.NoError(t, err)
	d, err := r.OpenDocument(fs)
	require.NoError(t, err)
	return fs, d
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	return b
}

// requireContent checks the document bytes, byte-by-byte access at a few
// positions and the repository invariants.
func requireContent(t *testing.T, d *Document, want []byte) {
	t.Helper()
	require.Equal(t, int64(len(want)), d.Size())
	got, err := d.Bytes()
	require.NoError(t, err)
	if !bytes.Equal(want, got) {
		require.Equal(t, want, got)
	}
	for _, pos := range []int{0, len(want) / 3, len(want) / 2, len(want) - 1} {
		if pos < 0 || pos >= len(want) {
			continue
		}
		b, err := d.ByteAt(int64(pos))
		require.NoError(t, err)
		require.Equal(t, want[pos], b, "ByteAt(%d)", pos)
	}
	require.NoError(t, d.Repository().Validate())
}

// requireFile checks the on-disk content of path.
func requireFile(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	if !bytes.Equal(want, got) {
		require.Equal(t, want, got)
	}
}

func insertModel(model []byte, pos int, data []byte) []byte {
	out := make([]byte, 0, len(model)+len(data))
	out = append(out, model[:pos]...)
	out = append(out, data...)
	return append(out, model[pos:]...)
}

func removeModel(model []byte, pos, n int) []byte {
	out := make([]byte, 0, len(model)-n)
	out = append(out, model[:pos]...)
	return append(out, model[pos+n:]...)
}
