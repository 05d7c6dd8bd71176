package delta

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// applyRandomEdit applies one random edit to d and to the model and returns
// the new model.
func applyRandomEdit(t *testing.T, rng *rand.Rand, d *Document, model []byte) []byte {
	t.Helper()
	size := len(model)
	switch op := rng.Intn(11); {
	case op == 0 || size == 0:
		pos := rng.Intn(size + 1)
		data := randomBytes(rng, rng.Intn(40)+1)
		require.NoError(t, d.Insert(int64(pos), data))
		return insertModel(model, pos, data)
	case op == 1:
		pos := rng.Intn(size)
		n := rng.Intn(min(size-pos, 300)) + 1
		require.NoError(t, d.Remove(int64(pos), int64(n)))
		return removeModel(model, pos, n)
	case op == 2:
		pos := rng.Intn(size)
		data := randomBytes(rng, rng.Intn(min(size-pos, 30))+1)
		require.NoError(t, d.Replace(int64(pos), data))
		copy(model[pos:], data)
		return model
	case op == 3:
		pos := rng.Intn(size + 1)
		v := byte(rng.Intn(256))
		require.NoError(t, d.SetByte(int64(pos), v))
		if pos == size {
			return append(model, v)
		}
		model[pos] = v
		return model
	case op == 4:
		// Copy a range of the document into itself by reference.
		off := rng.Intn(size)
		n := rng.Intn(min(size-off, 500)) + 1
		pos := rng.Intn(size + 1)
		require.NoError(t, d.InsertDocument(int64(pos), d, int64(off), int64(n)))
		part := append([]byte(nil), model[off:off+n]...)
		return insertModel(model, pos, part)
	case op == 5:
		pos := rng.Intn(size)
		n := rng.Intn(50) + 1
		v := byte(rng.Intn(256))
		require.NoError(t, d.Fill(int64(pos), int64(n), v))
		for len(model) < pos+n {
			model = append(model, 0)
		}
		for i := pos; i < pos+n; i++ {
			model[i] = v
		}
		return model
	case op == 6:
		pos := rng.Intn(size + 1)
		n := rng.Intn(20) + 1
		require.NoError(t, d.InsertZeros(int64(pos), int64(n)))
		return insertModel(model, pos, make([]byte, n))
	case op == 7:
		// Replace a range with another range of the same document.
		off := rng.Intn(size)
		pos := rng.Intn(size)
		n := rng.Intn(min(size-off, size-pos, 200)) + 1
		require.NoError(t, d.ReplaceDocument(int64(pos), d, int64(off), int64(n)))
		part := append([]byte(nil), model[off:off+n]...)
		copy(model[pos:], part)
		return model
	case op == 8:
		// Insert from a second document cut out of this one.
		off := rng.Intn(size)
		n := rng.Intn(min(size-off, 200)) + 1
		other, err := d.CopyRange(int64(off), int64(n))
		require.NoError(t, err)
		require.NoError(t, other.Insert(other.Size(), []byte("+")))
		pos := rng.Intn(size + 1)
		require.NoError(t, d.InsertDocument(int64(pos), other, 0, other.Size()))
		require.NoError(t, other.Close())
		part := append(append([]byte(nil), model[off:off+n]...), '+')
		return insertModel(model, pos, part)
	case op == 9:
		// Replace from a second document holding fresh bytes.
		pos := rng.Intn(size)
		data := randomBytes(rng, rng.Intn(min(size-pos, 40))+1)
		other := d.Repository().NewDocument()
		require.NoError(t, other.Insert(0, data))
		require.NoError(t, d.ReplaceDocument(int64(pos), other, 0, int64(len(data))))
		require.NoError(t, other.Close())
		copy(model[pos:], data)
		return model
	default:
		// Several typed bytes in a row.
		pos := rng.Intn(size + 1)
		for i := 0; i < 5; i++ {
			v := byte('a' + i)
			require.NoError(t, d.Insert(int64(pos+i), []byte{v}))
			model = insertModel(model, pos+i, []byte{v})
		}
		return model
	}
}

func Test_Oracle_RandomEdits(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 4, 5} {
		rng := rand.New(rand.NewSource(seed))
		r := newTestRepo(t, &Options{PageSize: 16, CachePages: 2})
		model := randomBytes(rng, 3000)
		path := writeTestFile(t, model)
		_, d := openTestDoc(t, r, path)

		// An untouched copy shares every source and must never change.
		snapshot := append([]byte(nil), model...)
		frozen, err := d.Copy()
		require.NoError(t, err)

		for step := 0; step < 300; step++ {
			model = applyRandomEdit(t, rng, d, model)
			require.Equal(t, int64(len(model)), d.Size(), "seed %d step %d", seed, step)
			if step%10 == 0 {
				requireContent(t, d, model)
				for i := 0; i < 20 && len(model) > 0; i++ {
					pos := rng.Intn(len(model))
					b, err := d.ByteAt(int64(pos))
					require.NoError(t, err)
					require.Equal(t, model[pos], b, "seed %d step %d pos %d", seed, step, pos)
				}
			}
		}
		requireContent(t, d, model)
		requireContent(t, frozen, snapshot)
	}
}
