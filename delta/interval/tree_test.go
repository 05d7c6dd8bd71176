package interval

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type span struct{ start, length int64 }

func collect(c *Cursor[int]) []int {
	var out []int
	for c.Next() {
		out = append(out, c.Value())
	}
	return out
}

func Test_Tree_InsertRemove(t *testing.T) {
	tr := New[int]()
	require.True(t, tr.Insert(1, 10, 5))
	require.True(t, tr.Insert(2, 0, 3))
	require.False(t, tr.Insert(1, 99, 1), "duplicate value must be rejected")
	require.Equal(t, 2, tr.Len())

	start, length, ok := tr.Get(1)
	require.True(t, ok)
	require.Equal(t, int64(10), start)
	require.Equal(t, int64(5), length)

	require.True(t, tr.Remove(1))
	require.False(t, tr.Remove(1))
	require.False(t, tr.Has(1))
	require.Equal(t, 1, tr.Len())
	require.NoError(t, tr.Validate())
}

func Test_Tree_ZeroValueUsable(t *testing.T) {
	var tr Tree[string]
	require.True(t, tr.Insert("a", 4, 4))
	c := tr.Overlaps(7, 1)
	require.True(t, c.Next())
	require.Equal(t, "a", c.Value())
}

func Test_Tree_Overlaps_Boundaries(t *testing.T) {
	tr := New[int]()
	tr.Insert(1, 0, 10)
	tr.Insert(2, 10, 10)
	tr.Insert(3, 30, 5)

	// Ranges are half-open: [0,10) does not touch position 10.
	require.Equal(t, []int{2}, collect(tr.Overlaps(10, 1)))
	require.Empty(t, collect(tr.Overlaps(20, 10)))
	require.Empty(t, collect(tr.Overlaps(5, 0)), "empty query matches nothing")

	require.Equal(t, []int{1, 2}, collect(tr.Overlaps(9, 2)))
	require.Equal(t, []int{1, 2, 3}, collect(tr.Overlaps(0, 100)))
}

func Test_Tree_Update(t *testing.T) {
	tr := New[int]()
	tr.Insert(1, 0, 4)
	tr.Insert(2, 100, 4)
	require.True(t, tr.Update(1, 200, 50))
	require.Equal(t, []int{2, 1}, collect(tr.Ascend(0)))
	require.Empty(t, collect(tr.Overlaps(0, 10)))
	require.False(t, tr.Update(3, 0, 1))
	require.NoError(t, tr.Validate())
}

func Test_Tree_First(t *testing.T) {
	tr := New[int]()
	_, _, _, ok := tr.First()
	require.False(t, ok)

	tr.Insert(1, 50, 1)
	tr.Insert(2, 7, 100)
	tr.Insert(3, 7, 1)
	v, start, length, ok := tr.First()
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.Equal(t, int64(7), start)
	require.Equal(t, int64(1), length)
}

func Test_Tree_Ascend(t *testing.T) {
	tr := New[int]()
	for i := 0; i < 10; i++ {
		tr.Insert(i, int64(i*10), 5)
	}
	require.Equal(t, []int{5, 6, 7, 8, 9}, collect(tr.Ascend(50)))
	require.Equal(t, []int{6, 7, 8, 9}, collect(tr.Ascend(51)))
	require.Empty(t, collect(tr.Ascend(91)))
}

func Test_Tree_CursorSurvivesRemoval(t *testing.T) {
	tr := New[int]()
	for i := 0; i < 20; i++ {
		tr.Insert(i, int64(i), 1)
	}
	var seen []int
	c := tr.Ascend(0)
	for c.Next() {
		v := c.Value()
		seen = append(seen, v)
		tr.Remove(v)
		if v+1 < 20 && v%2 == 0 {
			// Drop the odd successor before the cursor reaches it.
			tr.Remove(v + 1)
		}
	}
	require.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, seen)
	require.Equal(t, 0, tr.Len())
	require.NoError(t, tr.Validate())
}

func Test_Tree_RandomAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := New[int]()
	model := map[int]span{}

	for step := 0; step < 4000; step++ {
		id := rng.Intn(300)
		switch rng.Intn(3) {
		case 0:
			s := span{int64(rng.Intn(1000)), int64(rng.Intn(60) + 1)}
			if _, ok := model[id]; ok {
				require.True(t, tr.Update(id, s.start, s.length))
			} else {
				require.True(t, tr.Insert(id, s.start, s.length))
			}
			model[id] = s
		case 1:
			_, ok := model[id]
			require.Equal(t, ok, tr.Remove(id))
			delete(model, id)
		case 2:
			pos := int64(rng.Intn(1100))
			n := int64(rng.Intn(80) + 1)
			var want []int
			for k, s := range model {
				if s.start < pos+n && s.start+s.length > pos {
					want = append(want, k)
				}
			}
			got := collect(tr.Overlaps(pos, n))
			sort.Ints(want)
			sorted := append([]int(nil), got...)
			sort.Ints(sorted)
			require.Equal(t, want, sorted, "step %d query [%d,+%d)", step, pos, n)
			for i := 1; i < len(got); i++ {
				a, b := model[got[i-1]], model[got[i]]
				require.LessOrEqual(t, a.start, b.start, "overlaps not returned in start order")
			}
		}
		if step%100 == 0 {
			require.NoError(t, tr.Validate())
		}
	}
	require.Equal(t, len(model), tr.Len())
	require.NoError(t, tr.Validate())
}
