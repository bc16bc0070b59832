package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/value"
)

func mkstr(h *value.Heap, s string) *value.ObjString {
	return h.CopyString(s)
}

func TestTableSetGetDelete(t *testing.T) {
	h := value.NewHeap()
	var tbl value.Table

	a := mkstr(h, "alpha")
	b := mkstr(h, "beta")

	assert.True(t, tbl.Set(a, value.Number(1)))
	assert.True(t, tbl.Set(b, value.Number(2)))
	assert.False(t, tbl.Set(a, value.Number(11)), "re-setting an existing key reports not-new")

	v, ok := tbl.Get(a)
	require.True(t, ok)
	assert.Equal(t, value.Number(11), v)

	assert.True(t, tbl.Delete(b))
	_, ok = tbl.Get(b)
	assert.False(t, ok)

	assert.False(t, tbl.Delete(b), "deleting twice reports key absent")
}

func TestTableTombstoneKeepsProbeChainIntact(t *testing.T) {
	h := value.NewHeap()
	var tbl value.Table

	keys := make([]*value.ObjString, 0, 8)
	for i := 0; i < 6; i++ {
		k := mkstr(h, string(rune('a'+i)))
		keys = append(keys, k)
		tbl.Set(k, value.Number(float64(i)))
	}

	// Delete a middle key, then confirm every other key originally inserted
	// is still reachable: deletion must leave a tombstone, not an empty
	// slot, or linear probing would stop short for any key that was
	// inserted after a collision with the deleted slot.
	require.True(t, tbl.Delete(keys[2]))
	for i, k := range keys {
		if i == 2 {
			continue
		}
		v, ok := tbl.Get(k)
		require.True(t, ok, "key %d should still be findable", i)
		assert.Equal(t, value.Number(float64(i)), v)
	}
}

func TestTableGrowsAtLoadFactor(t *testing.T) {
	h := value.NewHeap()
	var tbl value.Table

	for i := 0; i < 100; i++ {
		tbl.Set(mkstr(h, string(rune('A'+i))), value.Number(float64(i)))
	}

	assert.LessOrEqual(t, float64(tbl.Len()), float64(tbl.Cap())*0.75)
}

func TestTableAddAllOverridesDestination(t *testing.T) {
	h := value.NewHeap()
	var src, dst value.Table

	shared := mkstr(h, "shared")
	dst.Set(shared, value.Number(1))
	src.Set(shared, value.Number(2))
	src.Set(mkstr(h, "only-in-src"), value.Number(3))

	src.AddAll(&dst)

	v, ok := dst.Get(shared)
	require.True(t, ok)
	assert.Equal(t, value.Number(2), v, "source entries override the destination's")
}

func TestStringInterningReturnsSameObject(t *testing.T) {
	h := value.NewHeap()

	a := h.CopyString("hello")
	b := h.CopyString("hello")
	assert.Same(t, a, b, "equal string contents must intern to the same *ObjString")

	c := h.TakeString("hello")
	assert.Same(t, a, c, "TakeString must also hit the intern table")

	d := h.CopyString("different")
	assert.NotSame(t, a, d)
}

func TestHeapObjectsAreEnumerable(t *testing.T) {
	h := value.NewHeap()
	h.CopyString("one")
	h.CopyString("two")

	count := 0
	for o := h.Objects(); o != nil; o = o.Header().Next {
		count++
	}
	assert.Equal(t, 2, count)
}
