package structure

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(l *PooledList[string], q *Queue) []string {
	out := make([]string, 0, q.Len)
	l.Each(q, func(_ Handle, v *string) bool {
		out = append(out, *v)
		return true
	})
	return out
}

func TestPooledList_BasicOperations(t *testing.T) {
	l := NewPooledList[string](4)
	q := NewQueue()

	// Test empty
	_, _, ok := l.Front(&q)
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())

	l.PushBack(&q, 1, "a")
	l.PushBack(&q, 2, "b")
	l.PushBack(&q, 3, "c")

	assert.Equal(t, 3, q.Len)
	assert.Equal(t, int32(3), l.Count())
	assert.Equal(t, []string{"a", "b", "c"}, collect(l, &q))

	v, h, ok := l.Front(&q)
	require.True(t, ok)
	assert.Equal(t, "a", *v)
	assert.Equal(t, uint64(1), h.Seq)

	popped, ok := l.PopFront(&q)
	require.True(t, ok)
	assert.Equal(t, "a", popped)
	assert.Equal(t, []string{"b", "c"}, collect(l, &q))
}

func TestPooledList_RemoveMiddle(t *testing.T) {
	l := NewPooledList[string](8)
	q := NewQueue()

	l.PushBack(&q, 1, "a")
	hb := l.PushBack(&q, 2, "b")
	hc := l.PushBack(&q, 3, "c")

	v, ok := l.Remove(&q, hb)
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, []string{"a", "c"}, collect(l, &q))

	// Remove tail
	_, ok = l.Remove(&q, hc)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, collect(l, &q))
	assert.Equal(t, q.Head, q.Tail)

	// Stale handle
	_, ok = l.Remove(&q, hb)
	assert.False(t, ok)
}

func TestPooledList_StaleHandleAfterReuse(t *testing.T) {
	l := NewPooledList[string](1)
	q := NewQueue()

	h1 := l.PushBack(&q, 10, "first")
	_, ok := l.Remove(&q, h1)
	require.True(t, ok)

	h2 := l.PushBack(&q, 11, "second")
	assert.Equal(t, h1.Index, h2.Index, "slot should be reused")

	_, ok = l.Get(h1)
	assert.False(t, ok)

	v, ok := l.Get(h2)
	require.True(t, ok)
	assert.Equal(t, "second", *v)
}

func TestPooledList_Grow(t *testing.T) {
	var grown [][2]int32
	l := NewPooledListWithOptions[int](2, ListOptions{
		OnGrow: func(oldCap, newCap int32) {
			grown = append(grown, [2]int32{oldCap, newCap})
		},
	})
	q := NewQueue()

	handles := make([]Handle, 0, 10)
	for i := 0; i < 10; i++ {
		handles = append(handles, l.PushBack(&q, uint64(i+1), i))
	}

	assert.Equal(t, int32(16), l.Capacity())
	assert.Equal(t, [][2]int32{{2, 4}, {4, 8}, {8, 16}}, grown)

	for i, h := range handles {
		v, ok := l.Get(h)
		require.True(t, ok)
		assert.Equal(t, i, *v)
	}
}

func TestPooledList_SharedArena(t *testing.T) {
	l := NewPooledList[string](2)
	q1 := NewQueue()
	q2 := NewQueue()

	l.PushBack(&q1, 1, "x1")
	l.PushBack(&q2, 2, "y1")
	l.PushBack(&q1, 3, "x2")
	l.PushBack(&q2, 4, "y2")

	assert.Equal(t, []string{"x1", "x2"}, collect(l, &q1))
	assert.Equal(t, []string{"y1", "y2"}, collect(l, &q2))
	assert.Equal(t, int32(4), l.Count())

	for !q1.IsEmpty() {
		l.PopFront(&q1)
	}
	assert.Equal(t, []string{"y1", "y2"}, collect(l, &q2))
	assert.Equal(t, int32(2), l.Count())
}

func TestPooledList_RandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := NewPooledList[int](4)
	q := NewQueue()

	type entry struct {
		h Handle
		v int
	}
	var model []entry
	seq := uint64(0)

	for i := 0; i < 2000; i++ {
		switch {
		case len(model) == 0 || rng.Intn(3) > 0:
			seq++
			h := l.PushBack(&q, seq, i)
			model = append(model, entry{h: h, v: i})
		default:
			idx := rng.Intn(len(model))
			v, ok := l.Remove(&q, model[idx].h)
			require.True(t, ok)
			require.Equal(t, model[idx].v, v)
			model = append(model[:idx], model[idx+1:]...)
		}
	}

	got := make([]int, 0, q.Len)
	l.Each(&q, func(_ Handle, v *int) bool {
		got = append(got, *v)
		return true
	})

	want := make([]int, 0, len(model))
	for _, e := range model {
		want = append(want, e.v)
	}

	assert.Equal(t, want, got)
	assert.Equal(t, int32(len(model)), l.Count())
}
