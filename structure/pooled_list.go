package structure

// PooledList is an arena of doubly linked nodes shared by many FIFO queues.
//
// Design:
// - All nodes live in one slice; links are int32 indexes, never pointers
// - Freed slots are chained into a free list and reused
// - A Handle carries the slot index plus the sequence stamped at insert time,
//   so a stale handle to a reused slot is detected instead of aliasing
// - The arena grows by DefaultGrowthFactor when exhausted
//
// A Queue is only a head/tail/length triple; the nodes it threads through
// belong to the arena. Many queues (one per price level) share one arena.

const (
	NullIndex           int32 = -1
	DefaultGrowthFactor       = 2
)

// Handle is a stable reference to a value stored in a PooledList.
type Handle struct {
	Index int32  `json:"index"`
	Seq   uint64 `json:"seq"`
}

// NullHandle never resolves.
var NullHandle = Handle{Index: NullIndex}

// Queue is a FIFO chain of nodes threaded through a PooledList.
type Queue struct {
	Head int32
	Tail int32
	Len  int
}

// NewQueue returns an empty queue.
func NewQueue() Queue {
	return Queue{Head: NullIndex, Tail: NullIndex}
}

// IsEmpty reports whether the queue has no nodes.
func (q *Queue) IsEmpty() bool {
	return q.Len == 0
}

type listNode[T any] struct {
	Value T
	Seq   uint64
	Prev  int32
	Next  int32 // doubles as the free list link
	inUse bool
}

// ListOptions configures the pooled list behavior.
type ListOptions struct {
	// OnGrow is called when the arena expands.
	// Can be used for logging or metrics.
	OnGrow func(oldCap, newCap int32)
}

// PooledList is an arena-backed store for queue nodes.
type PooledList[T any] struct {
	nodes    []listNode[T]
	freeHead int32
	count    int32
	onGrow   func(int32, int32)
}

// NewPooledList creates a pooled list with pre-allocated capacity.
func NewPooledList[T any](capacity int32) *PooledList[T] {
	return NewPooledListWithOptions[T](capacity, ListOptions{})
}

// NewPooledListWithOptions creates a pooled list with custom options.
func NewPooledListWithOptions[T any](capacity int32, opts ListOptions) *PooledList[T] {
	if capacity < 1 {
		capacity = 1
	}

	l := &PooledList[T]{
		nodes:  make([]listNode[T], capacity),
		onGrow: opts.OnGrow,
	}

	for i := int32(0); i < capacity-1; i++ {
		l.nodes[i].Next = i + 1
	}
	l.nodes[capacity-1].Next = NullIndex
	l.freeHead = 0

	return l
}

// grow expands the arena capacity.
func (l *PooledList[T]) grow() {
	oldCap := int32(len(l.nodes))
	newCap := oldCap * DefaultGrowthFactor

	if l.onGrow != nil {
		l.onGrow(oldCap, newCap)
	}

	newNodes := make([]listNode[T], newCap)
	copy(newNodes, l.nodes)

	for i := oldCap; i < newCap-1; i++ {
		newNodes[i].Next = i + 1
	}
	newNodes[newCap-1].Next = l.freeHead
	l.freeHead = oldCap

	l.nodes = newNodes
}

// alloc takes a slot from the free list, growing if necessary.
func (l *PooledList[T]) alloc() int32 {
	if l.freeHead == NullIndex {
		l.grow()
	}
	idx := l.freeHead
	l.freeHead = l.nodes[idx].Next
	return idx
}

// free resets a slot and returns it to the free list.
func (l *PooledList[T]) free(idx int32) {
	var zero T
	l.nodes[idx].Value = zero
	l.nodes[idx].Seq = 0
	l.nodes[idx].Prev = NullIndex
	l.nodes[idx].inUse = false
	l.nodes[idx].Next = l.freeHead
	l.freeHead = idx
}

func (l *PooledList[T]) valid(h Handle) bool {
	return h.Index >= 0 &&
		int(h.Index) < len(l.nodes) &&
		l.nodes[h.Index].inUse &&
		l.nodes[h.Index].Seq == h.Seq
}

// PushBack appends a value to the tail of q and returns its handle.
// Pointers previously returned by Get or Front may be invalidated when the
// arena grows; handles stay valid.
func (l *PooledList[T]) PushBack(q *Queue, seq uint64, v T) Handle {
	idx := l.alloc()
	n := &l.nodes[idx]
	n.Value = v
	n.Seq = seq
	n.inUse = true
	n.Next = NullIndex
	n.Prev = q.Tail

	if q.Tail != NullIndex {
		l.nodes[q.Tail].Next = idx
	} else {
		q.Head = idx
	}
	q.Tail = idx
	q.Len++
	l.count++

	return Handle{Index: idx, Seq: seq}
}

// Remove unlinks the node referenced by h from q and returns its value.
// Returns false if the handle is stale.
func (l *PooledList[T]) Remove(q *Queue, h Handle) (T, bool) {
	if !l.valid(h) {
		var zero T
		return zero, false
	}

	n := &l.nodes[h.Index]
	if n.Prev != NullIndex {
		l.nodes[n.Prev].Next = n.Next
	} else {
		q.Head = n.Next
	}
	if n.Next != NullIndex {
		l.nodes[n.Next].Prev = n.Prev
	} else {
		q.Tail = n.Prev
	}

	v := n.Value
	q.Len--
	l.count--
	l.free(h.Index)

	return v, true
}

// PopFront removes and returns the head value of q.
func (l *PooledList[T]) PopFront(q *Queue) (T, bool) {
	if q.Head == NullIndex {
		var zero T
		return zero, false
	}
	return l.Remove(q, Handle{Index: q.Head, Seq: l.nodes[q.Head].Seq})
}

// Front returns a pointer to the head value of q and its handle.
func (l *PooledList[T]) Front(q *Queue) (*T, Handle, bool) {
	if q.Head == NullIndex {
		return nil, NullHandle, false
	}
	n := &l.nodes[q.Head]
	return &n.Value, Handle{Index: q.Head, Seq: n.Seq}, true
}

// Get resolves a handle to a pointer into the arena.
func (l *PooledList[T]) Get(h Handle) (*T, bool) {
	if !l.valid(h) {
		return nil, false
	}
	return &l.nodes[h.Index].Value, true
}

// Each walks q from head to tail. Returning false from fn stops the walk.
func (l *PooledList[T]) Each(q *Queue, fn func(h Handle, v *T) bool) {
	idx := q.Head
	for idx != NullIndex {
		n := &l.nodes[idx]
		next := n.Next
		if !fn(Handle{Index: idx, Seq: n.Seq}, &n.Value) {
			return
		}
		idx = next
	}
}

// Count returns the number of live nodes across all queues.
func (l *PooledList[T]) Count() int32 {
	return l.count
}

// Capacity returns the current capacity of the arena.
func (l *PooledList[T]) Capacity() int32 {
	return int32(len(l.nodes))
}
