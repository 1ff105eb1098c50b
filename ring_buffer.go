package match

import (
	"context"
	"runtime"
	"sync/atomic"
)

// EventHandler consumes events from a RingBuffer on its consumer goroutine.
type EventHandler[T any] interface {
	OnEvent(event *T)
}

// RingBuffer is a multi-producer single-consumer ring of fixed size.
// Producers claim a sequence with CAS and mark the slot ready; the consumer
// hands ready slots to the handler in sequence order.
type RingBuffer[T any] struct {
	_        [56]byte
	claimed  atomic.Int64 // Highest sequence claimed by a producer
	_        [56]byte
	consumed atomic.Int64 // Highest sequence handled by the consumer
	_        [56]byte

	slots []T
	ready []atomic.Int64 // Sequence last published into each slot
	mask  int64
	size  int64

	handler EventHandler[T]
	closed  atomic.Bool
	stopped chan struct{}
}

// NewRingBuffer creates a ring. size must be a power of two.
func NewRingBuffer[T any](size int64, handler EventHandler[T]) (*RingBuffer[T], error) {
	if size <= 0 || size&(size-1) != 0 || handler == nil {
		return nil, ErrInvalidParam
	}

	rb := &RingBuffer[T]{
		slots:   make([]T, size),
		ready:   make([]atomic.Int64, size),
		mask:    size - 1,
		size:    size,
		handler: handler,
		stopped: make(chan struct{}),
	}
	rb.claimed.Store(-1)
	rb.consumed.Store(-1)
	for i := range rb.ready {
		rb.ready[i].Store(-1)
	}

	return rb, nil
}

// Publish copies event into the ring, waiting while the ring is full.
// It returns false once Shutdown has been called.
func (rb *RingBuffer[T]) Publish(event T) bool {
	if rb.closed.Load() {
		return false
	}

	var seq int64
	for {
		current := rb.claimed.Load()
		seq = current + 1

		// The consumer is a full lap behind.
		if seq-rb.size > rb.consumed.Load() {
			if rb.closed.Load() {
				return false
			}
			runtime.Gosched()
			continue
		}
		if rb.claimed.CompareAndSwap(current, seq) {
			break
		}
	}

	idx := seq & rb.mask
	rb.slots[idx] = event
	rb.ready[idx].Store(seq)
	return true
}

// Run is the consumer loop. It returns after Shutdown once every claimed event is handled.
func (rb *RingBuffer[T]) Run() {
	defer close(rb.stopped)

	next := rb.consumed.Load() + 1
	for {
		closed := rb.closed.Load()
		available := rb.claimed.Load()

		for ; next <= available; next++ {
			idx := next & rb.mask
			for rb.ready[idx].Load() != next {
				runtime.Gosched()
			}

			event := rb.slots[idx]
			rb.handler.OnEvent(&event)
			rb.consumed.Store(next)
		}

		if closed && rb.claimed.Load() < next {
			return
		}
		runtime.Gosched()
	}
}

// Shutdown stops intake and waits for the consumer to drain.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.closed.Store(true)

	select {
	case <-rb.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of claimed events not yet handled.
func (rb *RingBuffer[T]) Pending() int64 {
	return rb.claimed.Load() - rb.consumed.Load()
}

// ProducerSequence returns the highest claimed sequence, -1 before the first publish.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.claimed.Load()
}

// ConsumerSequence returns the highest handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumed.Load()
}
