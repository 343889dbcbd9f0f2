package fanout

import (
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("client queue full")
	ErrQueueClosed = errors.New("client queue closed")
)

// queue is a per-client outbound ring buffer. It doubles its capacity at
// 70% fill up to maxCapacity; past that, Push returns ErrQueueFull.
type queue[T any] struct {
	mu          sync.Mutex
	cond        *sync.Cond
	buf         []T
	head        int // read position
	tail        int // write position
	count       int
	capacity    int
	maxCapacity int
	closed      bool

	// Stats
	pushed  int64
	popped  int64
	resizes int
}

// newQueue creates a queue with the given initial and maximum capacity.
func newQueue[T any](initialCapacity, maxCapacity int) *queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	q := &queue[T]{
		buf:         make([]T, initialCapacity),
		capacity:    initialCapacity,
		maxCapacity: maxCapacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item, growing the buffer if needed.
func (q *queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold && q.capacity < q.maxCapacity {
		q.grow()
	}
	if q.count == q.capacity {
		return ErrQueueFull
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.pushed++

	q.cond.Signal()
	return nil
}

// PopBatch blocks until at least one item is queued or the queue is closed,
// then removes up to max items (all if max <= 0). It returns false once the
// queue is closed and empty.
func (q *queue[T]) PopBatch(max int) ([]T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		return nil, false
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		out[i] = q.buf[q.head]
		q.buf[q.head] = zero // release for GC
		q.head = (q.head + 1) % q.capacity
	}
	q.count -= n
	q.popped += int64(n)
	return out, true
}

// Close rejects further pushes and wakes blocked readers. Items already
// queued can still be popped.
func (q *queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// queueStats contains queue statistics.
type queueStats struct {
	Queued   int
	Capacity int
	Pushed   int64
	Popped   int64
	Resizes  int
}

func (q *queue[T]) Stats() queueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queueStats{
		Queued:   q.count,
		Capacity: q.capacity,
		Pushed:   q.pushed,
		Popped:   q.popped,
		Resizes:  q.resizes,
	}
}

// grow doubles the capacity, bounded by maxCapacity. Must be called with
// lock held.
func (q *queue[T]) grow() {
	newCapacity := q.capacity * 2
	if newCapacity > q.maxCapacity {
		newCapacity = q.maxCapacity
	}
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizes++
}
