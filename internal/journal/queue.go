package journal

import "sync"

// Queue is a thread-safe FIFO ring that doubles its capacity when it
// reaches 70% full, up to a fixed limit. Push never blocks: once the limit
// is reached new items are rejected.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	limit    int
	closed   bool

	// Stats
	pushed   int64
	drained  int64
	rejected int64
	resizes  int
}

// NewQueue creates a queue that starts at initialCapacity and never holds
// more than limit items.
func NewQueue[T any](initialCapacity, limit int) *Queue[T] {
	if limit < 1 {
		limit = 1
	}
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if initialCapacity > limit {
		initialCapacity = limit
	}
	return &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		limit:    limit,
	}
}

// Push appends item. Returns false if the queue is closed or full.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.count >= q.limit {
		q.rejected++
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold && q.capacity < q.limit {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.pushed++
	return true
}

// DrainTo removes up to max items (all when max <= 0) in FIFO order.
func (q *Queue[T]) DrainTo(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		out[i] = q.buf[q.head]
		q.buf[q.head] = zero // Clear reference for GC
		q.head = (q.head + 1) % q.capacity
	}
	q.count -= n
	q.drained += int64(n)
	return out
}

// Close rejects all further pushes. Queued items can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:    q.count,
		Capacity: q.capacity,
		Limit:    q.limit,
		Pushed:   q.pushed,
		Drained:  q.drained,
		Rejected: q.rejected,
		Resizes:  q.resizes,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count    int
	Capacity int
	Limit    int
	Pushed   int64
	Drained  int64
	Rejected int64
	Resizes  int
}

// grow doubles capacity, capped at limit. Must be called with lock held.
func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	if newCapacity > q.limit {
		newCapacity = q.limit
	}
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
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
