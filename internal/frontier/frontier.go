// Package frontier provides the blocking FIFO that feeds crawl workers and
// decides when a crawl has run out of work.
//
// The queue also tracks how many popped items are still being processed.
// Pop, Push, Done and Stop share one lock, so "nobody is working and nothing
// is queued" is observed atomically with respect to every push.
package frontier

import "sync"

// Queue is an unbounded FIFO with broadcast shutdown.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	active  int
	stopped bool
}

// New returns an empty, running queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item and wakes one waiting consumer. It reports false and
// drops the item once the queue has been stopped.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available or the queue is stopped. A
// successful pop counts the item as in flight until Done is called.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.stopped {
		q.cond.Wait()
	}
	var zero T
	if q.stopped {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.active++
	return item, true
}

// Done marks one popped item as finished. When it was the last item in
// flight and nothing is queued, no more work can ever arrive: the queue is
// stopped and Done reports true.
func (q *Queue[T]) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active > 0 {
		q.active--
	}
	if q.active == 0 && len(q.items) == 0 && !q.stopped {
		q.stopLocked()
		return true
	}
	return false
}

// Stop closes the queue, discards pending items and wakes every blocked
// consumer. Calling it more than once is harmless.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopLocked()
}

func (q *Queue[T]) stopLocked() {
	if q.stopped {
		return
	}
	q.stopped = true
	clear(q.items)
	q.items = nil
	q.cond.Broadcast()
}

// IsEmpty reports whether nothing is queued right now.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Active returns the number of popped items not yet marked Done.
func (q *Queue[T]) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Stopped reports whether Stop has run.
func (q *Queue[T]) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
