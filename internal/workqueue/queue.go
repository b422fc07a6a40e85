// Package workqueue provides the shared work source that pull-based worker
// pools drain.
//
// A Queue is filled once at construction and closed immediately, so Pop never
// blocks: it either hands out the next item or reports that the queue is
// drained. Every item is delivered to exactly one caller.
package workqueue

// Queue is a fixed set of items consumed concurrently by any number of workers.
type Queue[T any] struct {
	items chan T
}

// New loads items in order and closes the queue to further additions.
func New[T any](items []T) *Queue[T] {
	ch := make(chan T, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	return &Queue[T]{items: ch}
}

// Pop returns the next item, or false once the queue is drained.
func (q *Queue[T]) Pop() (T, bool) {
	select {
	case item, ok := <-q.items:
		return item, ok
	default:
		var zero T
		return zero, false
	}
}

// Len reports how many items remain.
func (q *Queue[T]) Len() int {
	return len(q.items)
}
