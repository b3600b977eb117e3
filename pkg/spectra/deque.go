package spectra

// deque is a FIFO with indexed access from the front. Popped slots are
// reclaimed once the dead prefix outgrows the live part.
type deque[T any] struct {
	items []T
	head  int
}

func (q *deque[T]) Len() int { return len(q.items) - q.head }

func (q *deque[T]) Push(v T) { q.items = append(q.items, v) }

func (q *deque[T]) Front() T { return q.items[q.head] }

func (q *deque[T]) Back() T { return q.items[len(q.items)-1] }

func (q *deque[T]) At(i int) T { return q.items[q.head+i] }

func (q *deque[T]) PopFront() T {
	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	switch {
	case q.head == len(q.items):
		q.items, q.head = q.items[:0], 0
	case q.head >= 64 && 2*q.head >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items, q.head = q.items[:n], 0
	}
	return v
}

func (q *deque[T]) Clear() {
	clear(q.items)
	q.items, q.head = q.items[:0], 0
}

func (q *deque[T]) clone() deque[T] {
	return deque[T]{items: append([]T(nil), q.items[q.head:]...)}
}
