package fifoqueue

import (
	"fmt"
	mathbits "math/bits"
	"sync"

	"github.com/ef-ds/deque"
)

// FifoQueue implements a FIFO queue with max capacity and length observer.
// Elements pushed beyond the capacity are dropped. By default the capacity
// is the largest int value. Each time the length changes, the
// QueueLengthObserver is called with the new length.
//
// FifoQueue is concurrency safe. The QueueLengthObserver must be
// non-blocking.
type FifoQueue[T any] struct {
	mu             sync.RWMutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// ConstructorOption configures a FifoQueue at construction time.
type ConstructorOption func(*config) error

// QueueLengthObserver is called with the new length of the queue.
type QueueLengthObserver func(int)

type config struct {
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// WithCapacity sets the max number of elements the queue can hold.
func WithCapacity(capacity int) ConstructorOption {
	return func(cfg *config) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for Fifo queue must be positive")
		}
		cfg.maxCapacity = capacity
		return nil
	}
}

// WithLengthObserver sets the callback invoked on every length change.
func WithLengthObserver(callback QueueLengthObserver) ConstructorOption {
	return func(cfg *config) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		cfg.lengthObserver = callback
		return nil
	}
}

func NewFifoQueue[T any](options ...ConstructorOption) (*FifoQueue[T], error) {
	cfg := config{
		maxCapacity:    1<<(mathbits.UintSize-1) - 1,
		lengthObserver: func(int) { /* noop */ },
	}
	for _, opt := range options {
		err := opt(&cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to apply constructor option to fifoqueue queue: %w", err)
		}
	}
	return &FifoQueue[T]{
		maxCapacity:    cfg.maxCapacity,
		lengthObserver: cfg.lengthObserver,
	}, nil
}

// Push appends the element to the tail of the queue. It returns false if
// the queue is full and the element was dropped.
func (q *FifoQueue[T]) Push(element T) bool {
	length, pushed := q.push(element)
	if pushed {
		q.lengthObserver(length)
	}
	return pushed
}

func (q *FifoQueue[T]) push(element T) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	length := q.queue.Len()
	if length < q.maxCapacity {
		q.queue.PushBack(element)
		return length + 1, true
	}
	return length, false
}

// Front returns the head of the queue without removing it.
func (q *FifoQueue[T]) Front() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	element, ok := q.queue.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return element.(T), true
}

// Pop removes and returns the head of the queue.
func (q *FifoQueue[T]) Pop() (T, bool) {
	element, length, ok := q.pop()
	if !ok {
		var zero T
		return zero, false
	}
	q.lengthObserver(length)
	return element, true
}

func (q *FifoQueue[T]) pop() (T, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	element, ok := q.queue.PopFront()
	if !ok {
		var zero T
		return zero, q.queue.Len(), false
	}
	return element.(T), q.queue.Len(), true
}

func (q *FifoQueue[T]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.queue.Len()
}
