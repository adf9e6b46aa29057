// Package spsc provides a bounded lock-free queue for exactly one producer
// goroutine and one consumer goroutine. The driver uses it to pass events
// from the Receiver to the Conductor without contending on a lock.
package spsc

import (
	"sync/atomic"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

type paddedCounter struct {
	_     [concurrent.CacheLineLength - 8]byte
	value atomic.Int64
	_     [concurrent.CacheLineLength - 8]byte
}

// Queue is a single-producer single-consumer bounded queue. Capacity is
// rounded up to a power of two.
type Queue[T any] struct {
	buffer []atomic.Pointer[T]
	mask   int64

	head      paddedCounter // consumer cursor
	headCache int64         // producer's view of head
	tail      paddedCounter // producer cursor
}

// NewQueue creates a queue holding at least requestedCapacity elements.
func NewQueue[T any](requestedCapacity int) *Queue[T] {
	capacity := int64(1)
	for capacity < int64(requestedCapacity) {
		capacity <<= 1
	}

	return &Queue[T]{
		buffer: make([]atomic.Pointer[T], capacity),
		mask:   capacity - 1,
	}
}

// Capacity returns the number of slots in the queue.
func (q *Queue[T]) Capacity() int {
	return len(q.buffer)
}

// Offer enqueues value. It returns errors.ErrInsufficientCapacity when the
// consumer has not drained enough slots, which the producer treats as
// back-pressure.
func (q *Queue[T]) Offer(value *T) error {
	tail := q.tail.value.Load()
	wrapPoint := tail - q.mask - 1

	if q.headCache <= wrapPoint {
		q.headCache = q.head.value.Load()
		if q.headCache <= wrapPoint {
			return errors.ErrInsufficientCapacity
		}
	}

	q.buffer[tail&q.mask].Store(value)
	q.tail.value.Store(tail + 1)
	return nil
}

// Poll dequeues the next value or returns nil when the queue is empty.
func (q *Queue[T]) Poll() *T {
	head := q.head.value.Load()
	slot := &q.buffer[head&q.mask]

	value := slot.Load()
	if value == nil {
		return nil
	}

	slot.Store(nil)
	q.head.value.Store(head + 1)
	return value
}

// Drain polls until the queue is empty or limit elements have been consumed,
// invoking handler for each. It returns the number drained.
func (q *Queue[T]) Drain(handler func(*T), limit int) int {
	count := 0
	for count < limit {
		value := q.Poll()
		if value == nil {
			break
		}
		handler(value)
		count++
	}
	return count
}

// Size returns an estimate of the queued element count.
func (q *Queue[T]) Size() int {
	head := q.head.value.Load()
	tail := q.tail.value.Load()
	size := tail - head
	if size < 0 {
		return 0
	}
	return int(size)
}
