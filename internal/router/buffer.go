package router

import (
	"sync"
)

// Buffer is a thread-safe FIFO that doubles its ring when full.
// Send never blocks and never drops while the buffer is open.
type Buffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int // read position
	count  int
	closed bool

	// Stats
	totalIn   int64
	totalOut  int64
	highWater int
	grows     int
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer[T any](initialCapacity int) *Buffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &Buffer[T]{
		ring: make([]T, initialCapacity),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. Returns false if the buffer is closed.
func (b *Buffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if b.count == len(b.ring) {
		b.grow()
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.totalIn++
	if b.count > b.highWater {
		b.highWater = b.count
	}

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed.
// After Close, remaining items are still returned; ok is false once empty.
func (b *Buffer[T]) Receive() (item T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.count == 0 {
		return item, false
	}
	return b.popLocked(), true
}

// TryReceive returns an item without blocking.
func (b *Buffer[T]) TryReceive() (item T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return item, false
	}
	return b.popLocked(), true
}

// Close stops accepting items and wakes all receivers.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Discard drops every queued item and returns how many were dropped.
func (b *Buffer[T]) Discard() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	var zero T
	for i := 0; i < b.count; i++ {
		b.ring[(b.head+i)%len(b.ring)] = zero
	}
	b.head = 0
	b.count = 0
	return n
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count     int
	Capacity  int
	TotalIn   int64
	TotalOut  int64
	HighWater int
	Grows     int
}

// Stats returns buffer statistics.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:     b.count,
		Capacity:  len(b.ring),
		TotalIn:   b.totalIn,
		TotalOut:  b.totalOut,
		HighWater: b.highWater,
		Grows:     b.grows,
	}
}

// popLocked removes the head item. Must be called with lock held and count > 0.
func (b *Buffer[T]) popLocked() T {
	item := b.ring[b.head]
	var zero T
	b.ring[b.head] = zero // Clear reference for GC
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.totalOut++
	return item
}

// grow doubles the ring. Must be called with lock held.
func (b *Buffer[T]) grow() {
	next := make([]T, len(b.ring)*2)
	for i := 0; i < b.count; i++ {
		next[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = next
	b.head = 0
	b.grows++
}
