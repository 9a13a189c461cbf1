package capture

import "sync"

// Buffer is a bounded FIFO that drops the oldest element when full. The
// producer side never blocks; the camera and PCM callbacks must not stall
// on a slow consumer.
type Buffer[T any] struct {
	mu      sync.Mutex
	items   []T
	cap     int
	dropped int64
}

func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Put appends the item, evicting the oldest element if the buffer is full.
// Returns true when an eviction happened.
func (b *Buffer[T]) Put(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := false
	if len(b.items) >= b.cap {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
		b.dropped++
		evicted = true
	}
	b.items = append(b.items, item)
	return evicted
}

// Drain removes and returns all buffered items in FIFO order.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, len(b.items))
	copy(out, b.items)
	b.items = b.items[:0]
	return out
}

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Buffer[T]) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
