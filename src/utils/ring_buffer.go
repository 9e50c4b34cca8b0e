package utils

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer. Appending at capacity evicts the
// oldest element.
// -----------------------------------------------------------------------------

type RingBuffer[T any] struct {
	data     []T
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultDebugLogCapacity
	}

	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Append adds an element, overwriting the oldest one when full
func (rb *RingBuffer[T]) Append(item T) {
	rb.data[rb.index] = item
	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// NewestFirst returns all data, newest element first
func (rb *RingBuffer[T]) NewestFirst() []T {
	result := make([]T, rb.size)
	for i := 0; i < rb.size; i++ {
		result[i] = rb.data[(rb.index-1-i+2*rb.capacity)%rb.capacity]
	}
	return result
}

// -----------------------------------------------------------------------------

// Clear resets the buffer and releases references held by old elements
func (rb *RingBuffer[T]) Clear() {
	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.index = 0
	rb.size = 0
}
