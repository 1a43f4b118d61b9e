// Package cache provides the bounded and time-expiring caches shared by the
// event pipeline. Every type here owns its lock; callers never synchronize.
package cache

// FIFO is a fixed-capacity key/value store that evicts in insertion order.
// Keys live in a ring buffer and an index map; both always hold the same key
// set. FIFO is not safe for concurrent use.
type FIFO[K comparable, V any] struct {
	keys  []K
	index map[K]V
	head  int // position of the oldest key
	size  int
}

// NewFIFO creates a FIFO holding at most capacity entries.
func NewFIFO[K comparable, V any](capacity int) *FIFO[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO[K, V]{
		keys:  make([]K, capacity),
		index: make(map[K]V, capacity),
	}
}

// Get returns the value stored for key.
func (f *FIFO[K, V]) Get(key K) (V, bool) {
	v, ok := f.index[key]
	return v, ok
}

// Contains reports whether key is present.
func (f *FIFO[K, V]) Contains(key K) bool {
	_, ok := f.index[key]
	return ok
}

// Put stores value under key. A new key evicts the oldest one when the ring
// is full; the evicted key is returned. Re-putting an existing key updates
// its value without changing its eviction position.
func (f *FIFO[K, V]) Put(key K, value V) (evicted K, didEvict bool) {
	if _, ok := f.index[key]; ok {
		f.index[key] = value
		return evicted, false
	}

	if f.size == len(f.keys) {
		evicted = f.keys[f.head]
		delete(f.index, evicted)
		var zero K
		f.keys[f.head] = zero
		f.head = (f.head + 1) % len(f.keys)
		f.size--
		didEvict = true
	}

	tail := (f.head + f.size) % len(f.keys)
	f.keys[tail] = key
	f.index[key] = value
	f.size++
	return evicted, didEvict
}

// Len returns the number of stored entries.
func (f *FIFO[K, V]) Len() int {
	return f.size
}

// Cap returns the capacity.
func (f *FIFO[K, V]) Cap() int {
	return len(f.keys)
}

// Keys returns keys oldest first.
func (f *FIFO[K, V]) Keys() []K {
	out := make([]K, 0, f.size)
	for i := 0; i < f.size; i++ {
		out = append(out, f.keys[(f.head+i)%len(f.keys)])
	}
	return out
}
