package metrics

// Ring is a fixed-capacity FIFO. Push is O(1) and overwrites the oldest
// element once full. A Ring is not safe for concurrent use on its own;
// Store serializes access to the rings it owns.
type Ring[T any] struct {
	data  []T
	head  int // next write position
	count int
}

// NewRing returns a ring holding at most size elements. Sizes below one are
// raised to one.
func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{data: make([]T, size)}
}

// Push appends v, evicting the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// Len returns the number of elements currently held.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Snapshot returns a chronological copy of the contents, oldest first.
func (r *Ring[T]) Snapshot() []T {
	return r.Last(r.count)
}

// Last returns a copy of the n most recent elements, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}

	out := make([]T, n)
	size := len(r.data)
	start := (r.head - n + size) % size
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%size]
	}
	return out
}

// Newest returns the most recently pushed element.
func (r *Ring[T]) Newest() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.data[(r.head-1+len(r.data))%len(r.data)], true
}

// Reset empties the ring without releasing its storage.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.count = 0
}
