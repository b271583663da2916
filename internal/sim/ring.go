package sim

// ringBuffer is a fixed-capacity FIFO. Appending past capacity evicts the
// oldest entry.
type ringBuffer[T any] struct {
	buf   []T
	head  int
	count int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	return &ringBuffer[T]{buf: make([]T, capacity)}
}

func (r *ringBuffer[T]) Append(v T) {
	if len(r.buf) == 0 {
		return
	}
	tail := (r.head + r.count) % len(r.buf)
	r.buf[tail] = v
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
}

func (r *ringBuffer[T]) Len() int { return r.count }

// Recent returns up to k entries, newest first.
func (r *ringBuffer[T]) Recent(k int) []T {
	if k > r.count {
		k = r.count
	}
	if k <= 0 {
		return nil
	}
	out := make([]T, 0, k)
	for i := 0; i < k; i++ {
		idx := (r.head + r.count - 1 - i) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
