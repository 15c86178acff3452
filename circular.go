// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// CircularBuffer is a fixed-capacity ring for write-heavy sampling.
//
// Writers are wait-free: Add fetch-and-increments a monotonic cursor and
// stores into the slot it indexes. Readers take a best-effort copy: Snapshot
// copies the whole backing array and then discards the slots writers touched
// during the copy, so the result only contains samples that were fully
// present for the duration of the read, in insertion order.
//
// The buffer is intended for monitoring-style workloads where sampling vastly
// outnumbers inspection, such as latency and throughput samples. It is not a
// queue: samples are overwritten, never consumed.
type CircularBuffer[T any] struct {
	cursor atomix.Int64
	buffer []T
}

// NewCircularBuffer creates a circular buffer with the given capacity.
// Panics if capacity < 1.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		panic("pfq: buffer capacity must be positive")
	}
	return &CircularBuffer[T]{buffer: make([]T, capacity)}
}

// Add stores a sample at the cursor point of the buffer. O(1), wait-free.
func (b *CircularBuffer[T]) Add(sample T) {
	c := b.cursor.AddAcqRel(1) - 1
	b.buffer[c%int64(len(b.buffer))] = sample
}

// Snapshot returns a stable copy of the buffered samples, oldest first.
//
// The result may be shorter than the capacity: any slot the writers replaced
// while the copy was taken is unstable and dropped. In the pathological case
// where writers lap the reader during the copy, the whole copy is returned
// as a best-effort window.
func (b *CircularBuffer[T]) Snapshot() []T {
	n := int64(len(b.buffer))

	before := b.cursor.LoadAcquire()
	if before == 0 {
		return make([]T, 0)
	}

	snap := make([]T, n)
	copy(snap, b.buffer)

	after := b.cursor.LoadAcquire()

	size := n - (after - before)
	last := before - 1

	// Writers replaced every slot while the copy ran. Keep the whole copy,
	// ordered as the window ending at the last slot written before it.
	if size <= 0 {
		size = n
	}

	start := last - (size - 1)

	// The cursor has not wrapped yet: the stable window is the array prefix.
	if last < n {
		size = last + 1
		start = 0
	}

	result := make([]T, size)
	so := start % n
	eo := last % n
	if so > eo {
		// The window wraps the physical end of the array.
		c := copy(result, snap[so:])
		copy(result[c:], snap[:eo+1])
	} else {
		copy(result, snap[so:eo+1])
	}
	return result
}

// CompleteSnapshot retries Snapshot until it returns a full-capacity window.
//
// On buffers written faster than they can be copied this may spin for a
// while; in practice it rarely retries at all.
func (b *CircularBuffer[T]) CompleteSnapshot() []T {
	sw := spin.Wait{}
	snap := b.Snapshot()
	for len(snap) != len(b.buffer) {
		sw.Once()
		snap = b.Snapshot()
	}
	return snap
}

// Cap returns the buffer capacity.
func (b *CircularBuffer[T]) Cap() int {
	return len(b.buffer)
}
