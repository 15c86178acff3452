// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import "context"

// Producer is the enqueueing half of the queue.
//
// The element is passed by pointer to avoid copying large structs; the queue
// serializes the pointed-to value, so the original can be modified after the
// call returns. Offer never blocks; Put waits for free blocks and honors
// context cancellation.
type Producer[T any] interface {
	// Offer enqueues the element, or returns ErrWouldBlock when the free
	// blocks cannot hold it.
	Offer(elem *T) error

	// Put enqueues the element, blocking until enough free blocks are
	// available or ctx is done.
	Put(ctx context.Context, elem *T) error
}

// Consumer is the dequeueing half of the queue.
//
// Elements are returned by value, re-deserialized from the mapping. Poll
// never blocks; Take waits for an element and honors context cancellation.
type Consumer[T any] interface {
	// Poll dequeues the head element, or returns ErrWouldBlock when the
	// queue is empty.
	Poll() (T, error)

	// Take dequeues the head element, blocking until one is available or
	// ctx is done.
	Take(ctx context.Context) (T, error)
}

var (
	_ Producer[int] = (*Queue[int])(nil)
	_ Consumer[int] = (*Queue[int])(nil)
)
