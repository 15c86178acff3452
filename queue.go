// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/sirupsen/logrus"

	"code.hybscloud.com/pfq/internal/mmap"
)

const (
	// prefixSize is the length prefix heading every record.
	prefixSize = 4

	// headerSize holds five big-endian int32 fields:
	// fileSize, blockSize, count, head, tail.
	headerSize = 5 * 4
)

// Queue is a bounded blocking FIFO queue backed by a fixed-size memory-mapped
// file.
//
// Elements are serialized by the queue's [Codec] and stored as length-prefixed
// records in a ring of fixed-size blocks after a reserved header region. The
// mapping is flushed at the platform's convenience, so entries survive normal
// process restarts; sudden power loss may corrupt the file. The queue is not
// suitable for guaranteeing delivery of financial transactions.
//
// Capacity is storage-bound, not element-bound: producers block (Put) or fail
// (Offer) when the serialized element does not fit in the free blocks, and
// consumers block (Take) or fail (Poll) on an empty queue. Both semaphores are
// fair, so steady load cannot starve a waiter.
//
// All methods are safe for concurrent use by any number of producers,
// consumers and observers, except Clear and Close, which must be externally
// synchronized with in-flight operations.
type Queue[T any] struct {
	codec Codec[T]
	log   *logrus.Entry

	m    *mmap.Map
	data []byte

	blocks *permits // free ring blocks
	slots  *permits // enqueued records

	// mu guards count, head, tail and the header bytes of the mapping.
	// Writers hold it only to move cursors and rewrite the header;
	// payload decoding happens under the read side.
	mu sync.RWMutex

	fileSize    int
	blockSize   int
	firstUsable int

	head  int
	tail  int
	count atomix.Int64

	closed atomix.Bool
}

// Open maps the file at path to a persistent queue using the default
// [GobCodec].
//
// If the file already holds data it must have been written by a queue with
// exactly the same blockSize and fileSize; its resident elements become
// available again. Otherwise a fresh queue is initialized.
//
// blockSize must be at least 4 and divide fileSize, and fileSize must leave
// at least one usable block after the reserved header region.
func Open[T any](path string, blockSize, fileSize int) (*Queue[T], error) {
	return OpenCodec[T](path, blockSize, fileSize, GobCodec[T]{})
}

// OpenCodec maps the file at path to a persistent queue with an explicit
// codec. See [Open].
func OpenCodec[T any](path string, blockSize, fileSize int, codec Codec[T]) (*Queue[T], error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: codec must not be nil", ErrGeometry)
	}
	if blockSize < prefixSize {
		return nil, fmt.Errorf("%w: block size %d must be at least %d bytes",
			ErrGeometry, blockSize, prefixSize)
	}
	if fileSize < blockSize {
		return nil, fmt.Errorf("%w: file size %d must hold at least one block of %d bytes",
			ErrGeometry, fileSize, blockSize)
	}
	if fileSize%blockSize != 0 {
		return nil, fmt.Errorf("%w: file size %d is not a multiple of block size %d",
			ErrGeometry, fileSize, blockSize)
	}

	q := &Queue[T]{
		codec:     codec,
		log:       logrus.WithField("queue", path),
		fileSize:  fileSize,
		blockSize: blockSize,
	}
	q.firstUsable = q.normalize(headerSize)

	if q.usableBlocks() <= 0 {
		return nil, fmt.Errorf("%w: sizes leave no usable blocks after the header",
			ErrGeometry)
	}

	m, existed, err := mmap.Open(path, fileSize)
	if err != nil {
		return nil, fmt.Errorf("pfq: map %s: %w", path, err)
	}
	q.m = m
	q.data = m.Bytes()

	if existed {
		if err := q.loadHeader(); err != nil {
			_ = m.Close()
			return nil, err
		}
	} else {
		q.head = q.firstUsable
		q.tail = q.firstUsable
		q.storeHeader()
	}

	live, err := q.liveBlocks()
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	usable := int64(q.usableBlocks())
	q.slots = newPermits(usable, q.count.LoadRelaxed())
	q.blocks = newPermits(usable, usable-int64(live))

	q.log.WithFields(logrus.Fields{
		"blockSize": blockSize,
		"fileSize":  fileSize,
		"count":     q.count.LoadRelaxed(),
	}).Debug("mapped persistent queue")

	return q, nil
}

// asBlocks returns the number of blocks the given number of bytes consumes,
// rounding up.
func (q *Queue[T]) asBlocks(size int) int {
	blocks := size / q.blockSize
	if size%q.blockSize > 0 {
		blocks++
	}
	return blocks
}

// normalize rounds the given byte offset up to the nearest block boundary.
func (q *Queue[T]) normalize(size int) int {
	return q.asBlocks(size) * q.blockSize
}

// usableBlocks returns the number of blocks in the ring area after the
// reserved header region.
func (q *Queue[T]) usableBlocks() int {
	return q.asBlocks(q.fileSize) - q.asBlocks(headerSize)
}

func (q *Queue[T]) view() view {
	return view{data: q.data, mark: q.firstUsable}
}

// storeHeader rewrites the header bytes at the start of the mapping from the
// in-memory fields. The caller must hold the write lock (or have exclusive
// access during Open).
func (q *Queue[T]) storeHeader() {
	v := q.view()
	v.putUint32(uint32(q.fileSize))
	v.putUint32(uint32(q.blockSize))
	v.putUint32(uint32(q.count.LoadRelaxed()))
	v.putUint32(uint32(q.head))
	v.putUint32(uint32(q.tail))
}

// loadHeader validates an existing file's header against the construction
// parameters and restores the cursors.
func (q *Queue[T]) loadHeader() error {
	v := q.view()

	if got := int(int32(v.uint32())); got != q.fileSize {
		return fmt.Errorf("%w: file size %d, want %d", ErrHeaderMismatch, got, q.fileSize)
	}
	if got := int(int32(v.uint32())); got != q.blockSize {
		return fmt.Errorf("%w: block size %d, want %d", ErrHeaderMismatch, got, q.blockSize)
	}

	count := int(int32(v.uint32()))
	head := int(int32(v.uint32()))
	tail := int(int32(v.uint32()))

	if count < 0 || count > q.usableBlocks() {
		return fmt.Errorf("%w: element count %d out of range", ErrCorrupted, count)
	}
	if head < q.firstUsable || head >= q.fileSize || head%q.blockSize != 0 {
		return fmt.Errorf("%w: head cursor %d out of range", ErrCorrupted, head)
	}
	// A record ending flush with the mapping leaves the tail there until the
	// next write wraps it, so the file end itself is a legal tail.
	if tail < q.firstUsable || tail > q.fileSize || tail%q.blockSize != 0 {
		return fmt.Errorf("%w: tail cursor %d out of range", ErrCorrupted, tail)
	}

	q.count.StoreRelaxed(int64(count))
	q.head = head
	q.tail = tail
	return nil
}

// liveBlocks walks the resident records from the head cursor and sums the
// blocks they occupy, validating the chain against the tail cursor. The
// producer semaphore starts with only the genuinely free blocks.
func (q *Queue[T]) liveBlocks() (int, error) {
	usable := q.usableBlocks()
	blocks := 0
	pos := q.head
	v := q.view()

	for i := int64(0); i < q.count.LoadRelaxed(); i++ {
		v.pos = pos
		size := int(int32(v.uint32()))
		if size < 0 || q.asBlocks(prefixSize+size) > usable {
			return 0, fmt.Errorf("%w: record length %d at offset %d", ErrCorrupted, size, pos)
		}
		blocks += q.asBlocks(prefixSize + size)
		if blocks > usable {
			return 0, fmt.Errorf("%w: resident records exceed ring capacity", ErrCorrupted)
		}
		next := q.normalize(pos + prefixSize + size)
		if next >= q.fileSize {
			next = next - q.fileSize + q.firstUsable
		}
		pos = next
	}

	if pos != q.tail && !(q.tail == q.fileSize && pos == q.firstUsable) {
		return 0, fmt.Errorf("%w: record chain ends at %d, tail is %d", ErrCorrupted, pos, q.tail)
	}
	return blocks, nil
}

// encode serializes the element and returns the payload together with the
// number of blocks the record requires.
func (q *Queue[T]) encode(elem *T) ([]byte, int64, error) {
	payload, err := q.codec.Encode(elem)
	if err != nil {
		return nil, 0, err
	}
	return payload, int64(q.asBlocks(prefixSize + len(payload))), nil
}

// appendTail writes the length-prefixed payload at the tail cursor, advances
// the tail, and persists the header. The caller has already reserved the
// record's blocks.
func (q *Queue[T]) appendTail(payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.LoadAcquire() {
		return ErrClosed
	}

	v := q.view()
	v.pos = q.tail

	// The previous write may have left the tail flush with the mapping end.
	if v.remaining() == 0 {
		v.pos = q.firstUsable
	}

	// The prefix always fits contiguously: the cursor is block-aligned and
	// blocks are at least four bytes. The payload wraps as needed.
	v.putUint32(uint32(len(payload)))
	v.write(payload)

	q.count.AddAcqRel(1)
	q.slots.release(1)

	q.tail = q.normalize(v.pos)
	q.storeHeader()
	return nil
}

// Offer enqueues the element without blocking.
//
// Returns ErrWouldBlock when the free blocks cannot hold the serialized
// element; the queue is left unchanged.
func (q *Queue[T]) Offer(elem *T) error {
	if q.closed.LoadAcquire() {
		return ErrClosed
	}
	payload, need, err := q.encode(elem)
	if err != nil {
		return err
	}
	if !q.blocks.tryAcquire(need) {
		return ErrWouldBlock
	}
	if err := q.appendTail(payload); err != nil {
		q.blocks.release(need)
		return err
	}
	return nil
}

// OfferTimeout enqueues the element, waiting up to d for enough free blocks.
// Returns ErrWouldBlock when the deadline elapses first.
func (q *Queue[T]) OfferTimeout(elem *T, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	err := q.put(ctx, elem)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrWouldBlock
	}
	return err
}

// Put enqueues the element, blocking until enough free blocks are available.
// Cancelling ctx abandons the wait and returns the context error; no permits
// are retained.
func (q *Queue[T]) Put(ctx context.Context, elem *T) error {
	return q.put(ctx, elem)
}

func (q *Queue[T]) put(ctx context.Context, elem *T) error {
	if q.closed.LoadAcquire() {
		return ErrClosed
	}
	payload, need, err := q.encode(elem)
	if err != nil {
		return err
	}
	if err := q.blocks.acquire(ctx, need); err != nil {
		return err
	}
	if err := q.appendTail(payload); err != nil {
		q.blocks.release(need)
		return err
	}
	return nil
}

// Add enqueues the element like Offer, but reports exhausted capacity as
// ErrNoCapacity instead of the ErrWouldBlock control flow signal.
func (q *Queue[T]) Add(elem *T) error {
	err := q.Offer(elem)
	if errors.Is(err, ErrWouldBlock) {
		return ErrNoCapacity
	}
	return err
}

// advanceHead consumes the record at the head cursor: it reads the length,
// moves the head past the record, and persists the header. It returns the
// record's offset and payload length for the subsequent copy. The caller
// must hold the write lock.
func (q *Queue[T]) advanceHead() (pos, size int, err error) {
	usable := q.usableBlocks()

	v := q.view()
	v.pos = q.head
	size = int(int32(v.uint32()))
	if size < 0 || q.asBlocks(prefixSize+size) > usable {
		q.log.WithField("offset", q.head).Error("corrupted record length")
		return 0, 0, fmt.Errorf("%w: record length %d at offset %d", ErrCorrupted, size, q.head)
	}

	next := q.normalize(v.pos + size)
	if next >= q.fileSize {
		next = next - q.fileSize + q.firstUsable
	}

	pos = q.head
	q.head = next
	q.count.AddAcqRel(-1)
	q.storeHeader()
	return pos, size, nil
}

// claim copies the payload of a consumed record out of the mapping under the
// read lock, releases the blocks the record occupied, and decodes it.
func (q *Queue[T]) claim(pos, size int) (T, error) {
	q.mu.RLock()
	if q.closed.LoadAcquire() {
		q.mu.RUnlock()
		q.blocks.release(int64(q.asBlocks(prefixSize + size)))
		var zero T
		return zero, ErrClosed
	}
	v := q.view()
	v.pos = pos
	_ = v.uint32()
	payload := v.read(size)
	q.mu.RUnlock()

	q.blocks.release(int64(q.asBlocks(prefixSize + size)))

	return q.decode(payload)
}

func (q *Queue[T]) decode(payload []byte) (T, error) {
	elem, err := q.codec.Decode(payload)
	if err != nil {
		q.log.WithError(err).Error("record decode failed")
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return elem, nil
}

// removeHead removes the record at the head cursor. The caller has already
// acquired one consumer permit. Decoding happens outside the write lock so
// concurrent observers can proceed.
func (q *Queue[T]) removeHead() (T, error) {
	q.mu.Lock()
	if q.closed.LoadAcquire() {
		q.mu.Unlock()
		q.slots.release(1)
		var zero T
		return zero, ErrClosed
	}
	pos, size, err := q.advanceHead()
	q.mu.Unlock()
	if err != nil {
		// The record was not consumed; hand the permit back.
		q.slots.release(1)
		var zero T
		return zero, err
	}

	return q.claim(pos, size)
}

// Poll dequeues the head element without blocking.
// Returns ErrWouldBlock when the queue is empty.
func (q *Queue[T]) Poll() (T, error) {
	if q.closed.LoadAcquire() {
		var zero T
		return zero, ErrClosed
	}
	if !q.slots.tryAcquire(1) {
		var zero T
		return zero, ErrWouldBlock
	}
	return q.removeHead()
}

// PollTimeout dequeues the head element, waiting up to d for one to arrive.
// Returns ErrWouldBlock when the deadline elapses first.
func (q *Queue[T]) PollTimeout(d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	elem, err := q.take(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return elem, ErrWouldBlock
	}
	return elem, err
}

// Take dequeues the head element, blocking until one is available.
// Cancelling ctx abandons the wait and returns the context error; no permits
// are retained.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	return q.take(ctx)
}

func (q *Queue[T]) take(ctx context.Context) (T, error) {
	if q.closed.LoadAcquire() {
		var zero T
		return zero, ErrClosed
	}
	if err := q.slots.acquire(ctx, 1); err != nil {
		var zero T
		return zero, err
	}
	return q.removeHead()
}

// Peek returns a copy of the head element without consuming it.
//
// The element is re-deserialized on every call: two consecutive peeks on an
// idle queue return equal but distinct values. Returns ErrWouldBlock on an
// empty queue.
func (q *Queue[T]) Peek() (T, error) {
	var zero T
	if q.closed.LoadAcquire() {
		return zero, ErrClosed
	}

	// Early rejection before taking the lock: no permits means the queue is
	// empty, or soon will be because every element is claimed already.
	if q.slots.available() == 0 {
		return zero, ErrWouldBlock
	}

	q.mu.RLock()
	if q.closed.LoadAcquire() {
		q.mu.RUnlock()
		return zero, ErrClosed
	}
	// Re-check under the lock: the permits observed above may have been
	// claimed by concurrent consumers in the meantime.
	if q.count.LoadAcquire() == 0 {
		q.mu.RUnlock()
		return zero, ErrWouldBlock
	}

	v := q.view()
	v.pos = q.head
	size := int(int32(v.uint32()))
	if size < 0 || q.asBlocks(prefixSize+size) > q.usableBlocks() {
		q.mu.RUnlock()
		return zero, fmt.Errorf("%w: record length %d at offset %d", ErrCorrupted, size, q.head)
	}
	payload := v.read(size)
	q.mu.RUnlock()

	return q.decode(payload)
}

// Element returns a copy of the head element like Peek, but reports an empty
// queue as ErrNoElement.
func (q *Queue[T]) Element() (T, error) {
	elem, err := q.Peek()
	if errors.Is(err, ErrWouldBlock) {
		return elem, ErrNoElement
	}
	return elem, err
}

// Remove dequeues the head element like Poll, but reports an empty queue as
// ErrNoElement.
func (q *Queue[T]) Remove() (T, error) {
	elem, err := q.Poll()
	if errors.Is(err, ErrWouldBlock) {
		return elem, ErrNoElement
	}
	return elem, err
}

// Len returns the number of currently enqueued elements. It is derived from
// the consumer permits without taking the header lock, so it is approximate
// under concurrent mutation.
func (q *Queue[T]) Len() int {
	return int(q.slots.available())
}

// IsEmpty reports whether the queue holds no elements. The count is read
// without synchronization.
func (q *Queue[T]) IsEmpty() bool {
	return q.count.LoadAcquire() == 0
}

// Cap returns the ring capacity in bytes: the upper bound on the sum of
// block-padded record sizes that can be resident at once.
func (q *Queue[T]) Cap() int {
	return q.usableBlocks() * q.blockSize
}

// RemainingCapacity returns the maximum positive int32. The queue is bounded
// by bytes, not element count, so no meaningful element capacity exists.
func (q *Queue[T]) RemainingCapacity() int {
	return math.MaxInt32
}

// Contains always returns false: elements are not deserialized from the
// mapping until they are requested, so containment cannot be answered.
// Identity-based removal and set queries are likewise not provided.
func (q *Queue[T]) Contains(any) bool {
	return false
}

// Clear empties the queue, resets the cursors, and re-issues every producer
// permit.
//
// Clear must be externally synchronized with concurrent producers and
// consumers; running it against in-flight operations leaves the permit
// accounting undefined.
func (q *Queue[T]) Clear() error {
	if q.closed.LoadAcquire() {
		return ErrClosed
	}

	// Stop allocation while the cursors reset.
	q.blocks.drain()
	q.slots.drain()

	q.mu.Lock()
	defer q.mu.Unlock()

	q.count.StoreRelaxed(0)
	q.head = q.firstUsable
	q.tail = q.firstUsable
	q.storeHeader()

	q.blocks.release(int64(q.usableBlocks()))

	q.log.Debug("queue cleared")
	return nil
}

// DrainTo dequeues every currently enqueued element into sink, in FIFO
// order, atomically with respect to other consumers. Returns the number
// drained.
func (q *Queue[T]) DrainTo(sink func(T)) (int, error) {
	return q.DrainToN(sink, math.MaxInt32)
}

// DrainToN dequeues up to max currently enqueued elements into sink, in FIFO
// order, under a single write-lock span. Returns the number drained.
func (q *Queue[T]) DrainToN(sink func(T), max int) (int, error) {
	if q.closed.LoadAcquire() {
		return 0, ErrClosed
	}

	claimed := int(q.slots.drain())
	elements := claimed
	if max < elements {
		elements = max
		if max < 0 {
			elements = 0
		}
		// Remit the permits beyond the requested amount.
		q.slots.release(int64(claimed - elements))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.LoadAcquire() {
		q.slots.release(int64(elements))
		return 0, ErrClosed
	}

	for i := 0; i < elements; i++ {
		pos, size, err := q.advanceHead()
		if err != nil {
			// The remaining records stay resident; remit their permits.
			q.slots.release(int64(elements - i))
			return i, err
		}

		v := q.view()
		v.pos = pos
		_ = v.uint32()
		payload := v.read(size)

		q.blocks.release(int64(q.asBlocks(prefixSize + size)))

		elem, err := q.decode(payload)
		if err != nil {
			q.slots.release(int64(elements - i - 1))
			return i, err
		}
		sink(elem)
	}
	return elements, nil
}

// Flush asks the OS to write the mapping's dirty pages to the file.
//
// Flush does not synchronize with concurrent mutation and promises no
// durability barrier; failures are logged and swallowed.
func (q *Queue[T]) Flush() {
	if q.closed.LoadAcquire() {
		return
	}
	if err := q.m.Sync(); err != nil {
		q.log.WithError(err).Debug("mapping flush failed")
	}
}

// Close flushes the mapping and unmaps the file. Every subsequent operation
// returns ErrClosed. Close does not unblock goroutines already waiting in
// Put or Take; quiesce producers and consumers first.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.LoadAcquire() {
		return ErrClosed
	}
	q.closed.StoreRelease(true)

	if err := q.m.Sync(); err != nil {
		q.log.WithError(err).Debug("mapping flush failed")
	}
	err := q.m.Close()
	q.data = nil

	q.log.Debug("queue closed")
	return err
}
