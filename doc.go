// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pfq provides a persistent blocking FIFO queue backed by a
// fixed-size memory-mapped file, together with the concurrency primitives it
// is built from.
//
// Where code.hybscloud.com/lfq provides volatile lock-free queues, pfq trades
// raw speed for persistence and backpressure: elements are serialized into a
// bounded on-disk ring, producers block when the ring is full, consumers
// block when it is empty, and the resident elements survive process restarts.
//
// # Quick Start
//
//	q, err := pfq.Open[string]("/var/spool/app/events.q", 64, 1<<20)
//	if err != nil {
//	    return err
//	}
//	defer q.Close()
//
//	msg := "hello"
//	if err := q.Offer(&msg); pfq.IsWouldBlock(err) {
//	    // Ring is full - handle backpressure
//	}
//
//	elem, err := q.Poll()
//	if pfq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// Blocking and timed variants complete the surface:
//
//	q.Put(ctx, &msg)                    // wait for space, cancellable
//	q.OfferTimeout(&msg, time.Second)   // bounded wait for space
//	q.Take(ctx)                         // wait for an element, cancellable
//	q.PollTimeout(time.Second)          // bounded wait for an element
//
// # Storage Model
//
// The file is partitioned into fixed-size blocks of at least four bytes. A
// 20-byte header at offset zero records the geometry and the ring cursors;
// the blocks after the reserved header region form a ring of length-prefixed
// records, each padded out to whole blocks. A record wraps the ring end when
// needed, but its four-byte length prefix is always contiguous.
//
// Capacity is storage-bound rather than element-bound. A record of payload
// length n occupies ceil((4+n)/blockSize) blocks, and a producer waits on
// exactly that many permits of a fair block semaphore. Consumers wait on a
// fair record semaphore. The two semaphores are the only suspension points;
// a read/write lock protects the cursors and the header bytes for the short
// span of each mutation.
//
// # Persistence
//
// The mapping is flushed at the platform's convenience; Flush requests an
// immediate writeback without promising a durability barrier. Entries
// reliably survive normal process restarts and crashes of the process
// itself, but a sudden power failure may corrupt the file. The queue is a
// non-ACID delivery mechanism: do not use it where loss is unacceptable.
//
// Reopening a file with the same geometry and element type resumes exactly
// where the previous instance stopped. A geometry or header mismatch fails
// construction.
//
// # Serialization
//
// Elements cross the process boundary through a pluggable self-describing
// [Codec]. The default [GobCodec] is binary, tags payloads with type
// information, and is immune to integer-width skew between writer and
// reader; [JSONCodec] stores payloads as JSON text for interoperability.
//
// # Error Handling
//
// Non-blocking operations return [ErrWouldBlock], a control flow signal
// sourced from [code.hybscloud.com/iox], when they cannot proceed; classify
// with [IsWouldBlock] / [IsSemantic] / [IsNonFailure]. Blocking operations
// propagate the context error on cancellation. Construction problems,
// corruption, and closed-queue calls surface as distinct sentinel errors.
//
// # Sampling Primitives
//
// [CircularBuffer] is the wait-free sampling ring used by [LatencyMonitor]
// and [ThroughputMonitor] to observe queue deployments; [Initializer] is a
// one-shot initialization barrier for lazy service location. All three are
// usable independently of the queue.
package pfq
