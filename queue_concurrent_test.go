// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/pfq"
)

// =============================================================================
// Blocking Behavior
// =============================================================================

// TestQueueBoundedBlocking fills a two-block ring, verifies Offer rejects,
// and checks that a blocked Put completes only once a consumer frees blocks.
func TestQueueBoundedBlocking(t *testing.T) {
	// 7 blocks of 4 bytes; 5 header blocks leave 2 usable.
	q, err := pfq.OpenCodec[string](queueFile(t), 4, 28, rawCodec{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	full := "abcd" // 2 blocks: the whole ring
	if err := q.Offer(&full); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	empty := ""
	if err := q.Offer(&empty); !errors.Is(err, pfq.ErrWouldBlock) {
		t.Fatalf("Offer on full ring: got %v, want ErrWouldBlock", err)
	}

	polled := make(chan string, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		val, err := q.Poll()
		if err != nil {
			t.Errorf("Poll: %v", err)
		}
		polled <- val
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	next := "wxyz"
	start := time.Now()
	if err := q.Put(ctx, &next); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("Put returned after %v, want it blocked on the consumer", elapsed)
	}

	if val := <-polled; val != full {
		t.Fatalf("Poll: got %q, want %q", val, full)
	}
	val, err := q.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if val != next {
		t.Fatalf("Poll: got %q, want %q", val, next)
	}
}

// TestQueuePutCancel cancels a blocked Put and verifies no permits leak.
func TestQueuePutCancel(t *testing.T) {
	q, err := pfq.OpenCodec[string](queueFile(t), 4, 28, rawCodec{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	full := "abcd"
	if err := q.Offer(&full); err != nil {
		t.Fatalf("Offer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	next := "wxyz"
	if err := q.Put(ctx, &next); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put: got %v, want context.Canceled", err)
	}

	// The cancelled waiter must not retain permits: draining one record
	// makes room for the next.
	if _, err := q.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if err := q.Offer(&next); err != nil {
		t.Fatalf("Offer after cancel: %v", err)
	}
}

// TestQueueTimedVariants exercises the deadline paths of OfferTimeout and
// PollTimeout.
func TestQueueTimedVariants(t *testing.T) {
	q, err := pfq.OpenCodec[string](queueFile(t), 4, 28, rawCodec{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	if _, err := q.PollTimeout(20 * time.Millisecond); !errors.Is(err, pfq.ErrWouldBlock) {
		t.Fatalf("PollTimeout on empty: got %v, want ErrWouldBlock", err)
	}

	full := "abcd"
	if err := q.Offer(&full); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if err := q.OfferTimeout(&full, 20*time.Millisecond); !errors.Is(err, pfq.ErrWouldBlock) {
		t.Fatalf("OfferTimeout on full ring: got %v, want ErrWouldBlock", err)
	}

	// With a consumer on the way the same timed offer succeeds.
	go func() {
		time.Sleep(20 * time.Millisecond)
		if _, err := q.Poll(); err != nil {
			t.Errorf("Poll: %v", err)
		}
	}()
	if err := q.OfferTimeout(&full, 2*time.Second); err != nil {
		t.Fatalf("OfferTimeout with consumer: %v", err)
	}
}

// =============================================================================
// Concurrent Producers and Consumers
// =============================================================================

// TestQueueConcurrentDrain runs one ascending producer against ten consumers
// and verifies every value is delivered exactly once, each consumer seeing a
// non-decreasing subsequence.
func TestQueueConcurrentDrain(t *testing.T) {
	const (
		items     = 1024
		consumers = 10
	)

	q, err := pfq.Open[int](queueFile(t), 4, 1<<16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	observed := make([][]int, consumers)
	var wg sync.WaitGroup

	for c := range consumers {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for {
				val, err := q.PollTimeout(2 * time.Second)
				if err != nil {
					return
				}
				observed[c] = append(observed[c], val)
			}
		}(c)
	}

	for i := range items {
		if err := q.Put(context.Background(), &i); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	wg.Wait()

	seen := make(map[int]int, items)
	for c, vals := range observed {
		for i := 1; i < len(vals); i++ {
			if vals[i] < vals[i-1] {
				t.Fatalf("consumer %d observed %d after %d", c, vals[i], vals[i-1])
			}
		}
		for _, v := range vals {
			seen[v]++
		}
	}

	if len(seen) != items {
		t.Fatalf("distinct values: got %d, want %d", len(seen), items)
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("value %d delivered %d times", v, n)
		}
	}
}

// TestQueueConcurrentProducers checks that concurrent producers never
// interleave partial records: every enqueued value decodes intact.
func TestQueueConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perWorker = 128
	)

	q, err := pfq.Open[int](queueFile(t), 4, 1<<16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perWorker {
				v := p*perWorker + i
				if err := q.Put(context.Background(), &v); err != nil {
					t.Errorf("Put(%d): %v", v, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool, producers*perWorker)
	for range producers * perWorker {
		val, err := q.Poll()
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if val < 0 || val >= producers*perWorker || seen[val] {
			t.Fatalf("Poll: unexpected or duplicate value %d", val)
		}
		seen[val] = true
	}
	if !q.IsEmpty() {
		t.Fatal("IsEmpty after drain: got false, want true")
	}
}
