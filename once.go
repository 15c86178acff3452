// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import (
	"context"

	"code.hybscloud.com/atomix"
	"golang.org/x/sync/semaphore"
)

// Initializer is a one-shot initialization barrier.
//
// It ensures a lazy initialization routine runs once and only once, without
// synchronizing on the common already-initialized path.
//
//	var once = pfq.NewInitializer()
//
//	func service() *Service {
//	    if once.Need() {
//	        instance = connect()
//	        once.Done()
//	    }
//	    return instance
//	}
//
// Two modes are available:
//
//   - Synchronized (default, fair): Need blocks competing callers until the
//     elected caller calls Done or Retry; waiters are served in FIFO order.
//   - Run-once: Need never blocks. Exactly one caller observes true until
//     Retry or Clear re-arms the initializer; that caller is immediately
//     treated as initialized, and everyone else observes false even while
//     the elected caller is still running.
//
// A caller that receives true from Need owns the initializer and must call
// either Done or Retry. In synchronized mode, failing to do so deadlocks all
// subsequent Need callers.
type Initializer struct {
	initialized atomix.Bool
	held        atomix.Int64
	synchronize bool
	lock        *semaphore.Weighted
}

// NewInitializer creates a synchronized (fair) initializer.
func NewInitializer() *Initializer {
	return &Initializer{synchronize: true, lock: semaphore.NewWeighted(1)}
}

// NewRunOnceInitializer creates a run-once initializer whose Need never
// blocks.
func NewRunOnceInitializer() *Initializer {
	return &Initializer{lock: semaphore.NewWeighted(1)}
}

// Need reports whether the caller must perform initialization.
//
// It returns true to exactly one caller between construction (or Clear) and
// the matching Done. A caller seeing true owns the initializer and must call
// Done or Retry. In synchronized mode competing callers block here until the
// owner finishes.
func (i *Initializer) Need() bool {
	if i.initialized.LoadAcquire() {
		return false
	}

	if i.synchronize {
		// Cannot fail: the context has no deadline.
		_ = i.lock.Acquire(context.Background(), 1)
		if i.initialized.LoadAcquire() {
			i.lock.Release(1)
			return false
		}
		i.held.StoreRelease(1)
		return true
	}

	if i.lock.TryAcquire(1) {
		// The held lock is the election record; it is not released on
		// Done, so later callers fail the TryAcquire instead of racing
		// on the flag.
		i.held.StoreRelease(1)
		i.initialized.StoreRelease(true)
		return true
	}
	return false
}

// Done marks initialization complete and releases ownership.
//
// Panics if the initializer is not currently owned by a Need caller.
func (i *Initializer) Done() {
	if i.held.LoadAcquire() == 0 {
		panic("pfq: Done requires ownership of the initializer")
	}
	i.initialized.StoreRelease(true)
	if i.synchronize {
		i.held.StoreRelease(0)
		i.lock.Release(1)
	}
}

// Retry marks initialization as failed and releases ownership, so a later
// Need caller is elected again.
//
// Panics if the initializer is not currently owned by a Need caller.
func (i *Initializer) Retry() {
	if i.held.LoadAcquire() == 0 {
		panic("pfq: Retry requires ownership of the initializer")
	}
	i.initialized.StoreRelease(false)
	i.held.StoreRelease(0)
	i.lock.Release(1)
}

// Initialized reports whether initialization has been dispatched. It never
// synchronizes; for run-once initializers it may report true while the
// elected caller is still running.
func (i *Initializer) Initialized() bool {
	return i.initialized.LoadAcquire()
}

// Clear resets the initializer so the next Need call reports true. In
// synchronized mode it waits for an in-flight initialization to finish.
func (i *Initializer) Clear() {
	if i.synchronize {
		_ = i.lock.Acquire(context.Background(), 1)
		i.initialized.StoreRelease(false)
		i.lock.Release(1)
		return
	}
	if i.held.CompareAndSwapAcqRel(1, 0) {
		i.initialized.StoreRelease(false)
		i.lock.Release(1)
		return
	}
	i.initialized.StoreRelease(false)
}
