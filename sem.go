// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import (
	"context"

	"code.hybscloud.com/atomix"
	"golang.org/x/sync/semaphore"
)

// permits is a fair counting semaphore with an observable available count.
//
// Waiters acquire in FIFO order. The available count is tracked beside the
// semaphore; it is exact only while no acquire or release is mid-flight, which
// is all the observers (Len, the Peek fast path) require.
type permits struct {
	sem   *semaphore.Weighted
	avail atomix.Int64
}

// newPermits creates a semaphore with the given capacity and initial number
// of available permits, initial <= capacity.
func newPermits(capacity, initial int64) *permits {
	p := &permits{sem: semaphore.NewWeighted(capacity)}
	if initial < capacity {
		// Cannot block: the semaphore is fresh and fully available.
		_ = p.sem.Acquire(context.Background(), capacity-initial)
	}
	p.avail.StoreRelease(initial)
	return p
}

func (p *permits) tryAcquire(n int64) bool {
	if !p.sem.TryAcquire(n) {
		return false
	}
	p.avail.AddAcqRel(-n)
	return true
}

// acquire blocks until n permits are available or ctx is done. Acquiring more
// permits than the capacity blocks until cancellation. No permits are held
// when an error is returned.
func (p *permits) acquire(ctx context.Context, n int64) error {
	if err := p.sem.Acquire(ctx, n); err != nil {
		return err
	}
	p.avail.AddAcqRel(-n)
	return nil
}

func (p *permits) release(n int64) {
	p.avail.AddAcqRel(n)
	p.sem.Release(n)
}

// drain claims every currently available permit and returns how many it took.
func (p *permits) drain() int64 {
	var n int64
	for p.sem.TryAcquire(1) {
		p.avail.AddAcqRel(-1)
		n++
	}
	return n
}

func (p *permits) available() int64 {
	return p.avail.LoadAcquire()
}
