package pool

import (
	"context"
	"sync/atomic"
	"time"
)

// Limit is a bounded counter shared by every MemoryPool that models the
// same intermediary.  Acquire and Release are lock-free.
type Limit struct {
	capacity int64
	used     atomic.Int64
}

// NewLimit returns a Limit admitting at most capacity concurrent units.
func NewLimit(capacity int) *Limit {
	return &Limit{capacity: int64(capacity)}
}

// TryAcquire takes one slot if any is free.
func (l *Limit) TryAcquire() bool {
	for {
		cur := l.used.Load()
		if cur >= l.capacity {
			return false
		}
		if l.used.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns one slot.  It never drives the counter below zero.
func (l *Limit) Release() {
	for {
		cur := l.used.Load()
		if cur <= 0 {
			return
		}
		if l.used.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// InUse returns the number of slots currently taken across all pools.
func (l *Limit) InUse() int { return int(l.used.Load()) }

// Capacity returns the configured cap.
func (l *Limit) Capacity() int { return int(l.capacity) }

// MemoryPool is an in-process pool over a shared Limit.  With a zero
// latency acquisition completes synchronously inside ConsumeOne, which
// makes races between pools on one goroutine fully deterministic.
type MemoryPool struct {
	ledger
	limit   *Limit
	latency time.Duration
}

// NewMemoryPool returns a pool drawing from limit.  A positive latency
// delays every acquisition to simulate an asynchronous backend.
func NewMemoryPool(limit *Limit, latency time.Duration) *MemoryPool {
	return &MemoryPool{limit: limit, latency: latency}
}

// ConsumeOne requests a slot from the shared limit.
func (p *MemoryPool) ConsumeOne(ctx context.Context) {
	u := p.track()
	if p.latency <= 0 {
		p.acquire(u)
		return
	}
	p.spawn(func() {
		t := time.NewTimer(p.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			u.fail()
		case <-t.C:
			p.acquire(u)
		}
	})
}

func (p *MemoryPool) acquire(u *unit) {
	if !p.limit.TryAcquire() {
		u.fail()
		return
	}
	if !u.settle(p.limit.Release) {
		p.limit.Release()
	}
}

// Drop turns up to n live units dead, oldest first, returning their
// slots to the limit.  It models the intermediary evicting connections
// behind the holder's back.
func (p *MemoryPool) Drop(n int) int {
	p.mu.Lock()
	units := append([]*unit(nil), p.units...)
	p.mu.Unlock()

	dropped := 0
	for _, u := range units {
		if dropped >= n {
			break
		}
		u.mu.Lock()
		live := u.state == unitLive
		u.mu.Unlock()
		if live {
			u.markDead()
			dropped++
		}
	}
	return dropped
}

// Close releases every held slot back to the shared limit.
func (p *MemoryPool) Close() error {
	p.drain()
	return nil
}

var _ Pool = (*MemoryPool)(nil)
