// Package pool implements finite-capacity resource pools whose
// occupancy is the only medium two agents share.
//
// A pool hands out units one at a time.  Acquisition may complete
// asynchronously and may fail later; failures are never returned to the
// caller.  A failed unit turns dead and stays counted by Held until
// CollectGarbage prunes it, so irregularities only ever show up as a
// lower held-count on a later read.
package pool

import (
	"context"
	"sync"
)

// Pool is the contract every backend satisfies.  None of the methods
// report errors; Close is the only exception because it tears down
// backend resources (listeners, clients, tunnels).
type Pool interface {
	// ConsumeOne requests one additional unit.
	ConsumeOne(ctx context.Context)
	// ReleaseOne frees the oldest unit still tracked.  It is a no-op on
	// an empty pool.
	ReleaseOne()
	// Held returns the number of units not yet pruned as dead.
	Held() int
	// CollectGarbage prunes dead units and returns how many it removed.
	CollectGarbage() int
	// Close releases every unit and frees backend resources.
	Close() error
}

// ── unit ─────────────────────────────────────────────────────────────

type unitState int

const (
	unitPending unitState = iota
	unitLive
	unitDead
	unitReleased
)

// unit is one requested slot.  Backends call settle or fail exactly
// once when acquisition finishes, and markDead if a live unit is lost.
type unit struct {
	mu     sync.Mutex
	state  unitState
	closer func()
}

// settle records a successful acquisition.  It returns false when the
// unit was released while pending; the caller must then free whatever
// it acquired itself.
func (u *unit) settle(closer func()) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != unitPending {
		return false
	}
	u.state = unitLive
	u.closer = closer
	return true
}

// fail marks a pending unit dead.
func (u *unit) fail() {
	u.mu.Lock()
	if u.state == unitPending {
		u.state = unitDead
	}
	u.mu.Unlock()
}

// markDead turns a live unit dead and runs its closer.
func (u *unit) markDead() {
	u.mu.Lock()
	closer := u.closer
	live := u.state == unitLive
	if live {
		u.state = unitDead
		u.closer = nil
	}
	u.mu.Unlock()
	if live && closer != nil {
		closer()
	}
}

func (u *unit) release() {
	u.mu.Lock()
	closer := u.closer
	u.state = unitReleased
	u.closer = nil
	u.mu.Unlock()
	if closer != nil {
		closer()
	}
}

func (u *unit) dead() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state == unitDead
}

// ── ledger ───────────────────────────────────────────────────────────

// ledger tracks units in acquisition order.  Backends embed it to get
// ReleaseOne, Held and CollectGarbage for free.
type ledger struct {
	mu    sync.Mutex
	units []*unit
	wg    sync.WaitGroup
}

// track appends a new pending unit.
func (l *ledger) track() *unit {
	u := &unit{}
	l.mu.Lock()
	l.units = append(l.units, u)
	l.mu.Unlock()
	return u
}

// ReleaseOne frees the oldest tracked unit, whatever its state.
func (l *ledger) ReleaseOne() {
	l.mu.Lock()
	if len(l.units) == 0 {
		l.mu.Unlock()
		return
	}
	u := l.units[0]
	l.units[0] = nil
	l.units = l.units[1:]
	l.mu.Unlock()
	u.release()
}

// Held returns the number of tracked units.
func (l *ledger) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.units)
}

// CollectGarbage drops dead units, preserving the order of the rest.
func (l *ledger) CollectGarbage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.units[:0]
	pruned := 0
	for _, u := range l.units {
		if u.dead() {
			pruned++
			continue
		}
		kept = append(kept, u)
	}
	for i := len(kept); i < len(l.units); i++ {
		l.units[i] = nil
	}
	l.units = kept
	return pruned
}

// drain releases every unit and waits for in-flight acquisitions.
func (l *ledger) drain() {
	l.mu.Lock()
	units := l.units
	l.units = nil
	l.mu.Unlock()
	for _, u := range units {
		u.release()
	}
	l.wg.Wait()
}

// spawn runs an acquisition in the background, counted for drain.
func (l *ledger) spawn(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}
