// Package channel implements the pulse protocol on top of a pool: bulk
// adjustments, the non-destructive probe, role negotiation and the
// transmitter/receiver pulse loops.
//
// Every agent serialises its own pool mutations, so nothing in this
// package locks.  The only concurrency is between agents, and they
// interact solely through the pool's occupancy.
package channel

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"

	"connpulse/internal/metrics"
	"connpulse/internal/pool"
	"connpulse/internal/trace"
	"connpulse/util"
)

// Agent wraps one participant's view of the pool with the bulk
// primitives.  Every mutation is followed by a settling wait and a
// trace sample.
type Agent struct {
	pool     pool.Pool
	maxSlots int
	settle   time.Duration

	clock   clockz.Clock
	trace   *trace.Collector
	metrics *metrics.Collector
	logger  *util.Logger
}

// AgentOption customises an Agent.
type AgentOption func(*Agent)

// WithClock sets the clock used for settling waits.
func WithClock(c clockz.Clock) AgentOption { return func(a *Agent) { a.clock = c } }

// WithTrace sets the run's trace collector.
func WithTrace(t *trace.Collector) AgentOption { return func(a *Agent) { a.trace = t } }

// WithMetrics sets the run's metrics collector.
func WithMetrics(m *metrics.Collector) AgentOption { return func(a *Agent) { a.metrics = m } }

// WithLogger sets the agent's logger.
func WithLogger(l *util.Logger) AgentOption { return func(a *Agent) { a.logger = l } }

// NewAgent returns an agent on p.  maxSlots is the pool's capacity and
// settle the wait after each batch of mutations.
func NewAgent(p pool.Pool, maxSlots int, settle time.Duration, opts ...AgentOption) *Agent {
	a := &Agent{
		pool:     p,
		maxSlots: maxSlots,
		settle:   settle,
		clock:    clockz.RealClock,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = util.NewLogger(0)
	}
	return a
}

// MaxSlots returns the pool capacity the agent assumes.
func (a *Agent) MaxSlots() int { return a.maxSlots }

// Clock returns the agent's clock.
func (a *Agent) Clock() clockz.Clock { return a.clock }

// Trace returns the run's trace collector (possibly nil).
func (a *Agent) Trace() *trace.Collector { return a.trace }

// Held returns the pool's current held-count.
func (a *Agent) Held() int { return a.pool.Held() }

// CollectGarbage prunes dead units and returns how many were removed.
func (a *Agent) CollectGarbage() int {
	n := a.pool.CollectGarbage()
	if n > 0 {
		a.metrics.UnitsPruned(n)
		a.logger.Debug("pruned %d dead units", n)
		a.trace.Record("gc", a.pool.Held())
	}
	return n
}

// BulkConsume requests up to upTo units, never taking the agent's own
// held-count past maxSlots, then settles and prunes.  It returns the
// net increase in held-count, which may be less than upTo.
func (a *Agent) BulkConsume(ctx context.Context, upTo int) (int, error) {
	a.CollectGarbage()
	before := a.pool.Held()
	n := min(upTo, a.maxSlots-before)
	return a.consume(ctx, before, n)
}

// Saturate issues n consume requests with no cap and relies on the
// pool to refuse what does not fit.  Anything left above maxSlots after
// pruning is released again.
func (a *Agent) Saturate(ctx context.Context, n int) (int, error) {
	a.CollectGarbage()
	before := a.pool.Held()
	got, err := a.consume(ctx, before, n)
	if err != nil {
		return got, err
	}
	if excess := a.pool.Held() - a.maxSlots; excess > 0 {
		a.logger.Debug("saturate: trimming %d units above capacity", excess)
		if _, err := a.BulkRelease(ctx, excess); err != nil {
			return got, err
		}
		got -= excess
	}
	return got, nil
}

func (a *Agent) consume(ctx context.Context, before, n int) (int, error) {
	for i := 0; i < n; i++ {
		a.pool.ConsumeOne(ctx)
	}
	if n > 0 {
		a.metrics.ConsumeRequested(n)
		a.trace.Record("consume", a.pool.Held())
	}
	if err := a.Sleep(ctx, a.settle); err != nil {
		return 0, err
	}
	a.CollectGarbage()
	return max(a.pool.Held()-before, 0), nil
}

// BulkRelease frees min(upTo, held) units oldest-first and settles.
func (a *Agent) BulkRelease(ctx context.Context, upTo int) (int, error) {
	n := min(upTo, a.pool.Held())
	for i := 0; i < n; i++ {
		a.pool.ReleaseOne()
	}
	if n > 0 {
		a.metrics.UnitsReleased(n)
		a.trace.Record("release", a.pool.Held())
	}
	if err := a.Sleep(ctx, a.settle); err != nil {
		return n, err
	}
	return n, nil
}

// Probe measures headroom without changing the held-count: it consumes
// up to upTo units and releases exactly as many as it obtained.
func (a *Agent) Probe(ctx context.Context, upTo int) (int, error) {
	got, err := a.BulkConsume(ctx, upTo)
	if err != nil {
		return 0, err
	}
	if _, err := a.BulkRelease(ctx, got); err != nil {
		return got, err
	}
	a.metrics.ProbeTaken()
	return got, nil
}

// ConsumeAll tries to hold the whole pool.
func (a *Agent) ConsumeAll(ctx context.Context) (int, error) {
	return a.BulkConsume(ctx, a.maxSlots)
}

// ReleaseAll releases every held unit.
func (a *Agent) ReleaseAll(ctx context.Context) (int, error) {
	return a.BulkRelease(ctx, a.pool.Held())
}

// Sleep waits d on the agent's clock or until ctx is done.
func (a *Agent) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := a.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
