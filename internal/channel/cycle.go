package channel

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// PayloadFunc supplies the value a sender transmits in cycle i.
type PayloadFunc func(i int) uint64

// CycleResult describes one finished cycle from this agent's side.
type CycleResult struct {
	Index    int
	Start    time.Time
	Role     Role
	Captured int
	// Sent is the hex payload when Role is RoleSender.
	Sent string
	// Received is the decoded payload when Role is RoleReceiver.
	Received Result
	Elapsed  time.Duration
}

// Payload returns the hex string this agent sent or received.
func (r CycleResult) Payload() string {
	if r.Role == RoleSender {
		return r.Sent
	}
	return r.Received.Hex
}

// Runner drives INIT → NEGOTIATE → TRANSMIT|RECEIVE → DONE for a fixed
// number of cycles.
type Runner struct {
	agent   *Agent
	sched   *Scheduler
	neg     *Negotiator
	tx      *Transmitter
	rx      *Receiver
	payload PayloadFunc
}

// NewRunner wires the protocol parts into a cycle runner.
func NewRunner(a *Agent, s *Scheduler, n *Negotiator, tx *Transmitter, rx *Receiver, payload PayloadFunc) *Runner {
	return &Runner{agent: a, sched: s, neg: n, tx: tx, rx: rx, payload: payload}
}

// RunCycle runs the cycle starting at t0.  An ambiguous negotiation is
// not retried; the cycle proceeds with whatever role was decided.
func (r *Runner) RunCycle(ctx context.Context, t0 time.Time, index int) (CycleResult, error) {
	a := r.agent
	res := CycleResult{Index: index, Start: t0}

	if err := r.sched.WaitUntil(ctx, t0); err != nil {
		return res, err
	}
	began := a.clock.Now()

	role, captured, err := r.neg.Negotiate(ctx)
	res.Role, res.Captured = role, captured
	if err != nil {
		return res, err
	}

	switch role {
	case RoleSender:
		// Let the loser's release land before claiming the baseline.
		if err := a.Sleep(ctx, a.settle); err != nil {
			return res, err
		}
		res.Sent, err = r.tx.Send(ctx, t0, r.payload(index))
	default:
		res.Received, err = r.rx.Receive(ctx, t0)
	}
	if err != nil {
		return res, err
	}

	res.Elapsed = a.clock.Since(began)
	a.metrics.CycleCompleted()
	capitan.Emit(ctx, CycleCompleted,
		KeyCycle.Field(index),
		KeyRole.Field(role.String()),
		KeyPayload.Field(res.Payload()),
		KeyElapsed.Field(res.Elapsed),
	)
	return res, nil
}

// Run executes cycles back to back, starting at the next shared cycle
// boundary, and calls report after each one.  It releases the pool once
// the last cycle has ended.
func (r *Runner) Run(ctx context.Context, cycles int, report func(CycleResult)) error {
	t0 := r.sched.NextCycleStart()
	r.agent.logger.Verbose("first cycle at %s (cycle %v)", t0.Format("15:04:05.000"), r.sched.CycleDuration())

	for i := 0; i < cycles; i++ {
		res, err := r.RunCycle(ctx, t0, i)
		if err != nil {
			return err
		}
		if report != nil {
			report(res)
		}
		t0 = t0.Add(r.sched.CycleDuration())
	}

	if err := r.sched.WaitUntil(ctx, t0); err != nil {
		return err
	}
	_, err := r.agent.ReleaseAll(ctx)
	return err
}
