package channel

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// sampleDivisor places the receiver's probe at pulse/sampleDivisor into
// each transfer slot.
const sampleDivisor = 4

// Scheduler aligns participants to shared pulse boundaries.  Agents
// never talk to each other, so both derive the same cycle start from
// the wall clock alone.
type Scheduler struct {
	clock    clockz.Clock
	pulse    time.Duration
	listSize int
}

// NewScheduler returns a scheduler for cycles of listSize transfer
// pulses plus one negotiation pulse.
func NewScheduler(clock clockz.Clock, pulse time.Duration, listSize int) *Scheduler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Scheduler{clock: clock, pulse: pulse, listSize: listSize}
}

// Pulse returns the pulse duration.
func (s *Scheduler) Pulse() time.Duration { return s.pulse }

// CycleDuration is (listSize+1) pulses.
func (s *Scheduler) CycleDuration() time.Duration {
	return time.Duration(s.listSize+1) * s.pulse
}

// NextCycleStart rounds now up to the next multiple of the cycle
// duration on the Unix clock.  A time already on a boundary is
// returned unchanged.
func (s *Scheduler) NextCycleStart() time.Time {
	cycle := s.CycleDuration().Nanoseconds()
	now := s.clock.Now().UnixNano()
	next := (now + cycle - 1) / cycle * cycle
	return time.Unix(0, next)
}

// TransferStart is the boundary at which the transmitter sets digit i.
func (s *Scheduler) TransferStart(t0 time.Time, i int) time.Time {
	return t0.Add(time.Duration(i+1) * s.pulse)
}

// SampleTime is when the receiver probes digit i: a quarter pulse into
// the transfer slot, after the transmitter has settled.
func (s *Scheduler) SampleTime(t0 time.Time, i int) time.Time {
	return s.TransferStart(t0, i).Add(s.pulse / sampleDivisor)
}

// CycleEnd is the first instant after the cycle starting at t0.
func (s *Scheduler) CycleEnd(t0 time.Time) time.Time {
	return t0.Add(s.CycleDuration())
}

// WaitUntil blocks until the clock reaches t or ctx is done.  A time
// in the past returns immediately.
func (s *Scheduler) WaitUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(s.clock.Now())
	if d <= 0 {
		return ctx.Err()
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
