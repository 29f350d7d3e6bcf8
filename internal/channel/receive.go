package channel

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"

	"connpulse/internal/codec"
)

// Result is a decoded transmission.
type Result struct {
	Value  uint64
	Hex    string
	Digits []int
	// Erasures counts pulses where the probe found no headroom at all.
	Erasures int
}

// Receiver samples headroom once per transfer slot and decodes the
// digits.
type Receiver struct {
	agent *Agent
	sched *Scheduler
	codec codec.Codec
}

// NewReceiver returns a receiver.
func NewReceiver(a *Agent, s *Scheduler, c codec.Codec) *Receiver {
	return &Receiver{agent: a, sched: s, codec: c}
}

// Receive probes every transfer slot of the cycle starting at t0.
func (r *Receiver) Receive(ctx context.Context, t0 time.Time) (Result, error) {
	a := r.agent
	maxValue := int(r.codec.MaxValue())
	digits := make([]int, r.codec.ListSize())
	res := Result{Digits: digits}

	for i := range digits {
		if err := r.sched.WaitUntil(ctx, r.sched.SampleTime(t0, i)); err != nil {
			return res, err
		}
		headroom, err := a.Probe(ctx, maxValue)
		if err != nil {
			return res, err
		}

		d := headroom - 1
		if d < 0 {
			d = 0
			res.Erasures++
			a.metrics.Erasure()
			a.logger.Verbose("receive: pulse %d found no headroom", i)
		}
		digits[i] = d

		a.metrics.PulseReceived()
		a.logger.Debug("receive: pulse %d headroom %d digit %d", i, headroom, d)
		capitan.Emit(ctx, PulseReceived,
			KeyPulse.Field(i),
			KeyDigit.Field(d),
			KeyHeadroom.Field(headroom),
		)
	}

	res.Value = r.codec.Decode(digits)
	res.Hex = r.codec.Hex(res.Value)
	return res, nil
}
