package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"

	"connpulse/internal/codec"
	cperr "connpulse/internal/errors"
)

// Transmitter encodes a payload as one headroom level per pulse.  It
// holds the whole pool as a baseline and leaves digit+1 units free
// during each transfer slot.
type Transmitter struct {
	agent    *Agent
	sched    *Scheduler
	codec    codec.Codec
	strategy Strategy
}

// NewTransmitter returns a transmitter.  A nil strategy means
// DirectDelta.
func NewTransmitter(a *Agent, s *Scheduler, c codec.Codec, strategy Strategy) *Transmitter {
	if strategy == nil {
		strategy = DirectDelta{}
	}
	return &Transmitter{agent: a, sched: s, codec: c, strategy: strategy}
}

// Strategy returns the adjustment strategy in use.
func (t *Transmitter) Strategy() Strategy { return t.strategy }

// Send transmits value in the cycle starting at t0 and returns its hex
// form.  It returns once the last digit is in place; the caller decides
// how long to keep holding.
func (t *Transmitter) Send(ctx context.Context, t0 time.Time, value uint64) (string, error) {
	if !t.codec.Contains(value) {
		return "", fmt.Errorf("%w: %#x exceeds %d bits", cperr.ErrPayloadRange, value, t.codec.NumBits())
	}
	a := t.agent
	digits := t.codec.Encode(value)
	payload := t.codec.Hex(value)

	if _, err := a.BulkConsume(ctx, a.MaxSlots()-a.Held()); err != nil {
		return "", err
	}
	if held := a.Held(); held != a.MaxSlots() {
		a.logger.Warn("transmit: baseline holds %d/%d units", held, a.MaxSlots())
	}

	prev := 0
	for i, d := range digits {
		if err := t.sched.WaitUntil(ctx, t.sched.TransferStart(t0, i)); err != nil {
			return "", err
		}
		target := d + 1
		if err := t.strategy.Adjust(ctx, a, prev, target); err != nil {
			return "", err
		}
		prev = target

		a.metrics.PulseSent()
		a.logger.Debug("transmit: pulse %d digit %d headroom %d held %d", i, d, target, a.Held())
		capitan.Emit(ctx, PulseSent,
			KeyPulse.Field(i),
			KeyDigit.Field(d),
			KeyHeadroom.Field(target),
			KeyHeld.Field(a.Held()),
		)
	}
	return payload, nil
}
