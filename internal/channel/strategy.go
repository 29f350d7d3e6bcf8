package channel

import (
	"context"
	"fmt"
	"strings"
)

// Strategy moves the pool's headroom from prevTarget to target.  All
// variants must end with exactly target units free; they differ only in
// the traffic they generate on the way.
type Strategy interface {
	Name() string
	Adjust(ctx context.Context, a *Agent, prevTarget, target int) error
}

// DirectDelta applies the minimal change: release when the headroom
// grows, consume when it shrinks.
type DirectDelta struct{}

// Name implements Strategy.
func (DirectDelta) Name() string { return "direct" }

// Adjust implements Strategy.
func (DirectDelta) Adjust(ctx context.Context, a *Agent, prevTarget, target int) error {
	delta := target - prevTarget
	switch {
	case delta > 0:
		_, err := a.BulkRelease(ctx, delta)
		return err
	case delta < 0:
		_, err := a.BulkConsume(ctx, -delta)
		return err
	}
	return nil
}

// OvershootTrim always fills the pool first, asking for Margin more
// units than the previous headroom, then releases target units.  The
// traffic per pulse no longer reveals the size of the change, and
// acquisitions that lag behind the settle window are absorbed.
type OvershootTrim struct {
	Margin int
}

// Name implements Strategy.
func (s OvershootTrim) Name() string { return "overshoot" }

// Adjust implements Strategy.
func (s OvershootTrim) Adjust(ctx context.Context, a *Agent, prevTarget, target int) error {
	if _, err := a.Saturate(ctx, prevTarget+s.Margin); err != nil {
		return err
	}
	_, err := a.BulkRelease(ctx, target)
	return err
}

// SettleSteps is the number of settle intervals the strategy spends per
// pulse.
func SettleSteps(s Strategy) int {
	if _, ok := s.(OvershootTrim); ok {
		return 2
	}
	return 1
}

// negotiationSettles counts the settle intervals slot 0 hosts: release,
// consume, the sender's guard and its raise.
const negotiationSettles = 4

// PulseSettles is how many settle intervals must fit in one pulse when
// s is in use.  The strategy's settles finish before the receiver's
// probe, and slot 0 still hosts a full negotiation.
func PulseSettles(s Strategy) int {
	return max(negotiationSettles, sampleDivisor*SettleSteps(s))
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string, margin int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "direct", "direct-delta":
		return DirectDelta{}, nil
	case "overshoot", "overshoot-trim":
		if margin < 0 {
			return nil, fmt.Errorf("overshoot margin must be >= 0, got %d", margin)
		}
		return OvershootTrim{Margin: margin}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want direct or overshoot)", name)
	}
}
