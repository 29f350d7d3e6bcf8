package cmd

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"

	"connpulse/internal/channel"
	"connpulse/util"
)

var hookOnce sync.Once //nolint:gochecknoglobals

// hookSignals mirrors channel events into the debug log.  Hooks are
// process-wide, so they are installed once.
func hookSignals(logger *util.Logger) {
	hookOnce.Do(func() {
		log := logger.Named("event")

		capitan.Hook(channel.NegotiationDecided, func(_ context.Context, e *capitan.Event) {
			role, _ := channel.KeyRole.From(e)
			held, _ := channel.KeyHeld.From(e)
			log.Debug("negotiation decided: %s (held %d)", role, held)
		})
		capitan.Hook(channel.PulseSent, func(_ context.Context, e *capitan.Event) {
			pulse, _ := channel.KeyPulse.From(e)
			digit, _ := channel.KeyDigit.From(e)
			headroom, _ := channel.KeyHeadroom.From(e)
			log.Debug("pulse %d sent: digit %d, headroom %d", pulse, digit, headroom)
		})
		capitan.Hook(channel.PulseReceived, func(_ context.Context, e *capitan.Event) {
			pulse, _ := channel.KeyPulse.From(e)
			digit, _ := channel.KeyDigit.From(e)
			headroom, _ := channel.KeyHeadroom.From(e)
			log.Debug("pulse %d received: headroom %d, digit %d", pulse, headroom, digit)
		})
		capitan.Hook(channel.CycleCompleted, func(_ context.Context, e *capitan.Event) {
			cycle, _ := channel.KeyCycle.From(e)
			role, _ := channel.KeyRole.From(e)
			payload, _ := channel.KeyPayload.From(e)
			elapsed, _ := channel.KeyElapsed.From(e)
			log.Debug("cycle %d completed as %s: %s in %v", cycle, role, payload, elapsed)
		})
	})
}
