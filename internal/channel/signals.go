package channel

import "github.com/zoobzio/capitan"

// Protocol signals.
var (
	// NegotiationDecided is emitted once per cycle when the agent has
	// settled on a role.
	NegotiationDecided = capitan.NewSignal(
		"connpulse.negotiation.decided",
		"Role negotiation finished",
	)

	// PulseSent is emitted after the transmitter has adjusted the pool
	// for one digit.
	PulseSent = capitan.NewSignal(
		"connpulse.pulse.sent",
		"Transmitter adjusted headroom for a digit",
	)

	// PulseReceived is emitted after the receiver has probed one digit.
	PulseReceived = capitan.NewSignal(
		"connpulse.pulse.received",
		"Receiver sampled headroom for a digit",
	)

	// CycleCompleted is emitted when a negotiate-and-transfer cycle ends.
	CycleCompleted = capitan.NewSignal(
		"connpulse.cycle.completed",
		"Cycle finished",
	)
)

// Signal fields.
var (
	// KeyRole is "sender" or "receiver".
	KeyRole = capitan.NewStringKey("role")

	// KeyHeld is the held-count observed by the agent.
	KeyHeld = capitan.NewIntKey("held")

	// KeyPulse is the transfer pulse index within the cycle.
	KeyPulse = capitan.NewIntKey("pulse")

	// KeyDigit is the digit sent or recovered.
	KeyDigit = capitan.NewIntKey("digit")

	// KeyHeadroom is the headroom left or measured.
	KeyHeadroom = capitan.NewIntKey("headroom")

	// KeyCycle is the cycle index within the run.
	KeyCycle = capitan.NewIntKey("cycle")

	// KeyPayload is the payload as fixed-width hex.
	KeyPayload = capitan.NewStringKey("payload")

	// KeyElapsed is the time spent in the cycle.
	KeyElapsed = capitan.NewDurationKey("elapsed")
)
