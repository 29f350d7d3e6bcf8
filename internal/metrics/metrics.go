// Package metrics provides lightweight, lock-free counters for tracking
// the pool traffic and protocol progress of a connpulse run.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a connpulse run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	consumeRequests  atomic.Int64
	unitsReleased    atomic.Int64
	unitsPruned      atomic.Int64
	probes           atomic.Int64
	pulsesSent       atomic.Int64
	pulsesReceived   atomic.Int64
	erasures         atomic.Int64
	negotiationsWon  atomic.Int64
	negotiationsLost atomic.Int64
	cycles           atomic.Int64
	errorsTotal      atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Pool traffic ─────────────────────────────────────────────────────

// ConsumeRequested records n consume-one requests.
func (c *Collector) ConsumeRequested(n int) {
	if c == nil {
		return
	}
	c.consumeRequests.Add(int64(n))
}

// UnitsReleased records n released units.
func (c *Collector) UnitsReleased(n int) {
	if c == nil {
		return
	}
	c.unitsReleased.Add(int64(n))
}

// UnitsPruned records n dead units removed by garbage collection.
func (c *Collector) UnitsPruned(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.unitsPruned.Add(int64(n))
}

// ProbeTaken increments the probe counter.
func (c *Collector) ProbeTaken() {
	if c == nil {
		return
	}
	c.probes.Add(1)
}

// ── Protocol ─────────────────────────────────────────────────────────

// PulseSent records one transmitted digit.
func (c *Collector) PulseSent() {
	if c == nil {
		return
	}
	c.pulsesSent.Add(1)
}

// PulseReceived records one sampled digit.
func (c *Collector) PulseReceived() {
	if c == nil {
		return
	}
	c.pulsesReceived.Add(1)
}

// Erasure records a sampled digit that fell outside the digit range.
func (c *Collector) Erasure() {
	if c == nil {
		return
	}
	c.erasures.Add(1)
}

// Negotiated records the outcome of one role negotiation.
func (c *Collector) Negotiated(sender bool) {
	if c == nil {
		return
	}
	if sender {
		c.negotiationsWon.Add(1)
	} else {
		c.negotiationsLost.Add(1)
	}
}

// CycleCompleted increments the cycle counter.
func (c *Collector) CycleCompleted() {
	if c == nil {
		return
	}
	c.cycles.Add(1)
}

// Cycles returns the number of completed cycles.
func (c *Collector) Cycles() int64 {
	if c == nil {
		return 0
	}
	return c.cycles.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ConsumeRequests  int64  `json:"consume_requests"`
	UnitsReleased    int64  `json:"units_released"`
	UnitsPruned      int64  `json:"units_pruned"`
	Probes           int64  `json:"probes"`
	PulsesSent       int64  `json:"pulses_sent"`
	PulsesReceived   int64  `json:"pulses_received"`
	Erasures         int64  `json:"erasures"`
	NegotiationsWon  int64  `json:"negotiations_won"`
	NegotiationsLost int64  `json:"negotiations_lost"`
	Cycles           int64  `json:"cycles"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		ConsumeRequests:  c.consumeRequests.Load(),
		UnitsReleased:    c.unitsReleased.Load(),
		UnitsPruned:      c.unitsPruned.Load(),
		Probes:           c.probes.Load(),
		PulsesSent:       c.pulsesSent.Load(),
		PulsesReceived:   c.pulsesReceived.Load(),
		Erasures:         c.erasures.Load(),
		NegotiationsWon:  c.negotiationsWon.Load(),
		NegotiationsLost: c.negotiationsLost.Load(),
		Cycles:           c.cycles.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
