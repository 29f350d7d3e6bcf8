package metrics

import (
	"encoding/json"
	"testing"
)

func TestCollector_PoolTraffic(t *testing.T) {
	c := New()

	c.ConsumeRequested(10)
	c.UnitsReleased(4)
	c.UnitsPruned(3)
	c.UnitsPruned(0)

	snap := c.Snapshot()
	if snap.ConsumeRequests != 10 {
		t.Errorf("consume requests = %d, want 10", snap.ConsumeRequests)
	}
	if snap.UnitsReleased != 4 {
		t.Errorf("released = %d, want 4", snap.UnitsReleased)
	}
	if snap.UnitsPruned != 3 {
		t.Errorf("pruned = %d, want 3", snap.UnitsPruned)
	}
}

func TestCollector_Protocol(t *testing.T) {
	c := New()

	c.Negotiated(true)
	c.Negotiated(false)
	c.Negotiated(false)
	c.PulseSent()
	c.PulseReceived()
	c.PulseReceived()
	c.Erasure()
	c.ProbeTaken()
	c.CycleCompleted()

	snap := c.Snapshot()
	if snap.NegotiationsWon != 1 || snap.NegotiationsLost != 2 {
		t.Errorf("negotiations = %d/%d, want 1/2", snap.NegotiationsWon, snap.NegotiationsLost)
	}
	if snap.PulsesSent != 1 || snap.PulsesReceived != 2 {
		t.Errorf("pulses = %d/%d, want 1/2", snap.PulsesSent, snap.PulsesReceived)
	}
	if snap.Erasures != 1 || snap.Probes != 1 {
		t.Errorf("erasures=%d probes=%d", snap.Erasures, snap.Probes)
	}
	if c.Cycles() != 1 {
		t.Errorf("cycles = %d, want 1", c.Cycles())
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if snap := c.Snapshot(); snap.LastErrorMessage != "second error" {
		t.Errorf("last error = %q", snap.LastErrorMessage)
	}
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	c.ConsumeRequested(1)
	c.UnitsReleased(1)
	c.UnitsPruned(1)
	c.ProbeTaken()
	c.PulseSent()
	c.PulseReceived()
	c.Erasure()
	c.Negotiated(true)
	c.CycleCompleted()
	c.RecordError("x")

	if c.Cycles() != 0 || c.ErrorCount() != 0 {
		t.Error("nil collector should report zero")
	}
	if c.Snapshot() != (Snapshot{}) {
		t.Error("nil snapshot should be empty")
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.ConsumeRequested(7)
	c.PulseSent()

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.ConsumeRequests != 7 {
		t.Errorf("JSON consume requests = %d", snap.ConsumeRequests)
	}
	if snap.PulsesSent != 1 {
		t.Errorf("JSON pulses sent = %d", snap.PulsesSent)
	}
}
