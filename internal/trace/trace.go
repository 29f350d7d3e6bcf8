// Package trace records the held-count timeline of a single run.
//
// A Collector is created per run and handed to every component that
// mutates the pool, so nothing leaks between runs.  A nil *Collector is
// a valid no-op receiver.
package trace

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Sample is one (timestamp, held-count) observation.
type Sample struct {
	At   time.Time
	Held int
	Op   string
}

// Collector accumulates samples in the order they were recorded.
type Collector struct {
	mu      sync.Mutex
	samples []Sample
	now     func() time.Time
}

// New returns an empty collector stamped by the wall clock.
func New() *Collector {
	return &Collector{now: time.Now}
}

// NewWithClock returns an empty collector stamped by now.
func NewWithClock(now func() time.Time) *Collector {
	return &Collector{now: now}
}

// Record appends the held count observed after op.
func (c *Collector) Record(op string, held int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.samples = append(c.samples, Sample{At: c.now(), Held: held, Op: op})
	c.mu.Unlock()
}

// Samples returns a copy of every recorded sample.
func (c *Collector) Samples() []Sample {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Len returns the number of recorded samples.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Reset discards all samples.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.samples = nil
	c.mu.Unlock()
}

// WriteTSV writes one "unix_ms<TAB>held<TAB>op" line per sample.
func (c *Collector) WriteTSV(w io.Writer) error {
	for _, s := range c.Samples() {
		if _, err := fmt.Fprintf(w, "%d\t%d\t%s\n", s.At.UnixMilli(), s.Held, s.Op); err != nil {
			return err
		}
	}
	return nil
}
