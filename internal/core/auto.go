package core

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"connpulse/internal/channel"
	"connpulse/internal/metrics"
	"connpulse/internal/trace"
	"connpulse/util"
)

// AutoMode runs a fixed number of cycles: negotiate, then send or
// receive, then report.  With Peer set a second agent runs in the same
// process against the same backend, so a memory pool can carry a full
// exchange.
type AutoMode struct {
	Backend  Backend
	Channel  ChannelParams
	Strategy channel.Strategy
	Rule     channel.Rule
	Cycles   int
	Payload  string // hex, or "random"
	Peer     bool
	TraceOut string
	Metrics  *metrics.Collector
	Clock    clockz.Clock
	Logger   *util.Logger
	// Out receives one "sent <hex>" or "received <hex>" line per cycle,
	// plus the peer's lines prefixed with "peer".
	Out io.Writer

	mu      sync.Mutex
	results []channel.CycleResult
	outMu   sync.Mutex
}

// Results returns the cycles this agent completed.
func (m *AutoMode) Results() []channel.CycleResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]channel.CycleResult(nil), m.results...)
}

// Run opens the pool, runs the cycles and writes the trace if asked.
func (m *AutoMode) Run(ctx context.Context) error {
	payload, err := m.payloadFunc()
	if err != nil {
		return err
	}

	p, err := m.Backend.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s pool: %w", m.Backend.Name(), err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr := trace.NewWithClock(m.clock().Now)
	runner := m.Channel.runner(p, m.Strategy, m.Rule, payload,
		channel.WithClock(m.clock()),
		channel.WithTrace(tr),
		channel.WithMetrics(m.Metrics),
		channel.WithLogger(m.Logger),
	)

	var (
		wg      sync.WaitGroup
		peerErr error
	)
	if m.Peer {
		peerPool, err := m.Backend.Open(ctx)
		if err != nil {
			return fmt.Errorf("open peer pool: %w", err)
		}
		defer peerPool.Close()

		peerLog := m.Logger.Named("peer")
		peer := m.Channel.runner(peerPool, m.Strategy, m.Rule, payload,
			channel.WithClock(m.clock()),
			channel.WithLogger(peerLog),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			peerErr = peer.Run(ctx, m.Cycles, func(res channel.CycleResult) {
				peerLog.Verbose("cycle %d: %s %s", res.Index, verb(res.Role), res.Payload())
				m.report("peer", res)
			})
		}()
	}

	runErr := runner.Run(ctx, m.Cycles, func(res channel.CycleResult) {
		m.mu.Lock()
		m.results = append(m.results, res)
		m.mu.Unlock()
		m.Logger.Verbose("cycle %d: %s (captured %d) in %v", res.Index, res.Role, res.Captured, res.Elapsed.Truncate(time.Millisecond))
		m.report("", res)
		if res.Role == channel.RoleReceiver && res.Received.Erasures > 0 {
			m.Logger.Warn("cycle %d: %d erasure(s)", res.Index, res.Received.Erasures)
		}
	})
	if runErr != nil {
		cancel()
	}
	wg.Wait()

	if m.TraceOut != "" {
		if err := writeTrace(m.TraceOut, tr); err != nil {
			m.Logger.Error("trace: %v", err)
		} else {
			m.Logger.Verbose("trace: %d samples written to %s", tr.Len(), m.TraceOut)
		}
	}

	if runErr != nil {
		m.Metrics.RecordError(runErr.Error())
		return runErr
	}
	if peerErr != nil {
		return fmt.Errorf("peer: %w", peerErr)
	}
	return nil
}

func (m *AutoMode) clock() clockz.Clock {
	if m.Clock == nil {
		return clockz.RealClock
	}
	return m.Clock
}

// payloadFunc resolves the payload setting.  "random" draws a fresh
// value per cycle.
func (m *AutoMode) payloadFunc() (channel.PayloadFunc, error) {
	c := m.Channel.Codec
	if m.Payload == "" || strings.EqualFold(m.Payload, "random") {
		return func(int) uint64 {
			if c.Max() == math.MaxUint64 {
				return rand.Uint64()
			}
			return rand.Uint64N(c.Max() + 1)
		}, nil
	}
	v, err := c.ParseHex(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return func(int) uint64 { return v }, nil
}

// report writes a result line to Out, or logs it when Out is unset.
func (m *AutoMode) report(prefix string, res channel.CycleResult) {
	line := verb(res.Role) + " " + res.Payload()
	if prefix != "" {
		line = prefix + " " + line
	}
	if m.Out == nil {
		m.Logger.Info("%s", line)
		return
	}
	m.outMu.Lock()
	defer m.outMu.Unlock()
	fmt.Fprintln(m.Out, line)
}

func verb(r channel.Role) string {
	if r == channel.RoleSender {
		return "sent"
	}
	return "received"
}

func writeTrace(path string, tr *trace.Collector) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tr.WriteTSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
