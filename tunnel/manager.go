package tunnel

import (
	"context"
	"net"
	"sync"
	"time"

	"connpulse/internal/retry"
	"connpulse/util"
)

// Manager keeps a Tunnel up for the lifetime of a run.  It connects
// with backoff, checks liveness on an interval and reconnects when the
// jump host drops the session.  Units forwarded over a dropped session
// die with it; the pool observes that as dead units.
type Manager struct {
	tunnel   Tunnel
	logger   *util.Logger
	backoff  *retry.Backoff
	interval time.Duration

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewManager returns a Manager for t.  A zero interval defaults to 10s.
func NewManager(t Tunnel, interval time.Duration, logger *util.Logger) *Manager {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	b := retry.DefaultBackoff()
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("ssh: attempt %d failed: %v (retrying in %v)", attempt, err, wait.Truncate(time.Millisecond))
	}
	return &Manager{
		tunnel:   t,
		logger:   logger,
		backoff:  b,
		interval: interval,
	}
}

// Start connects the tunnel and begins background health checks.  The
// checks outlive ctx and run until Stop.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.connect(ctx); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	go m.healthLoop(loopCtx)
	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	return m.backoff.Do(ctx, func(int) error {
		return m.tunnel.Connect(ctx)
	})
}

// Dial forwards through the managed tunnel.
func (m *Manager) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	return m.tunnel.Dial(ctx, network, address)
}

// Stop ends health checks and tears the tunnel down.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	return m.tunnel.Close()
}

func (m *Manager) healthLoop(ctx context.Context) {
	tick := time.NewTicker(m.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		if m.tunnel.IsAlive() {
			err := m.tunnel.Keepalive()
			if err == nil {
				continue
			}
			m.logger.Warn("ssh: keepalive failed: %v", err)
		}

		m.logger.Warn("ssh: tunnel lost, reconnecting")
		if err := m.connect(ctx); err != nil {
			m.logger.Error("ssh: reconnect failed: %v", err)
			continue
		}
		m.logger.Verbose("ssh: tunnel re-established")
	}
}
