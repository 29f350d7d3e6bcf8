package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	cperr "connpulse/internal/errors"
	"connpulse/internal/retry"
	"connpulse/internal/transport"
	"connpulse/util"
)

// TCPConfig configures a TCPPool.
type TCPConfig struct {
	// Addr is the capped intermediary, host:port.
	Addr string
	// Dialer opens unit connections.  Defaults to a plain TCPDialer.
	Dialer transport.Dialer
	// DialTimeout bounds each unit's dial (default 2s).
	DialTimeout time.Duration
	// DialRate paces dials per second; zero means unlimited.
	DialRate float64
	// DialBurst is the limiter burst (default: one pool's worth, 64).
	DialBurst int
	// Breaker short-circuits dials once the intermediary keeps
	// refusing.  Nil installs a default breaker.
	Breaker *retry.CircuitBreaker
	Logger  *util.Logger
}

// TCPPool holds one TCP connection to the intermediary per unit.  The
// intermediary enforces the cap by closing connections beyond it, so a
// unit can look live right after the dial and turn dead moments later
// when the peer hangs up.
type TCPPool struct {
	ledger
	addr    string
	dialer  transport.Dialer
	timeout time.Duration
	limiter *rate.Limiter
	breaker *retry.CircuitBreaker
	logger  *util.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewTCPPool returns a pool dialing cfg.Addr.  Nothing is dialed until
// the first ConsumeOne.
func NewTCPPool(cfg TCPConfig) *TCPPool {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = util.NewLogger(0)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &transport.TCPDialer{Timeout: cfg.DialTimeout}
	}
	if cfg.Breaker == nil {
		logger := cfg.Logger
		cfg.Breaker = retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
			MaxFailures:  8,
			ResetTimeout: 5 * time.Second,
			OnStateChange: func(from, to retry.State) {
				logger.Verbose("tcp pool: circuit %s -> %s", from, to)
			},
		})
	}
	limit := rate.Inf
	if cfg.DialRate > 0 {
		limit = rate.Limit(cfg.DialRate)
	}
	burst := cfg.DialBurst
	if burst <= 0 {
		burst = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TCPPool{
		addr:    cfg.Addr,
		dialer:  cfg.Dialer,
		timeout: cfg.DialTimeout,
		limiter: rate.NewLimiter(limit, burst),
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ConsumeOne dials one more connection in the background.
func (p *TCPPool) ConsumeOne(ctx context.Context) {
	u := p.track()
	p.spawn(func() { p.hold(ctx, u) })
}

func (p *TCPPool) hold(ctx context.Context, u *unit) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	if err := p.limiter.Wait(ctx); err != nil {
		cancel()
		u.fail()
		return
	}
	if err := p.breaker.Allow(); err != nil {
		cancel()
		p.logger.Debug("tcp pool: %v", err)
		u.fail()
		return
	}

	conn, err := p.dialer.Dial(ctx, "tcp", p.addr)
	cancel()
	p.breaker.Record(err)
	if err != nil {
		p.logger.Debug("%v", cperr.WrapPool("tcp", "dial", err))
		u.fail()
		return
	}

	closeConn := func() { conn.Close() } //nolint:errcheck
	if !u.settle(closeConn) {
		closeConn()
		return
	}

	// The intermediary never writes; any read result means the peer
	// closed the unit or our side released it.
	n, err := util.Drain(conn)
	p.logger.Debug("tcp pool: unit %s closed after %d bytes: %v", conn.LocalAddr(), n, err)
	u.markDead()
}

// Close aborts pending dials, closes every unit and the dialer.
func (p *TCPPool) Close() error {
	var err error
	p.once.Do(func() {
		p.cancel()
		p.drain()
		err = p.dialer.Close()
	})
	return err
}

var _ Pool = (*TCPPool)(nil)
