package core

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"connpulse/internal/pool"
	"connpulse/internal/transport"
	"connpulse/tunnel"
	"connpulse/util"
)

// Backend opens the pool an agent runs against.  Each Open returns a
// fresh pool; pools opened from the same Backend race on the same cap.
type Backend interface {
	Open(ctx context.Context) (pool.Pool, error)
	Name() string
}

// ── memory ───────────────────────────────────────────────────────────

// MemoryBackend hands out MemoryPools over one shared Limit.
type MemoryBackend struct {
	Limit   *pool.Limit
	Latency time.Duration
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Open(context.Context) (pool.Pool, error) {
	return pool.NewMemoryPool(b.Limit, b.Latency), nil
}

// ── tcp ──────────────────────────────────────────────────────────────

// TCPBackend holds units as connections to a capped intermediary,
// optionally through an SSH jump host.
type TCPBackend struct {
	Addr      string
	Pool      pool.TCPConfig
	Jump      *tunnel.SSHConfig // nil dials directly
	KeepAlive time.Duration     // SSH keepalive interval
	Dialer    transport.TCPDialer
	Logger    *util.Logger
}

func (b *TCPBackend) Name() string { return "tcp" }

func (b *TCPBackend) Open(ctx context.Context) (pool.Pool, error) {
	dialer, err := openDialer(ctx, b.Jump, b.KeepAlive, &b.Dialer, b.Logger)
	if err != nil {
		return nil, err
	}
	cfg := b.Pool
	cfg.Addr = b.Addr
	cfg.Dialer = dialer
	cfg.Logger = b.Logger
	return pool.NewTCPPool(cfg), nil
}

// ── redis ────────────────────────────────────────────────────────────

// RedisBackend shares the cap through a Redis counter.
type RedisBackend struct {
	Options   redis.Options
	Pool      pool.RedisConfig
	Jump      *tunnel.SSHConfig
	KeepAlive time.Duration
	Logger    *util.Logger
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Open(ctx context.Context) (pool.Pool, error) {
	opts := b.Options
	var dialer transport.Dialer
	if b.Jump != nil {
		d, err := openDialer(ctx, b.Jump, b.KeepAlive, nil, b.Logger)
		if err != nil {
			return nil, err
		}
		dialer = d
		opts.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(ctx, network, addr)
		}
	}

	client := redis.NewClient(&opts)
	cfg := b.Pool
	cfg.Client = client
	cfg.Logger = b.Logger
	p, err := pool.NewRedisPool(ctx, cfg)
	if err != nil {
		client.Close()
		if dialer != nil {
			dialer.Close()
		}
		return nil, err
	}
	return &redisPool{RedisPool: p, client: client, dialer: dialer}, nil
}

// redisPool closes the client and tunnel it was opened with.
type redisPool struct {
	*pool.RedisPool
	client *redis.Client
	dialer transport.Dialer
}

func (p *redisPool) Close() error {
	err := p.RedisPool.Close()
	if cerr := p.client.Close(); err == nil {
		err = cerr
	}
	if p.dialer != nil {
		p.dialer.Close()
	}
	return err
}

// ── shared helpers ───────────────────────────────────────────────────

// openDialer returns the SSH dialer for jump, connected, or direct
// when jump is nil.
func openDialer(ctx context.Context, jump *tunnel.SSHConfig, keepalive time.Duration, direct *transport.TCPDialer, logger *util.Logger) (transport.Dialer, error) {
	if jump == nil {
		if direct == nil {
			direct = &transport.TCPDialer{}
		}
		return direct, nil
	}
	d := transport.NewSSHDialer(jump, keepalive, logger)
	if err := d.Connect(ctx); err != nil {
		return nil, fmt.Errorf("jump host %s: %w", jump.Addr(), err)
	}
	return d, nil
}
