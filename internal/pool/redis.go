package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	cperr "connpulse/internal/errors"
	"connpulse/internal/retry"
	"connpulse/util"
)

// acquireScript takes one token if the counter is below the cap.
var acquireScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n > tonumber(ARGV[1]) then
	redis.call('DECR', KEYS[1])
	return 0
end
return 1
`)

// releaseScript returns one token without letting the counter go
// negative after a manual reset.
var releaseScript = redis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n < 0 then
	redis.call('SET', KEYS[1], 0)
	return 0
end
return n
`)

// RedisConfig configures a RedisPool.
type RedisConfig struct {
	Client *redis.Client
	// Key names the shared counter.  Agents that should race share it.
	Key string
	// Capacity is the cap enforced by the acquire script.
	Capacity int
	// OpRate paces script calls per second; zero means unlimited.
	OpRate float64
	// OpTimeout bounds each script call (default 1s).
	OpTimeout time.Duration
	Logger    *util.Logger
}

// RedisPool models the intermediary as a counting semaphore in Redis,
// so agents in separate processes (or on separate hosts) can race on
// the same cap.  A refused or failed acquisition is a dead unit.
type RedisPool struct {
	ledger
	client   *redis.Client
	key      string
	capacity int
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *util.Logger
}

// NewRedisPool verifies the server is reachable (with backoff) and
// returns a pool on cfg.Key.
func NewRedisPool(ctx context.Context, cfg RedisConfig) (*RedisPool, error) {
	if cfg.Client == nil {
		return nil, cperr.WrapPool("redis", "init", fmt.Errorf("no client"))
	}
	if cfg.Key == "" {
		cfg.Key = "connpulse:pool"
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = util.NewLogger(0)
	}
	limit := rate.Inf
	if cfg.OpRate > 0 {
		limit = rate.Limit(cfg.OpRate)
	}

	b := retry.DefaultBackoff()
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		cfg.Logger.Warn("redis: ping attempt %d failed: %v (retrying in %v)", attempt, err, wait.Truncate(time.Millisecond))
	}
	err := b.Do(ctx, func(int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := cfg.Client.Ping(pingCtx).Err()
		// A server reply (auth, ACL) will not change on retry.
		var reply redis.Error
		if errors.As(err, &reply) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, cperr.WrapPool("redis", "ping", err)
	}

	return &RedisPool{
		client:   cfg.Client,
		key:      cfg.Key,
		capacity: cfg.Capacity,
		timeout:  cfg.OpTimeout,
		limiter:  rate.NewLimiter(limit, 64),
		logger:   cfg.Logger,
	}, nil
}

// ConsumeOne runs the acquire script in the background.
func (p *RedisPool) ConsumeOne(ctx context.Context) {
	u := p.track()
	p.spawn(func() {
		if err := p.limiter.Wait(ctx); err != nil {
			u.fail()
			return
		}
		opCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		got, err := acquireScript.Run(opCtx, p.client, []string{p.key}, p.capacity).Int()
		if err != nil {
			p.logger.Debug("%v", cperr.WrapPool("redis", "acquire", err))
			u.fail()
			return
		}
		if got == 0 {
			u.fail()
			return
		}
		if !u.settle(p.giveBack) {
			p.giveBack()
		}
	})
}

func (p *RedisPool) giveBack() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := releaseScript.Run(ctx, p.client, []string{p.key}).Err(); err != nil {
		p.logger.Debug("%v", cperr.WrapPool("redis", "release", err))
	}
}

// InUse reads the shared counter: tokens held by every agent.
func (p *RedisPool) InUse(ctx context.Context) (int, error) {
	n, err := p.client.Get(ctx, p.key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, cperr.WrapPool("redis", "get", err)
	}
	return n, nil
}

// Reset deletes the shared counter.  Only safe when no agent is
// running.
func (p *RedisPool) Reset(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return cperr.WrapPool("redis", "reset", err)
	}
	return nil
}

// Close returns every token.  The client belongs to the caller.
func (p *RedisPool) Close() error {
	p.drain()
	return nil
}

var _ Pool = (*RedisPool)(nil)
