package core

import (
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"connpulse/config"
	"connpulse/internal/channel"
	"connpulse/internal/metrics"
	"connpulse/internal/pool"
	"connpulse/internal/transport"
	"connpulse/tunnel"
	"connpulse/util"
)

// Deps carries the run-scoped collaborators the CLI owns.
type Deps struct {
	Metrics *metrics.Collector
	// Out receives results; Lines feeds manual mode.
	Out   io.Writer
	Lines LineReader
}

// Build constructs the appropriate Mode from a resolved configuration.
func Build(cfg *config.Config, logger *util.Logger, deps Deps) (Mode, error) {
	switch cfg.Mode {
	case config.ModeServe:
		return buildServe(cfg, logger), nil
	case config.ModeManual:
		return buildManual(cfg, logger, deps)
	case config.ModeAuto, "":
		return buildAuto(cfg, logger, deps)
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildAuto(cfg *config.Config, logger *util.Logger, deps Deps) (Mode, error) {
	params, strategy, rule, err := buildProtocol(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := buildBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &AutoMode{
		Backend:  backend,
		Channel:  params,
		Strategy: strategy,
		Rule:     rule,
		Cycles:   cfg.Cycles,
		Payload:  cfg.Payload,
		Peer:     cfg.Backend == config.BackendMemory,
		TraceOut: cfg.TraceOut,
		Metrics:  deps.Metrics,
		Logger:   logger,
		Out:      deps.Out,
	}, nil
}

func buildManual(cfg *config.Config, logger *util.Logger, deps Deps) (Mode, error) {
	if deps.Lines == nil || deps.Out == nil {
		return nil, fmt.Errorf("manual mode needs an input and an output")
	}
	params, strategy, rule, err := buildProtocol(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := buildBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &ManualMode{
		Backend:  backend,
		Channel:  params,
		Strategy: strategy,
		Rule:     rule,
		Metrics:  deps.Metrics,
		Logger:   logger,
		Lines:    deps.Lines,
		Out:      deps.Out,
	}, nil
}

func buildServe(cfg *config.Config, logger *util.Logger) Mode {
	return &ServeMode{
		Address:  util.FormatAddr(cfg.ListenAddr, cfg.ListenPort),
		MaxConns: cfg.MaxConns,
		Logger:   logger,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

func buildProtocol(cfg *config.Config) (ChannelParams, channel.Strategy, channel.Rule, error) {
	params, err := NewChannelParams(cfg.Channel)
	if err != nil {
		return ChannelParams{}, nil, 0, err
	}
	strategy, err := channel.ParseStrategy(cfg.Strategy, cfg.OvershootMargin)
	if err != nil {
		return ChannelParams{}, nil, 0, err
	}
	rule, err := channel.ParseRule(cfg.Rule)
	if err != nil {
		return ChannelParams{}, nil, 0, err
	}
	return params, strategy, rule, nil
}

// buildBackend selects the pool implementation.
func buildBackend(cfg *config.Config, logger *util.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return &MemoryBackend{
			Limit:   pool.NewLimit(cfg.Channel.MaxSlots),
			Latency: cfg.MemoryLatency,
		}, nil

	case config.BackendTCP:
		addr, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
		if err != nil {
			return nil, err
		}
		return &TCPBackend{
			Addr: addr,
			Pool: pool.TCPConfig{
				DialTimeout: cfg.DialTimeout,
				DialRate:    cfg.DialRate,
			},
			Jump:      jumpConfig(cfg),
			KeepAlive: cfg.KeepAlive,
			Dialer: transport.TCPDialer{
				Timeout:  cfg.DialTimeout,
				SourceIP: cfg.SourceIP,
			},
			Logger: logger,
		}, nil

	case config.BackendRedis:
		host, port, err := util.ParseHostPort(cfg.RedisAddr, config.DefaultRedisPort)
		if err != nil {
			return nil, err
		}
		addr, err := util.ResolveAddr(host, port, cfg.NoDNS)
		if err != nil {
			return nil, err
		}
		return &RedisBackend{
			Options: redis.Options{
				Addr:     addr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			},
			Pool: pool.RedisConfig{
				Key:      cfg.RedisKey,
				Capacity: cfg.Channel.MaxSlots,
				OpRate:   cfg.DialRate,
			},
			Jump:      jumpConfig(cfg),
			KeepAlive: cfg.KeepAlive,
			Logger:    logger,
		}, nil
	}
	return nil, fmt.Errorf("unknown pool backend %q", cfg.Backend)
}

func jumpConfig(cfg *config.Config) *tunnel.SSHConfig {
	if !cfg.JumpEnabled {
		return nil
	}
	return &tunnel.SSHConfig{
		User:          cfg.JumpUser,
		Host:          cfg.JumpHost,
		Port:          cfg.JumpPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   cfg.DialTimeout,
	}
}
