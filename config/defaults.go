package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, preset files, and environment variable loading.

const (
	// DefaultPreset is the channel preset used when none is named.
	DefaultPreset = "local"

	// DefaultCycles is how many transfer cycles auto mode runs.
	DefaultCycles = 1

	// DefaultOvershootMargin is the extra units the overshoot strategy
	// asks for before trimming back.
	DefaultOvershootMargin = 5

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultListenAddress is the bind address for serve mode.
	DefaultListenAddress = "127.0.0.1"

	// DefaultKeepAlive is the SSH keepalive interval.
	DefaultKeepAlive = 30 * time.Second

	// DefaultDialTimeout bounds a single pool connection attempt.
	DefaultDialTimeout = 2 * time.Second

	// DefaultRedisPort is used when --redis-addr names only a host.
	DefaultRedisPort = 6379

	// DefaultRedisKey is the counter key for the redis backend.
	DefaultRedisKey = "connpulse:pool"
)
