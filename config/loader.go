package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go, presets.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the CONNPULSE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  Call it BEFORE registering CLI
// flags: flags take their defaults from cfg, so they win.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CONNPULSE_MODE"); v != "" {
		cfg.Mode = Mode(strings.ToLower(v))
	}
	if v := envInt("CONNPULSE_CYCLES"); v > 0 {
		cfg.Cycles = v
	}
	if v := os.Getenv("CONNPULSE_PAYLOAD"); v != "" {
		cfg.Payload = v
	}
	if v := os.Getenv("CONNPULSE_TRACE_OUT"); v != "" {
		cfg.TraceOut = v
	}

	// Channel
	if v := os.Getenv("CONNPULSE_PRESET"); v != "" {
		cfg.Preset = v
	}
	if v := os.Getenv("CONNPULSE_PRESET_FILE"); v != "" {
		cfg.PresetFile = v
	}
	if v := envInt("CONNPULSE_LIST_SIZE"); v > 0 {
		cfg.Overrides.ListSize = v
	}
	if v := envInt("CONNPULSE_MAX_SLOTS"); v > 0 {
		cfg.Overrides.MaxSlots = v
	}
	if v := envInt("CONNPULSE_MAX_VALUE"); v > 0 {
		cfg.Overrides.MaxValue = v
	}
	if v := envInt("CONNPULSE_PULSE_MS"); v > 0 {
		cfg.Overrides.PulseMs = v
	}
	if v, ok := envIntSet("CONNPULSE_SETTLING_MS"); ok && v >= 0 {
		cfg.Overrides.SettlingMs = v
		cfg.MarkOverride("settling-ms")
	}
	if v := os.Getenv("CONNPULSE_STRATEGY"); v != "" {
		cfg.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("CONNPULSE_RULE"); v != "" {
		cfg.Rule = strings.ToLower(v)
	}

	// Pool backend
	if v := os.Getenv("CONNPULSE_POOL"); v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v := os.Getenv("CONNPULSE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("CONNPULSE_PORT"); v > 0 {
		cfg.Port = v
		cfg.ListenPort = v
	}
	if envBool("CONNPULSE_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("CONNPULSE_DIAL_TIMEOUT"); v > 0 {
		cfg.DialTimeout = secondsDuration(v)
	}
	if v := os.Getenv("CONNPULSE_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CONNPULSE_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := envInt("CONNPULSE_REDIS_DB"); v > 0 {
		cfg.RedisDB = v
	}
	if v := os.Getenv("CONNPULSE_REDIS_KEY"); v != "" {
		cfg.RedisKey = v
	}

	// SSH jump host
	if v := os.Getenv("CONNPULSE_JUMP"); v != "" {
		cfg.JumpSpec = v
	}
	if v := os.Getenv("CONNPULSE_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("CONNPULSE_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("CONNPULSE_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("CONNPULSE_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("CONNPULSE_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}
	if v := envInt("CONNPULSE_KEEP_ALIVE"); v > 0 {
		cfg.KeepAlive = secondsDuration(v)
	}

	// Output
	if v := envInt("CONNPULSE_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	n, _ := envIntSet(key)
	return n
}

// envIntSet reports whether key holds a valid integer.
func envIntSet(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
