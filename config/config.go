// Package config defines the runtime configuration for connpulse:
// operating mode, channel parameters (usually from a preset), the pool
// backend and the optional SSH jump host.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"connpulse/internal/codec"
)

// Mode selects what the process does.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
	ModeServe  Mode = "serve"
)

// Backend selects the pool implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendTCP    Backend = "tcp"
	BackendRedis  Backend = "redis"
)

// Channel holds the pulse parameters both agents must agree on.
type Channel struct {
	ListSize   int `yaml:"list_size" validate:"min=1,max=64"`
	MaxSlots   int `yaml:"max_slots" validate:"min=2,max=65535"`
	MaxValue   int `yaml:"max_value" validate:"min=2,max=65535"`
	PulseMs    int `yaml:"pulse_ms" validate:"min=1"`
	SettlingMs int `yaml:"settling_ms" validate:"min=0"`
}

// Pulse returns the pulse duration.
func (c Channel) Pulse() time.Duration { return time.Duration(c.PulseMs) * time.Millisecond }

// Settle returns the settling duration.
func (c Channel) Settle() time.Duration { return time.Duration(c.SettlingMs) * time.Millisecond }

// Codec builds the payload codec for these parameters.
func (c Channel) Codec() (codec.Codec, error) {
	return codec.New(c.ListSize, uint64(c.MaxValue))
}

// overlay copies the fields of o onto c that are non-zero or named (by
// flag) in set.
func (c Channel) overlay(o Channel, set map[string]bool) Channel {
	if o.ListSize != 0 || set["list-size"] {
		c.ListSize = o.ListSize
	}
	if o.MaxSlots != 0 || set["max-slots"] {
		c.MaxSlots = o.MaxSlots
	}
	if o.MaxValue != 0 || set["max-value"] {
		c.MaxValue = o.MaxValue
	}
	if o.PulseMs != 0 || set["pulse-ms"] {
		c.PulseMs = o.PulseMs
	}
	if o.SettlingMs != 0 || set["settling-ms"] {
		c.SettlingMs = o.SettlingMs
	}
	return c
}

func (c Channel) String() string {
	return fmt.Sprintf("list_size=%d max_slots=%d max_value=%d pulse=%dms settling=%dms",
		c.ListSize, c.MaxSlots, c.MaxValue, c.PulseMs, c.SettlingMs)
}

// Config holds every tuneable for a single connpulse run.
type Config struct {
	// ── Mode ─────────────────────────────────────────────────────────
	Mode     Mode
	Cycles   int
	Payload  string // hex, or "random"
	TraceOut string // TSV trace path (auto mode)
	Stats    bool
	DryRun   bool

	// ── Channel ──────────────────────────────────────────────────────
	Preset          string
	PresetFile      string
	Overrides       Channel         // non-zero fields win over the preset
	OverrideSet     map[string]bool // flags set explicitly, zero included
	Channel         Channel         // resolved by Resolve
	Strategy        string          // "direct" or "overshoot"
	OvershootMargin int
	Rule            string // "half" or "majority"

	// ── Pool backend ─────────────────────────────────────────────────
	Backend       Backend
	Host          string // intermediary host (tcp)
	Port          int    // intermediary port (tcp)
	NoDNS         bool
	DialTimeout   time.Duration
	DialRate      float64
	SourceIP      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	MemoryLatency time.Duration

	// ── Serve ────────────────────────────────────────────────────────
	ListenAddr string
	ListenPort int
	MaxConns   int

	// ── SSH jump host ────────────────────────────────────────────────
	JumpSpec       string // raw [user@]host[:port] from -J
	JumpEnabled    bool
	JumpUser       string
	JumpHost       string
	JumpPort       int
	SSHKeyPath     string
	SSHPassword    bool
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string
	KeepAlive      time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Mode:            ModeAuto,
		Cycles:          DefaultCycles,
		Payload:         "random",
		Preset:          DefaultPreset,
		Strategy:        "direct",
		OvershootMargin: DefaultOvershootMargin,
		Rule:            "half",
		Backend:         BackendMemory,
		DialTimeout:     DefaultDialTimeout,
		RedisKey:        DefaultRedisKey,
		ListenAddr:      DefaultListenAddress,
		KeepAlive:       DefaultKeepAlive,
	}
}

// MarkOverride records that the channel flag was given explicitly, so
// its value applies even when zero.
func (c *Config) MarkOverride(flag string) {
	if c.OverrideSet == nil {
		c.OverrideSet = make(map[string]bool)
	}
	c.OverrideSet[flag] = true
}

// ── Jump-spec parser ─────────────────────────────────────────────────

// jumpRe matches [user@]host[:port].
var jumpRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseJumpSpec extracts user, host, and port from a string such as
// "ops@bastion.example.com:2222".  Port defaults to 22.
func ParseJumpSpec(spec string) (user, host string, port int, err error) {
	m := jumpRe.FindStringSubmatch(strings.TrimSpace(spec))
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid jump spec %q; expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid jump port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyJumpSpec parses JumpSpec into the Jump* fields.
func (c *Config) ApplyJumpSpec() error {
	if c.JumpSpec == "" {
		return nil
	}
	user, host, port, err := ParseJumpSpec(c.JumpSpec)
	if err != nil {
		return err
	}
	c.JumpEnabled = true
	c.JumpUser = user
	c.JumpHost = host
	c.JumpPort = port
	return nil
}

// Resolve looks the preset up, applies overrides and validates the
// result.  After Resolve, Channel holds the effective parameters.
func (c *Config) Resolve() error {
	presets := Builtin()
	if c.PresetFile != "" {
		extra, err := LoadPresetFile(c.PresetFile)
		if err != nil {
			return err
		}
		for name, ch := range extra {
			presets[name] = ch
		}
	}

	base, ok := presets[c.Preset]
	if !ok {
		return presetError(c.Preset, presets)
	}
	c.Channel = base.overlay(c.Overrides, c.OverrideSet)
	if c.MaxConns == 0 {
		c.MaxConns = c.Channel.MaxSlots
	}
	if err := c.ApplyJumpSpec(); err != nil {
		return err
	}
	return c.Validate()
}
