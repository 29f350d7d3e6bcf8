package core

import (
	"strings"
	"testing"

	"connpulse/config"
	"connpulse/util"
)

func resolved(t *testing.T, mut func(c *config.Config)) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Preset = "demo"
	mut(cfg)
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return cfg
}

// TestBuild_Auto verifies that Build produces an AutoMode with an
// in-process peer for the memory backend.
func TestBuild_Auto(t *testing.T) {
	cfg := resolved(t, func(*config.Config) {})

	mode, err := Build(cfg, util.NewLogger(0), Deps{})
	if err != nil {
		t.Fatal(err)
	}
	auto, ok := mode.(*AutoMode)
	if !ok {
		t.Fatalf("expected *AutoMode, got %T", mode)
	}
	if !auto.Peer {
		t.Error("memory backend should run a peer")
	}
	if auto.Channel.MaxSlots != 17 || auto.Channel.Codec.ListSize() != 4 {
		t.Errorf("channel = %+v", auto.Channel)
	}
	if auto.Strategy.Name() != "direct" {
		t.Errorf("strategy = %s", auto.Strategy.Name())
	}
}

// TestBuild_Manual verifies manual mode requires its line source.
func TestBuild_Manual(t *testing.T) {
	cfg := resolved(t, func(c *config.Config) { c.Mode = config.ModeManual })

	if _, err := Build(cfg, util.NewLogger(0), Deps{}); err == nil {
		t.Fatal("expected error without input")
	}

	var out strings.Builder
	mode, err := Build(cfg, util.NewLogger(0), Deps{
		Lines: NewLineReader(strings.NewReader("")),
		Out:   &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mode.(*ManualMode); !ok {
		t.Errorf("expected *ManualMode, got %T", mode)
	}
}

// TestBuild_Serve verifies Build produces a ServeMode capped at the
// channel's slot count.
func TestBuild_Serve(t *testing.T) {
	cfg := resolved(t, func(c *config.Config) {
		c.Mode = config.ModeServe
		c.ListenPort = 9000
	})

	mode, err := Build(cfg, util.NewLogger(0), Deps{})
	if err != nil {
		t.Fatal(err)
	}
	serve, ok := mode.(*ServeMode)
	if !ok {
		t.Fatalf("expected *ServeMode, got %T", mode)
	}
	if serve.Address != "127.0.0.1:9000" || serve.MaxConns != 17 {
		t.Errorf("serve = %s cap %d", serve.Address, serve.MaxConns)
	}
}

func TestBuild_Backends(t *testing.T) {
	tests := []struct {
		name string
		mut  func(c *config.Config)
		want string
	}{
		{"memory", func(*config.Config) {}, "memory"},
		{"tcp", func(c *config.Config) {
			c.Backend = config.BackendTCP
			c.Host, c.Port = "127.0.0.1", 7000
		}, "tcp"},
		{"tcp via jump", func(c *config.Config) {
			c.Backend = config.BackendTCP
			c.Host, c.Port = "10.0.0.9", 7000
			c.JumpSpec = "ops@bastion"
		}, "tcp"},
		{"redis", func(c *config.Config) {
			c.Backend = config.BackendRedis
			c.RedisAddr = "127.0.0.1:6379"
		}, "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := resolved(t, tt.mut)
			b, err := buildBackend(cfg, util.NewLogger(0))
			if err != nil {
				t.Fatal(err)
			}
			if b.Name() != tt.want {
				t.Errorf("backend = %s, want %s", b.Name(), tt.want)
			}
			if cfg.JumpEnabled {
				tb := b.(*TCPBackend)
				if tb.Jump == nil || tb.Jump.Host != "bastion" || tb.Jump.User != "ops" || tb.Jump.Port != 22 {
					t.Errorf("jump = %+v", tb.Jump)
				}
			}
		})
	}
}

// TestBuild_NoDNS rejects hostnames when DNS is disabled.
func TestBuild_NoDNS(t *testing.T) {
	tests := []struct {
		name string
		mut  func(c *config.Config)
	}{
		{"tcp", func(c *config.Config) {
			c.Backend = config.BackendTCP
			c.Host, c.Port = "intermediary.local", 7000
		}},
		{"redis", func(c *config.Config) {
			c.Backend = config.BackendRedis
			c.RedisAddr = "cache.local:6380"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := resolved(t, func(c *config.Config) {
				tt.mut(c)
				c.NoDNS = true
			})
			if _, err := Build(cfg, util.NewLogger(0), Deps{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuild_RedisAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cache", "cache:6379"},
		{"cache:6380", "cache:6380"},
		{"[::1]:7000", "[::1]:7000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := resolved(t, func(c *config.Config) {
				c.Backend = config.BackendRedis
				c.RedisAddr = tt.in
			})
			b, err := buildBackend(cfg, util.NewLogger(0))
			if err != nil {
				t.Fatal(err)
			}
			if got := b.(*RedisBackend).Options.Addr; got != tt.want {
				t.Errorf("Addr = %q, want %q", got, tt.want)
			}
		})
	}
}
