// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"connpulse/config"
	"connpulse/internal/core"
	"connpulse/internal/metrics"
	"connpulse/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X connpulse/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout and stderr are swapped out by tests.
var (
	stdout io.Writer = os.Stdout //nolint:gochecknoglobals
	stderr io.Writer = os.Stderr //nolint:gochecknoglobals
)

// Execute parses args and runs the selected connpulse mode.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("connpulse", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── mode ─────────────────────────────────────────────────────
	modeName := string(cfg.Mode)
	fs.StringVarP(&modeName, "mode", "m", modeName, "Mode: auto, manual, serve")
	fs.IntVarP(&cfg.Cycles, "cycles", "c", cfg.Cycles, "Cycles to run (auto)")
	fs.StringVar(&cfg.Payload, "payload", cfg.Payload, `Payload as hex, or "random"`)
	fs.StringVar(&cfg.TraceOut, "trace-out", cfg.TraceOut, "Write the held-count trace as TSV")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print counters as JSON on exit")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Validate and print the resolved settings")

	// ── channel ──────────────────────────────────────────────────
	fs.StringVarP(&cfg.Preset, "preset", "P", cfg.Preset, "Channel preset: lan, wan, local, demo")
	fs.StringVar(&cfg.PresetFile, "preset-file", cfg.PresetFile, "YAML file with extra presets")
	fs.IntVar(&cfg.Overrides.ListSize, "list-size", cfg.Overrides.ListSize, "Digits per cycle (overrides preset)")
	fs.IntVar(&cfg.Overrides.MaxSlots, "max-slots", cfg.Overrides.MaxSlots, "Pool capacity (overrides preset)")
	fs.IntVar(&cfg.Overrides.MaxValue, "max-value", cfg.Overrides.MaxValue, "Digit base (overrides preset)")
	fs.IntVar(&cfg.Overrides.PulseMs, "pulse-ms", cfg.Overrides.PulseMs, "Pulse length in ms (overrides preset)")
	fs.IntVar(&cfg.Overrides.SettlingMs, "settling-ms", cfg.Overrides.SettlingMs, "Settling time in ms (overrides preset)")
	fs.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "Adjustment strategy: direct, overshoot")
	fs.IntVar(&cfg.OvershootMargin, "overshoot-margin", cfg.OvershootMargin, "Extra units requested by overshoot")
	fs.StringVar(&cfg.Rule, "rule", cfg.Rule, "Negotiation rule: half, majority")

	// ── pool backend ─────────────────────────────────────────────
	backend := string(cfg.Backend)
	fs.StringVar(&backend, "pool", backend, "Pool backend: memory, tcp, redis")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	timeoutSec := int(cfg.DialTimeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Dial timeout in seconds")
	fs.Float64Var(&cfg.DialRate, "dial-rate", cfg.DialRate, "Max acquisitions per second (0 = unlimited)")
	fs.StringVarP(&cfg.SourceIP, "source", "s", cfg.SourceIP, "Local source address for tcp units")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis pool")
	fs.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database number")
	fs.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "Redis counter key shared by both agents")
	fs.DurationVar(&cfg.MemoryLatency, "memory-latency", cfg.MemoryLatency, "Simulated acquisition latency (memory pool)")

	// ── serve ────────────────────────────────────────────────────
	fs.IntVarP(&cfg.ListenPort, "port", "p", cfg.ListenPort, "Listen port (serve)")
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "Bind address (serve)")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Connection cap (serve; default max-slots)")

	// ── SSH jump host ────────────────────────────────────────────
	fs.StringVarP(&cfg.JumpSpec, "jump", "J", cfg.JumpSpec, "Reach the pool via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "jump-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "jump-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "jump-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	keepAliveSec := int(cfg.KeepAlive / time.Second)
	fs.IntVar(&keepAliveSec, "keep-alive", keepAliveSec, "SSH keepalive interval in seconds")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "connpulse %s\n", version)
		return nil
	}

	for _, name := range []string{"list-size", "max-slots", "max-value", "pulse-ms", "settling-ms"} {
		if fs.Changed(name) {
			cfg.MarkOverride(name)
		}
	}

	cfg.Mode = config.Mode(modeName)
	cfg.Backend = config.Backend(backend)
	cfg.DialTimeout = time.Duration(timeoutSec) * time.Second
	cfg.KeepAlive = time.Duration(keepAliveSec) * time.Second

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── resolve + validate ───────────────────────────────────────
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if cfg.DryRun {
		printResolved(cfg)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if logger.Enabled(util.LogDebug) {
		hookSignals(logger)
	}

	var m *metrics.Collector
	if cfg.Stats {
		m = metrics.New()
	}
	deps := core.Deps{Metrics: m, Out: stdout}

	if cfg.Mode == config.ModeManual {
		lines, out, restore, err := replIO(logger)
		if err != nil {
			return err
		}
		defer restore()
		deps.Lines, deps.Out = lines, out
	}

	mode, err := core.Build(cfg, logger, deps)
	if err != nil {
		return err
	}
	runErr := mode.Run(ctx)

	if m != nil {
		fmt.Fprintln(stdout, m.JSON())
	}
	return runErr
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional accepts an optional mode word followed by the
// intermediary address:
//
//	connpulse [auto|manual] [host port]
//	connpulse serve [port]
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) > 0 {
		switch m := config.Mode(remaining[0]); m {
		case config.ModeAuto, config.ModeManual, config.ModeServe:
			cfg.Mode = m
			remaining = remaining[1:]
		}
	}

	if cfg.Mode == config.ModeServe {
		switch len(remaining) {
		case 0: // connpulse serve -p PORT
		case 1:
			port, err := parsePort(remaining[0])
			if err != nil {
				return err
			}
			cfg.ListenPort = port
		default:
			return fmt.Errorf("too many arguments for serve mode")
		}
		return nil
	}

	switch len(remaining) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("port required after host %q", remaining[0])
	case 2:
		port, err := parsePort(remaining[1])
		if err != nil {
			return err
		}
		cfg.Host, cfg.Port = remaining[0], port
		if cfg.Backend == config.BackendMemory {
			cfg.Backend = config.BackendTCP
		}
		return nil
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

func printResolved(cfg *config.Config) {
	fmt.Fprintf(stdout, "mode      %s\n", cfg.Mode)
	fmt.Fprintf(stdout, "preset    %s\n", cfg.Preset)
	fmt.Fprintf(stdout, "channel   %s\n", cfg.Channel)
	fmt.Fprintf(stdout, "strategy  %s (margin %d)\n", cfg.Strategy, cfg.OvershootMargin)
	fmt.Fprintf(stdout, "rule      %s\n", cfg.Rule)
	switch cfg.Mode {
	case config.ModeServe:
		fmt.Fprintf(stdout, "listen    %s (cap %d)\n", util.FormatAddr(cfg.ListenAddr, cfg.ListenPort), cfg.MaxConns)
	default:
		pool := string(cfg.Backend)
		switch cfg.Backend {
		case config.BackendTCP:
			pool += " " + util.FormatAddr(cfg.Host, cfg.Port)
		case config.BackendRedis:
			pool += " " + cfg.RedisAddr + " key " + cfg.RedisKey
		}
		fmt.Fprintf(stdout, "pool      %s\n", pool)
		if cfg.JumpEnabled {
			fmt.Fprintf(stdout, "jump      %s@%s\n", cfg.JumpUser, util.FormatAddr(cfg.JumpHost, cfg.JumpPort))
		}
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stderr, `connpulse v%s

A covert pulse channel over a capacity-limited resource pool.

Usage:
  connpulse [options] auto                         Sender/receiver pair on an in-memory pool
  connpulse [options] <host> <port>                Auto mode against a capped intermediary
  connpulse --pool redis --redis-addr <addr>       Auto mode on a shared Redis semaphore
  connpulse -m manual [options] [host port]        Interactive REPL
  connpulse serve -p <port> [--max-conns N]        Run a capped intermediary

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(stderr, `
Examples:
  connpulse -P demo --payload beef auto            Local demo, fixed payload
  connpulse serve -p 7000 -P lan                   Intermediary capped at 129
  connpulse -P lan -c 10 10.0.0.5 7000             Run ten cycles against it
  connpulse -J ops@bastion -P wan 10.0.0.5 7000    Same, through a jump host
  connpulse --dry-run -P wan --pulse-ms 5000       Check a parameter set
`)
}
