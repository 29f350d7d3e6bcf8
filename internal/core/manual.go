package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/zoobzio/clockz"

	"connpulse/internal/channel"
	cperr "connpulse/internal/errors"
	"connpulse/internal/metrics"
	"connpulse/internal/trace"
	"connpulse/util"
)

// LineReader yields one command line at a time.  *term.Terminal
// satisfies it; NewLineReader adapts any io.Reader.
type LineReader interface {
	ReadLine() (string, error)
}

type scanLines struct{ s *bufio.Scanner }

// NewLineReader reads newline-terminated commands from r.
func NewLineReader(r io.Reader) LineReader {
	return &scanLines{s: bufio.NewScanner(r)}
}

func (l *scanLines) ReadLine() (string, error) {
	if l.s.Scan() {
		return l.s.Text(), nil
	}
	if err := l.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// ManualMode drives one agent from typed commands, for poking at a
// pool by hand or pairing with an auto-mode peer.
type ManualMode struct {
	Backend  Backend
	Channel  ChannelParams
	Strategy channel.Strategy
	Rule     channel.Rule
	Metrics  *metrics.Collector
	Clock    clockz.Clock
	Logger   *util.Logger
	Lines    LineReader
	Out      io.Writer

	agent *channel.Agent
	sched *channel.Scheduler
	trace *trace.Collector
}

type command struct {
	usage string
	run   func(m *ManualMode, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"consume":     {"consume [n]        request n units (default 1)", (*ManualMode).cmdConsume},
		"consume-all": {"consume-all        request every free unit", (*ManualMode).cmdConsumeAll},
		"release":     {"release [n]        free up to n units (default 1)", (*ManualMode).cmdRelease},
		"release-all": {"release-all        free every held unit", (*ManualMode).cmdReleaseAll},
		"probe":       {"probe [n]          measure free units, up to n (default max value)", (*ManualMode).cmdProbe},
		"held":        {"held               show units held", (*ManualMode).cmdHeld},
		"gc":          {"gc                 prune dead units", (*ManualMode).cmdGC},
		"negotiate":   {"negotiate          race for the sender role", (*ManualMode).cmdNegotiate},
		"send":        {"send <hex>         transmit a payload in the next cycle", (*ManualMode).cmdSend},
		"receive":     {"receive            decode the next cycle", (*ManualMode).cmdReceive},
		"trace":       {"trace              dump the held-count trace (TSV)", (*ManualMode).cmdTrace},
		"stats":       {"stats              print counters as JSON", (*ManualMode).cmdStats},
		"help":        {"help               list commands", (*ManualMode).cmdHelp},
	}
}

var errQuit = errors.New("quit")

// Run opens the pool and executes commands until quit, EOF or ctx is
// done.  Command errors are printed and the loop continues.
func (m *ManualMode) Run(ctx context.Context) error {
	p, err := m.Backend.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s pool: %w", m.Backend.Name(), err)
	}
	defer p.Close()

	clock := m.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	m.trace = trace.NewWithClock(clock.Now)
	m.agent, m.sched = m.Channel.parts(p,
		channel.WithClock(clock),
		channel.WithTrace(m.trace),
		channel.WithMetrics(m.Metrics),
		channel.WithLogger(m.Logger),
	)

	fmt.Fprintf(m.Out, "connpulse manual mode: %d slots, %s; type help\n",
		m.Channel.MaxSlots, m.Backend.Name())

	for ctx.Err() == nil {
		line, err := m.Lines.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if err := m.Exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			fmt.Fprintf(m.Out, "error: %v\n", err)
		}
	}

	_, err = m.agent.ReleaseAll(context.WithoutCancel(ctx))
	return err
}

// Exec runs a single command line.
func (m *ManualMode) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	if name == "quit" || name == "exit" {
		return errQuit
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w %q (try help)", cperr.ErrUnknownCommand, name)
	}
	return cmd.run(m, ctx, args)
}

// ── commands ─────────────────────────────────────────────────────────

func (m *ManualMode) cmdConsume(ctx context.Context, args []string) error {
	n, err := countArg(args, 1)
	if err != nil {
		return err
	}
	got, err := m.agent.BulkConsume(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "gained %d, held %d\n", got, m.agent.Held())
	return nil
}

func (m *ManualMode) cmdConsumeAll(ctx context.Context, _ []string) error {
	got, err := m.agent.ConsumeAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "gained %d, held %d\n", got, m.agent.Held())
	return nil
}

func (m *ManualMode) cmdRelease(ctx context.Context, args []string) error {
	n, err := countArg(args, 1)
	if err != nil {
		return err
	}
	freed, err := m.agent.BulkRelease(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "released %d, held %d\n", freed, m.agent.Held())
	return nil
}

func (m *ManualMode) cmdReleaseAll(ctx context.Context, _ []string) error {
	freed, err := m.agent.ReleaseAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "released %d, held %d\n", freed, m.agent.Held())
	return nil
}

func (m *ManualMode) cmdProbe(ctx context.Context, args []string) error {
	n, err := countArg(args, int(m.Channel.Codec.MaxValue()))
	if err != nil {
		return err
	}
	free, err := m.agent.Probe(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "free %d (probe up to %d)\n", free, n)
	return nil
}

func (m *ManualMode) cmdHeld(context.Context, []string) error {
	fmt.Fprintf(m.Out, "held %d/%d\n", m.agent.Held(), m.agent.MaxSlots())
	return nil
}

func (m *ManualMode) cmdGC(context.Context, []string) error {
	fmt.Fprintf(m.Out, "pruned %d, held %d\n", m.agent.CollectGarbage(), m.agent.Held())
	return nil
}

func (m *ManualMode) cmdNegotiate(ctx context.Context, _ []string) error {
	role, captured, err := channel.NewNegotiator(m.agent, m.Rule).Negotiate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "%s (captured %d/%d)\n", role, captured, m.agent.MaxSlots())
	return nil
}

func (m *ManualMode) cmdSend(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: send <hex>")
	}
	v, err := m.Channel.Codec.ParseHex(args[0])
	if err != nil {
		return err
	}
	t0 := m.sched.NextCycleStart()
	fmt.Fprintf(m.Out, "sending at %s\n", t0.Format("15:04:05.000"))
	tx := channel.NewTransmitter(m.agent, m.sched, m.Channel.Codec, m.Strategy)
	hex, err := tx.Send(ctx, t0, v)
	if err != nil {
		return err
	}
	if err := m.sched.WaitUntil(ctx, m.sched.CycleEnd(t0)); err != nil {
		return err
	}
	if _, err := m.agent.ReleaseAll(ctx); err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "sent %s\n", hex)
	return nil
}

func (m *ManualMode) cmdReceive(ctx context.Context, _ []string) error {
	t0 := m.sched.NextCycleStart()
	fmt.Fprintf(m.Out, "receiving at %s\n", t0.Format("15:04:05.000"))
	res, err := channel.NewReceiver(m.agent, m.sched, m.Channel.Codec).Receive(ctx, t0)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "received %s (digits %v, %d erasure(s))\n", res.Hex, res.Digits, res.Erasures)
	return nil
}

func (m *ManualMode) cmdTrace(context.Context, []string) error {
	return m.trace.WriteTSV(m.Out)
}

func (m *ManualMode) cmdStats(context.Context, []string) error {
	if m.Metrics == nil {
		return fmt.Errorf("stats are disabled")
	}
	fmt.Fprintln(m.Out, m.Metrics.JSON())
	return nil
}

func (m *ManualMode) cmdHelp(context.Context, []string) error {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintln(m.Out, "  "+commands[n].usage)
	}
	fmt.Fprintln(m.Out, "  quit               release everything and exit")
	return nil
}

// countArg parses an optional non-negative count.
func countArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return n, nil
}
