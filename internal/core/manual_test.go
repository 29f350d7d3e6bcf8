package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"connpulse/internal/channel"
	cperr "connpulse/internal/errors"
	"connpulse/internal/metrics"
	"connpulse/internal/pool"
	"connpulse/util"
)

func newManual(t *testing.T, limit *pool.Limit, script string, out *bytes.Buffer) *ManualMode {
	t.Helper()
	return &ManualMode{
		Backend:  &MemoryBackend{Limit: limit},
		Channel:  testParams(t),
		Strategy: channel.DirectDelta{},
		Rule:     channel.RuleHalf,
		Metrics:  metrics.New(),
		Logger:   util.NewLogger(0),
		Lines:    NewLineReader(strings.NewReader(script)),
		Out:      out,
	}
}

func TestManualMode_Commands(t *testing.T) {
	limit := pool.NewLimit(9)
	script := strings.Join([]string{
		"held",
		"consume 3",
		"probe",
		"release 1",
		"bogus",
		"consume x",
		"",
		"consume-all",
		"gc",
		"stats",
		"help",
		"quit",
		"consume 1",
	}, "\n")
	var out bytes.Buffer
	m := newManual(t, limit, script, &out)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"held 0/9",
		"gained 3, held 3",
		"free 6 (probe up to 8)",
		"released 1, held 2",
		`unknown command "bogus"`,
		`invalid count "x"`,
		"gained 7, held 9",
		"pruned 0, held 9",
		`"probes"`,
		"send <hex>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "gained") != 2 {
		t.Errorf("commands after quit ran:\n%s", got)
	}
	if limit.InUse() != 0 {
		t.Errorf("pool not released: %d in use", limit.InUse())
	}
}

func TestManualMode_Exec(t *testing.T) {
	m := &ManualMode{}
	if err := m.Exec(context.Background(), "frobnicate"); !errors.Is(err, cperr.ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
	if err := m.Exec(context.Background(), "   "); err != nil {
		t.Errorf("blank line: %v", err)
	}
}

// TestManualMode_SendReceive pairs two REPLs on one pool: one sends,
// the other receives in the same cycle.
func TestManualMode_SendReceive(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	limit := pool.NewLimit(9)
	var sendOut, recvOut bytes.Buffer
	sender := newManual(t, limit, "send 1a5\n", &sendOut)
	receiver := newManual(t, limit, "receive\n", &recvOut)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, m := range []*ManualMode{sender, receiver} {
		wg.Add(1)
		go func(i int, m *ManualMode) {
			defer wg.Done()
			errs[i] = m.Run(ctx)
		}(i, m)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if !strings.Contains(sendOut.String(), "sent 1a5") {
		t.Errorf("sender output:\n%s", sendOut.String())
	}
	if !strings.Contains(recvOut.String(), "received 1a5") {
		t.Errorf("receiver output:\n%s", recvOut.String())
	}
	if limit.InUse() != 0 {
		t.Errorf("pool not released: %d in use", limit.InUse())
	}
}
