package core

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"connpulse/util"
)

func waitActive(t *testing.T, m *ServeMode, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Active() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Active = %d, want %d", m.Active(), want)
}

// TestServeMode_Cap verifies connections beyond the cap are closed at
// once and a freed slot is reusable.
func TestServeMode_Cap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m := &ServeMode{Address: "127.0.0.1:0", MaxConns: 2, Logger: util.NewLogger(0)}
	serverErr := make(chan error, 1)
	go func() { serverErr <- m.Run(ctx) }()

	select {
	case <-m.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	addr := m.Addr().String()

	dial := func() net.Conn {
		t.Helper()
		c, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		return c
	}

	a, b := dial(), dial()
	defer a.Close()
	defer b.Close()
	waitActive(t, m, 2)

	over := dial()
	defer over.Close()
	over.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if _, err := over.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("over-cap read = %v, want EOF", err)
	}
	if m.Active() != 2 {
		t.Errorf("Active = %d after refusal", m.Active())
	}

	// Held connections absorb writes.
	if _, err := a.Write([]byte("ping")); err != nil {
		t.Errorf("write: %v", err)
	}

	b.Close()
	waitActive(t, m, 1)

	c := dial()
	defer c.Close()
	waitActive(t, m, 2)

	cancel()
	select {
	case err := <-serverErr:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down in time")
	}
	if m.Active() != 0 {
		t.Errorf("Active = %d after shutdown", m.Active())
	}
}

func TestServeMode_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	m := &ServeMode{Address: ln.Addr().String(), MaxConns: 1, Logger: util.NewLogger(0)}
	if err := m.Run(context.Background()); err == nil {
		t.Fatal("expected address-in-use error")
	}
}
