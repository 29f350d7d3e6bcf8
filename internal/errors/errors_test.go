package errors

import (
	"fmt"
	"io"
	"net"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "intermediary:9000", Err: io.EOF, Retryable: true},
			want: "dial intermediary:9000: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "listen", Addr: ":9000", Err: fmt.Errorf("bind failed")},
			want: "listen :9000: bind failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPoolError(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := WrapPool("redis", "open", inner)
	if got := err.Error(); got != "pool redis open: connection refused" {
		t.Errorf("got %q", got)
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
	var pe *PoolError
	if !As(fmt.Errorf("wrapped: %w", err), &pe) || pe.Backend != "redis" {
		t.Error("As should find the PoolError")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "max-value",
				Value:   300,
				Message: "exceeds max-slots (256)",
				Hint:    "every digit needs max-value free slots",
			},
			want: "config: --max-value=300: exceeds max-slots (256)\n  hint: every digit needs max-value free slots",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "redis-addr",
				Message: "required with --pool redis",
			},
			want: "config: --redis-addr: required with --pool redis",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("dial", "10.0.0.1:9000", inner)

	if err.Op != "dial" || err.Addr != "10.0.0.1:9000" {
		t.Errorf("wrong fields: Op=%q Addr=%q", err.Op, err.Addr)
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestClassifyRetryable_NetOpError(t *testing.T) {
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	if !classifyRetryable(opErr) {
		t.Error("temporary OpError should be retryable")
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrNotConnected, ErrCircuitOpen,
		ErrUnknownPreset, ErrPayloadRange, ErrUnknownCommand,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
