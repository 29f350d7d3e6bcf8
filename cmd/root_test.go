package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	cperr "connpulse/internal/errors"
)

// capture redirects CLI output for the duration of the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldErr := stdout, stderr
	stdout, stderr = &buf, io.Discard
	t.Cleanup(func() { stdout, stderr = oldOut, oldErr })
	return &buf
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	out := capture(t)
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "connpulse ") {
		t.Errorf("output = %q", out.String())
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	capture(t)
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run resolves and prints settings.
func TestExecute_DryRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "preset",
			args: []string{"-P", "wan", "--dry-run"},
			want: []string{"list_size=4 max_slots=33 max_value=32 pulse=3000ms", "pool      memory"},
		},
		{
			name: "override",
			args: []string{"-P", "wan", "--pulse-ms", "5000", "--dry-run"},
			want: []string{"pulse=5000ms settling=400ms"},
		},
		{
			name: "zero settling",
			args: []string{"-P", "wan", "--settling-ms", "0", "--dry-run"},
			want: []string{"pulse=3000ms settling=0ms"},
		},
		{
			name: "tcp positional",
			args: []string{"--dry-run", "10.0.0.5", "7000"},
			want: []string{"pool      tcp 10.0.0.5:7000"},
		},
		{
			name: "jump host",
			args: []string{"--dry-run", "-J", "ops@bastion:2200", "10.0.0.5", "7000"},
			want: []string{"jump      ops@bastion:2200"},
		},
		{
			name: "serve",
			args: []string{"serve", "9000", "--dry-run"},
			want: []string{"mode      serve", "listen    127.0.0.1:9000 (cap 129)"},
		},
		{
			name: "overshoot",
			args: []string{"--strategy", "overshoot", "--overshoot-margin", "3", "--dry-run"},
			want: []string{"strategy  overshoot (margin 3)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := capture(t)
			if err := Execute(context.Background(), tt.args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"max value", []string{"--max-value", "500", "--dry-run"}, "max-value"},
		{"preset", []string{"-P", "moon", "--dry-run"}, "preset"},
		{"serve without port", []string{"serve", "--dry-run"}, "listen-port"},
		{"redis without addr", []string{"--pool", "redis", "--dry-run"}, "redis-addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture(t)
			err := Execute(context.Background(), tt.args)
			var ce *cperr.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

// TestExecute_EnvPrecedence verifies flags beat CONNPULSE_* variables.
func TestExecute_EnvPrecedence(t *testing.T) {
	t.Setenv("CONNPULSE_PRESET", "wan")

	out := capture(t)
	if err := Execute(context.Background(), []string{"--dry-run"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "preset    wan") {
		t.Errorf("env preset not applied:\n%s", out.String())
	}

	out.Reset()
	if err := Execute(context.Background(), []string{"-P", "demo", "--dry-run"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "preset    demo") {
		t.Errorf("flag did not win:\n%s", out.String())
	}
}

// TestExecute_InvalidArgs verifies unknown flags and bad positionals
// produce an error.
func TestExecute_InvalidArgs(t *testing.T) {
	capture(t)
	for _, args := range [][]string{
		{"--nonexistent-flag"},
		{"10.0.0.5", "--dry-run"},
		{"10.0.0.5", "99999", "--dry-run"},
		{"a", "1", "b", "--dry-run"},
		{"serve", "1", "2", "--dry-run"},
	} {
		if err := Execute(context.Background(), args); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

// TestExecute_AutoMemory runs one cycle of the in-memory pair.
func TestExecute_AutoMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	out := capture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := Execute(ctx, []string{"-P", "demo", "--payload", "beef", "-c", "1", "--stats", "auto"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "sent beef") && !strings.Contains(got, "received beef") {
		t.Errorf("no result line:\n%s", got)
	}
	if !strings.Contains(got, `"cycles": 1`) {
		t.Errorf("stats missing:\n%s", got)
	}
}
