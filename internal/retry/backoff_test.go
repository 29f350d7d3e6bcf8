package retry

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// TestBackoff_Do covers the outcomes of Do for the common operation shapes.
func TestBackoff_Do(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int  // attempts before success; -1 never succeeds
		permanent bool // failures are permanent
		max       int
		wantCalls int
		wantErr   string
	}{
		{"immediate", 0, false, 5, 1, ""},
		{"after retries", 2, false, 10, 3, ""},
		{"exhausted", -1, false, 3, 3, "giving up after 3 attempts"},
		{"permanent", -1, true, 5, 1, "redis: NOAUTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Backoff{
				InitialDelay: time.Millisecond,
				MaxDelay:     5 * time.Millisecond,
				MaxAttempts:  tt.max,
			}
			calls := 0
			err := b.Do(context.Background(), func(attempt int) error {
				calls++
				if tt.failUntil >= 0 && attempt > tt.failUntil {
					return nil
				}
				if tt.permanent {
					return Permanent(fmt.Errorf("redis: NOAUTH"))
				}
				return fmt.Errorf("dial tcp: connection refused")
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestBackoff_OnRetry verifies the hook sees every failed attempt except
// the last and that waits grow up to MaxDelay.
func TestBackoff_OnRetry(t *testing.T) {
	var waits []time.Duration
	b := &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     3 * time.Millisecond,
		Multiplier:   2,
		MaxAttempts:  4,
		OnRetry: func(_ int, _ error, wait time.Duration) {
			waits = append(waits, wait)
		},
	}
	_ = b.Do(context.Background(), func(int) error { return fmt.Errorf("x") })

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("OnRetry called %d times, want %d", len(waits), len(want))
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestBackoff_ContextCancelled(t *testing.T) {
	b := &Backoff{InitialDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(int) error { return fmt.Errorf("fail") })
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestIsPermanent(t *testing.T) {
	base := fmt.Errorf("base")
	if IsPermanent(base) {
		t.Error("plain error reported as permanent")
	}
	if !IsPermanent(Permanent(base)) {
		t.Error("Permanent error not detected")
	}
	if !IsPermanent(fmt.Errorf("wrapped: %w", Permanent(base))) {
		t.Error("wrapped Permanent error not detected")
	}
}

func TestJitter_Range(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		j := addJitter(d)
		if j < 75*time.Millisecond || j > 125*time.Millisecond {
			t.Fatalf("jitter %v outside ±25%% of %v", j, d)
		}
	}
}

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()
	if b.InitialDelay != 250*time.Millisecond || b.MaxAttempts != 5 || !b.Jitter {
		t.Errorf("unexpected defaults: %+v", b)
	}
}
