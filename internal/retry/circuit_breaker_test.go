package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	cperr "connpulse/internal/errors"
)

var errRefused = errors.New("connection refused")

func newTestBreaker(maxFailures int) (*CircuitBreaker, *clockz.FakeClock) {
	clock := clockz.NewFakeClock()
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  maxFailures,
		ResetTimeout: time.Second,
		HalfOpenMax:  2,
		Clock:        clock,
	})
	return cb, clock
}

func TestCircuitBreaker_NormalOperation(t *testing.T) {
	cb, _ := newTestBreaker(3)
	for i := 0; i < 10; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.CurrentState())
	}
}

// TestCircuitBreaker_OpensAfterThreshold verifies that consecutive
// failures open the circuit and that Allow then refuses locally.
func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	for i := 0; i < 3; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("attempt %d refused early: %v", i, err)
		}
		cb.Record(errRefused)
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.CurrentState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, cperr.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn must not run while open")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.Record(errRefused)
	if cb.CurrentState() != StateOpen {
		t.Fatal("expected open")
	}

	clock.Advance(1100 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open admission, got %v", err)
	}
	if cb.CurrentState() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.CurrentState())
	}
	cb.Record(nil)
	if cb.CurrentState() != StateHalfOpen {
		t.Fatal("one success must not close the circuit")
	}
	cb.Record(nil)
	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.CurrentState())
	}
	if cb.Failures() != 0 {
		t.Errorf("failures = %d, want 0", cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.Record(errRefused)
	clock.Advance(2 * time.Second)
	_ = cb.Allow()
	cb.Record(errRefused)
	if cb.CurrentState() != StateOpen {
		t.Errorf("state = %v, want open", cb.CurrentState())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.Record(errRefused)
	cb.Reset()
	if cb.CurrentState() != StateClosed || cb.Failures() != 0 {
		t.Errorf("after reset: state=%v failures=%d", cb.CurrentState(), cb.Failures())
	}
}

func TestCircuitBreaker_StateChange(t *testing.T) {
	var transitions []string
	clock := clockz.NewFakeClock()
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		HalfOpenMax:  1,
		Clock:        clock,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.Record(errRefused)
	clock.Advance(2 * time.Second)
	_ = cb.Allow()
	cb.Record(nil)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestCircuitBreaker_NilConfig(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	if cb.maxFailures != 5 || cb.halfOpenMax != 2 {
		t.Errorf("unexpected defaults: maxFailures=%d halfOpenMax=%d", cb.maxFailures, cb.halfOpenMax)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3)
	cb.Record(errRefused)
	cb.Record(errRefused)
	cb.Record(nil)
	if cb.Failures() != 0 {
		t.Errorf("failures = %d, want 0", cb.Failures())
	}
	cb.Record(errRefused)
	if cb.CurrentState() != StateClosed {
		t.Error("circuit opened on non-consecutive failures")
	}
}
