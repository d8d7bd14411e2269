package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("provider down")

func failing() error    { return errProbe }
func succeeding() error { return nil }

func TestCall_OpensAfterFailureThreshold(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := cb.Call(failing); !errors.Is(err, errProbe) {
			t.Fatalf("call %d: err = %v, want the provider error", i+1, err)
		}
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open after threshold failures", got)
	}

	calls := 0
	err := cb.Call(func() error { calls++; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen while open", err)
	}
	if calls != 0 {
		t.Error("fn ran while the circuit was open")
	}
}

func TestCall_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute})

	_ = cb.Call(failing)
	_ = cb.Call(failing)
	_ = cb.Call(succeeding)
	_ = cb.Call(failing)
	_ = cb.Call(failing)

	if got := cb.State(); got != StateClosed {
		t.Errorf("state = %v, want closed when failures never ran consecutively to threshold", got)
	}
}

func TestCall_HalfOpenProbeClosesAfterSuccesses(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	_ = cb.Call(failing)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(15 * time.Millisecond)

	if err := cb.Call(succeeding); err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state = %v, want half_open after one probe success", got)
	}
	if err := cb.Call(succeeding); err != nil {
		t.Fatalf("second probe call: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("state = %v, want closed after success threshold", got)
	}
}

func TestCall_HalfOpenProbeFailureReopens(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	_ = cb.Call(failing)
	time.Sleep(15 * time.Millisecond)

	if err := cb.Call(failing); !errors.Is(err, errProbe) {
		t.Fatalf("probe err = %v, want the provider error", err)
	}
	if got := cb.State(); got != StateOpen {
		t.Errorf("state = %v, want open again after a failed probe", got)
	}
}

func TestCall_StateChangeCallback(t *testing.T) {
	type transition struct{ from, to State }
	var transitions []transition
	cb := New(Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
		Provider:         "swpc",
		OnStateChange: func(from, to State) {
			transitions = append(transitions, transition{from, to})
		},
	})

	_ = cb.Call(failing)
	time.Sleep(15 * time.Millisecond)
	_ = cb.Call(succeeding)

	want := []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(transitions) != len(want) {
		t.Fatalf("got %d transitions, want %d: %v", len(transitions), len(want), transitions)
	}
	for i, tr := range want {
		if transitions[i] != tr {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], tr)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
		{State(42), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
