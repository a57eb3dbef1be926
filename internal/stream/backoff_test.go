package stream

import (
	"testing"
	"time"
)

func TestBackoffDelayDoubles(t *testing.T) {
	base := 250 * time.Millisecond
	max := 8 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 250 * time.Millisecond}, // clamped to attempt 1
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{4, 2 * time.Second},
		{6, 8 * time.Second},
		{20, 8 * time.Second}, // capped
	}
	for _, tt := range tests {
		if got := BackoffDelay(tt.attempt, base, max); got != tt.want {
			t.Errorf("BackoffDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := BackoffDelay(3, time.Second, time.Minute); got != 4*time.Second {
			t.Fatalf("call %d: BackoffDelay(3) = %s, want 4s", i, got)
		}
	}
}

func TestReconnectorCeiling(t *testing.T) {
	r := NewReconnector(100*time.Millisecond, time.Second, 3)
	if r.State() != ReconnectIdle {
		t.Fatalf("initial state = %s, want idle", r.State())
	}

	delay, ok := r.Fail()
	if !ok || delay != 100*time.Millisecond {
		t.Fatalf("first failure: delay=%s ok=%v", delay, ok)
	}
	if r.State() != ReconnectWaiting {
		t.Fatalf("state after failure = %s, want waiting", r.State())
	}

	if delay, ok = r.Fail(); !ok || delay != 200*time.Millisecond {
		t.Fatalf("second failure: delay=%s ok=%v", delay, ok)
	}

	if _, ok = r.Fail(); ok {
		t.Fatal("third failure should exhaust the ceiling")
	}
	if r.State() != ReconnectExhausted {
		t.Fatalf("state = %s, want exhausted", r.State())
	}

	// Exhausted is sticky.
	if _, ok = r.Fail(); ok {
		t.Fatal("exhausted reconnector must not allow more attempts")
	}
}

func TestReconnectorSucceedResets(t *testing.T) {
	r := NewReconnector(100*time.Millisecond, time.Second, 3)
	r.Fail()
	r.Fail()
	r.Succeed()

	if r.State() != ReconnectIdle || r.Attempt() != 0 {
		t.Fatalf("after success: state=%s attempt=%d, want idle/0", r.State(), r.Attempt())
	}

	// The backoff sequence restarts from the base delay.
	if delay, ok := r.Fail(); !ok || delay != 100*time.Millisecond {
		t.Fatalf("failure after reset: delay=%s ok=%v", delay, ok)
	}
}
