package stream

import (
	"time"
)

// BackoffDelay returns the wait before reconnect attempt n (1-based):
// base doubled per attempt, capped at max. Pure function; the attempt
// counter lives in the Reconnector state machine, never in here.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// ReconnectState is the reconnect loop's position.
type ReconnectState int

const (
	// ReconnectIdle means the connection is healthy.
	ReconnectIdle ReconnectState = iota

	// ReconnectWaiting means a failed attempt is backing off.
	ReconnectWaiting

	// ReconnectExhausted means the attempt ceiling is spent; the
	// client-visible session is force-completed rather than left hanging.
	ReconnectExhausted
)

func (s ReconnectState) String() string {
	switch s {
	case ReconnectIdle:
		return "idle"
	case ReconnectWaiting:
		return "waiting"
	case ReconnectExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Reconnector is the explicit reconnect state machine: each failed
// attempt transitions the state and yields the next delay.
type Reconnector struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int

	state   ReconnectState
	attempt int
}

// NewReconnector builds a reconnector with the given backoff bounds and
// attempt ceiling.
func NewReconnector(base, max time.Duration, maxAttempts int) *Reconnector {
	return &Reconnector{base: base, max: max, maxAttempts: maxAttempts}
}

// State returns the current state.
func (r *Reconnector) State() ReconnectState { return r.state }

// Attempt returns the number of failures since the last success.
func (r *Reconnector) Attempt() int { return r.attempt }

// Fail records a failed attempt. It returns the delay to wait before the
// next attempt and whether another attempt is allowed; once the ceiling
// is hit the state is exhausted and the delay is meaningless.
func (r *Reconnector) Fail() (time.Duration, bool) {
	if r.state == ReconnectExhausted {
		return 0, false
	}
	r.attempt++
	if r.attempt >= r.maxAttempts {
		r.state = ReconnectExhausted
		return 0, false
	}
	r.state = ReconnectWaiting
	return BackoffDelay(r.attempt, r.base, r.max), true
}

// Succeed resets the machine after a successful connection.
func (r *Reconnector) Succeed() {
	r.state = ReconnectIdle
	r.attempt = 0
}
