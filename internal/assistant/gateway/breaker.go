package gateway

import (
	"sync"
	"time"

	logx "github.com/motorchat-core/server/pkg/logger"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker guards the generation endpoint. After `threshold`
// consecutive failures it opens and short-circuits calls for `cooldown`;
// the first call after cooldown is a half-open probe, and a single
// success closes the breaker again. There are no retries anywhere in the
// pipeline, so every recorded failure is a real upstream failure.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	openedAt  time.Time
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may go upstream. While open it returns false
// until the cooldown elapses; the transition call that moves the breaker to
// half-open is the only one allowed through until the probe resolves.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			logx.Info().Msg("Circuit breaker half-open, allowing probe call")
			return true
		}
		return false
	default: // half-open: a probe is already in flight
		return false
	}
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != breakerClosed {
		logx.Info().Str("from", b.state.String()).Msg("Circuit breaker closed")
	}
	b.state = breakerClosed
	b.failures = 0
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	// A failed half-open probe reopens immediately regardless of the count.
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		if b.state != breakerOpen {
			logx.Warn().
				Int("consecutive_failures", b.failures).
				Dur("cooldown", b.cooldown).
				Msg("Circuit breaker opened")
		}
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// State returns the current state name for logging and health reporting.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
