package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewCircuitBreaker(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.True(t, b.Allow(), "breaker must stay closed below the threshold")
	}

	b.RecordFailure()
	assert.Equal(t, "open", b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	// Failures were interrupted by a success, so the run of 2 is not enough.
	assert.Equal(t, "closed", b.State())
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	assert.False(t, b.Allow())

	// Before cooldown elapses nothing gets through.
	now = now.Add(29 * time.Second)
	assert.False(t, b.Allow())

	// After cooldown exactly one probe is allowed.
	now = now.Add(1 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, "half-open", b.State())
	assert.False(t, b.Allow(), "only one probe while half-open")

	b.RecordSuccess()
	assert.Equal(t, "closed", b.State())
	assert.True(t, b.Allow())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, "open", b.State())

	// The cooldown restarts from the failed probe.
	now = now.Add(29 * time.Second)
	assert.False(t, b.Allow())
	now = now.Add(1 * time.Second)
	assert.True(t, b.Allow())
}
