package errors

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker allowing 3 failures
	cb := NewCircuitBreaker("rerank",
		WithMaxFailures(3),
		WithResetTimeout(time.Second),
	)
	assert.Equal(t, "rerank", cb.Name())
	assert.True(t, cb.Allow())

	// When: recording 3 failures
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	// Then: the circuit is open and requests are rejected
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
	assert.Equal(t, 3, cb.Failures())
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	// Given: an open breaker with a short reset timeout
	cb := NewCircuitBreaker("rerank",
		WithMaxFailures(2),
		WithResetTimeout(50*time.Millisecond),
	)
	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	// When: the timeout elapses
	time.Sleep(60 * time.Millisecond)

	// Then: the probe is allowed
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker("rerank",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond),
	)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.Allow())

	cb.RecordSuccess()

	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("rerank",
		WithMaxFailures(1),
		WithResetTimeout(30*time.Millisecond),
	)
	cb.RecordFailure()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	// A failed probe keeps the circuit open for another interval
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("rerank", WithMaxFailures(3))
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	// Two failures after a success stays below the threshold
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ConcurrentRecording(t *testing.T) {
	cb := NewCircuitBreaker("rerank", WithMaxFailures(50))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.RecordFailure()
			cb.Allow()
		}()
	}
	wg.Wait()

	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 100, cb.Failures())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
