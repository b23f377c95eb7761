package module

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHealthDefaultsToHealthy(t *testing.T) {
	h := NewHealth(0, 0)
	assert.Equal(t, StatusHealthy, h.Status)
	assert.False(t, h.CircuitOpen)
}

func TestRecordFailureDegradesBeforeThreshold(t *testing.T) {
	h := NewHealth(3, time.Second)
	opened := h.RecordFailure("boom")
	assert.False(t, opened)
	assert.Equal(t, StatusDegraded, h.Status)
	assert.False(t, h.CircuitOpen)
	assert.Equal(t, 1, h.ConsecutiveErrors)
}

// TestCircuitOpensAtThreshold checks that the circuit opens exactly
// when consecutive failures reach the configured threshold, never
// before.
func TestCircuitOpensAtThreshold(t *testing.T) {
	h := NewHealth(3, time.Second)
	require.False(t, h.RecordFailure("1"))
	require.False(t, h.RecordFailure("2"))
	opened := h.RecordFailure("3")

	assert.True(t, opened)
	assert.True(t, h.CircuitOpen)
	assert.Equal(t, StatusUnhealthy, h.Status)
}

func TestBeginAttemptSkipsWhileCircuitOpen(t *testing.T) {
	h := NewHealth(1, time.Second)
	h.RecordFailure("fail")
	require.True(t, h.CircuitOpen)

	skip := h.BeginAttempt(time.Now())
	assert.True(t, skip)
}

func TestRecordSuccessClosesCircuitAndResetsStreak(t *testing.T) {
	h := NewHealth(1, time.Second)
	h.RecordFailure("fail")
	require.True(t, h.CircuitOpen)

	wasRecovering := h.RecordSuccess(time.Now(), 3)
	assert.True(t, wasRecovering)
	assert.False(t, h.CircuitOpen)
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, 0, h.ConsecutiveErrors)
	assert.Equal(t, int64(3), h.TotalEventsEmitted)
}

func TestRecordSuccessWithoutPriorFailureIsNotRecovering(t *testing.T) {
	h := NewHealth(3, time.Second)
	wasRecovering := h.RecordSuccess(time.Now(), 1)
	assert.False(t, wasRecovering)
}

func TestClearCircuitForProbeDoesNotResetStreak(t *testing.T) {
	h := NewHealth(1, time.Second)
	h.RecordFailure("fail")
	require.True(t, h.CircuitOpen)

	h.ClearCircuitForProbe()
	assert.False(t, h.CircuitOpen)
	assert.Equal(t, 1, h.ConsecutiveErrors)
}

func TestScheduleRetryProbeFiresProbe(t *testing.T) {
	h := NewHealth(1, 10*time.Millisecond)
	done := make(chan struct{})
	h.ScheduleRetryProbe(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry probe never fired")
	}
}

func TestCancelRetryProbePreventsFire(t *testing.T) {
	h := NewHealth(1, 20*time.Millisecond)
	fired := make(chan struct{}, 1)
	h.ScheduleRetryProbe(func() { fired <- struct{}{} })
	h.CancelRetryProbe()

	select {
	case <-fired:
		t.Fatal("probe fired after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	h := NewHealth(3, time.Second)
	snap := h.Snapshot()
	h.RecordFailure("fail")

	assert.Equal(t, StatusHealthy, snap.Status)
	assert.Equal(t, StatusDegraded, h.Status)
}
