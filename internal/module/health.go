package module

import (
	"sync"
	"time"
)

// HealthStatus is the coarse status derived from a source's recent
// poll outcomes.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

const (
	defaultFailureThreshold = 5
	defaultRetryAfter       = 60 * time.Second
)

// Health is the mutable per-source circuit-breaker state machine
// described in §4.8. One Health belongs to exactly one source and is
// written only from that source's scheduler tick (polling is never
// concurrent for the same source), so a simple mutex is sufficient —
// contention is with the status-reporting readers only.
type Health struct {
	mu sync.Mutex

	Status             HealthStatus
	LastSuccessfulPoll time.Time
	LastPollAttempt    time.Time
	ConsecutiveErrors  int
	LastError          string
	TotalEventsEmitted int64
	CircuitOpen        bool

	failureThreshold int
	retryAfter       time.Duration
	retryTimer       *time.Timer
}

// NewHealth returns a healthy Health record, using thresholds or the
// package defaults (failureThreshold=5, retryAfter=60s) when zero.
func NewHealth(failureThreshold int, retryAfter time.Duration) *Health {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	return &Health{
		Status:           StatusHealthy,
		failureThreshold: failureThreshold,
		retryAfter:       retryAfter,
	}
}

// Snapshot returns a copy safe to hand to a status-endpoint reader.
func (h *Health) Snapshot() Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *h
	cp.mu = sync.Mutex{}
	return cp
}

// BeginAttempt records the poll attempt timestamp and reports whether
// the circuit is open (in which case the caller must skip the poll).
func (h *Health) BeginAttempt(now time.Time) (skip bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastPollAttempt = now
	return h.CircuitOpen
}

// RecordSuccess clears the error streak and closes the circuit if it
// was open. It reports whether this success ended an error streak
// (ConsecutiveErrors was above zero); the caller logs
// source.circuit_close in that case.
func (h *Health) RecordSuccess(now time.Time, eventsEmitted int) (wasRecovering bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	wasRecovering = h.ConsecutiveErrors > 0
	h.LastSuccessfulPoll = now
	h.LastError = ""
	h.ConsecutiveErrors = 0
	h.Status = StatusHealthy
	h.CircuitOpen = false
	h.TotalEventsEmitted += int64(eventsEmitted)
	h.cancelRetryLocked()
	return wasRecovering
}

// RecordFailure increments the error streak and reports whether the
// circuit should now open (consecutive errors reached the threshold).
func (h *Health) RecordFailure(errMsg string) (circuitShouldOpen bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.LastError = errMsg
	h.ConsecutiveErrors++
	if h.ConsecutiveErrors >= h.failureThreshold {
		h.Status = StatusUnhealthy
		h.CircuitOpen = true
		return true
	}
	h.Status = StatusDegraded
	return false
}

// ScheduleRetryProbe cancels any existing recovery timer and arms a new
// one that calls probe after the configured retryAfter.
func (h *Health) ScheduleRetryProbe(probe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelRetryLocked()
	h.retryTimer = time.AfterFunc(h.retryAfter, probe)
}

// CancelRetryProbe cancels any pending recovery timer, used on source
// removal or module shutdown.
func (h *Health) CancelRetryProbe() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelRetryLocked()
}

func (h *Health) cancelRetryLocked() {
	if h.retryTimer != nil {
		h.retryTimer.Stop()
		h.retryTimer = nil
	}
}

// ClearCircuitForProbe marks the circuit closed just before a recovery
// probe poll, without touching the error streak (the probe's own
// RecordSuccess/RecordFailure call decides the outcome).
func (h *Health) ClearCircuitForProbe() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.CircuitOpen = false
}
