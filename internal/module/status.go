package module

import "time"

// Status is the JSON-serializable snapshot returned by the control
// API's status endpoints.
type Status struct {
	Name      string                `json:"name"`
	State     State                 `json:"state"`
	StartedAt time.Time             `json:"started_at,omitempty"`
	Sources   map[string]HealthView `json:"sources"`
}

// HealthView is the JSON view of a Health snapshot.
type HealthView struct {
	Status             HealthStatus `json:"status"`
	LastSuccessfulPoll time.Time    `json:"last_successful_poll,omitempty"`
	LastPollAttempt    time.Time    `json:"last_poll_attempt,omitempty"`
	ConsecutiveErrors  int          `json:"consecutive_errors"`
	LastError          string       `json:"last_error,omitempty"`
	TotalEventsEmitted int64        `json:"total_events_emitted"`
	CircuitOpen        bool         `json:"circuit_open"`
}

// Snapshot builds the module's current Status.
func (m *Instance) Snapshot() Status {
	m.mu.RLock()
	state, started := m.state, m.startedAt
	m.mu.RUnlock()

	sources := make(map[string]HealthView, len(m.health))
	for id, h := range m.health {
		snap := h.Snapshot()
		sources[id] = HealthView{
			Status:             snap.Status,
			LastSuccessfulPoll: snap.LastSuccessfulPoll,
			LastPollAttempt:    snap.LastPollAttempt,
			ConsecutiveErrors:  snap.ConsecutiveErrors,
			LastError:          snap.LastError,
			TotalEventsEmitted: snap.TotalEventsEmitted,
			CircuitOpen:        snap.CircuitOpen,
		}
	}
	return Status{Name: m.cfg.Name, State: state, StartedAt: started, Sources: sources}
}
