// Package schedule keeps a per-source periodic poll timer with
// first-tick-immediate semantics (§4.4). Callback errors are swallowed
// here; the circuit-breaker decision of whether to even invoke the
// callback belongs to the caller (internal/runtime), which skips a
// tick entirely when that source's circuit is open.
package schedule

import (
	"sync"
	"time"
)

// Callback is invoked once per tick for a source.
type Callback func(sourceID, moduleName string)

type entry struct {
	sourceID   string
	moduleName string
	interval   time.Duration
	timer      *time.Timer
}

// Scheduler drives Callback invocations for every registered source.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[string]*entry
	callback Callback
	running  bool
}

// New returns a Scheduler with no sources registered.
func New() *Scheduler {
	return &Scheduler{entries: make(map[string]*entry)}
}

// Start begins firing registered sources: each fires once immediately,
// then at its configured interval, until Stop or RemoveSource(s) is
// called for it.
func (s *Scheduler) Start(callback Callback) {
	s.mu.Lock()
	s.callback = callback
	s.running = true
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.fireAndReschedule(e)
	}
}

// AddSource registers sourceID with the given poll interval. If the
// scheduler is already running, it fires immediately; otherwise it
// will fire on the next Start.
func (s *Scheduler) AddSource(sourceID, moduleName string, interval time.Duration) {
	s.mu.Lock()
	e := &entry{sourceID: sourceID, moduleName: moduleName, interval: interval}
	s.entries[sourceID] = e
	running := s.running
	s.mu.Unlock()

	if running {
		s.fireAndReschedule(e)
	}
}

// RemoveSource cancels and forgets sourceID's timer.
func (s *Scheduler) RemoveSource(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(sourceID)
}

// RemoveSources cancels and forgets every source belonging to
// moduleName, used on module unload.
func (s *Scheduler) RemoveSources(moduleName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.moduleName == moduleName {
			s.removeLocked(id)
		}
	}
}

func (s *Scheduler) removeLocked(sourceID string) {
	e, ok := s.entries[sourceID]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, sourceID)
}

func (s *Scheduler) fireAndReschedule(e *entry) {
	s.invoke(e)
	s.scheduleNext(e)
}

func (s *Scheduler) scheduleNext(e *entry) {
	s.mu.Lock()
	if _, ok := s.entries[e.sourceID]; !ok {
		s.mu.Unlock()
		return
	}
	e.timer = time.AfterFunc(e.interval, func() {
		s.invoke(e)
		s.scheduleNext(e)
	})
	s.mu.Unlock()
}

func (s *Scheduler) invoke(e *entry) {
	s.mu.Lock()
	cb := s.callback
	_, stillRegistered := s.entries[e.sourceID]
	s.mu.Unlock()
	if cb == nil || !stillRegistered {
		return
	}

	defer func() {
		// A panicking callback must not take the scheduler down; it
		// keeps running for every other source.
		_ = recover()
	}()
	cb(e.sourceID, e.moduleName)
}

// Stop cancels every timer and forgets every source.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.entries {
		s.removeLocked(id)
	}
	s.running = false
}
