// Package obslog is the logger fan-out manager (§4.3). It dispatches
// one structured Entry to any number of tagged plugin.Logger sinks,
// concurrently and with each sink's failure isolated from the others
// and from the caller.
package obslog

import (
	"context"
	"sync"

	"github.com/orgloop/orgloop/internal/plugin"
)

type taggedLogger struct {
	name   string
	tag    string // module name that attached this logger, "" for global
	logger plugin.Logger
}

// Manager fans a log Entry out to every registered logger.
type Manager struct {
	mu      sync.RWMutex
	entries []taggedLogger
}

// NewManager returns an empty logger manager.
func NewManager() *Manager {
	return &Manager{}
}

// Attach registers logger under name, tagged with the owning module's
// name (empty for runtime-global loggers).
func (m *Manager) Attach(name, tag string, logger plugin.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, taggedLogger{name: name, tag: tag, logger: logger})
}

// RemoveByTag drops every logger attached with the given tag, used on
// module unload.
func (m *Manager) RemoveByTag(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0:0]
	for _, e := range m.entries {
		if e.tag != tag {
			kept = append(kept, e)
		}
	}
	m.entries = kept
}

// Log fans entry out to every registered sink, one goroutine per sink,
// and waits for all of them. The entry is built once and must not be
// mutated by sinks (§5). A sink that errors or panics affects neither
// the other sinks nor the caller — observability must not threaten
// liveness.
func (m *Manager) Log(ctx context.Context, entry plugin.Entry) {
	m.mu.RLock()
	sinks := make([]plugin.Logger, 0, len(m.entries))
	for _, e := range m.entries {
		sinks = append(sinks, e.logger)
	}
	m.mu.RUnlock()

	if len(sinks) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink plugin.Logger) {
			defer wg.Done()
			defer func() { _ = recover() }()
			_ = sink.Log(ctx, entry)
		}(sink)
	}
	wg.Wait()
}

// Flush calls Flush on every sink, isolating individual failures.
func (m *Manager) Flush(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		flushIsolated(ctx, e.logger)
	}
}

// Shutdown calls Shutdown on every sink, isolating individual failures.
// It is idempotent: a second call simply re-invokes Shutdown on
// whatever loggers remain attached (typically none, since unload calls
// RemoveByTag first).
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		shutdownIsolated(ctx, e.logger)
	}
}

func flushIsolated(ctx context.Context, lg plugin.Logger) {
	defer func() { _ = recover() }()
	_ = lg.Flush(ctx)
}

func shutdownIsolated(ctx context.Context, lg plugin.Logger) {
	defer func() { _ = recover() }()
	_ = lg.Shutdown(ctx)
}
