// Package module implements the module instance (§4.9) and the
// registry that indexes loaded modules by their unique name (§4.2 of
// the component table, "Module registry").
package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orgloop/orgloop/internal/checkpoint"
	"github.com/orgloop/orgloop/internal/clock"
	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/orgerr"
	"github.com/orgloop/orgloop/internal/plugin"
)

// State is a module's lifecycle stage.
type State string

const (
	StateLoading   State = "loading"
	StateActive    State = "active"
	StateUnloading State = "unloading"
	StateRemoved   State = "removed"
)

// Resources bundles the already-constructed plugin instances a module
// needs. Building these from config.SourceInstance.Connector etc. is
// the out-of-scope plugin host's job (§1); the core only wires
// instances the caller hands it, keyed by id/name.
type Resources struct {
	Sources    map[string]plugin.SourceConnector
	Actors     map[string]plugin.ActorConnector
	Transforms map[string]plugin.Transform // keyed by TransformDef.Name, package transforms only
	Loggers    map[string]plugin.Logger    // keyed by LoggerDef.Name
}

// Instance owns one loaded module's connectors, routes, transforms,
// loggers, health records and checkpoint store.
type Instance struct {
	mu sync.RWMutex

	cfg       config.Module
	resources Resources
	state     State
	startedAt time.Time

	checkpoints checkpoint.Store
	health      map[string]*Health // sourceID -> Health
}

// New constructs an Instance in the "loading" state. checkpoints
// defaults to an in-memory store when nil.
func New(cfg config.Module, resources Resources, checkpoints checkpoint.Store) *Instance {
	if checkpoints == nil {
		checkpoints = checkpoint.NewMemory()
	}
	health := make(map[string]*Health, len(cfg.Sources))
	for _, src := range cfg.Sources {
		threshold, retryAfter := 0, time.Duration(0)
		if src.CircuitBreaker != nil {
			threshold = src.CircuitBreaker.FailureThreshold
			if d, err := parseOptionalDuration(src.CircuitBreaker.RetryAfter); err == nil {
				retryAfter = d
			}
		}
		health[src.ID] = NewHealth(threshold, retryAfter)
	}
	return &Instance{
		cfg:         cfg,
		resources:   resources,
		state:       StateLoading,
		checkpoints: checkpoints,
		health:      health,
	}
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	return clock.ParseDuration(s)
}

// Name returns the module's configured name, its registry key.
func (m *Instance) Name() string { return m.cfg.Name }

// Config returns the module's configuration record.
func (m *Instance) Config() config.Module { return m.cfg }

// State returns the current lifecycle stage.
func (m *Instance) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Checkpoints returns the module's checkpoint store.
func (m *Instance) Checkpoints() checkpoint.Store { return m.checkpoints }

// Health returns the health record for sourceID, or nil if unknown.
func (m *Instance) Health(sourceID string) *Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health[sourceID]
}

// Source returns the connector for a source id.
func (m *Instance) Source(id string) (plugin.SourceConnector, bool) {
	c, ok := m.resources.Sources[id]
	return c, ok
}

// Actor returns the connector for an actor id.
func (m *Instance) Actor(id string) (plugin.ActorConnector, bool) {
	c, ok := m.resources.Actors[id]
	return c, ok
}

// TransformDef returns the declared transform definition by name.
func (m *Instance) TransformDef(name string) (config.TransformDef, bool) {
	for _, t := range m.cfg.Transforms {
		if t.Name == name {
			return t, true
		}
	}
	return config.TransformDef{}, false
}

// TransformImpl returns the package transform implementation by name.
func (m *Instance) TransformImpl(name string) (plugin.Transform, bool) {
	t, ok := m.resources.Transforms[name]
	return t, ok
}

// Routes returns the module's declared routes.
func (m *Instance) Routes() []config.Route { return m.cfg.Routes }

// Sources returns the module's declared source instances.
func (m *Instance) Sources() []config.SourceInstance { return m.cfg.Sources }

// Loggers returns the name->Logger map for attaching to the global
// logger manager on activate.
func (m *Instance) Loggers() map[string]plugin.Logger { return m.resources.Loggers }

// Initialize calls Init on every source and actor connector and every
// package transform in declaration order, then on every logger in no
// defined order. The first failure aborts and is returned wrapped as a
// CONNECTOR_ERROR (connector), TRANSFORM_ERROR (transform) or
// RUNTIME_ERROR (logger).
func (m *Instance) Initialize(ctx context.Context) error {
	for _, src := range m.cfg.Sources {
		conn, ok := m.resources.Sources[src.ID]
		if !ok {
			return orgerr.Connector(src.ID, "no connector instance provided", nil)
		}
		if err := conn.Init(ctx, src.Config); err != nil {
			return orgerr.Connector(src.ID, "init failed", err)
		}
	}
	for _, act := range m.cfg.Actors {
		conn, ok := m.resources.Actors[act.ID]
		if !ok {
			return orgerr.Connector(act.ID, "no connector instance provided", nil)
		}
		if err := conn.Init(ctx, act.Config); err != nil {
			return orgerr.Connector(act.ID, "init failed", err)
		}
	}
	for _, td := range m.cfg.Transforms {
		if td.Type != "package" {
			continue
		}
		impl, ok := m.resources.Transforms[td.Name]
		if !ok {
			return orgerr.Transform(td.Name, "no transform instance provided", nil)
		}
		if err := impl.Init(ctx, td.Config); err != nil {
			return orgerr.Transform(td.Name, "init failed", err)
		}
	}
	for name, lg := range m.resources.Loggers {
		var cfg map[string]any
		for _, ld := range m.cfg.Loggers {
			if ld.Name == name {
				cfg = ld.Config
			}
		}
		if err := lg.Init(ctx, cfg); err != nil {
			return orgerr.Runtime(fmt.Sprintf("logger %q init failed", name), err)
		}
	}
	return nil
}

// Activate marks the module active and records its start time.
func (m *Instance) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateActive
	m.startedAt = time.Now().UTC()
}

// Deactivate marks the module as unloading, preventing new event
// processing from being accepted for it.
func (m *Instance) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnloading
}

// Active reports whether the module currently accepts events.
func (m *Instance) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateActive
}

// Shutdown calls Shutdown on every logger, package transform, actor
// and source, in that order (the reverse of Initialize's order by
// kind); package transforms go in declaration order, the other kinds
// in no defined order. Each failure is isolated so one component's
// shutdown error doesn't skip the rest. All encountered errors are
// joined and returned.
func (m *Instance) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.health {
		h.CancelRetryProbe()
	}

	var errs []error
	for name, lg := range m.resources.Loggers {
		if err := lg.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger %q: %w", name, err))
		}
	}
	for _, td := range m.cfg.Transforms {
		if td.Type != "package" {
			continue
		}
		if impl, ok := m.resources.Transforms[td.Name]; ok {
			if err := impl.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("transform %q: %w", td.Name, err))
			}
		}
	}
	for id, conn := range m.resources.Actors {
		if err := conn.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("actor %q: %w", id, err))
		}
	}
	for id, conn := range m.resources.Sources {
		if err := conn.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("source %q: %w", id, err))
		}
	}

	m.state = StateRemoved
	if len(errs) > 0 {
		return orgerr.Runtime("module shutdown had errors", errors.Join(errs...))
	}
	return nil
}
