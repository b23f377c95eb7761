package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/delivery"
	"github.com/orgloop/orgloop/internal/module"
	"github.com/orgloop/orgloop/internal/orgevent"
	"github.com/orgloop/orgloop/internal/plugin"
	"github.com/orgloop/orgloop/internal/router"
	"github.com/orgloop/orgloop/internal/transform"
)

// Inject hands event to the named module for routing, as if it had
// been produced by one of that module's sources. With an empty
// moduleName, the event is routed through every currently active
// module instead. Used by webhook delivery and by any caller
// (cmd/orgloop, tests) that wants to feed an event in directly.
func (r *Runtime) Inject(ctx context.Context, event orgevent.Event, moduleName string) error {
	if moduleName == "" {
		var firstErr error
		for _, inst := range r.registry.Active() {
			if err := r.processEvent(ctx, inst.Name(), inst, event); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	r.mu.RLock()
	inst, ok := r.registry.Get(moduleName)
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("runtime: module %q not found", moduleName)
	}
	if !inst.Active() {
		return fmt.Errorf("runtime: module %q is not active", moduleName)
	}
	return r.processEvent(ctx, moduleName, inst, event)
}

func (r *Runtime) injectWebhookEvent(ctx context.Context, event orgevent.Event, moduleName string) error {
	return r.Inject(ctx, event, moduleName)
}

// onScheduledTick is the schedule.Callback invoked for every registered
// polling source.
func (r *Runtime) onScheduledTick(sourceID, moduleName string) {
	r.pollSource(context.Background(), moduleName, sourceID, false)
}

// pollSource drives one poll attempt through the circuit breaker
// described in §4.8. isProbe distinguishes the scheduler's regular tick
// from the recovery probe a previously open circuit arms for itself.
func (r *Runtime) pollSource(ctx context.Context, moduleName, sourceID string, isProbe bool) {
	r.mu.RLock()
	inst, ok := r.registry.Get(moduleName)
	r.mu.RUnlock()
	if !ok || !inst.Active() {
		return
	}
	health := inst.Health(sourceID)
	conn, ok := inst.Source(sourceID)
	if !ok || health == nil {
		return
	}

	now := time.Now().UTC()
	if isProbe {
		health.ClearCircuitForProbe()
		r.logEntry(plugin.Entry{Phase: plugin.PhaseSourceCircuitRetry, Module: moduleName, Source: sourceID, Timestamp: nowRFC3339()})
	}
	if skip := health.BeginAttempt(now); skip {
		return
	}

	cp, _, err := inst.Checkpoints().Get(ctx, sourceID)
	if err != nil {
		r.recordPollFailure(moduleName, sourceID, health, err)
		return
	}

	res, err := conn.Poll(ctx, cp)
	if err != nil {
		r.recordPollFailure(moduleName, sourceID, health, err)
		return
	}

	wasRecovering := health.RecordSuccess(time.Now().UTC(), len(res.Events))
	if wasRecovering {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseSourceCircuitClose, Module: moduleName, Source: sourceID, Timestamp: nowRFC3339()})
	}

	if res.CheckpointSet {
		if err := inst.Checkpoints().Set(ctx, sourceID, res.Checkpoint); err != nil {
			r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleError, Module: moduleName, Source: sourceID, Error: err.Error(), Timestamp: nowRFC3339()})
		}
	}

	for _, ev := range res.Events {
		if ev.Source == "" {
			ev.Source = sourceID
		}
		if err := r.processEvent(ctx, moduleName, inst, ev); err != nil {
			r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleError, Module: moduleName, Source: sourceID, Error: err.Error(), Timestamp: nowRFC3339()})
		}
	}
}

func (r *Runtime) recordPollFailure(moduleName, sourceID string, health *module.Health, pollErr error) {
	if r.metrics != nil {
		r.metrics.ConnectorErrors.WithLabelValues(sourceID).Inc()
	}
	circuitShouldOpen := health.RecordFailure(pollErr.Error())
	if !circuitShouldOpen {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseSystemError, Module: moduleName, Source: sourceID, Error: pollErr.Error(), Timestamp: nowRFC3339()})
		return
	}
	r.logEntry(plugin.Entry{Phase: plugin.PhaseSourceCircuitOpen, Module: moduleName, Source: sourceID, Error: pollErr.Error(), Timestamp: nowRFC3339()})
	health.ScheduleRetryProbe(func() {
		r.pollSource(context.Background(), moduleName, sourceID, true)
	})
}

// processEvent assigns ids, publishes to the bus, matches routes,
// runs each matched route's transform pipeline and delivery, then acks
// the event exactly once regardless of how many routes it matched.
func (r *Runtime) processEvent(ctx context.Context, moduleName string, inst *module.Instance, event orgevent.Event) error {
	event = orgevent.EnsureIDs(event)
	r.logEntry(plugin.Entry{
		Phase: plugin.PhaseSourceEmit, Module: moduleName, Source: event.Source,
		EventID: event.ID, TraceID: event.TraceID, EventType: event.Type, Timestamp: nowRFC3339(),
	})

	if err := r.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("runtime: publish event %s: %w", event.ID, err)
	}

	routes := router.Match(event, inst.Routes())
	if len(routes) == 0 {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseRouteNoMatch, Module: moduleName, EventID: event.ID, TraceID: event.TraceID, Timestamp: nowRFC3339()})
		return r.bus.Ack(ctx, event.ID)
	}

	moduleDir := inst.Config().Dir
	for _, route := range routes {
		r.runRoute(ctx, moduleName, moduleDir, inst, route, event)
	}
	return r.bus.Ack(ctx, event.ID)
}

func (r *Runtime) runRoute(ctx context.Context, moduleName, moduleDir string, inst *module.Instance, route config.Route, event orgevent.Event) {
	r.logEntry(plugin.Entry{Phase: plugin.PhaseRouteMatch, Module: moduleName, Route: route.Name, EventID: event.ID, TraceID: event.TraceID, Timestamp: nowRFC3339()})

	start := time.Now()
	tc := plugin.TransformContext{Source: event.Source, Target: route.Then.Actor, EventType: event.Type, RouteName: route.Name}
	logStep := func(name string, phase plugin.Phase, durationMs int64, errMsg string) {
		r.logEntry(plugin.Entry{
			Phase: phase, Module: moduleName, Route: route.Name, Transform: name,
			EventID: event.ID, TraceID: event.TraceID, DurationMs: durationMs, Error: errMsg, Timestamp: nowRFC3339(),
		})
	}

	finalEvent, outcome, err := transform.Run(ctx, inst, moduleDir, route.Transforms, event, tc, logStep)
	if err != nil {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleError, Module: moduleName, Route: route.Name, EventID: event.ID, Error: err.Error(), Timestamp: nowRFC3339()})
		return
	}
	if outcome != transform.OutcomePass {
		return
	}

	actor, ok := inst.Actor(route.Then.Actor)
	if !ok {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleError, Module: moduleName, Route: route.Name, Error: fmt.Sprintf("actor %q not found", route.Then.Actor), Timestamp: nowRFC3339()})
		return
	}

	cfg := delivery.BuildConfig(route, moduleDir, inst.Config().Defaults)
	r.logEntry(plugin.Entry{Phase: plugin.PhaseDeliverAttempt, Module: moduleName, Route: route.Name, Target: route.Then.Actor, EventID: event.ID, TraceID: event.TraceID, Timestamp: nowRFC3339()})
	result := delivery.Deliver(ctx, actor, finalEvent, cfg)

	if r.metrics != nil {
		r.metrics.ProcessingTime.WithLabelValues(route.Name).Observe(time.Since(start).Seconds())
		r.metrics.EventsRouted.WithLabelValues(route.Name, event.Source).Inc()
	}

	phase := plugin.PhaseDeliverSuccess
	if !result.Success {
		phase = plugin.PhaseDeliverFailure
	}
	r.logEntry(plugin.Entry{
		Phase: phase, Module: moduleName, Route: route.Name, Target: route.Then.Actor,
		EventID: event.ID, TraceID: event.TraceID, DurationMs: result.DurationMs, Error: result.Error, Timestamp: nowRFC3339(),
	})

	r.publishDelivery(DeliveryEvent{
		Module: moduleName, Route: route.Name, EventID: event.ID,
		Success: result.Success, Error: result.Error, Timestamp: time.Now().UTC(),
	})
}
