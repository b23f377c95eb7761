package runtime

import (
	"context"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/module"
	"github.com/orgloop/orgloop/internal/orgerr"
	"github.com/orgloop/orgloop/internal/plugin"
)

// LoadModule constructs, initializes, registers and activates cfg as a
// new module backed by resources. Both cmd/orgloop run and the control
// API's ModuleLoad (httpapi.Control) call it with an empty Resources,
// so a module loaded through either path fails Initialize if it
// declares any source, actor or package transform; only a caller that
// passes the connector instances itself can load such a module.
func (r *Runtime) LoadModule(ctx context.Context, cfg config.Module, resources module.Resources) (module.Status, error) {
	r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleLoading, Module: cfg.Name, Timestamp: nowRFC3339()})

	inst := module.New(cfg, resources, r.checkpointsFor(cfg.Name))
	if err := inst.Initialize(ctx); err != nil {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleError, Module: cfg.Name, Error: err.Error(), Timestamp: nowRFC3339()})
		return module.Status{}, err
	}

	r.mu.Lock()
	if err := r.registry.Register(inst); err != nil {
		r.mu.Unlock()
		return module.Status{}, err
	}
	r.mu.Unlock()

	for name, lg := range inst.Loggers() {
		r.loggers.Attach(name, cfg.Name, lg)
	}

	for _, src := range cfg.Sources {
		r.wireSource(cfg.Name, src, cfg.Defaults)
	}

	inst.Activate()
	r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleActive, Module: cfg.Name, Timestamp: nowRFC3339()})
	r.startScriptWatch(cfg.Name, cfg.Dir)

	r.mu.Lock()
	r.resources[cfg.Name] = resources
	r.mu.Unlock()
	r.updateSourceGauge()

	return inst.Snapshot(), nil
}

// savedResources returns the connector instances LoadModule stored for
// name, so a reload can rebuild the module without the caller handing
// them over again.
func (r *Runtime) savedResources(name string) (module.Resources, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

func (r *Runtime) updateSourceGauge() {
	if r.metrics == nil {
		return
	}
	total := 0
	for _, inst := range r.registry.List() {
		total += len(inst.Sources())
	}
	r.metrics.ConnectedSources.Set(float64(total))
}

// startScriptWatch arms an optional fsnotify watch over the module's
// directory. A failure to establish the watch (e.g. platform without
// inotify, missing directory) is logged and otherwise ignored: the
// hint is a convenience for operators, not a correctness requirement.
func (r *Runtime) startScriptWatch(moduleName, dir string) {
	if dir == "" {
		return
	}
	sw, err := module.NewScriptWatcher(moduleName, dir, func(h module.Hint) {
		r.logEntry(plugin.Entry{
			Phase: plugin.PhaseModuleError, Module: h.ModuleName,
			Error: "module directory changed on disk: " + h.Path + " (reload via the control API to pick it up)",
			Timestamp: nowRFC3339(),
		})
	})
	if err != nil {
		r.log.Warn("script watcher unavailable", "module", moduleName, "dir", dir, "error", err)
		return
	}
	r.mu.Lock()
	r.watchers[moduleName] = sw
	r.mu.Unlock()
}

func (r *Runtime) wireSource(moduleName string, src config.SourceInstance, defaults *config.Defaults) {
	inst, ok := r.registry.Get(moduleName)
	if !ok {
		return
	}
	conn, ok := inst.Source(src.ID)
	if !ok {
		return
	}
	if handler, isWebhook := conn.Webhook(); isWebhook {
		r.http.RegisterWebhook(src.ID, moduleName, handler)
		// The HTTP surface starts lazily the moment the first webhook
		// source needs it; Start is idempotent if it is already up.
		if err := r.http.Start(); err != nil {
			r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleError, Module: moduleName, Source: src.ID, Error: err.Error(), Timestamp: nowRFC3339()})
		}
		return
	}

	interval, err := pollIntervalFor(src, defaults)
	if err != nil {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleError, Module: moduleName, Source: src.ID, Error: err.Error(), Timestamp: nowRFC3339()})
		interval = defaultPollInterval
	}
	r.sched.AddSource(src.ID, moduleName, interval)
}

// UnloadModule deactivates, shuts down and removes name from the
// registry, tearing down its scheduled sources, webhooks and loggers.
func (r *Runtime) UnloadModule(ctx context.Context, name string) error {
	r.mu.Lock()
	inst, ok := r.registry.Get(name)
	if !ok {
		r.mu.Unlock()
		return orgerr.ModuleNotFound(name)
	}
	r.mu.Unlock()

	r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleUnloading, Module: name, Timestamp: nowRFC3339()})
	inst.Deactivate()

	r.sched.RemoveSources(name)
	r.http.RemoveWebhooksForModule(name)

	r.mu.Lock()
	if sw, ok := r.watchers[name]; ok {
		_ = sw.Close()
		delete(r.watchers, name)
	}
	r.mu.Unlock()

	err := inst.Shutdown(ctx)

	r.mu.Lock()
	r.registry.Unregister(name)
	delete(r.resources, name)
	r.mu.Unlock()
	r.updateSourceGauge()

	r.loggers.RemoveByTag(name)
	r.logEntry(plugin.Entry{Phase: plugin.PhaseModuleRemoved, Module: name, Timestamp: nowRFC3339()})
	return err
}

// ReloadModule unloads name (if loaded) and loads cfg in its place.
// Equivalent to UnloadModule followed by LoadModule, documented
// separately because callers that only have a config diff, not fresh
// resources, still need the unload half to run first.
func (r *Runtime) ReloadModule(ctx context.Context, name string, cfg config.Module, resources module.Resources) (module.Status, error) {
	if _, ok := r.registry.Get(name); ok {
		if err := r.UnloadModule(ctx, name); err != nil {
			return module.Status{}, err
		}
	}
	return r.LoadModule(ctx, cfg, resources)
}
