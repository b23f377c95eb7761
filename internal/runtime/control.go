package runtime

import (
	"context"
	"time"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/module"
	"github.com/orgloop/orgloop/internal/orgerr"
)

// The methods below satisfy httpapi.Control, making the runtime the
// implementation behind the embedded control API (§4.11).

type statusView struct {
	StartedAt         time.Time `json:"started_at"`
	UptimeSeconds     float64   `json:"uptime_seconds"`
	ModuleCount       int       `json:"module_count"`
	ActiveModuleCount int       `json:"active_module_count"`
}

// Status returns a process-wide summary.
func (r *Runtime) Status() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mods := r.registry.List()
	active := 0
	for _, m := range mods {
		if m.Active() {
			active++
		}
	}
	if r.metrics != nil {
		r.metrics.Uptime.Set(time.Since(r.startedAt).Seconds())
	}
	return statusView{
		StartedAt:         r.startedAt,
		UptimeSeconds:     time.Since(r.startedAt).Seconds(),
		ModuleCount:       len(mods),
		ActiveModuleCount: active,
	}
}

// ModuleList returns every loaded module's status snapshot.
func (r *Runtime) ModuleList() []module.Status {
	r.mu.RLock()
	mods := r.registry.List()
	r.mu.RUnlock()

	out := make([]module.Status, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.Snapshot())
	}
	return out
}

// ModuleStatus returns one module's status snapshot.
func (r *Runtime) ModuleStatus(name string) (module.Status, bool) {
	r.mu.RLock()
	inst, ok := r.registry.Get(name)
	r.mu.RUnlock()
	if !ok {
		return module.Status{}, false
	}
	return inst.Snapshot(), true
}

// ModuleLoad satisfies httpapi.Control. It loads cfg with no
// pre-built resources, so a cfg declaring any source, actor or
// package transform fails Initialize.
func (r *Runtime) ModuleLoad(ctx context.Context, cfg config.Module) (module.Status, error) {
	return r.LoadModule(ctx, cfg, module.Resources{})
}

// ModuleUnload satisfies httpapi.Control.
func (r *Runtime) ModuleUnload(ctx context.Context, name string) error {
	return r.UnloadModule(ctx, name)
}

// ModuleReload satisfies httpapi.Control. It re-loads the module's
// previously registered configuration with the connector instances
// saved at load time, so an HTTP-triggered reload does not need the
// caller to rebuild resources.
func (r *Runtime) ModuleReload(ctx context.Context, name string) (module.Status, error) {
	r.mu.RLock()
	inst, ok := r.registry.Get(name)
	r.mu.RUnlock()
	if !ok {
		return module.Status{}, orgerr.ModuleNotFound(name)
	}
	cfg := inst.Config()
	resources, _ := r.savedResources(name)
	return r.ReloadModule(ctx, name, cfg, resources)
}

// Shutdown satisfies httpapi.Control, stopping the entire runtime.
func (r *Runtime) Shutdown(ctx context.Context) error {
	return r.Stop(ctx)
}
