package module

import (
	"sort"
	"sync"

	"github.com/orgloop/orgloop/internal/orgerr"
)

// Registry is the unique-name singleton index of currently loaded
// modules. Register/Unregister take the write lock; Get/List are cheap
// snapshot reads under the read lock.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Instance
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Instance)}
}

// Register adds inst under its name. It returns a MODULE_CONFLICT
// error if the name is already registered.
func (r *Registry) Register(inst *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[inst.Name()]; exists {
		return orgerr.ModuleConflict(inst.Name())
	}
	r.modules[inst.Name()] = inst
	return nil
}

// Unregister removes name from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
}

// Get returns the module registered under name.
func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.modules[name]
	return inst, ok
}

// List returns every registered module, sorted by name for stable
// output from the status endpoints.
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0, len(r.modules))
	for _, inst := range r.modules {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Active returns every registered module currently in the active
// state.
func (r *Registry) Active() []*Instance {
	var out []*Instance
	for _, inst := range r.List() {
		if inst.Active() {
			out = append(out, inst)
		}
	}
	return out
}
