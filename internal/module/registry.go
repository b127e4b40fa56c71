package module

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a module bound to a stored module ID.
type Factory func(id int) (Module, error)

// Registry maps module names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering the same name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("module %q already registered", name)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// Create instantiates the named module.
func (r *Registry) Create(name string, id int) (Module, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("module %q is not registered", name)
	}
	m, err := f(id)
	if err != nil {
		return nil, fmt.Errorf("create module %q: %w", name, err)
	}
	return m, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names lists registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Loaded holds instantiated modules keyed by stored ID.
type Loaded struct {
	mu      sync.RWMutex
	modules map[int]Module
}

// NewLoaded returns an empty set.
func NewLoaded() *Loaded {
	return &Loaded{modules: make(map[int]Module)}
}

func (l *Loaded) Add(m Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[m.ID()] = m
}

// Get returns the module with the given ID, or nil.
func (l *Loaded) Get(id int) Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modules[id]
}

// ByName returns the loaded module with the given descriptor name, or nil.
func (l *Loaded) ByName(name string) Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.modules {
		if m.Descriptor().Name == name {
			return m
		}
	}
	return nil
}

// All returns the loaded modules ordered by ID.
func (l *Loaded) All() []Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Module, 0, len(l.modules))
	for _, m := range l.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
