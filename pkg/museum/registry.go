package museum

import (
	"fmt"
	"sort"
)

// Registry maps source names to adapters, built explicitly at startup
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Names must be unique.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Select returns every adapter, or only the named one when restrict is set
func (r *Registry) Select(restrict string) ([]Adapter, error) {
	if restrict != "" {
		a, ok := r.adapters[restrict]
		if !ok {
			known := r.Names()
			sort.Strings(known)
			return nil, fmt.Errorf("unknown source %q (available: %v)", restrict, known)
		}
		return []Adapter{a}, nil
	}

	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out, nil
}
