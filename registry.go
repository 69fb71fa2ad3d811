package x402

import "sync"

// Registry is a mapping scheme-name → scheme-instance. Lookup of an
// unknown scheme raises UnsupportedScheme.
type Registry struct {
	mu      sync.RWMutex
	schemes map[string]Scheme
}

// NewRegistry creates an empty scheme registry.
func NewRegistry() *Registry {
	return &Registry{schemes: make(map[string]Scheme)}
}

// Register adds scheme under its own Name(), overwriting any prior
// registration for that name.
func (r *Registry) Register(scheme Scheme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[scheme.Name()] = scheme
}

// Lookup returns the scheme registered under name.
func (r *Registry) Lookup(name string) (Scheme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scheme, ok := r.schemes[name]
	if !ok {
		return nil, newError(KindUnsupportedScheme, "no scheme registered for %q", name)
	}
	return scheme, nil
}

// Names returns the registered scheme names, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemes))
	for name := range r.schemes {
		names = append(names, name)
	}
	return names
}
