package breaker

import "sync"

// Registry manages breakers by dependency name with get-or-create
// semantics, so concurrent callers referencing the same dependency share
// one instance. Construct one registry per process and inject it; there is
// no package-level default.
type Registry struct {
	mu         sync.Mutex
	breakers   map[string]*Breaker
	defaultCfg Config
}

// NewRegistry creates a registry whose breakers default to cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers:   make(map[string]*Breaker),
		defaultCfg: cfg,
	}
}

// GetOrCreate returns the breaker for name, creating it with the registry's
// default config if it does not exist yet.
func (r *Registry) GetOrCreate(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.defaultCfg)
	r.breakers[name] = b
	return b
}

// GetOrCreateWith is GetOrCreate with a per-breaker config override. The
// override applies only when the breaker is created.
func (r *Registry) GetOrCreateWith(name string, cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, cfg)
	r.breakers[name] = b
	return b
}

// Get returns the breaker for name, or nil if it was never created.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakers[name]
}

// AllStats returns a per-breaker snapshot keyed by dependency name.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.Lock()
	names := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		names = append(names, b)
	}
	r.mu.Unlock()

	out := make(map[string]Stats, len(names))
	for _, b := range names {
		out[b.Name()] = b.Stats()
	}
	return out
}

// ResetAll forces every breaker back to closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	for _, b := range breakers {
		b.Reset()
	}
}
