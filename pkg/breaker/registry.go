package breaker

import "sync"

// Registry holds one breaker per named external service. Lookup is
// idempotent: the first request for a name creates the breaker from
// the configuration table (or the default config for unknown names),
// later requests return the same instance.
type Registry struct {
	mu       sync.Mutex
	configs  map[string]Config
	breakers map[string]*CircuitBreaker

	onStateChange StateChangeFunc
}

// NewRegistry creates a registry with the given per-service
// configuration table. configs may be nil.
func NewRegistry(configs map[string]Config) *Registry {
	return &Registry{
		configs:  configs,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// OnStateChange registers a transition observer applied to every
// breaker the registry creates (and those already created).
func (r *Registry) OnStateChange(fn StateChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = fn
	for _, b := range r.breakers {
		b.OnStateChange(fn)
	}
}

// Get returns the breaker for the named service, creating it on first
// use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg, ok := r.configs[name]
	if !ok {
		cfg = DefaultConfig()
	}
	b := New(name, cfg)
	if r.onStateChange != nil {
		b.OnStateChange(r.onStateChange)
	}
	r.breakers[name] = b
	return b
}

// Names returns the names of all breakers created so far.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// States returns a snapshot of every created breaker's state, for
// health reporting and discovery audit payloads.
func (r *Registry) States() map[string]string {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	states := make(map[string]string, len(breakers))
	for _, b := range breakers {
		states[b.Name()] = b.State().String()
	}
	return states
}
