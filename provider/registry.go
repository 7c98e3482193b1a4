package provider

import (
	"fmt"
	"sync"

	"github.com/storyforge/speechkit/logger"
)

// Config is the registry's start-up configuration: a default provider name
// and an ordered fallback chain. Both are names, resolved lazily at selection
// time, so they may reference providers registered later (or never — such
// names are silently skipped).
type Config struct {
	// Default is the provider tried first when the caller names none.
	Default string `yaml:"default" mapstructure:"default"`
	// Fallback is the ordered degradation path tried after the primary choice.
	Fallback []string `yaml:"fallback" mapstructure:"fallback"`
}

// Registry manages named provider instances and factories, and computes the
// ordered candidate list for each request. All methods are safe for
// concurrent use; each call is its own atomic unit.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
	instances map[string]T
	// order preserves registration order for deterministic selection.
	order       []string
	defaultName string
	fallback    []string

	log *logger.Logger
}

// NewRegistry creates a Registry with the given selection configuration.
func NewRegistry[T Provider](cfg Config) *Registry[T] {
	return &Registry[T]{
		factories:   make(map[string]Factory[T]),
		instances:   make(map[string]T),
		defaultName: cfg.Default,
		fallback:    cfg.Fallback,
		log:         logger.Get("provider"),
	}
}

// Register inserts or replaces a provider under its own name.
// Re-registration replaces the prior entry (last write wins) with a warning.
// Validity is not checked here — credentials can change at runtime, so
// availability is re-checked at selection time.
func (r *Registry[T]) Register(p T) {
	name := p.Name()

	r.mu.Lock()
	_, replaced := r.instances[name]
	r.instances[name] = p
	if !replaced {
		r.order = append(r.order, name)
	}
	r.mu.Unlock()

	if replaced {
		r.log.Warn("provider re-registered, replacing prior instance", logger.Fields(
			logger.FieldProvider, name,
		))
	} else {
		r.log.Info("provider registered", logger.Fields(logger.FieldProvider, name))
	}
}

// Unregister removes the named provider. Returns false if it was not present.
func (r *Registry[T]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; !ok {
		return false
	}
	delete(r.instances, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a registered provider instance by name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// SetDefault sets the default provider by name. It succeeds only if the name
// is currently registered; otherwise it is a no-op returning false.
func (r *Registry[T]) SetDefault(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; !ok {
		return false
	}
	r.defaultName = name
	return true
}

// Default returns the configured default provider name, if any.
func (r *Registry[T]) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Names returns the names of all registered providers in registration order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RegisterFactory registers a named factory for creating providers.
func (r *Registry[T]) RegisterFactory(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a provider using the named factory and config.
func (r *Registry[T]) Create(name string, cfg map[string]any) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("provider factory %q not registered", name)
	}
	return factory(cfg)
}

// snapshot returns a consistent copy of the registry's selection state.
// Availability checks run outside the lock since they may touch the network.
func (r *Registry[T]) snapshot() (map[string]T, []string, string, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make(map[string]T, len(r.instances))
	for k, v := range r.instances {
		instances[k] = v
	}
	order := make([]string, len(r.order))
	copy(order, r.order)
	fallback := make([]string, len(r.fallback))
	copy(fallback, r.fallback)

	return instances, order, r.defaultName, fallback
}
