package speech

import (
	"fmt"
	"sort"

	"github.com/storyforge/speechkit/provider"
)

// Registry manages named speech providers and computes selection order.
type Registry = provider.Registry[Provider]

// NewRegistry creates an empty registry with the given selection config.
func NewRegistry(cfg provider.Config) *Registry {
	return provider.NewRegistry[Provider](cfg)
}

// BuildRegistry constructs a registry from configuration: each entry in
// cfg.Providers is instantiated through its registered factory and the
// resulting provider is registered under its name. The factories are also
// retained on the registry for later Create calls.
//
// Provider blocks are processed in name order so construction errors are
// deterministic. A config block without a matching factory is an error; a
// factory without a config block is simply not instantiated.
func BuildRegistry(cfg Config, factories map[string]Factory) (*Registry, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := NewRegistry(cfg.RegistryConfig())
	for name, factory := range factories {
		reg.RegisterFactory(name, factory)
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := factories[name]; !ok {
			return nil, fmt.Errorf("speech.providers.%s: no factory registered for this provider", name)
		}
		p, err := reg.Create(name, cfg.Providers[name])
		if err != nil {
			return nil, fmt.Errorf("speech.providers.%s: %w", name, err)
		}
		reg.Register(p)
	}

	return reg, nil
}
