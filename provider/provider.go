// Package provider defines the generic provider abstraction used by
// speechkit: capability-described external services managed by a Registry
// that owns default and fallback selection.
package provider

import "context"

// Provider is the base interface all providers must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	// It must be idempotent and side-effect-free: a misconfigured provider
	// reports false here instead of erroring on every call.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from configuration.
type Factory[T Provider] func(cfg map[string]any) (T, error)

// Capabilities describes what a provider supports. It is created once per
// provider instance and immutable for its lifetime.
type Capabilities struct {
	// Name is the provider's unique registry key.
	Name string `json:"name"`
	// DisplayName is a human-readable label for UI listings.
	DisplayName string `json:"display_name"`
	// MaxInputSize is the largest input payload in bytes the provider accepts.
	MaxInputSize int `json:"max_input_size"`
	// SupportsStreaming reports whether the provider can stream output.
	SupportsStreaming bool `json:"supports_streaming"`
	// Formats lists the output formats the provider can produce. The first
	// entry is the format used when a request does not name one.
	Formats []string `json:"formats"`
	// Languages lists the ISO-style language codes the provider claims to handle.
	Languages []string `json:"languages"`
}

// SupportsFormat reports whether the provider can produce the given format.
func (c Capabilities) SupportsFormat(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// SupportsLanguage reports whether the provider claims the given language code.
func (c Capabilities) SupportsLanguage(code string) bool {
	for _, l := range c.Languages {
		if l == code {
			return true
		}
	}
	return false
}

// Described is optionally implemented by providers that publish capabilities.
type Described interface {
	Capabilities() Capabilities
}
