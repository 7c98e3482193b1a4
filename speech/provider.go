package speech

import (
	"context"

	"github.com/storyforge/speechkit/provider"
)

// Provider is a text-to-speech backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	provider.Provider

	// Capabilities describes what this provider supports. The descriptor is
	// built once at construction and never changes.
	Capabilities() provider.Capabilities

	// Synthesize converts text to audio. It returns the raw audio bytes or an
	// error classifying the failure (see the errors package codes).
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// Factory creates a Provider from a configuration map, typically one block of
// the service's providers config section.
type Factory = provider.Factory[Provider]
