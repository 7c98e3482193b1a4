package speech

import (
	"fmt"
	"time"

	"github.com/storyforge/speechkit/provider"
	"github.com/storyforge/speechkit/resilience"
	"github.com/storyforge/speechkit/util"
)

// Config is the speech service's configuration block. It is loaded under the
// "speech" key by config.LoadConfig and can be overridden with SPEECH_*
// environment variables.
type Config struct {
	// Default names the provider tried first when a request names none.
	Default string `yaml:"default" mapstructure:"default"`
	// Fallback is a comma-separated, ordered degradation chain, e.g.
	// "elevenlabs, tone". Names not registered at request time are skipped.
	Fallback string `yaml:"fallback" mapstructure:"fallback"`
	// Retry configures the per-provider retry budget.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	// CircuitBreaker optionally guards each provider against hammering.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	// Providers holds one opaque settings block per provider, keyed by name,
	// passed verbatim to that provider's factory.
	Providers map[string]map[string]any `yaml:"providers" mapstructure:"providers"`
}

// CircuitBreakerConfig enables and tunes the optional per-provider breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxFailures      int           `yaml:"max_failures" mapstructure:"max_failures"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls" mapstructure:"half_open_max_calls"`
}

// ApplyDefaults fills unset fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Retry.MaxRetries == 0 && c.Retry.InitialDelay == 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = time.Second
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.MaxFailures <= 0 {
			c.CircuitBreaker.MaxFailures = 5
		}
		if c.CircuitBreaker.Timeout <= 0 {
			c.CircuitBreaker.Timeout = 30 * time.Second
		}
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("speech.retry.max_retries must be >= 0 (got: %d)", c.Retry.MaxRetries)
	}
	if c.Retry.InitialDelay < 0 {
		return fmt.Errorf("speech.retry.initial_delay must be >= 0")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; len(c.Providers) > 0 && !ok {
			return fmt.Errorf("speech.default names %q but no matching providers block exists", c.Default)
		}
	}
	return nil
}

// FallbackChain parses the Fallback field into an ordered slice of names.
func (c *Config) FallbackChain() []string {
	return util.SplitList(c.Fallback)
}

// RegistryConfig converts this config into the generic registry's selection
// configuration.
func (c *Config) RegistryConfig() provider.Config {
	return provider.Config{
		Default:  c.Default,
		Fallback: c.FallbackChain(),
	}
}
