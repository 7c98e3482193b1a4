// Package speech provides text-to-speech synthesis for story narration. It
// composes provider selection, retry, and cross-provider failover behind a
// single Service entry point.
package speech

import "time"

// SynthesisRequest describes one text-to-speech request.
type SynthesisRequest struct {
	// Text is the content to synthesize. Required.
	Text string `json:"text" mapstructure:"text" validate:"required"`
	// Provider optionally names the provider to try first. When empty, the
	// registry's default and fallback configuration decides.
	Provider string `json:"provider,omitempty" mapstructure:"provider"`
	// Language is an ISO-style language code, e.g. "en" or "de".
	Language string `json:"language,omitempty" mapstructure:"language"`
	// Voice selects a provider-specific voice. Empty means provider default.
	Voice string `json:"voice,omitempty" mapstructure:"voice"`
	// Format is the requested audio output format, e.g. "mp3" or "wav".
	Format string `json:"format,omitempty" mapstructure:"format"`
	// Options carries provider-specific tuning knobs.
	Options map[string]string `json:"options,omitempty" mapstructure:"options"`
}

// Result is the uniform outcome of a synthesis request, whether it succeeded
// on the first provider, succeeded after failover, or failed everywhere.
type Result struct {
	// Succeeded reports whether any provider produced audio.
	Succeeded bool `json:"succeeded"`
	// Audio holds the synthesized bytes on success, nil otherwise.
	Audio []byte `json:"-"`
	// Format is the audio format of Audio.
	Format string `json:"format,omitempty"`
	// Provider names the provider that produced the audio, empty on failure.
	Provider string `json:"provider,omitempty"`
	// ErrorMessage describes the failure, naming every provider tried and why
	// each failed. Empty on success.
	ErrorMessage string `json:"error_message,omitempty"`
	// Attempts lists the providers contacted, in the order they were tried.
	Attempts []string `json:"attempts,omitempty"`
	// RequestID correlates logs and traces for this request.
	RequestID string `json:"request_id"`
	// Duration is the total wall-clock time including retries and failover.
	Duration time.Duration `json:"duration_ms"`
}
