// Package elevenlabs implements a speech.Provider backed by the ElevenLabs
// text-to-speech HTTP API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/storyforge/speechkit/errors"
	"github.com/storyforge/speechkit/logger"
	"github.com/storyforge/speechkit/provider"
	"github.com/storyforge/speechkit/speech"
	"github.com/storyforge/speechkit/util"
	"github.com/storyforge/speechkit/validation"
)

const (
	// ProviderName is the registered name for the ElevenLabs provider.
	ProviderName = "elevenlabs"

	defaultBaseURL = "https://api.elevenlabs.io"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID = "eleven_multilingual_v2"
	defaultFormat  = "mp3_44100_128"
	defaultTimeout = 30 * time.Second

	// maxInputBytes is the API's per-request text limit on the free tier.
	maxInputBytes = 5000
)

// Config holds configuration for the ElevenLabs provider.
type Config struct {
	APIKey  string        `json:"api_key" yaml:"api_key" mapstructure:"api_key" validate:"required"`
	BaseURL string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	VoiceID string        `json:"voice_id" yaml:"voice_id" mapstructure:"voice_id"`
	ModelID string        `json:"model_id" yaml:"model_id" mapstructure:"model_id"`
	Format  string        `json:"format" yaml:"format" mapstructure:"format"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// MaxInput is a human-readable size ("5KB", "10000") overriding the
	// default per-request text limit; paid plans allow larger payloads.
	MaxInput string `json:"max_input" yaml:"max_input" mapstructure:"max_input"`
}

// Provider implements speech.Provider against the ElevenLabs REST API.
type Provider struct {
	cfg      Config
	maxInput int
	client   *http.Client
}

// NewProvider creates an ElevenLabs provider. The API key is required; all
// other fields fall back to defaults.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.Format == "" {
		cfg.Format = defaultFormat
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if err := validation.ValidateStruct(cfg); err != nil {
		return nil, err
	}

	logger.Get(ProviderName).Debug("provider configured", logger.Fields(
		"base_url", cfg.BaseURL,
		"voice_id", cfg.VoiceID,
		"api_key", util.MaskSecret(cfg.APIKey, 3),
	))

	return &Provider{
		cfg:      cfg,
		maxInput: int(util.ParseSize(cfg.MaxInput, maxInputBytes)),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Factory returns a speech.Factory that builds ElevenLabs providers from a
// generic config map.
func Factory() speech.Factory {
	return func(settings map[string]any) (speech.Provider, error) {
		var cfg Config
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
			Result:     &cfg,
		})
		if err != nil {
			return nil, fmt.Errorf("elevenlabs config decoder: %w", err)
		}
		if err := decoder.Decode(settings); err != nil {
			return nil, fmt.Errorf("elevenlabs config: %w", err)
		}
		return NewProvider(cfg)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the provider is configured with credentials.
// It deliberately makes no network call so availability checks stay cheap
// and idempotent; actual API failures surface from Synthesize.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.cfg.APIKey != ""
}

// Capabilities describes the ElevenLabs API surface this provider uses. The
// configured output format leads the Formats list.
func (p *Provider) Capabilities() provider.Capabilities {
	formats := []string{p.cfg.Format}
	for _, f := range []string{"mp3_44100_128", "mp3_22050_32", "pcm_16000", "pcm_44100"} {
		if f != p.cfg.Format {
			formats = append(formats, f)
		}
	}
	return provider.Capabilities{
		Name:              ProviderName,
		DisplayName:       "ElevenLabs",
		MaxInputSize:      p.maxInput,
		SupportsStreaming: true,
		Formats:           formats,
		Languages:         []string{"en", "de", "es", "fr", "it", "pt", "pl", "ja", "zh"},
	}
}

// Synthesize converts text to audio via the text-to-speech endpoint.
func (p *Provider) Synthesize(ctx context.Context, req speech.SynthesisRequest) ([]byte, error) {
	if len(req.Text) > p.maxInput {
		return nil, errors.PayloadTooLarge(ProviderName, len(req.Text), p.maxInput)
	}

	voice := p.cfg.VoiceID
	if req.Voice != "" {
		voice = req.Voice
	}
	format := p.cfg.Format
	if req.Format != "" {
		format = req.Format
	}

	body, err := json.Marshal(ttsRequest{
		Text:         req.Text,
		ModelID:      p.cfg.ModelID,
		LanguageCode: req.Language,
	})
	if err != nil {
		return nil, errors.Internal(err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.cfg.BaseURL, voice, format)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Internal(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// The caller's own cancellation propagates raw; a client-side
		// timeout is a retryable provider failure.
		if ctx.Err() != nil {
			return nil, err
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Timeout("synthesize").WithCause(err)
		}
		return nil, errors.ConnectionFailed(ProviderName).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode, string(detail))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.SynthesisFailed(ProviderName, err)
	}
	return audio, nil
}

// classifyStatus maps API status codes onto retryable or terminal errors.
func classifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.InvalidInput("api_key", "the ElevenLabs API rejected the credentials")
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return errors.InvalidInput("", fmt.Sprintf("the ElevenLabs API rejected the request: %s", detail))
	case status == http.StatusTooManyRequests:
		return errors.ProviderUnavailable(ProviderName).WithDetail("status", status)
	case status >= 500:
		return errors.SynthesisFailed(ProviderName,
			fmt.Errorf("api error (status %d): %s", status, detail))
	default:
		return errors.SynthesisFailed(ProviderName,
			fmt.Errorf("unexpected status %d: %s", status, detail))
	}
}

// ttsRequest is the JSON body for the text-to-speech endpoint.
type ttsRequest struct {
	Text         string `json:"text"`
	ModelID      string `json:"model_id"`
	LanguageCode string `json:"language_code,omitempty"`
}
