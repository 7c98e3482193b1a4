// Package tone implements a local speech.Provider that renders text as a
// sequence of sine tones in a WAV container. It needs no credentials or
// network and serves as the last line of a fallback chain: narration degrades
// to audible placeholder audio instead of failing outright.
package tone

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/storyforge/speechkit/errors"
	"github.com/storyforge/speechkit/provider"
	"github.com/storyforge/speechkit/speech"
)

const (
	// ProviderName is the registered name for the tone provider.
	ProviderName = "tone"

	defaultSampleRate   = 22050
	defaultCharDuration = 40 * time.Millisecond
	defaultAmplitude    = 0.3

	// maxInputBytes bounds the generated WAV to a sane size.
	maxInputBytes = 20000
)

// Config holds configuration for the tone provider.
type Config struct {
	SampleRate   int           `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	CharDuration time.Duration `json:"char_duration" yaml:"char_duration" mapstructure:"char_duration"`
	Amplitude    float64       `json:"amplitude" yaml:"amplitude" mapstructure:"amplitude"`
}

// Provider implements speech.Provider with deterministic local synthesis.
// The same text always produces the same bytes.
type Provider struct {
	cfg Config
}

// NewProvider creates a tone provider.
func NewProvider(cfg Config) *Provider {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.CharDuration <= 0 {
		cfg.CharDuration = defaultCharDuration
	}
	if cfg.Amplitude <= 0 || cfg.Amplitude > 1 {
		cfg.Amplitude = defaultAmplitude
	}
	return &Provider{cfg: cfg}
}

// Factory returns a speech.Factory that builds tone providers from a generic
// config map.
func Factory() speech.Factory {
	return func(settings map[string]any) (speech.Provider, error) {
		var cfg Config
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
			Result:     &cfg,
		})
		if err != nil {
			return nil, fmt.Errorf("tone config decoder: %w", err)
		}
		if err := decoder.Decode(settings); err != nil {
			return nil, fmt.Errorf("tone config: %w", err)
		}
		return NewProvider(cfg), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable always reports true; the provider has no external dependency.
func (p *Provider) IsAvailable(ctx context.Context) bool { return true }

// Capabilities describes the tone provider.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Name:         ProviderName,
		DisplayName:  "Tone Generator",
		MaxInputSize: maxInputBytes,
		Formats:      []string{"wav"},
		Languages:    []string{"en", "de", "es", "fr"},
	}
}

// Synthesize maps each character of the text to a sine tone whose pitch is
// derived from the character value and renders the sequence as 16-bit mono
// PCM in a WAV container.
func (p *Provider) Synthesize(ctx context.Context, req speech.SynthesisRequest) ([]byte, error) {
	if len(req.Text) > maxInputBytes {
		return nil, errors.PayloadTooLarge(ProviderName, len(req.Text), maxInputBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samplesPerChar := int(float64(p.cfg.SampleRate) * p.cfg.CharDuration.Seconds())
	pcm := make([]int16, 0, samplesPerChar*len(req.Text))

	for _, r := range req.Text {
		freq := charFrequency(r)
		for i := 0; i < samplesPerChar; i++ {
			var sample float64
			if freq > 0 {
				t := float64(i) / float64(p.cfg.SampleRate)
				sample = p.cfg.Amplitude * math.Sin(2*math.Pi*freq*t)
			}
			pcm = append(pcm, int16(sample*math.MaxInt16))
		}
	}

	return encodeWAV(pcm, p.cfg.SampleRate), nil
}

// charFrequency maps a rune onto a pentatonic-ish pitch. Whitespace is
// rendered as silence so word boundaries stay audible.
func charFrequency(r rune) float64 {
	switch r {
	case ' ', '\t', '\n', '\r':
		return 0
	}
	// 220Hz base, stepping through two octaves by character value.
	step := int(r) % 24
	return 220 * math.Pow(2, float64(step)/12)
}

// encodeWAV wraps mono 16-bit PCM samples in a RIFF/WAVE container.
func encodeWAV(pcm []int16, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	dataSize := len(pcm) * 2
	byteRate := sampleRate * numChannels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, pcm)

	return buf.Bytes()
}
