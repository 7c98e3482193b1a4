package speech

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/storyforge/speechkit/errors"
	"github.com/storyforge/speechkit/provider"
	"github.com/storyforge/speechkit/resilience"
)

// scriptedProvider fails a fixed number of times before succeeding.
// failuresLeft < 0 means it always fails.
type scriptedProvider struct {
	name         string
	available    bool
	failuresLeft int
	failWith     error
	audio        []byte

	synthCalls int
	availCalls int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) IsAvailable(ctx context.Context) bool {
	p.availCalls++
	return p.available
}

func (p *scriptedProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Name:         p.name,
		MaxInputSize: 5000,
		Formats:      []string{"wav"},
		Languages:    []string{"en"},
	}
}

func (p *scriptedProvider) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	p.synthCalls++
	if p.failuresLeft != 0 {
		if p.failuresLeft > 0 {
			p.failuresLeft--
		}
		if p.failWith != nil {
			return nil, p.failWith
		}
		return nil, errors.SynthesisFailed(p.name, stderrors.New("upstream error"))
	}
	return p.audio, nil
}

func fastRetry(maxRetries int) resilience.RetryConfig {
	return resilience.RetryConfig{MaxRetries: maxRetries, InitialDelay: time.Millisecond}
}

func newTestService(retry resilience.RetryConfig, cfg provider.Config, providers ...*scriptedProvider) (*Service, *Registry) {
	reg := NewRegistry(cfg)
	for _, p := range providers {
		reg.Register(Provider(p))
	}
	return NewService(reg, WithRetryConfig(retry)), reg
}

func TestService_EmptyInputShortCircuits(t *testing.T) {
	p := &scriptedProvider{name: "tone", available: true, audio: []byte("wav")}
	svc, _ := newTestService(fastRetry(3), provider.Config{Default: "tone"}, p)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "   "})

	if result.Succeeded {
		t.Error("expected failure for empty input")
	}
	if !strings.Contains(result.ErrorMessage, "empty input") {
		t.Errorf("expected empty-input message, got %q", result.ErrorMessage)
	}
	if p.synthCalls != 0 || p.availCalls != 0 {
		t.Errorf("expected zero provider contact, got synth=%d avail=%d", p.synthCalls, p.availCalls)
	}
	if len(result.Attempts) != 0 {
		t.Errorf("expected no attempts, got %v", result.Attempts)
	}
	if result.RequestID == "" {
		t.Error("expected a request ID even on rejection")
	}
}

func TestService_NoProviderAvailable(t *testing.T) {
	p := &scriptedProvider{name: "tone", available: false}
	svc, _ := newTestService(fastRetry(3), provider.Config{Default: "tone"}, p)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if result.Succeeded {
		t.Error("expected failure")
	}
	if result.ErrorMessage != "no provider available" {
		t.Errorf("expected 'no provider available', got %q", result.ErrorMessage)
	}
	if p.synthCalls != 0 {
		t.Errorf("expected no synthesis calls, got %d", p.synthCalls)
	}
}

func TestService_SuccessOnFirstProvider(t *testing.T) {
	p := &scriptedProvider{name: "elevenlabs", available: true, audio: []byte("mp3 bytes")}
	svc, _ := newTestService(fastRetry(3), provider.Config{Default: "elevenlabs"}, p)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.ErrorMessage)
	}
	if result.Provider != "elevenlabs" {
		t.Errorf("expected elevenlabs, got %s", result.Provider)
	}
	if string(result.Audio) != "mp3 bytes" {
		t.Error("expected audio bytes to pass through")
	}
	if p.synthCalls != 1 {
		t.Errorf("expected 1 call, got %d", p.synthCalls)
	}
	if len(result.Attempts) != 1 || result.Attempts[0] != "elevenlabs" {
		t.Errorf("expected attempts [elevenlabs], got %v", result.Attempts)
	}
}

func TestService_RetriesBeforeFailover(t *testing.T) {
	// Primary recovers on its final attempt; no failover should happen.
	primary := &scriptedProvider{name: "elevenlabs", available: true, failuresLeft: 3, audio: []byte("ok")}
	backup := &scriptedProvider{name: "tone", available: true, audio: []byte("backup")}
	svc, _ := newTestService(fastRetry(3),
		provider.Config{Default: "elevenlabs", Fallback: []string{"tone"}}, primary, backup)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.ErrorMessage)
	}
	if result.Provider != "elevenlabs" {
		t.Errorf("expected primary to serve, got %s", result.Provider)
	}
	if primary.synthCalls != 4 {
		t.Errorf("expected 4 attempts on primary, got %d", primary.synthCalls)
	}
	if backup.synthCalls != 0 {
		t.Errorf("expected no failover, backup got %d calls", backup.synthCalls)
	}
}

func TestService_FailoverAfterExhaustion(t *testing.T) {
	primary := &scriptedProvider{name: "elevenlabs", available: true, failuresLeft: -1}
	backup := &scriptedProvider{name: "tone", available: true, audio: []byte("backup audio")}
	svc, _ := newTestService(fastRetry(3),
		provider.Config{Default: "elevenlabs", Fallback: []string{"tone"}}, primary, backup)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if !result.Succeeded {
		t.Fatalf("expected failover success, got %q", result.ErrorMessage)
	}
	if result.Provider != "tone" {
		t.Errorf("expected tone to serve, got %s", result.Provider)
	}
	// Full budget on the primary before any failover: maxRetries=3 is 4 attempts.
	if primary.synthCalls != 4 {
		t.Errorf("expected 4 attempts on primary, got %d", primary.synthCalls)
	}
	if backup.synthCalls != 1 {
		t.Errorf("expected 1 attempt on backup, got %d", backup.synthCalls)
	}
	if len(result.Attempts) != 2 || result.Attempts[0] != "elevenlabs" || result.Attempts[1] != "tone" {
		t.Errorf("expected attempts [elevenlabs tone], got %v", result.Attempts)
	}
}

func TestService_AllProvidersFail(t *testing.T) {
	primary := &scriptedProvider{name: "elevenlabs", available: true, failuresLeft: -1}
	backup := &scriptedProvider{name: "tone", available: true, failuresLeft: -1}
	svc, _ := newTestService(fastRetry(1),
		provider.Config{Default: "elevenlabs", Fallback: []string{"tone"}}, primary, backup)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if result.Succeeded {
		t.Fatal("expected failure")
	}
	for _, want := range []string{"elevenlabs", "tone", "all 2 providers failed"} {
		if !strings.Contains(result.ErrorMessage, want) {
			t.Errorf("expected %q in error message, got %q", want, result.ErrorMessage)
		}
	}
	if len(result.Attempts) != 2 {
		t.Errorf("expected 2 attempts, got %v", result.Attempts)
	}
	if result.Audio != nil {
		t.Error("expected no audio on failure")
	}
}

func TestService_NonRetryableFailsOverWithoutRetry(t *testing.T) {
	primary := &scriptedProvider{
		name: "elevenlabs", available: true, failuresLeft: -1,
		failWith: errors.PayloadTooLarge("elevenlabs", 9000, 5000),
	}
	backup := &scriptedProvider{name: "tone", available: true, audio: []byte("ok")}
	svc, _ := newTestService(fastRetry(3),
		provider.Config{Default: "elevenlabs", Fallback: []string{"tone"}}, primary, backup)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if !result.Succeeded {
		t.Fatalf("expected failover success, got %q", result.ErrorMessage)
	}
	if primary.synthCalls != 1 {
		t.Errorf("expected a single attempt for a non-retryable error, got %d", primary.synthCalls)
	}
	if result.Provider != "tone" {
		t.Errorf("expected tone to serve, got %s", result.Provider)
	}
}

func TestService_ExplicitProviderHonored(t *testing.T) {
	def := &scriptedProvider{name: "elevenlabs", available: true, audio: []byte("default")}
	requested := &scriptedProvider{name: "tone", available: true, audio: []byte("requested")}
	svc, _ := newTestService(fastRetry(3), provider.Config{Default: "elevenlabs"}, def, requested)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello", Provider: "tone"})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.ErrorMessage)
	}
	if result.Provider != "tone" {
		t.Errorf("expected requested provider, got %s", result.Provider)
	}
	if def.synthCalls != 0 {
		t.Errorf("expected default untouched, got %d calls", def.synthCalls)
	}
}

// upstreamTimeoutErr mimics the shape of an http.Client timeout: an error
// that unwraps to context.DeadlineExceeded while the caller's context is
// still alive.
type upstreamTimeoutErr struct{}

func (upstreamTimeoutErr) Error() string { return "Client.Timeout exceeded while awaiting headers" }

func (upstreamTimeoutErr) Is(target error) bool { return target == context.DeadlineExceeded }

func TestService_UpstreamTimeoutFailsOver(t *testing.T) {
	primary := &scriptedProvider{
		name: "elevenlabs", available: true, failuresLeft: -1,
		failWith: upstreamTimeoutErr{},
	}
	backup := &scriptedProvider{name: "tone", available: true, audio: []byte("backup audio")}
	svc, _ := newTestService(fastRetry(3),
		provider.Config{Default: "elevenlabs", Fallback: []string{"tone"}}, primary, backup)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if !result.Succeeded {
		t.Fatalf("expected failover success, got %q", result.ErrorMessage)
	}
	if result.Provider != "tone" {
		t.Errorf("expected backup to serve, got %s", result.Provider)
	}
	// The raw context-shaped error is not retried, but it must not be
	// mistaken for caller cancellation either.
	if primary.synthCalls != 1 {
		t.Errorf("expected 1 attempt on primary, got %d", primary.synthCalls)
	}
	if backup.synthCalls != 1 {
		t.Errorf("expected backup to be tried, got %d calls", backup.synthCalls)
	}
	if len(result.Attempts) != 2 || result.Attempts[1] != "tone" {
		t.Errorf("expected attempts [elevenlabs tone], got %v", result.Attempts)
	}
	if strings.Contains(result.ErrorMessage, "cancelled") {
		t.Errorf("expected no cancellation attribution, got %q", result.ErrorMessage)
	}
}

func TestService_ProviderTimeoutRetriedThenFailsOver(t *testing.T) {
	primary := &scriptedProvider{
		name: "elevenlabs", available: true, failuresLeft: -1,
		failWith: errors.Timeout("synthesize").WithCause(context.DeadlineExceeded),
	}
	backup := &scriptedProvider{name: "tone", available: true, audio: []byte("ok")}
	svc, _ := newTestService(fastRetry(3),
		provider.Config{Default: "elevenlabs", Fallback: []string{"tone"}}, primary, backup)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})

	if !result.Succeeded {
		t.Fatalf("expected failover success, got %q", result.ErrorMessage)
	}
	// A classified timeout keeps its full retry budget before failover.
	if primary.synthCalls != 4 {
		t.Errorf("expected 4 attempts on primary, got %d", primary.synthCalls)
	}
	if result.Provider != "tone" {
		t.Errorf("expected backup to serve, got %s", result.Provider)
	}
}

func TestService_DeadlineAttributedNotFailedOver(t *testing.T) {
	slow := &scriptedProvider{name: "elevenlabs", available: true, failuresLeft: -1}
	backup := &scriptedProvider{name: "tone", available: true, audio: []byte("ok")}
	svc, _ := newTestService(
		resilience.RetryConfig{MaxRetries: 10, InitialDelay: 50 * time.Millisecond},
		provider.Config{Default: "elevenlabs", Fallback: []string{"tone"}}, slow, backup)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := svc.Synthesize(ctx, SynthesisRequest{Text: "hello"})

	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.ErrorMessage, "cancelled") {
		t.Errorf("expected cancellation attribution, got %q", result.ErrorMessage)
	}
	if backup.synthCalls != 0 {
		t.Errorf("expected no failover after deadline, backup got %d calls", backup.synthCalls)
	}
}

func TestService_FormatReportsProviderDefault(t *testing.T) {
	p := &scriptedProvider{name: "tone", available: true, audio: []byte("wav bytes")}
	svc, _ := newTestService(fastRetry(1), provider.Config{Default: "tone"}, p)

	result := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})
	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.ErrorMessage)
	}
	if result.Format != "wav" {
		t.Errorf("expected the provider's default format, got %q", result.Format)
	}

	result = svc.Synthesize(context.Background(), SynthesisRequest{Text: "hello", Format: "pcm"})
	if result.Format != "pcm" {
		t.Errorf("expected the requested format echoed, got %q", result.Format)
	}
}

func TestService_ProvidersListsCapabilities(t *testing.T) {
	a := &scriptedProvider{name: "elevenlabs", available: true}
	b := &scriptedProvider{name: "tone", available: false}
	svc, _ := newTestService(fastRetry(1), provider.Config{}, a, b)

	caps := svc.Providers()
	if len(caps) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(caps))
	}
	if caps[0].Name != "elevenlabs" || caps[1].Name != "tone" {
		t.Errorf("expected registration order, got %s, %s", caps[0].Name, caps[1].Name)
	}

	available := svc.AvailableProviders(context.Background())
	if len(available) != 1 || available[0] != "elevenlabs" {
		t.Errorf("expected [elevenlabs], got %v", available)
	}
}
