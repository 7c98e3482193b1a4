package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storyforge/speechkit/logger"
	"github.com/storyforge/speechkit/observability"
	"github.com/storyforge/speechkit/provider"
	"github.com/storyforge/speechkit/resilience"
)

// Service is the single entry point for synthesis. It selects providers via
// the registry, retries each one with exponential backoff, and fails over to
// the next candidate when a provider's retry budget is exhausted. Callers
// always get a Result; they never see which provider served them unless they
// look.
type Service struct {
	registry *Registry
	retry    resilience.RetryConfig
	log      *logger.Logger
	metrics  *observability.Metrics
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithRetryConfig overrides the default per-provider retry budget.
func WithRetryConfig(cfg resilience.RetryConfig) ServiceOption {
	return func(s *Service) { s.retry = cfg }
}

// WithServiceMetrics attaches metric instruments to the service.
func WithServiceMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service over the given registry.
func NewService(registry *Registry, opts ...ServiceOption) *Service {
	s := &Service{
		registry: registry,
		retry:    resilience.DefaultRetryConfig(),
		log:      logger.Get("speech"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the underlying registry for registration at start-up.
func (s *Service) Registry() *Registry { return s.registry }

// Providers returns the capability descriptors of all registered providers,
// in registration order.
func (s *Service) Providers() []provider.Capabilities {
	names := s.registry.Names()
	caps := make([]provider.Capabilities, 0, len(names))
	for _, name := range names {
		if p, ok := s.registry.Get(name); ok {
			caps = append(caps, p.Capabilities())
		}
	}
	return caps
}

// AvailableProviders returns the names of providers currently ready to serve,
// in registration order. Availability is checked fresh on every call.
func (s *Service) AvailableProviders(ctx context.Context) []string {
	return s.registry.Available(ctx)
}

// Synthesize runs one request through selection, retry, and failover.
//
// Provider order: the request's Provider if registered and available, else the
// configured default, then the fallback chain, then any remaining available
// provider in registration order. Each candidate gets a fresh retry budget;
// only when all its attempts are spent does the next candidate run. The first
// success wins. If every candidate fails, the Result's ErrorMessage names each
// provider tried and why it failed.
//
// Empty input fails immediately without contacting any provider.
func (s *Service) Synthesize(ctx context.Context, req SynthesisRequest) Result {
	start := time.Now()
	result := Result{RequestID: uuid.NewString()}
	log := s.log.WithFields(logger.Fields(logger.FieldRequestID, result.RequestID))

	if strings.TrimSpace(req.Text) == "" {
		result.ErrorMessage = "empty input: text is required"
		result.Duration = time.Since(start)
		log.Warn("synthesis rejected", logger.Fields("reason", "empty input"))
		return result
	}

	candidates := s.registry.SelectionOrder(ctx, req.Provider)
	if len(candidates) == 0 {
		result.ErrorMessage = "no provider available"
		result.Duration = time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordError(ctx, "no_provider", "")
		}
		log.Error("no provider available", logger.Fields(
			"requested", req.Provider,
			"registered", s.registry.Names(),
		))
		return result
	}

	var failures []string
	for _, p := range candidates {
		name := p.Name()
		result.Attempts = append(result.Attempts, name)

		retryCfg := s.retry
		retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			log.WithError(err).Warn("synthesis attempt failed, retrying", logger.Fields(
				logger.FieldProvider, name,
				logger.FieldAttempt, attempt,
				"delay", delay.String(),
			))
		}

		audio, err := resilience.Retry(ctx, retryCfg, func() ([]byte, error) {
			return p.Synthesize(ctx, req)
		})
		if err == nil {
			result.Succeeded = true
			result.Audio = audio
			result.Provider = name
			result.Format = req.Format
			if result.Format == "" {
				// The provider synthesized in its default format.
				if formats := p.Capabilities().Formats; len(formats) > 0 {
					result.Format = formats[0]
				}
			}
			result.Duration = time.Since(start)
			if s.metrics != nil {
				s.metrics.RecordSynthesis(ctx, name, "success", result.Duration)
			}
			log.Info("synthesis succeeded", logger.Fields(
				logger.FieldProvider, name,
				logger.FieldDuration, result.Duration.Milliseconds(),
				"failovers", len(result.Attempts)-1,
			))
			return result
		}

		// Attribute to the caller only when their context is actually done.
		// A provider's internal timeout also unwraps to DeadlineExceeded,
		// and that must fail over, not abort the chain.
		if ctx.Err() != nil {
			result.ErrorMessage = fmt.Sprintf("request cancelled while trying %s: %v", name, err)
			result.Duration = time.Since(start)
			log.WithError(err).Warn("synthesis cancelled", logger.Fields(logger.FieldProvider, name))
			return result
		}

		failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		if s.metrics != nil {
			s.metrics.RecordError(ctx, "provider_failed", name)
		}
		log.WithError(err).Warn("provider exhausted, failing over", logger.Fields(
			logger.FieldProvider, name,
		))
	}

	result.ErrorMessage = fmt.Sprintf("all %d providers failed: %s",
		len(result.Attempts), strings.Join(failures, "; "))
	result.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordSynthesis(ctx, "", "failure", result.Duration)
	}
	log.Error("synthesis failed on all providers", logger.Fields(
		"providers", result.Attempts,
	))
	return result
}
