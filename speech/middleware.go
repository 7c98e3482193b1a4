package speech

import (
	"context"
	"time"

	"github.com/storyforge/speechkit/logger"
	"github.com/storyforge/speechkit/observability"
	"github.com/storyforge/speechkit/provider"
	"github.com/storyforge/speechkit/resilience"
)

// Middleware wraps a Provider with additional behavior around Synthesize.
type Middleware func(Provider) Provider

// Chain applies middlewares to p in order, so the first middleware is the
// outermost wrapper.
func Chain(p Provider, mws ...Middleware) Provider {
	for i := len(mws) - 1; i >= 0; i-- {
		p = mws[i](p)
	}
	return p
}

// wrapped delegates identity and capabilities to the inner provider; only
// Synthesize is intercepted.
type wrapped struct {
	inner      Provider
	synthesize func(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

func (w *wrapped) Name() string { return w.inner.Name() }

func (w *wrapped) IsAvailable(ctx context.Context) bool { return w.inner.IsAvailable(ctx) }

func (w *wrapped) Capabilities() provider.Capabilities { return w.inner.Capabilities() }

func (w *wrapped) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	return w.synthesize(ctx, req)
}

// WithLogging logs each synthesis call with its duration and outcome.
func WithLogging(log *logger.Logger) Middleware {
	return func(next Provider) Provider {
		return &wrapped{
			inner: next,
			synthesize: func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
				start := time.Now()
				audio, err := next.Synthesize(ctx, req)
				fields := logger.Fields(
					logger.FieldProvider, next.Name(),
					logger.FieldDuration, time.Since(start).Milliseconds(),
					"text_len", len(req.Text),
				)
				if err != nil {
					log.WithError(err).Error("synthesis failed", fields)
					return nil, err
				}
				fields["audio_bytes"] = len(audio)
				log.Debug("synthesis succeeded", fields)
				return audio, nil
			},
		}
	}
}

// WithMetrics records per-attempt counters and durations.
func WithMetrics(m *observability.Metrics) Middleware {
	return func(next Provider) Provider {
		return &wrapped{
			inner: next,
			synthesize: func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
				start := time.Now()
				audio, err := next.Synthesize(ctx, req)
				status := "success"
				if err != nil {
					status = "error"
					m.RecordError(ctx, "synthesis", next.Name())
				}
				m.RecordAttempt(ctx, next.Name(), status)
				m.RecordSynthesis(ctx, next.Name(), status, time.Since(start))
				return audio, err
			},
		}
	}
}

// WithTracing opens a span around each synthesis call.
func WithTracing() Middleware {
	return func(next Provider) Provider {
		return &wrapped{
			inner: next,
			synthesize: func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
				ctx, span := observability.StartSpan(ctx, "speech.synthesize")
				defer span.End()

				observability.SetSpanAttribute(ctx, observability.AttrProviderName, next.Name())
				observability.SetSpanAttribute(ctx, "text.length", len(req.Text))

				audio, err := next.Synthesize(ctx, req)
				if err != nil {
					observability.SetSpanError(ctx, err)
				}
				return audio, err
			},
		}
	}
}

// WithCircuitBreaker routes synthesis calls through cb. While the circuit is
// open the provider also reports itself unavailable, so selection skips it
// instead of burning a failover slot on ErrCircuitOpen.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Middleware {
	return func(next Provider) Provider {
		w := &wrapped{inner: next}
		w.synthesize = func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
			var audio []byte
			err := cb.Execute(func() error {
				var innerErr error
				audio, innerErr = next.Synthesize(ctx, req)
				return innerErr
			})
			if err != nil {
				return nil, err
			}
			return audio, nil
		}
		return &breakerGuarded{wrapped: w, cb: cb}
	}
}

type breakerGuarded struct {
	*wrapped
	cb *resilience.CircuitBreaker
}

func (b *breakerGuarded) IsAvailable(ctx context.Context) bool {
	if b.cb.State() == resilience.StateOpen {
		return false
	}
	return b.wrapped.IsAvailable(ctx)
}
