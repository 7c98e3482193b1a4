package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/storyforge/speechkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds OpenTelemetry metric instruments for synthesis observability.
type Metrics struct {
	synthesisTotal    metric.Int64Counter
	synthesisDuration metric.Float64Histogram
	attemptTotal      metric.Int64Counter
	errorTotal        metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	synthesisTotal, err := meter.Int64Counter("synthesis.total",
		metric.WithDescription("Total number of synthesis requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating synthesis.total counter: %w", err)
	}

	synthesisDuration, err := meter.Float64Histogram("synthesis.duration",
		metric.WithDescription("Duration of synthesis requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating synthesis.duration histogram: %w", err)
	}

	attemptTotal, err := meter.Int64Counter("synthesis.attempts",
		metric.WithDescription("Total provider attempts, including retries"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating synthesis.attempts counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("synthesis.errors",
		metric.WithDescription("Total errors by type and provider"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating synthesis.errors counter: %w", err)
	}

	return &Metrics{
		synthesisTotal:    synthesisTotal,
		synthesisDuration: synthesisDuration,
		attemptTotal:      attemptTotal,
		errorTotal:        errorTotal,
	}, nil
}

// RecordSynthesis records a completed synthesis request.
func (m *Metrics) RecordSynthesis(ctx context.Context, provider, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.synthesisTotal.Add(ctx, 1, attrs)
	m.synthesisDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
	))
}

// RecordAttempt records one provider attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, provider, status string) {
	m.attemptTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordError records an error by type and provider.
func (m *Metrics) RecordError(ctx context.Context, errType, provider string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("provider", provider),
	))
}
