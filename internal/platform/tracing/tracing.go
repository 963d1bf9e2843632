// Package tracing installs the OpenTelemetry tracer provider behind the spans
// the matching service and expiry worker start.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"matchcore/internal/platform/config"
)

// Provider owns the SDK provider when export is enabled. The zero value is
// the disabled provider.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

// New exports spans over OTLP gRPC and installs the provider globally. With
// tracing disabled it returns a Provider that leaves the global no-op
// provider in place.
func New(ctx context.Context, cfg config.TracingConfig, logger *slog.Logger) (*Provider, error) {
	if !cfg.Enabled {
		logger.Info("tracing disabled")
		return &Provider{}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	p := Install(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SamplingRatio)),
	))
	logger.Info("tracing enabled",
		"endpoint", cfg.Endpoint,
		"sampling_ratio", cfg.SamplingRatio,
		"service_name", cfg.ServiceName,
	)
	return p, nil
}

// Install makes sdk the global tracer provider with W3C trace context and
// baggage propagation.
func Install(sdk *sdktrace.TracerProvider) *Provider {
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{sdk: sdk}
}

// Sampler maps a ratio to a sampler. Child spans follow their parent's
// decision.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func (p *Provider) Enabled() bool { return p.sdk != nil }

// Tracer returns a named tracer from the installed provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.sdk == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return p.sdk.Tracer(name)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
