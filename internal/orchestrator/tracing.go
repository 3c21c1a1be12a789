package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracingConfig configures the per-phase span exporter. Adapted from the
// teacher's pkg/tracing.TracingManager, trimmed to the one exporter this
// repo actually ships (otlp/http) since no jaeger collector is part of
// this domain's external surface.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	Endpoint     string
	SampleRate   float64
	BatchTimeout time.Duration
}

// DefaultTracingConfig returns tracing disabled, matching the teacher's
// own "observability that doesn't gate correctness" stance: a no-op
// tracer is used until an endpoint is configured.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:      false,
		ServiceName:  "forensiq",
		Endpoint:     "http://localhost:4318",
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
	}
}

// TracingManager owns the span provider for the ten-phase analysis
// pipeline (spec §4.F).
type TracingManager struct {
	config   TracingConfig
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracingManager builds a TracingManager. With tracing disabled it
// wires a no-op tracer so every call site works identically either way.
func NewTracingManager(cfg TracingConfig) (*TracingManager, error) {
	if !cfg.Enabled {
		return &TracingManager{config: cfg, tracer: otel.Tracer("noop")}, nil
	}

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)

	return &TracingManager{config: cfg, provider: provider, tracer: otel.Tracer(cfg.ServiceName)}, nil
}

// StartPhase opens a span for one pipeline phase, tagging it with the
// analysis id and phase name (spec §8's span-attribute requirement).
func (tm *TracingManager) StartPhase(ctx context.Context, analysisID, phase string) (context.Context, oteltrace.Span) {
	ctx, span := tm.tracer.Start(ctx, "orchestrator.phase."+phase)
	span.SetAttributes(
		attribute.String("analysis_id", analysisID),
		attribute.String("phase", phase),
	)
	return ctx, span
}

// EndPhase closes span, marking it errored when err is non-nil.
func EndPhase(span oteltrace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes and releases the span provider, a no-op when tracing
// was never enabled.
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	return tm.provider.Shutdown(ctx)
}
