package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps OpenTelemetry tracer
type Tracer struct {
	tracer trace.Tracer
}

// Config holds tracing configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	JaegerEndpoint string
	Environment    string
}

// NewTracer creates a new OpenTelemetry tracer
func NewTracer(config Config) (*Tracer, error) {
	// Create Jaeger exporter
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	// Create resource
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create trace provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	// Set global propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		tracer: otel.Tracer(config.ServiceName),
	}, nil
}

// StartSpan starts a new span
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartSelectionSpan starts a span for a selection call
func (t *Tracer) StartSelectionSpan(ctx context.Context, strategy, model string, candidates int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("selection.strategy", strategy),
		attribute.String("selection.model", model),
		attribute.Int("selection.candidates", candidates),
	}

	return t.tracer.Start(ctx, "selection.decide", trace.WithAttributes(attrs...))
}

// StartFetchSpan starts a span for a metrics pipeline fetch
func (t *Tracer) StartFetchSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("fetch.model", model),
	}

	return t.tracer.Start(ctx, "pipeline.fetch", trace.WithAttributes(attrs...))
}

// StartStoreSpan starts a span for a model store operation
func (t *Tracer) StartStoreSpan(ctx context.Context, operation, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("store.operation", operation),
		attribute.String("store.artifact_id", id),
	}

	return t.tracer.Start(ctx, "store."+operation, trace.WithAttributes(attrs...))
}

// Shutdown shuts down the tracer
func (t *Tracer) Shutdown(ctx context.Context) error {
	return otel.GetTracerProvider().(interface{ Shutdown(context.Context) error }).Shutdown(ctx)
}

// RecordWinner annotates a selection span with the chosen candidate
func RecordWinner(span trace.Span, winnerID string, score float64) {
	span.SetAttributes(
		attribute.String("selection.winner_id", winnerID),
		attribute.Float64("selection.score", score),
	)
}
