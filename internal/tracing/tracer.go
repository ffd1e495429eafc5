package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// Options configures NewTracerProvider.
type Options struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	SampleRatio    float64
	Insecure       bool
}

// NewTracerProvider creates an OTLP/gRPC backed provider and installs it as
// the global provider.
func NewTracerProvider(ctx context.Context, opts Options) (*TracerProvider, error) {
	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.OTLPEndpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.ServiceVersion),
			semconv.ServiceNamespaceKey.String("mirador"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// DashboardTracer creates the spans of dashboard resolution. Without a
// configured provider the global no-op tracer is used.
type DashboardTracer struct {
	tracer trace.Tracer
}

func NewDashboardTracer(name string) *DashboardTracer {
	return &DashboardTracer{tracer: otel.Tracer(name)}
}

// NewDashboardTracerFrom uses an explicit provider, mostly for tests.
func NewDashboardTracerFrom(tp trace.TracerProvider, name string) *DashboardTracer {
	return &DashboardTracer{tracer: tp.Tracer(name)}
}

// StartResolveSpan starts the span of one dashboard load.
func (dt *DashboardTracer) StartResolveSpan(ctx context.Context, actionID int64, hasDateRange bool) (context.Context, trace.Span) {
	return dt.tracer.Start(ctx, "dashboard.resolve",
		trace.WithAttributes(
			attribute.Int64("dashboard.action_id", actionID),
			attribute.Bool("dashboard.date_range", hasDateRange),
			attribute.String("component", "block-resolver"),
		),
	)
}

// StartBlockSpan starts the span of a single block inside a dashboard load.
func (dt *DashboardTracer) StartBlockSpan(ctx context.Context, blockID int64, blockType, model string) (context.Context, trace.Span) {
	return dt.tracer.Start(ctx, "dashboard.block",
		trace.WithAttributes(
			attribute.Int64("block.id", blockID),
			attribute.String("block.type", blockType),
			attribute.String("block.model", model),
		),
	)
}

// StartCacheOperationSpan starts a span for cache operations
func (dt *DashboardTracer) StartCacheOperationSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return dt.tracer.Start(ctx, "cache_operation",
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
			attribute.String("component", "cache"),
		),
	)
}

// RecordBlockMetrics annotates a block span with its outcome.
func (dt *DashboardTracer) RecordBlockMetrics(span trace.Span, duration time.Duration, errKind string) {
	span.SetAttributes(
		attribute.Int64("block.duration_ms", duration.Milliseconds()),
		attribute.String("block.error_kind", errKind),
	)
}

// RecordCacheMetrics records cache operation metrics on a span
func (dt *DashboardTracer) RecordCacheMetrics(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}

// RecordError records an error on a span
func (dt *DashboardTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
