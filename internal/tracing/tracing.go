// Package tracing provides the gateway's shared OTel tracer: spans around
// turn-scheduler worker runs, delivery fan-out, and cron ticks (spec.md
// only excludes an editable dashboard, not telemetry — ambient
// observability is carried regardless of that Non-goal).
//
// Real tracing requires OTEL_EXPORTER_OTLP_ENDPOINT; without it, a no-op
// tracer is used so the instrumented code paths cost nothing by default.
package tracing

import (
	"context"
	"net/url"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "hermes-agent-gateway"

var (
	tracerInitOnce sync.Once
	provider       trace.TracerProvider = noop.NewTracerProvider()
	batchProvider  *sdktrace.TracerProvider
)

// setupExporter builds a batching OTLP/HTTP provider when an endpoint is
// configured. Any failure along the way leaves the package on its default
// no-op provider rather than returning an error nobody at startup could act
// on — tracing is best-effort ambient infrastructure, not a boot dependency.
func setupExporter() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return
	}

	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(hostOf(endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		res = resource.Default()
	}

	batchProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	provider = batchProvider
	otel.SetTracerProvider(provider)
}

// hostOf strips the scheme from an OTLP endpoint URL, falling back to the
// raw value if it doesn't parse as a URL at all.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

// Tracer returns a named tracer. No-op when tracing is disabled.
func Tracer(name string) trace.Tracer {
	tracerInitOnce.Do(setupExporter)
	return provider.Tracer(name)
}

// StartSpan starts a span on the named tracer and tags it with attrs,
// saving call sites the Tracer(name).Start(ctx, ...) plus SetAttributes
// boilerplate they'd otherwise repeat at every instrumented call site.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := Tracer(tracerName).Start(ctx, spanName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// EndWithError records err on span (if non-nil) and ends it. Call via
// defer right after StartSpan so every exit path — including early
// returns — closes and annotates the span consistently.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes pending spans and shuts down the provider.
func Shutdown(ctx context.Context) error {
	if batchProvider != nil {
		return batchProvider.Shutdown(ctx)
	}
	return nil
}
