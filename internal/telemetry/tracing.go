package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the module-wide tracer used to wrap node and workflow
// execution in spans. Until InitTracer installs a real exporter this
// resolves to otel's no-op global tracer, so tracing calls are always
// safe even when telemetry isn't configured.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/ShaharBand/fluxly")
}

// InitTracer configures the global OpenTelemetry tracer provider to
// export spans via OTLP/HTTP to endpoint (host:port, no scheme). Callers
// should defer the returned shutdown function. If endpoint is empty,
// InitTracer is a no-op and returns a shutdown that does nothing — the
// module runs fine without a collector configured.
func InitTracer(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
