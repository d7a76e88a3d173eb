// Package otel wires OpenTelemetry tracing for lcnotes binaries.
package otel

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/iuprojects/lcnotes"

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when LCNOTES_OTEL_ENDPOINT is empty or LCNOTES_OTEL_ENABLED
// is "false", Setup returns a no-op shutdown function and leaves the global
// provider untouched. Inside Lambda the function region is attached to the
// resource so traces from different deployments stay apart.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv("LCNOTES_OTEL_ENABLED"), "false") {
		return noop, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("LCNOTES_OTEL_ENDPOINT"))
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	}
	if region := strings.TrimSpace(os.Getenv("AWS_REGION")); region != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.CloudRegion(region)))
	}
	if fn := strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")); fn != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.FaaSName(fn)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns the module tracer from the global provider. Before Setup
// registers a provider the returned tracer records nothing.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Flush exports spans still buffered in the registered SDK provider. Lambda
// freezes the process between invocations, so each invocation flushes.
func Flush(ctx context.Context) error {
	flusher, ok := otel.GetTracerProvider().(interface {
		ForceFlush(context.Context) error
	})
	if !ok {
		return nil
	}
	if err := flusher.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush spans: %w", err)
	}
	return nil
}
