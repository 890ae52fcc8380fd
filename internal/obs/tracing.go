package obs

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer is the subset of trace.Tracer the services depend on.
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() Tracer {
	return noop.NewTracerProvider().Tracer(ServiceName)
}

// SetupTracing builds a tracer for the given exporter name ("none",
// "stdout" or "otlp"). The returned shutdown flushes pending spans.
func SetupTracing(ctx context.Context, exporter, otlpEndpoint string) (Tracer, func(context.Context) error, error) {
	return setupTracing(ctx, exporter, otlpEndpoint, os.Stdout)
}

func setupTracing(ctx context.Context, exporter, otlpEndpoint string, w io.Writer) (Tracer, func(context.Context) error, error) {
	var exp sdktrace.SpanExporter
	var err error
	switch exporter {
	case "", "none":
		return NoopTracer(), func(context.Context) error { return nil }, nil
	case "stdout":
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case "otlp":
		exp, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(otlpEndpoint),
			otlptracehttp.WithInsecure(),
		)
	default:
		return nil, nil, errors.Errorf("unknown tracing exporter %q", exporter)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create %s exporter", exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		_ = tp.ForceFlush(ctx)
		return tp.Shutdown(ctx)
	}
	return tp.Tracer(ServiceName), shutdown, nil
}
