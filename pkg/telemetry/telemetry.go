// Package telemetry configures the global OpenTelemetry tracer provider.
//
// Spans are exported over OTLP gRPC when one of the standard
// OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT
// environment variables is set. Otherwise tracing stays a no-op.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EndpointEnvVars enable OTLP export when any of them is set.
var EndpointEnvVars = []string{
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

type options struct {
	exporter sdktrace.SpanExporter
	version  string
	lookup   func(string) (string, bool)
}

// Opt configures [Setup].
type Opt func(*options)

// WithExporter exports spans to exp instead of OTLP. The provider is always
// installed when an exporter is given.
func WithExporter(exp sdktrace.SpanExporter) Opt {
	return func(o *options) {
		o.exporter = exp
	}
}

// WithVersion sets the service.version resource attribute.
func WithVersion(version string) Opt {
	return func(o *options) {
		o.version = version
	}
}

// WithLookupEnv replaces [os.LookupEnv].
func WithLookupEnv(lookup func(string) (string, bool)) Opt {
	return func(o *options) {
		o.lookup = lookup
	}
}

// Setup installs a global tracer provider for service and returns its
// shutdown function. When tracing is not enabled the returned function does
// nothing.
func Setup(ctx context.Context, service string, opts ...Opt) (ShutdownFunc, error) {
	o := &options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(o)
	}

	exp := o.exporter
	if exp == nil {
		if !enabled(o.lookup) {
			return func(context.Context) error { return nil }, nil
		}

		var err error

		exp, err = otlptracegrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", service)}
	if o.version != "" {
		attrs = append(attrs, attribute.String("service.version", o.version))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Debug("tracing enabled", slog.String("service", service))

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}

		return nil
	}, nil
}

func enabled(lookup func(string) (string, bool)) bool {
	for _, key := range EndpointEnvVars {
		if v, ok := lookup(key); ok && v != "" {
			return true
		}
	}

	return false
}
