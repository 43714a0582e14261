package exporters

import (
	"context"
	"fmt"
	"runtime"

	"github.com/hilthontt/lobby/infrastructure/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultJaegerEndpoint = "http://localhost:14268/api/traces"
	defaultOtlpEndpoint   = "http://localhost:4318/v1/traces"
)

// InitTracer installs a global tracer provider for the configured exporter.
// It returns nil, nil when tracing is disabled.
func InitTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)

	switch cfg.Tracing.Exporter {
	case config.ExporterJaeger:
		endpoint := cfg.Tracing.Endpoint
		if endpoint == "" {
			endpoint = defaultJaegerEndpoint
		}
		exp, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	case config.ExporterOtlp:
		endpoint := cfg.Tracing.Endpoint
		if endpoint == "" {
			endpoint = defaultOtlpEndpoint
		}
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	case "", config.DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", cfg.Tracing.Exporter)
	}
	if err != nil {
		return nil, err
	}

	version := cfg.Tracing.ServiceVersion
	if version == "" {
		version = "unknown"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(cfg.Tracing.ServiceName),
			semconv.ServiceVersion(version),
			attribute.String("go.version", runtime.Version()),
			attribute.String("os", runtime.GOOS),
			attribute.String("arch", runtime.GOARCH),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}
