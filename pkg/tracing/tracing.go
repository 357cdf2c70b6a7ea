// Package tracing sets up the OpenTelemetry tracer provider the executor
// reports request spans to.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sternrassler/lever-ats-client/pkg/logging"
)

// Config configures span export.
type Config struct {
	// Endpoint is the OTLP gRPC collector address (host:port). Empty
	// leaves the global no-op provider in place.
	Endpoint string

	Insecure    bool
	ServiceName string
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Init installs a batching OTLP tracer provider as the global provider.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	logger := logging.NewLogger("tracing")

	if cfg.Endpoint == "" {
		logger.Debug().Msg("No OTLP endpoint configured, tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "lever-tools"
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("service", serviceName).
		Msg("Tracing enabled")

	return tp.Shutdown, nil
}
