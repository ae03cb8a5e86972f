// Package observability wires up OpenTelemetry tracing the way hector's
// pkg/observability does: a noop provider by default, an OTLP-over-gRPC
// exporter when an endpoint is configured, and a package-level accessor
// so call sites don't thread a tracer through every constructor.
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config controls tracer initialization. A zero Config yields the noop
// tracer provider.
type Config struct {
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
}

var (
	mu       sync.Mutex
	tracer   trace.Tracer = otel.Tracer(DefaultServiceName)
	shutdown func(context.Context) error
)

// Init installs the global tracer provider per cfg. When cfg.Enabled is
// false (or cfg is the zero value), the global otel noop provider is
// used and Init is a cheap no-op beyond naming the tracer.
func Init(ctx context.Context, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	if !cfg.Enabled {
		tracer = otel.Tracer(name)
		return nil
	}

	exporter, err := newOTLPExporter(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("observability: init otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return fmt.Errorf("observability: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer(name)
	shutdown = provider.Shutdown
	return nil
}

// Tracer returns the process-wide tracer. Safe to call before Init; it
// returns the noop tracer until Init runs.
func Tracer() trace.Tracer {
	mu.Lock()
	defer mu.Unlock()
	return tracer
}

// Shutdown flushes and stops the tracer provider, if one was started by
// Init with an OTLP exporter.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	fn := shutdown
	mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
