// Package telemetry initialises OpenTelemetry tracing for the agent.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracerName is the instrumentation scope used for command spans.
const TracerName = "github.com/st-keller/introspection-agent"

// Resource attribute keys describing the attached agent.
const (
	SocketPathKey = attribute.Key("vasco.socket_path")
	MaxPayloadKey = attribute.Key("vasco.max_payload")
)

// Config selects the trace exporter.
type Config struct {
	Endpoint string `env:"VASCO_OTEL_ENDPOINT"`
	Enabled  bool   `env:"VASCO_OTEL_ENABLED" envDefault:"true"`
}

// Target identifies the host process an agent is attached to.
type Target struct {
	Process    string
	SocketPath string
	MaxPayload int
}

// Resource describes the attached host: the service is the host executable,
// and the agent's socket is recorded so traces from several hosts on one
// machine can be told apart.
func Resource(ctx context.Context, target Target) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(target.Process),
		semconv.ProcessExecutableName(target.Process),
		semconv.ProcessPID(os.Getpid()),
	}
	if target.SocketPath != "" {
		attrs = append(attrs, SocketPathKey.String(target.SocketPath))
	}
	if target.MaxPayload > 0 {
		attrs = append(attrs, MaxPayloadKey.Int(target.MaxPayload))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	return res, nil
}

// Setup initialises OpenTelemetry tracing for target.
//
// Tracing is opt-in: when Endpoint is empty or Enabled is false, Setup returns
// a no-op shutdown function and no global provider is registered.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, target Target, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop, nil
	}

	res, err := Resource(ctx, target)
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
