// Package telemetry wires OpenTelemetry tracing for the spotlight binaries.
package telemetry

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	namespace    = "spotlight"
	flushTimeout = 5 * time.Second
)

// Config is read from the environment by each binary.
type Config struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	// SampleRatio is the share of root traces kept. Dispatch spans follow
	// their parent's decision.
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Setup registers a tracer provider exporting to cfg.Endpoint. instance
// names this process among others of the same service (a fixture id, say);
// empty falls back to the hostname. With no endpoint nothing is registered.
//
// The returned shutdown flushes pending spans, giving up after a few
// seconds so an unreachable collector cannot hold up exit.
func Setup(ctx context.Context, service, instance string, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}
	res, err := newResource(ctx, service, instance)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func newResource(ctx context.Context, service, instance string) (*resource.Resource, error) {
	if instance == "" {
		instance, _ = os.Hostname()
	}
	return resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNamespace(namespace),
		semconv.ServiceName(service),
		semconv.ServiceInstanceID(instance),
	))
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
