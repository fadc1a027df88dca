// Package telemetry wires the OpenTelemetry SDK for prstage binaries.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Attribute keys shared by the resource and the fetch instruments.
const (
	RepositoryKey = attribute.Key("github.repository")
	BranchKey     = attribute.Key("github.branch")
	ReasonKey     = attribute.Key("reason")
)

// fetchInstruments matches every instrument prfetch registers.
const fetchInstruments = "prstage.fetch.*"

// Options configures New.
type Options struct {
	Enabled bool
	Service string // fallback when OTEL_SERVICE_NAME is unset
	Owner   string
	Repo    string
	Branch  string
}

// Telemetry holds a shutdown function that flushes and closes all OTEL providers.
// Instrumented code uses the global otel.Tracer() / otel.Meter() functions.
type Telemetry struct {
	Shutdown func(ctx context.Context) error
}

// New initialises OpenTelemetry SDK providers and registers them globally.
// When opts.Enabled is false the global providers remain no-ops. The collector
// address comes from OTEL_EXPORTER_OTLP_ENDPOINT (default localhost:4317).
func New(ctx context.Context, opts Options) (*Telemetry, error) {
	if !opts.Enabled {
		return &Telemetry{Shutdown: func(context.Context) error { return nil }}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(ResourceAttributes(opts)...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithInsecure())
	if err != nil {
		_ = tp.Shutdown(ctx) //nolint:errcheck // already failing
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	// CLI runs are short; a final flush happens on Shutdown.
	mopts := []sdkmetric.Option{
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	}
	for _, v := range MetricViews() {
		mopts = append(mopts, sdkmetric.WithView(v))
	}
	mp := sdkmetric.NewMeterProvider(mopts...)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
		return errors.Join(errs...)
	}

	return &Telemetry{Shutdown: shutdown}, nil
}

// ResourceAttributes describes the process: the service plus the repository
// and branch it is configured against. Empty fields are left out.
func ResourceAttributes(opts Options) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName(opts.Service))}
	if opts.Owner != "" && opts.Repo != "" {
		attrs = append(attrs, RepositoryKey.String(opts.Owner+"/"+opts.Repo))
	}
	if opts.Branch != "" {
		attrs = append(attrs, BranchKey.String(opts.Branch))
	}
	return attrs
}

// MetricViews keeps fetch counters to a fixed attribute set so a caller adding
// per-PR or per-file attributes cannot blow up series cardinality.
func MetricViews() []sdkmetric.View {
	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: fetchInstruments},
			sdkmetric.Stream{AttributeFilter: attribute.NewAllowKeysFilter(RepositoryKey, ReasonKey)},
		),
	}
}

func serviceName(fallback string) string {
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		return v
	}
	return fallback
}
