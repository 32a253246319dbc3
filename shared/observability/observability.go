package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Options selects what gets installed
type Options struct {
	ServiceName    string
	ServiceVersion string
	// TracingEnabled installs a stdout span exporter; otherwise the global no-op tracer stays
	TracingEnabled bool
}

// Provider holds the installed global providers
type Provider struct {
	tracer *trace.TracerProvider
	meter  *metric.MeterProvider
}

// Setup installs the global meter provider backed by the Prometheus exporter and, when
// enabled, a tracer provider printing spans to stdout
func Setup(opts Options) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	exp, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	p := &Provider{
		meter: metric.NewMeterProvider(metric.WithReader(exp), metric.WithResource(res)),
	}
	otel.SetMeterProvider(p.meter)

	if opts.TracingEnabled {
		spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stdouttrace exporter: %w", err)
		}
		p.tracer = trace.NewTracerProvider(
			trace.WithBatcher(spans),
			trace.WithResource(res),
		)
		otel.SetTracerProvider(p.tracer)
	}

	return p, nil
}

// MetricsHandler serves the Prometheus scrape endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the providers
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	errs = append(errs, p.meter.Shutdown(ctx))
	return errors.Join(errs...)
}
