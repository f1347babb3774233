package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Funclose/Ef-HomeWork/internal/config"
)

const (
	serviceVersion   = "0.1.0"
	shutdownTimeout  = 10 * time.Second
	otlpDialTimeout  = 10 * time.Second
	stdoutMetricTick = 30 * time.Second
)

// diagnostics receives console exporter output; stdout belongs to commands.
var diagnostics io.Writer = os.Stderr

// Module exposes the observability manager to Fx.
var Module = fx.Provide(NewManager)

// Manager owns the tracer and meter providers for one process.
type Manager struct {
	cfg    config.Observability
	logger *zap.Logger

	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	scrape http.Handler
}

// NewManager builds the providers the configuration asks for. They become the
// otel globals when the Fx app starts and are flushed when it stops.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{cfg: cfg.Observability, logger: logger}

	res, err := m.resource(context.Background())
	if err != nil {
		return nil, fmt.Errorf("observability resource: %w", err)
	}
	if m.cfg.EnableTracing {
		if m.tracer, err = m.tracerProvider(context.Background(), res); err != nil {
			return nil, err
		}
	}
	if m.cfg.EnableMetrics {
		if err := m.meterProvider(res); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			m.install()
			return nil
		},
		OnStop: m.Shutdown,
	})
	return m, nil
}

func (m *Manager) resource(ctx context.Context) (*sdkresource.Resource, error) {
	return sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(m.cfg.ServiceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("service.environment", m.cfg.Environment),
		),
	)
}

// install publishes the providers as otel globals.
func (m *Manager) install() {
	if m.tracer != nil {
		otel.SetTracerProvider(m.tracer)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}
	if m.meter != nil {
		otel.SetMeterProvider(m.meter)
	}
}

// Shutdown flushes and stops both providers within shutdownTimeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if m.tracer != nil {
		errs = append(errs, m.tracer.Shutdown(ctx))
	}
	if m.meter != nil {
		errs = append(errs, m.meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (m *Manager) tracerProvider(ctx context.Context, res *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch kind := strings.ToLower(m.cfg.TraceExporter); kind {
	case "", "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(diagnostics), stdouttrace.WithPrettyPrint())
	case "otlp":
		if m.cfg.TraceEndpoint == "" {
			return nil, errors.New("OBS_OTLP_ENDPOINT must be set for otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(m.cfg.TraceEndpoint)}
		if m.cfg.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		dialCtx, cancel := context.WithTimeout(ctx, otlpDialTimeout)
		defer cancel()
		exporter, err = otlptracegrpc.New(dialCtx, opts...)
	default:
		m.logger.Warn("unsupported trace exporter; tracing disabled", zap.String("exporter", kind))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res)), nil
}

func (m *Manager) meterProvider(res *sdkresource.Resource) error {
	var reader sdkmetric.Reader
	switch kind := strings.ToLower(m.cfg.MetricsExporter); kind {
	case "prometheus":
		// A private registry lets several managers live in one process.
		registry := prometheus.NewRegistry()
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("prometheus exporter: %w", err)
		}
		reader = exporter
		m.scrape = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(diagnostics), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(stdoutMetricTick))
	default:
		m.logger.Warn("unsupported metrics exporter; metrics disabled", zap.String("exporter", kind))
		return nil
	}
	m.meter = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	return nil
}

// TracingEnabled reports whether a tracer provider was built.
func (m *Manager) TracingEnabled() bool { return m.tracer != nil }

// MetricsEnabled reports whether a meter provider was built.
func (m *Manager) MetricsEnabled() bool { return m.meter != nil }

// MetricsHandler serves the Prometheus scrape endpoint; nil unless the
// prometheus exporter is active.
func (m *Manager) MetricsHandler() http.Handler { return m.scrape }

// MeterProvider returns the meter provider, or nil when metrics are off.
func (m *Manager) MeterProvider() *sdkmetric.MeterProvider { return m.meter }

// PrometheusPath returns the configured metrics endpoint path.
func (m *Manager) PrometheusPath() string { return m.cfg.PrometheusPath }
