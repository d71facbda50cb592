package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"qdbreport/internal/config"
	"qdbreport/pkg/contracts"
)

const (
	ServiceName = "qdbreport"
	// InstrumentationName names the tracer and meter used by the report pipeline.
	InstrumentationName = "qdbreport"
)

// TelemetryProviders holds the OpenTelemetry providers for one process
type TelemetryProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *prom.Registry

	textfile string
	logger   *slog.Logger
}

// InitializeTelemetry installs global tracer and meter providers according to
// cfg. Disabled signals keep the otel no-op defaults. Traces are written to
// traceOut (stdout when nil).
func InitializeTelemetry(cfg config.TelemetryConfig, environment string, traceOut io.Writer, logger *slog.Logger) (*TelemetryProviders, error) {
	ctx := context.Background()
	p := &TelemetryProviders{textfile: cfg.MetricsTextfile, logger: logger}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(contracts.Version),
		semconv.DeploymentEnvironmentName(environment),
	)

	if cfg.TracingEnabled {
		if traceOut == nil {
			traceOut = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		p.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.TracerProvider)
	}

	if cfg.MetricsEnabled {
		p.Registry = prom.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(p.Registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(p.MeterProvider)
	}

	logger.InfoContext(ctx, "Telemetry initialized",
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.String("metrics_textfile", cfg.MetricsTextfile))

	return p, nil
}

// WriteMetrics writes the current metric values in Prometheus text format to
// the configured textfile, for collection by a node exporter.
func (p *TelemetryProviders) WriteMetrics() error {
	if p.Registry == nil || p.textfile == "" {
		return nil
	}
	if err := prom.WriteToTextfile(p.textfile, p.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the providers
func (p *TelemetryProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// RunMetrics are the counters recorded by a report run
type RunMetrics struct {
	UnitsCompleted   metric.Int64Counter
	UnitsSkipped     metric.Int64Counter
	UnitsFailed      metric.Int64Counter
	AccountsSkipped  metric.Int64Counter
	ReportsDelivered metric.Int64Counter
}

// NewRunMetrics creates the run counters on meter
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	var (
		m   RunMetrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.UnitsCompleted, "qdb.units.completed", "Units whose report was generated"},
		{&m.UnitsSkipped, "qdb.units.skipped", "Units skipped because no account had data"},
		{&m.UnitsFailed, "qdb.units.failed", "Units aborted by a fetch, render or delivery failure"},
		{&m.AccountsSkipped, "qdb.accounts.skipped", "Accounts left out of a report for lack of data"},
		{&m.ReportsDelivered, "qdb.reports.delivered", "Reports handed to the mail sender"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
	}
	return &m, nil
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// UnitAttributes returns the span/metric attributes identifying a unit
func UnitAttributes(unitID int, unitName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("qdb.unit.id", unitID),
		attribute.String("qdb.unit.name", unitName),
	}
}
