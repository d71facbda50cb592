package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"qdbreport/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdown(t *testing.T, p *TelemetryProviders) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestInitializeTelemetry_Disabled(t *testing.T) {
	p, err := InitializeTelemetry(config.TelemetryConfig{}, config.EnvTest, nil, discardLogger())
	require.NoError(t, err)

	assert.Nil(t, p.TracerProvider)
	assert.Nil(t, p.MeterProvider)
	assert.NoError(t, p.WriteMetrics())
	shutdown(t, p)
}

func TestInitializeTelemetry_MetricsTextfile(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "qdbreport.prom")
	cfg := config.TelemetryConfig{MetricsEnabled: true, MetricsTextfile: textfile}

	p, err := InitializeTelemetry(cfg, config.EnvTest, nil, discardLogger())
	require.NoError(t, err)
	defer shutdown(t, p)
	require.NotNil(t, p.MeterProvider)
	require.NotNil(t, p.Registry)

	m, err := NewRunMetrics(p.MeterProvider.Meter(InstrumentationName))
	require.NoError(t, err)

	ctx := context.Background()
	m.UnitsCompleted.Add(ctx, 2)
	m.UnitsFailed.Add(ctx, 1)

	require.NoError(t, p.WriteMetrics())
	content, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "qdb_units_completed")
	assert.Contains(t, string(content), "qdb_units_failed")
}

func TestInitializeTelemetry_Tracing(t *testing.T) {
	var out bytes.Buffer
	p, err := InitializeTelemetry(config.TelemetryConfig{TracingEnabled: true}, config.EnvTest, &out, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, p.TracerProvider)

	ctx, span := p.TracerProvider.Tracer(InstrumentationName).Start(context.Background(), "qdb.unit")
	RecordError(ctx, errors.New("warehouse unreachable"))
	span.End()
	shutdown(t, p)

	assert.Contains(t, out.String(), "qdb.unit")
	assert.Contains(t, out.String(), "warehouse unreachable")
}

func TestRecordError_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(context.Background(), errors.New("ignored"))
	})
}

func TestUnitAttributes(t *testing.T) {
	attrs := UnitAttributes(21, "DIIT Software Development")
	assert.Equal(t, []attribute.KeyValue{
		attribute.Int("qdb.unit.id", 21),
		attribute.String("qdb.unit.name", "DIIT Software Development"),
	}, attrs)
}
