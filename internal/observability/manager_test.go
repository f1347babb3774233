package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Funclose/Ef-HomeWork/internal/config"
)

func TestManagerDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, config.Config{Observability: config.Observability{ServiceName: "efshop"}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	lc.RequireStart().RequireStop()
}

func TestManagerPrometheusMetrics(t *testing.T) {
	obs := config.Observability{
		ServiceName:     "efshop",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	}

	// Two managers must not collide on registration.
	for i := 0; i < 2; i++ {
		mgr, err := NewManager(fxtest.NewLifecycle(t), config.Config{Observability: obs}, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.True(t, mgr.MetricsEnabled())
		assert.Equal(t, "/metrics", mgr.PrometheusPath())

		counter, err := mgr.MeterProvider().Meter("test").Int64Counter("test_events")
		require.NoError(t, err)
		counter.Add(context.Background(), 1)

		rec := httptest.NewRecorder()
		mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "test_events")
	}
}

func TestManagerUnknownExporters(t *testing.T) {
	obs := config.Observability{
		EnableTracing:   true,
		TraceExporter:   "zipkin",
		EnableMetrics:   true,
		MetricsExporter: "statsd",
	}
	mgr, err := NewManager(fxtest.NewLifecycle(t), config.Config{Observability: obs}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
}

func TestStdoutTracesGoToDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	prev := diagnostics
	diagnostics = &buf
	t.Cleanup(func() { diagnostics = prev })

	obs := config.Observability{ServiceName: "efshop", EnableTracing: true, TraceExporter: "stdout"}
	mgr, err := NewManager(fxtest.NewLifecycle(t), config.Config{Observability: obs}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, mgr.TracingEnabled())

	_, span := mgr.tracer.Tracer("test").Start(context.Background(), "orders.list")
	span.End()
	require.NoError(t, mgr.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "orders.list")
}
