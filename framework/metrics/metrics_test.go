package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetricsFromMeter(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// int64Sum суммирует точки счетчика name, у которых есть все атрибуты attrs
func int64Sum(rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if hasAttrs(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAttrs(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}

func TestMetrics_RecordOperation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOperation(ctx, "user", "save", time.Millisecond, nil)
	m.RecordOperation(ctx, "user", "save", time.Millisecond, nil)
	m.RecordOperation(ctx, "user", "delete", time.Millisecond, errors.New("not found"))

	rm := collect(t, reader)
	assert.Equal(t, int64(3), int64Sum(rm, "repository_operations_total"))
	assert.Equal(t, int64(2), int64Sum(rm, "repository_operations_total",
		attribute.String("operation", "save"), attribute.Bool("success", true)))
	assert.Equal(t, int64(1), int64Sum(rm, "repository_errors_total",
		attribute.String("kind", "user"), attribute.String("operation", "delete")))
}

func TestMetrics_AddEntities(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.AddEntities(ctx, "car", 2)
	m.AddEntities(ctx, "car", -1)
	m.AddEntities(ctx, "user", 3)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), int64Sum(rm, "repository_entities", attribute.String("kind", "car")))
	assert.Equal(t, int64(3), int64Sum(rm, "repository_entities", attribute.String("kind", "user")))
}

func TestMetrics_RecordEvent(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordEvent(context.Background(), "repository.user.insert")

	rm := collect(t, reader)
	assert.Equal(t, int64(1), int64Sum(rm, "events_total", attribute.String("event", "repository.user.insert")))
}

func TestSetupMetrics_Manual(t *testing.T) {
	setup, err := SetupMetrics(nil)
	require.NoError(t, err)
	defer func() { _ = ShutdownMetrics(context.Background(), setup) }()

	require.NotNil(t, setup.Reader)

	m, err := NewMetrics()
	require.NoError(t, err)
	m.RecordOperation(context.Background(), "user", "find", time.Millisecond, nil)

	rm := collect(t, setup.Reader)
	assert.Equal(t, int64(1), int64Sum(rm, "repository_operations_total"))
}

func TestSetupMetrics_UnknownExporter(t *testing.T) {
	_, err := SetupMetrics(&MetricsConfig{ExporterType: "jaeger"})
	assert.Error(t, err)
}

func TestShutdownMetrics_Nil(t *testing.T) {
	assert.NoError(t, ShutdownMetrics(context.Background(), nil))
}

func TestSetupMetrics_Prometheus(t *testing.T) {
	setup, err := SetupMetrics(&MetricsConfig{
		ExporterType:  ExporterPrometheus,
		ResourceAttrs: map[string]string{"service.name": "memrepo-test"},
	})
	require.NoError(t, err)
	defer func() { _ = ShutdownMetrics(context.Background(), setup) }()

	assert.NotNil(t, setup.Provider)
	assert.Nil(t, setup.Reader)
}
