// Package metrics предоставляет функции для настройки системы метрик.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Типы экспортеров
const (
	ExporterManual     = "manual"
	ExporterPrometheus = "prometheus"
)

// MetricsConfig конфигурация метрик
type MetricsConfig struct {
	ExporterType  string
	ResourceAttrs map[string]string
}

// DefaultMetricsConfig возвращает конфигурацию метрик по умолчанию
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		ExporterType: ExporterManual,
	}
}

// Setup результат настройки метрик
type Setup struct {
	Provider *metric.MeterProvider
	// Reader заполнен только для ExporterManual
	Reader *metric.ManualReader
}

// SetupMetrics настраивает экспорт метрик и устанавливает глобальный MeterProvider
func SetupMetrics(config *MetricsConfig) (*Setup, error) {
	if config == nil {
		config = DefaultMetricsConfig()
	}

	setup := &Setup{}
	var reader metric.Reader

	switch config.ExporterType {
	case ExporterManual, "":
		setup.Reader = metric.NewManualReader()
		reader = setup.Reader
	case ExporterPrometheus:
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		reader = exporter
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", config.ExporterType)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(buildResourceAttributes(config.ResourceAttrs)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	setup.Provider = metric.NewMeterProvider(
		metric.WithReader(reader),
		metric.WithResource(res),
	)

	otel.SetMeterProvider(setup.Provider)

	return setup, nil
}

// buildResourceAttributes строит resource attributes
func buildResourceAttributes(attrs map[string]string) []attribute.KeyValue {
	result := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, attribute.String(k, v))
	}
	return result
}

// ShutdownMetrics корректно завершает работу метрик
func ShutdownMetrics(ctx context.Context, setup *Setup) error {
	if setup == nil || setup.Provider == nil {
		return nil
	}

	return setup.Provider.Shutdown(ctx)
}
