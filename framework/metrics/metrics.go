// Package metrics предоставляет систему метрик репозиториев на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName имя meter по умолчанию
const InstrumentationName = "github.com/akriventsev/memrepo"

// Metrics сборщик метрик репозиториев
type Metrics struct {
	meter             metric.Meter
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorsTotal       metric.Int64Counter
	entities          metric.Int64UpDownCounter
	eventsTotal       metric.Int64Counter
}

// NewMetrics создает сборщик метрик на глобальном MeterProvider
func NewMetrics() (*Metrics, error) {
	return NewMetricsFromMeter(otel.Meter(InstrumentationName))
}

// NewMetricsFromMeter создает сборщик метрик на переданном meter
func NewMetricsFromMeter(meter metric.Meter) (*Metrics, error) {
	operationsTotal, err := meter.Int64Counter(
		"repository_operations_total",
		metric.WithDescription("Total number of repository operations"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram(
		"repository_operation_duration_seconds",
		metric.WithDescription("Repository operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"repository_errors_total",
		metric.WithDescription("Total number of failed repository operations"),
	)
	if err != nil {
		return nil, err
	}

	entities, err := meter.Int64UpDownCounter(
		"repository_entities",
		metric.WithDescription("Number of entities inserted minus entities deleted"),
	)
	if err != nil {
		return nil, err
	}

	eventsTotal, err := meter.Int64Counter(
		"events_total",
		metric.WithDescription("Total number of change events published"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:             meter,
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		errorsTotal:       errorsTotal,
		entities:          entities,
		eventsTotal:       eventsTotal,
	}, nil
}

// RecordOperation записывает метрику операции репозитория
func (m *Metrics) RecordOperation(ctx context.Context, kind, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}

	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("operation", operation),
		))
	}
}

// AddEntities изменяет счетчик сущностей вида kind на delta
func (m *Metrics) AddEntities(ctx context.Context, kind string, delta int64) {
	m.entities.Add(ctx, delta, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordEvent записывает метрику события
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
}
