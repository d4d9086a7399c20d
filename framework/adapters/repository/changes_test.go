package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/akriventsev/memrepo/framework/core"
	"github.com/akriventsev/memrepo/framework/events"
	"github.com/akriventsev/memrepo/framework/metrics"
	"github.com/akriventsev/memrepo/framework/observability"
)

// recorder собирает ChangeEvent из шины
type recorder struct {
	changes []*ChangeEvent
}

func (r *recorder) Handle(ctx context.Context, event events.Event) error {
	if change, ok := event.(*ChangeEvent); ok {
		r.changes = append(r.changes, change)
	}
	return nil
}

func (r *recorder) EventType() string { return events.AllEvents }

func newObservedUsers(t *testing.T) (*InMemoryRepository[int, *User], *DataContext[int], *recorder) {
	t.Helper()
	bus := events.NewInMemoryEventBus()
	rec := &recorder{}
	require.NoError(t, bus.Subscribe(events.AllEvents, rec))

	dc := newSeededContext()
	return NewInMemoryRepository[int, *User](dc, kindUser, WithPublisher(bus)), dc, rec
}

func TestChangeEvents_Save(t *testing.T) {
	users, _, rec := newObservedUsers(t)
	ctx := context.Background()

	inserted := &User{IDField: 6, Name: "D"}
	replaced := &User{IDField: 3, Name: "AAA"}
	require.NoError(t, users.Save(ctx, inserted))
	require.NoError(t, users.Save(ctx, replaced))

	require.Len(t, rec.changes, 2)

	assert.Equal(t, ChangeInsert, rec.changes[0].Operation)
	assert.Equal(t, "repository.user.insert", rec.changes[0].EventType())
	assert.Equal(t, "6", rec.changes[0].AggregateID())
	assert.Equal(t, kindUser, rec.changes[0].EntityKind)
	assert.Same(t, inserted, rec.changes[0].Entity)

	assert.Equal(t, ChangeReplace, rec.changes[1].Operation)
	assert.Equal(t, "repository.user.replace", rec.changes[1].EventType())
	assert.Same(t, replaced, rec.changes[1].Entity)
}

func TestChangeEvents_Delete(t *testing.T) {
	users, _, rec := newObservedUsers(t)

	require.NoError(t, users.Delete(context.Background(), 4))

	require.Len(t, rec.changes, 1)
	assert.Equal(t, ChangeDelete, rec.changes[0].Operation)
	assert.Equal(t, "4", rec.changes[0].AggregateID())
	assert.Equal(t, "B", rec.changes[0].Entity.(*User).Name)
}

func TestChangeEvents_NoneOnFailure(t *testing.T) {
	users, _, rec := newObservedUsers(t)
	ctx := context.Background()

	assert.Error(t, users.Save(ctx, nil))
	assert.Error(t, users.Delete(ctx, notExistingID))
	assert.Error(t, users.Delete(ctx, 0))
	_, _ = users.All(ctx)
	_, _ = users.FindByID(ctx, 3)

	assert.Empty(t, rec.changes)
}

func TestChangeEvents_CorrelationID(t *testing.T) {
	users, _, rec := newObservedUsers(t)
	ctx := observability.InjectCorrelationID(context.Background(), "req-1")

	require.NoError(t, users.Save(ctx, &User{IDField: 6, Name: "D"}))
	require.NoError(t, users.Save(context.Background(), &User{IDField: 7, Name: "E"}))

	require.Len(t, rec.changes, 2)
	assert.Equal(t, "req-1", rec.changes[0].Metadata().CorrelationID())
	assert.Empty(t, rec.changes[1].Metadata().CorrelationID())
}

func TestChangeEvents_SubscribeByType(t *testing.T) {
	bus := events.NewInMemoryEventBus()
	var deleted []string
	require.NoError(t, bus.Subscribe(ChangeEventType(kindCar, ChangeDelete),
		events.HandlerFunc("car-deletes", func(ctx context.Context, event events.Event) error {
			deleted = append(deleted, event.AggregateID())
			return nil
		})))

	dc := newSeededContext()
	cars := NewInMemoryRepository[int, *Car](dc, kindCar, WithPublisher(bus))
	users := NewInMemoryRepository[int, *User](dc, kindUser, WithPublisher(bus))
	ctx := context.Background()

	require.NoError(t, users.Delete(ctx, 3))
	require.NoError(t, cars.Delete(ctx, 1))
	require.NoError(t, cars.Save(ctx, &Car{IDField: 8}))

	assert.Equal(t, []string{"1"}, deleted)
}

func TestChangeEvents_PublisherFailure(t *testing.T) {
	bus := events.NewInMemoryEventBus()
	require.NoError(t, bus.Subscribe(events.AllEvents,
		events.HandlerFunc("failing", func(ctx context.Context, event events.Event) error {
			return errors.New("downstream unavailable")
		})))

	dc := newSeededContext()
	users := NewInMemoryRepository[int, *User](dc, kindUser, WithPublisher(bus))

	err := users.Save(context.Background(), &User{IDField: 6, Name: "D"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository.user.insert")

	// мутация не откатывается
	assert.Equal(t, 6, dc.Len())
}

func TestInMemoryRepository_Tracing(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	users := NewInMemoryRepository[int, *User](newSeededContext(), kindUser,
		WithTracer(provider.Tracer("test")))
	ctx := context.Background()

	_, _ = users.All(ctx)
	require.NoError(t, users.Save(ctx, &User{IDField: 6, Name: "D"}))
	require.Error(t, users.Delete(ctx, notExistingID))

	ended := spans.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "repository.all", ended[0].Name())
	assert.Equal(t, "repository.save", ended[1].Name())
	assert.Equal(t, codes.Unset, ended[1].Status().Code)
	assert.Equal(t, "repository.delete", ended[2].Name())
	assert.Equal(t, codes.Error, ended[2].Status().Code)
}

func TestInMemoryRepository_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := metrics.NewMetricsFromMeter(provider.Meter("test"))
	require.NoError(t, err)

	users := NewInMemoryRepository[int, *User](newSeededContext(), kindUser, WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, users.Save(ctx, &User{IDField: 6, Name: "D"}))
	require.NoError(t, users.Delete(ctx, 3))
	assert.ErrorIs(t, users.Delete(ctx, 3), core.ErrNotFound)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[metric.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(3), totals["repository_operations_total"])
	assert.Equal(t, int64(1), totals["repository_errors_total"])
	// +1 вставка, -1 удаление
	assert.Equal(t, int64(0), totals["repository_entities"])
}

func TestChangeEvent_OccurredAt(t *testing.T) {
	event := newChangeEvent[int](ChangeInsert, kindUser, 6, &User{IDField: 6})
	assert.WithinDuration(t, time.Now(), event.OccurredAt(), time.Second)
}
