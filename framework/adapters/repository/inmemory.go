package repository

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/akriventsev/memrepo/framework/core"
	"github.com/akriventsev/memrepo/framework/events"
	"github.com/akriventsev/memrepo/framework/metrics"
)

const tracerName = "github.com/akriventsev/memrepo/framework/adapters/repository"

// Имена операций для логов, метрик и span
const (
	opAll    = "all"
	opFind   = "find_by_id"
	opSave   = "save"
	opDelete = "delete"
	opCount  = "count"
	opQuery  = "find"
)

// InMemoryConfig конфигурация для InMemory репозитория
type InMemoryConfig struct {
	// MaxEntities максимальный размер общего контекста (0 = без ограничений).
	// Save новой сущности при достижении лимита вернет core.ErrLimitExceeded,
	// замена существующей разрешена всегда.
	MaxEntities int
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		MaxEntities: 0, // Без ограничений по умолчанию
	}
}

type options struct {
	config    InMemoryConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.EventPublisher
	tracer    trace.Tracer
}

// Option опция репозитория
type Option func(*options)

// WithConfig задает конфигурацию репозитория
func WithConfig(config InMemoryConfig) Option {
	return func(o *options) { o.config = config }
}

// WithLogger задает логгер; по умолчанию логи отбрасываются
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics включает запись метрик операций
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPublisher включает публикацию ChangeEvent после каждой успешной мутации
func WithPublisher(publisher events.EventPublisher) Option {
	return func(o *options) { o.publisher = publisher }
}

// WithTracer задает tracer; по умолчанию используется глобальный TracerProvider
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		config: DefaultInMemoryConfig(),
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// InMemoryRepository[K, T] репозиторий сущностей вида kind поверх общего DataContext.
// Кроме ссылки на контекст состояния нет: ни кэша, ни индексов,
// каждая операция - линейный проход по коллекции.
type InMemoryRepository[K Identity, T Storeable[K]] struct {
	dc   *DataContext[K]
	kind Kind
	opts options
}

var _ Repository[int, Storeable[int]] = (*InMemoryRepository[int, Storeable[int]])(nil)

// NewInMemoryRepository создает репозиторий вида kind, разделяющий dc с другими репозиториями.
// nil dc заменяется новым пустым контекстом, пустой kind означает AnyKind.
func NewInMemoryRepository[K Identity, T Storeable[K]](dc *DataContext[K], kind Kind, opts ...Option) *InMemoryRepository[K, T] {
	if dc == nil {
		dc = NewDataContext[K]()
	}
	if kind == "" {
		kind = AnyKind
	}
	return &InMemoryRepository[K, T]{
		dc:   dc,
		kind: kind,
		opts: newOptions(opts),
	}
}

// NewDetachedRepository создает репозиторий с собственной приватной копией seed.
// Изменения не видны ни одному другому репозиторию.
func NewDetachedRepository[K Identity, T Storeable[K]](kind Kind, seed []T, opts ...Option) *InMemoryRepository[K, T] {
	entities := make([]Storeable[K], 0, len(seed))
	for _, e := range seed {
		entities = append(entities, e)
	}
	return NewInMemoryRepository[K, T](NewDataContext(WithEntities(entities...)), kind, opts...)
}

// Kind возвращает вид сущностей репозитория
func (r *InMemoryRepository[K, T]) Kind() Kind {
	return r.kind
}

// DataContext возвращает контекст данных репозитория
func (r *InMemoryRepository[K, T]) DataContext() *DataContext[K] {
	return r.dc
}

// All возвращает все сущности вида репозитория
func (r *InMemoryRepository[K, T]) All(ctx context.Context) ([]T, error) {
	ctx, span, start := r.begin(ctx, opAll)

	r.dc.mu.RLock()
	result := make([]T, 0)
	for _, e := range r.dc.entities {
		if t, ok := r.project(e); ok {
			result = append(result, t)
		}
	}
	r.dc.mu.RUnlock()

	r.end(ctx, span, opAll, start, nil)
	return result, nil
}

// FindByID находит сущность вида репозитория по идентификатору
func (r *InMemoryRepository[K, T]) FindByID(ctx context.Context, id K) (core.Option[T], error) {
	ctx, span, start := r.begin(ctx, opFind, idAttr(id))

	if isZeroID(id) {
		err := core.InvalidArgument("id", "identity must be set")
		r.end(ctx, span, opFind, start, err)
		return core.None[T](), err
	}

	r.dc.mu.RLock()
	idx, found, err := r.lookupLocked(id)
	r.dc.mu.RUnlock()

	r.end(ctx, span, opFind, start, err)
	if err != nil || idx < 0 {
		return core.None[T](), err
	}
	return core.Some(found), nil
}

// Save вставляет сущность или заменяет на месте существующую с тем же видом и id
func (r *InMemoryRepository[K, T]) Save(ctx context.Context, entity T) error {
	ctx, span, start := r.begin(ctx, opSave)

	if err := r.validate(entity); err != nil {
		r.end(ctx, span, opSave, start, err)
		return err
	}
	id, kind := entity.ID(), entity.Kind()
	span.SetAttributes(idAttr(id), attribute.String("entity.kind", kind.String()))

	r.dc.mu.Lock()
	op, err := r.upsertLocked(id, kind, entity)
	r.dc.mu.Unlock()

	if err == nil {
		if op == ChangeInsert && r.opts.metrics != nil {
			r.opts.metrics.AddEntities(ctx, kind.String(), 1)
		}
		err = r.publish(ctx, newChangeEvent[K](op, kind, id, entity))
	}

	r.end(ctx, span, opSave, start, err)
	return err
}

// Delete удаляет сущность вида репозитория; отсутствие сущности - ошибка
func (r *InMemoryRepository[K, T]) Delete(ctx context.Context, id K) error {
	ctx, span, start := r.begin(ctx, opDelete, idAttr(id))

	if isZeroID(id) {
		err := core.InvalidArgument("id", "identity must be set")
		r.end(ctx, span, opDelete, start, err)
		return err
	}

	r.dc.mu.Lock()
	idx, removed, err := r.lookupLocked(id)
	if err == nil && idx < 0 {
		err = core.Errorf(core.CodeNotFound, "%s %v not found", r.kind, id)
	}
	if err == nil {
		r.dc.removeLocked(idx)
	}
	r.dc.mu.Unlock()

	if err == nil {
		kind := removed.Kind()
		if r.opts.metrics != nil {
			r.opts.metrics.AddEntities(ctx, kind.String(), -1)
		}
		err = r.publish(ctx, newChangeEvent[K](ChangeDelete, kind, id, removed))
	}

	r.end(ctx, span, opDelete, start, err)
	return err
}

// Count возвращает количество сущностей вида репозитория
func (r *InMemoryRepository[K, T]) Count(ctx context.Context) (int, error) {
	ctx, span, start := r.begin(ctx, opCount)

	r.dc.mu.RLock()
	n := 0
	for _, e := range r.dc.entities {
		if _, ok := r.project(e); ok {
			n++
		}
	}
	r.dc.mu.RUnlock()

	r.end(ctx, span, opCount, start, nil)
	return n, nil
}

// Find возвращает сущности вида репозитория, удовлетворяющие предикату
func (r *InMemoryRepository[K, T]) Find(ctx context.Context, predicate func(T) bool) ([]T, error) {
	ctx, span, start := r.begin(ctx, opQuery)

	if predicate == nil {
		err := core.InvalidArgument("predicate", "must not be nil")
		r.end(ctx, span, opQuery, start, err)
		return nil, err
	}

	r.dc.mu.RLock()
	matched := make([]T, 0)
	for _, e := range r.dc.entities {
		if t, ok := r.project(e); ok && predicate(t) {
			matched = append(matched, t)
		}
	}
	r.dc.mu.RUnlock()

	r.end(ctx, span, opQuery, start, nil)
	return matched, nil
}

// project возвращает e как T, если e относится к виду репозитория
func (r *InMemoryRepository[K, T]) project(e Storeable[K]) (T, bool) {
	var zero T
	if e == nil || !r.kind.Matches(e.Kind()) {
		return zero, false
	}
	t, ok := e.(T)
	return t, ok
}

// lookupLocked ищет сущность вида репозитория с идентификатором id.
// idx = -1, если совпадений нет. Вызывается под dc.mu.
func (r *InMemoryRepository[K, T]) lookupLocked(id K) (int, T, error) {
	var found T
	idx, matches := -1, 0
	for i, e := range r.dc.entities {
		t, ok := r.project(e)
		if !ok || !sameID(e.ID(), id) {
			continue
		}
		if matches == 0 {
			idx, found = i, t
		}
		matches++
	}
	if matches > 1 {
		var zero T
		return -1, zero, core.Errorf(core.CodeAmbiguousMatch, "%d entities of kind %s share id %v", matches, r.kind, id)
	}
	return idx, found, nil
}

// upsertLocked заменяет сущность того же вида и id или добавляет новую. Вызывается под dc.mu.
func (r *InMemoryRepository[K, T]) upsertLocked(id K, kind Kind, entity T) (ChangeOperation, error) {
	idx, matches := -1, 0
	for i, e := range r.dc.entities {
		if e == nil || e.Kind() != kind || !sameID(e.ID(), id) {
			continue
		}
		// сущность того же вида и id, но другого типа репозиторий не видит и не перезаписывает
		if _, ok := r.project(e); !ok {
			return "", core.InvalidArgument("entity",
				fmt.Sprintf("%s %v is held by %T, not served by this repository", kind, id, e))
		}
		if matches == 0 {
			idx = i
		}
		matches++
	}

	switch {
	case matches > 1:
		return "", core.Errorf(core.CodeAmbiguousMatch, "%d entities of kind %s share id %v", matches, kind, id)
	case matches == 1:
		r.dc.replaceLocked(idx, entity)
		return ChangeReplace, nil
	}

	if limit := r.opts.config.MaxEntities; limit > 0 && len(r.dc.entities) >= limit {
		return "", core.Errorf(core.CodeLimitExceeded, "repository limit reached: max %d entities", limit)
	}
	r.dc.appendLocked(entity)
	return ChangeInsert, nil
}

// validate проверяет аргумент Save
func (r *InMemoryRepository[K, T]) validate(entity T) error {
	if isNil(entity) {
		return core.InvalidArgument("entity", "must not be nil")
	}
	if isZeroID(entity.ID()) {
		return core.InvalidArgument("entity", "identity must be set")
	}
	if !r.kind.Matches(entity.Kind()) {
		return core.InvalidArgument("entity", fmt.Sprintf("kind %s is not served by %s repository", entity.Kind(), r.kind))
	}
	return nil
}

func (r *InMemoryRepository[K, T]) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs, attribute.String("repository.kind", r.kind.String()))
	ctx, span := r.opts.tracer.Start(ctx, "repository."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (r *InMemoryRepository[K, T]) end(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	duration := time.Since(start)
	if r.opts.metrics != nil {
		r.opts.metrics.RecordOperation(ctx, r.kind.String(), op, duration, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.opts.logger.WarnContext(ctx, "repository operation failed",
			"kind", r.kind, "operation", op, "duration", duration, "error", err)
	} else {
		r.opts.logger.DebugContext(ctx, "repository operation",
			"kind", r.kind, "operation", op, "duration", duration)
	}
	span.End()
}

func idAttr[K Identity](id K) attribute.KeyValue {
	return attribute.String("entity.id", fmt.Sprint(id))
}

// isNil проверяет nil для интерфейсов и указателей, переданных как T
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
