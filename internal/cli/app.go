package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/akriventsev/memrepo"
	"github.com/akriventsev/memrepo/framework/adapters/repository"
	"github.com/akriventsev/memrepo/framework/core"
	"github.com/akriventsev/memrepo/framework/events"
	"github.com/akriventsev/memrepo/framework/metrics"
	"github.com/akriventsev/memrepo/framework/observability"
	"github.com/akriventsev/memrepo/internal/fixture"
)

// app окружение одного запуска команды: набор данных, фабрика репозиториев,
// шина событий изменений и телеметрия
type app struct {
	logger  *slog.Logger
	dc      *repository.DataContext[int]
	factory *repository.RepositoryFactory[int]
	bus     *events.InMemoryEventBus
	metrics *metrics.Setup
	tracing *observability.TracingManager
}

func newApp(opts *RootOptions, stderr io.Writer) (*app, error) {
	envs, err := readEnvs()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: envs.LogLevel}))

	entities := fixture.Default()
	if opts.Fixture != "" {
		entities, err = fixture.Load(opts.Fixture)
		if err != nil {
			return nil, err
		}
	}

	a := &app{
		logger:  logger,
		dc:      repository.NewDataContext(repository.WithEntities(entities...)),
		factory: repository.NewRepositoryFactory[int](),
		bus:     events.NewInMemoryEventBus(),
	}

	a.metrics, err = metrics.SetupMetrics(metrics.DefaultMetricsConfig())
	if err != nil {
		return nil, fmt.Errorf("setup metrics: %w", err)
	}
	m, err := metrics.NewMetricsFromMeter(a.metrics.Provider.Meter(metrics.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	tracingConfig := observability.DefaultTracingConfig()
	tracingConfig.Enabled = opts.Trace || envs.Trace
	tracingConfig.ServiceVersion = memrepo.Version
	tracingConfig.Writer = stderr
	a.tracing, err = observability.NewTracingManager(tracingConfig)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	repoOpts := []repository.Option{
		repository.WithConfig(repository.InMemoryConfig{MaxEntities: envs.MaxEntities}),
		repository.WithLogger(logger),
		repository.WithMetrics(m),
		repository.WithPublisher(a.bus),
		repository.WithTracer(a.tracing.Tracer()),
	}

	if err := fixture.RegisterKinds(a.factory, repoOpts...); err != nil {
		return nil, err
	}

	logger.Debug("data set loaded", "entities", a.dc.Len(), "fixture", opts.Fixture)
	return a, nil
}

// close останавливает шину и сбрасывает телеметрию
func (a *app) close(ctx context.Context) error {
	var errs []error
	errs = append(errs, a.bus.Shutdown(ctx))
	errs = append(errs, a.tracing.Stop(ctx))
	errs = append(errs, metrics.ShutdownMetrics(ctx, a.metrics))
	return errors.Join(errs...)
}

// entityRepo репозиторий с сущностями, приведенными к repository.Storeable[int]
type entityRepo interface {
	All(ctx context.Context) ([]repository.Storeable[int], error)
	FindByID(ctx context.Context, id int) (core.Option[repository.Storeable[int]], error)
	Save(ctx context.Context, entity repository.Storeable[int]) error
	Delete(ctx context.Context, id int) error
}

// open возвращает репозиторий вида kind из фабрики
func (a *app) open(kind repository.Kind) (entityRepo, error) {
	switch kind {
	case fixture.KindUser:
		return openAs[*fixture.User](a, kind)
	case fixture.KindCar:
		return openAs[*fixture.Car](a, kind)
	default:
		return openAs[repository.Storeable[int]](a, kind)
	}
}

func openAs[T repository.Storeable[int]](a *app, kind repository.Kind) (entityRepo, error) {
	repo, err := repository.CreateRepository[int, T](a.factory, a.dc, kind)
	if err != nil {
		return nil, err
	}
	return &erased[T]{repo: repo}, nil
}

type erased[T repository.Storeable[int]] struct {
	repo *repository.InMemoryRepository[int, T]
}

func (e *erased[T]) All(ctx context.Context) ([]repository.Storeable[int], error) {
	items, err := e.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Storeable[int], 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out, nil
}

func (e *erased[T]) FindByID(ctx context.Context, id int) (core.Option[repository.Storeable[int]], error) {
	found, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return core.None[repository.Storeable[int]](), err
	}
	if item, ok := found.Get(); ok {
		return core.Some[repository.Storeable[int]](item), nil
	}
	return core.None[repository.Storeable[int]](), nil
}

func (e *erased[T]) Save(ctx context.Context, entity repository.Storeable[int]) error {
	typed, ok := entity.(T)
	if !ok {
		return core.InvalidArgument("item", fmt.Sprintf("%T is not served by %s repository", entity, e.repo.Kind()))
	}
	return e.repo.Save(ctx, typed)
}

func (e *erased[T]) Delete(ctx context.Context, id int) error {
	return e.repo.Delete(ctx, id)
}

// annotate добавляет имя команды к сообщению FrameworkError, код сохраняется
func annotate(command string, err error) error {
	if fe, ok := err.(*core.FrameworkError); ok {
		return fe.WithContext(command)
	}
	return err
}
