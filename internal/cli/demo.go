package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/akriventsev/memrepo/framework/core"
	"github.com/akriventsev/memrepo/framework/events"
	"github.com/akriventsev/memrepo/framework/observability"
	"github.com/akriventsev/memrepo/internal/fixture"
)

// NewDemoCommand создает команду demo
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through insert, replace and delete on a shared data set",
		Long: `Run user and car repositories over one data context.

Every change event is printed as it is published, followed by the
resulting data set and the collected operation counters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, rootOpts)
		},
	}
}

func runDemo(cmd *cobra.Command, opts *RootOptions) (err error) {
	ctx := observability.InjectCorrelationID(cmd.Context(), "demo-"+uuid.NewString())
	out := cmd.OutOrStdout()

	a, err := newApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(ctx); err == nil {
			err = closeErr
		}
	}()

	var history []events.Event
	if err := a.bus.Subscribe(events.AllEvents, events.HandlerFunc("demo-printer",
		func(ctx context.Context, event events.Event) error {
			history = append(history, event)
			_, err := fmt.Fprintf(out, "event %s id=%s correlation=%s\n",
				event.EventType(), event.AggregateID(), event.Metadata().CorrelationID())
			return err
		})); err != nil {
		return err
	}

	users, err := a.open(fixture.KindUser)
	if err != nil {
		return err
	}
	cars, err := a.open(fixture.KindCar)
	if err != nil {
		return err
	}

	steps := []struct {
		title string
		run   func() error
	}{
		{"insert user 6", func() error { return users.Save(ctx, &fixture.User{UserID: 6, Name: "D"}) }},
		{"replace user 3", func() error { return users.Save(ctx, &fixture.User{UserID: 3, Name: "AAA"}) }},
		{"delete car 1", func() error { return cars.Delete(ctx, 1) }},
	}
	for _, step := range steps {
		fmt.Fprintf(out, "> %s\n", step.title)
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.title, err)
		}
	}

	// повторное удаление должно вернуть NOT_FOUND
	fmt.Fprintln(out, "> delete car 1 again")
	delErr := cars.Delete(ctx, 1)
	if !errors.Is(delErr, core.ErrNotFound) {
		return fmt.Errorf("delete car 1 again: expected not found, got %v", delErr)
	}
	fmt.Fprintf(out, "rejected: %v\n", delErr)

	fmt.Fprintln(out, "> data set")
	if err := fixture.Encode(out, a.dc.Entities()); err != nil {
		return err
	}

	fmt.Fprintln(out, "> replay")
	if err := replayHistory(ctx, out, history); err != nil {
		return err
	}

	fmt.Fprintln(out, "> counters")
	return printCounters(ctx, out, a)
}

// replayHistory воспроизводит журнал изменений на отдельной шине и печатает число событий по типам
func replayHistory(ctx context.Context, out io.Writer, history []events.Event) error {
	audit := events.NewInMemoryEventBus()
	defer func() { _ = audit.Shutdown(ctx) }()

	counts := map[string]int{}
	if err := audit.Subscribe(events.AllEvents, events.HandlerFunc("demo-audit",
		func(ctx context.Context, event events.Event) error {
			counts[event.EventType()]++
			return nil
		})); err != nil {
		return err
	}
	if err := audit.Replay(ctx, history); err != nil {
		return err
	}

	types := make([]string, 0, len(counts))
	for eventType := range counts {
		types = append(types, eventType)
	}
	sort.Strings(types)
	fmt.Fprintf(out, "replayed %d events\n", len(history))
	for _, eventType := range types {
		fmt.Fprintf(out, "%s %d\n", eventType, counts[eventType])
	}
	return nil
}

// printCounters печатает суммы счетчиков метрик в порядке имен
func printCounters(ctx context.Context, out io.Writer, a *app) error {
	var rm metricdata.ResourceMetrics
	if err := a.metrics.Reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s %d\n", name, totals[name])
	}
	return nil
}
