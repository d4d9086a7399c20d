package repository

import (
	"context"
	"fmt"

	"github.com/akriventsev/memrepo/framework/events"
	"github.com/akriventsev/memrepo/framework/observability"
)

// ChangeOperation тип изменения общей коллекции
type ChangeOperation string

const (
	ChangeInsert  ChangeOperation = "insert"
	ChangeReplace ChangeOperation = "replace"
	ChangeDelete  ChangeOperation = "delete"
)

// ChangeEvent событие изменения, публикуемое репозиторием после успешной мутации
type ChangeEvent struct {
	*events.BaseEvent
	Operation  ChangeOperation
	EntityKind Kind

	// Entity сохраненная (insert, replace) или удаленная (delete) сущность
	Entity any
}

// ChangeEventType возвращает тип события для вида и операции: repository.<kind>.<operation>
func ChangeEventType(kind Kind, op ChangeOperation) string {
	return fmt.Sprintf("repository.%s.%s", kind, op)
}

func newChangeEvent[K Identity](op ChangeOperation, kind Kind, id K, entity Storeable[K]) *ChangeEvent {
	return &ChangeEvent{
		BaseEvent:  events.NewBaseEvent(ChangeEventType(kind, op), fmt.Sprint(id)),
		Operation:  op,
		EntityKind: kind,
		Entity:     entity,
	}
}

// publish публикует событие синхронно, correlation ID берется из ctx.
// Мутация уже применена и не откатывается: ошибка издателя логируется
// и возвращается вызывающему.
func (r *InMemoryRepository[K, T]) publish(ctx context.Context, event *ChangeEvent) error {
	if r.opts.publisher == nil {
		return nil
	}

	if correlationID := observability.ExtractCorrelationID(ctx); correlationID != "" {
		event.WithCorrelationID(correlationID)
	}

	err := r.opts.publisher.Publish(ctx, event)
	if r.opts.metrics != nil {
		r.opts.metrics.RecordEvent(ctx, event.EventType())
	}
	if err != nil {
		r.opts.logger.ErrorContext(ctx, "failed to publish change event",
			"event", event.EventType(), "id", event.AggregateID(), "error", err)
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	return nil
}
