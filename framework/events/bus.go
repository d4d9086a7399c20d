// Package events предоставляет реализацию EventBus.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventMiddleware middleware для событий
type EventMiddleware func(ctx context.Context, event Event, next func(ctx context.Context, event Event) error) error

// InMemoryEventBus синхронная шина событий в памяти.
// Обработчики вызываются последовательно в порядке подписки, в горутине издателя.
type InMemoryEventBus struct {
	handlers   map[string][]EventHandler
	middleware []EventMiddleware
	mu         sync.RWMutex
	stopped    bool
}

// NewInMemoryEventBus создает новую шину событий
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers:   make(map[string][]EventHandler),
		middleware: make([]EventMiddleware, 0),
	}
}

// WithMiddleware добавляет middleware к шине
func (b *InMemoryEventBus) WithMiddleware(middleware EventMiddleware) *InMemoryEventBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware)
	return b
}

// Publish публикует событие всем подписчикам его типа и подписчикам AllEvents
func (b *InMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is stopped")
	}
	handlers := make([]EventHandler, 0, len(b.handlers[event.EventType()])+len(b.handlers[AllEvents]))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	if event.EventType() != AllEvents {
		handlers = append(handlers, b.handlers[AllEvents]...)
	}
	middleware := b.middleware
	b.mu.RUnlock()

	next := func(ctx context.Context, event Event) error {
		return deliver(ctx, event, handlers)
	}

	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		prevNext := next
		next = func(ctx context.Context, event Event) error {
			return mw(ctx, event, prevNext)
		}
	}

	return next(ctx, event)
}

// deliver вызывает обработчики по порядку, собирая ошибки всех обработчиков
func deliver(ctx context.Context, event Event, handlers []EventHandler) error {
	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handler %s failed: %w", h.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe подписывается на тип события
func (b *InMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.handlers[eventType] {
		if h == handler {
			return fmt.Errorf("handler already subscribed to event type %s", eventType)
		}
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Unsubscribe отписывается от типа события
func (b *InMemoryEventBus) Unsubscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			b.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("handler not found for event type %s", eventType)
}

// Replay воспроизводит события из истории
func (b *InMemoryEventBus) Replay(ctx context.Context, events []Event) error {
	for _, event := range events {
		if err := b.Publish(ctx, event); err != nil {
			return fmt.Errorf("failed to replay event %s: %w", event.EventID(), err)
		}
	}
	return nil
}

// Shutdown останавливает шину: последующие Publish возвращают ошибку.
// Метод идемпотентен.
func (b *InMemoryEventBus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	return nil
}
