package repository

import (
	"fmt"
	"slices"
	"sync"

	"github.com/akriventsev/memrepo/framework/core"
)

// RepositoryFactory реестр конструкторов репозиториев, ключ - вид сущности.
// Позволяет получить типизированный репозиторий по Kind без reflection.
type RepositoryFactory[K Identity] struct {
	creators map[Kind]func(dc *DataContext[K]) any
	mu       sync.RWMutex
}

// NewRepositoryFactory создает пустую фабрику
func NewRepositoryFactory[K Identity]() *RepositoryFactory[K] {
	return &RepositoryFactory[K]{
		creators: make(map[Kind]func(dc *DataContext[K]) any),
	}
}

// RegisterKind регистрирует вид kind с типом сущности T и опциями создаваемых репозиториев
func RegisterKind[K Identity, T Storeable[K]](f *RepositoryFactory[K], kind Kind, opts ...Option) error {
	if kind == "" {
		return core.InvalidArgument("kind", "cannot be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.creators[kind]; exists {
		return core.Errorf(core.CodeAlreadyExists, "kind %s already registered", kind)
	}

	f.creators[kind] = func(dc *DataContext[K]) any {
		return NewInMemoryRepository[K, T](dc, kind, opts...)
	}
	return nil
}

// CreateRepository создает репозиторий зарегистрированного вида поверх dc
func CreateRepository[K Identity, T Storeable[K]](f *RepositoryFactory[K], dc *DataContext[K], kind Kind) (*InMemoryRepository[K, T], error) {
	f.mu.RLock()
	creator, exists := f.creators[kind]
	f.mu.RUnlock()

	if !exists {
		return nil, core.Errorf(core.CodeNotFound, "unknown repository kind: %s", kind)
	}

	typed, ok := creator(dc).(*InMemoryRepository[K, T])
	if !ok {
		var zero T
		return nil, core.InvalidArgument("kind", fmt.Sprintf("kind %s is not registered for %T", kind, zero))
	}

	return typed, nil
}

// Kinds возвращает зарегистрированные виды в отсортированном порядке
func (f *RepositoryFactory[K]) Kinds() []Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]Kind, 0, len(f.creators))
	for kind := range f.creators {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}
