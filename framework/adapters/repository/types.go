// Package repository предоставляет типизированные in-memory репозитории,
// разделяющие одну общую коллекцию разнородных сущностей (DataContext).
//
// Каждый репозиторий видит только сущности своего вида (Kind): All и FindByID
// фильтруют общую коллекцию по дискриминатору, а Save и Delete изменяют ее
// на месте, так что изменения сразу видны всем репозиториям того же контекста.
package repository

import (
	"cmp"
	"context"

	"github.com/akriventsev/memrepo/framework/core"
)

// Identity упорядочиваемый идентификатор сущности.
// Нулевое значение считается отсутствующим идентификатором.
type Identity interface {
	cmp.Ordered
}

// Kind дискриминатор вида сущности ("user", "car", ...)
type Kind string

// AnyKind выбирает все сущности контекста (общий базовый вид)
const AnyKind Kind = "*"

// Matches проверяет, обслуживает ли селектор k сущности вида other
func (k Kind) Matches(other Kind) bool {
	return k == AnyKind || k == other
}

// String возвращает имя вида
func (k Kind) String() string {
	return string(k)
}

// Storeable интерфейс сущности, которую можно хранить в DataContext
type Storeable[K Identity] interface {
	// ID возвращает идентификатор сущности
	ID() K
	// Kind возвращает вид сущности
	Kind() Kind
}

// Repository интерфейс репозитория сущностей вида T
type Repository[K Identity, T Storeable[K]] interface {
	// All возвращает все сущности вида репозитория в порядке коллекции (никогда nil)
	All(ctx context.Context) ([]T, error)
	// FindByID ищет сущность по идентификатору; отсутствие - не ошибка
	FindByID(ctx context.Context, id K) (core.Option[T], error)
	// Save вставляет сущность или заменяет существующую с тем же видом и id
	Save(ctx context.Context, entity T) error
	// Delete удаляет сущность; отсутствие сущности - ошибка core.ErrNotFound
	Delete(ctx context.Context, id K) error
}

// isZeroID проверяет, что идентификатор не задан
func isZeroID[K Identity](id K) bool {
	var zero K
	return id == zero
}

// sameID сравнивает идентификаторы по значению
func sameID[K Identity](a, b K) bool {
	return cmp.Compare(a, b) == 0
}
