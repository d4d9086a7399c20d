package repository

import "sync"

// DataContext владеет единственной упорядоченной коллекцией сущностей,
// общей для всех репозиториев, созданных поверх него.
//
// DataContext не фильтрует и не валидирует данные: вся политика живет в
// репозиториях. Мьютекс защищает коллекцию, когда несколько репозиториев
// используются из разных горутин; каждая операция остается синхронной.
type DataContext[K Identity] struct {
	entities []Storeable[K]
	mu       sync.RWMutex
}

// DataContextOption опция создания DataContext
type DataContextOption[K Identity] func(*DataContext[K])

// WithEntities задает начальное содержимое контекста (срез копируется).
// nil, в том числе типизированный nil-указатель, пропускается.
// Повторы вида и id не проверяются.
func WithEntities[K Identity](entities ...Storeable[K]) DataContextOption[K] {
	return func(dc *DataContext[K]) {
		for _, e := range entities {
			if !isNil(e) {
				dc.entities = append(dc.entities, e)
			}
		}
	}
}

// NewDataContext создает контекст данных; без опций коллекция пуста
func NewDataContext[K Identity](opts ...DataContextOption[K]) *DataContext[K] {
	dc := &DataContext[K]{
		entities: make([]Storeable[K], 0),
	}
	for _, opt := range opts {
		opt(dc)
	}
	return dc
}

// Entities возвращает снимок коллекции в текущем порядке
func (dc *DataContext[K]) Entities() []Storeable[K] {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	out := make([]Storeable[K], len(dc.entities))
	copy(out, dc.entities)
	return out
}

// Len возвращает количество сущностей всех видов
func (dc *DataContext[K]) Len() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.entities)
}

// Следующие методы вызываются под dc.mu.

func (dc *DataContext[K]) appendLocked(e Storeable[K]) {
	dc.entities = append(dc.entities, e)
}

func (dc *DataContext[K]) replaceLocked(i int, e Storeable[K]) {
	dc.entities[i] = e
}

func (dc *DataContext[K]) removeLocked(i int) {
	copy(dc.entities[i:], dc.entities[i+1:])
	dc.entities[len(dc.entities)-1] = nil
	dc.entities = dc.entities[:len(dc.entities)-1]
}
