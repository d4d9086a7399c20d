// Package memrepo предоставляет типизированные in-memory репозитории
// поверх общего контекста данных.
//
// Пример использования:
//
//	dc := repository.NewDataContext(repository.WithEntities(fixture.Default()...))
//	users := repository.NewInMemoryRepository[int, *fixture.User](dc, fixture.KindUser)
//	all, err := users.All(ctx)
package memrepo

// Version представляет версию модуля
const (
	Version = "1.0.0"
	Major   = 1
	Minor   = 0
	Patch   = 0
)

// Metadata содержит метаданные о модуле
type Metadata struct {
	Name        string
	Version     string
	Description string
	License     string
}

// GetMetadata возвращает метаданные модуля
func GetMetadata() Metadata {
	return Metadata{
		Name:        "memrepo",
		Version:     Version,
		Description: "Typed in-memory repositories over a shared data context",
		License:     "MIT",
	}
}
