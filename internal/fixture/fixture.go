// Package fixture содержит примерные виды сущностей (user, car) и загрузку
// наборов данных из YAML для заполнения DataContext.
package fixture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akriventsev/memrepo/framework/adapters/repository"
)

// Виды сущностей
const (
	KindUser repository.Kind = "user"
	KindCar  repository.Kind = "car"
)

// User пользователь
type User struct {
	UserID int    `yaml:"id"`
	Name   string `yaml:"name"`
}

func (u *User) ID() int               { return u.UserID }
func (u *User) Kind() repository.Kind { return KindUser }

// Car автомобиль
type Car struct {
	CarID          int `yaml:"id"`
	ProductionYear int `yaml:"production_year"`
}

func (c *Car) ID() int               { return c.CarID }
func (c *Car) Kind() repository.Kind { return KindCar }

// document формат файла с набором данных
type document struct {
	Entities []yaml.Node `yaml:"entities"`
}

// Default возвращает канонический набор: машины 1, 2 и пользователи 3, 4, 5
func Default() []repository.Storeable[int] {
	return []repository.Storeable[int]{
		&Car{CarID: 1, ProductionYear: 1900},
		&Car{CarID: 2, ProductionYear: 2000},
		&User{UserID: 3, Name: "A"},
		&User{UserID: 4, Name: "B"},
		&User{UserID: 5, Name: "C"},
	}
}

// Load читает набор данных из файла
func Load(path string) ([]repository.Storeable[int], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	entities, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entities, nil
}

// Decode читает набор данных в порядке документа. Пустой ввод - пустой набор.
func Decode(r io.Reader) ([]repository.Storeable[int], error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	entities := make([]repository.Storeable[int], 0, len(doc.Entities))
	for i := range doc.Entities {
		e, err := decodeEntity(&doc.Entities[i])
		if err != nil {
			return nil, fmt.Errorf("entity #%d (line %d): %w", i, doc.Entities[i].Line, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func decodeEntity(node *yaml.Node) (repository.Storeable[int], error) {
	var head struct {
		Kind repository.Kind `yaml:"kind"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}

	var e repository.Storeable[int]
	switch head.Kind {
	case KindUser:
		e = &User{}
	case KindCar:
		e = &Car{}
	case "":
		return nil, errors.New("missing kind")
	default:
		return nil, fmt.Errorf("unknown kind %q", head.Kind)
	}

	if err := node.Decode(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode записывает сущности в формате набора данных
func Encode(w io.Writer, entities []repository.Storeable[int]) error {
	type record struct {
		Kind           repository.Kind `yaml:"kind"`
		ID             int             `yaml:"id"`
		Name           string          `yaml:"name,omitempty"`
		ProductionYear int             `yaml:"production_year,omitempty"`
	}

	records := make([]record, 0, len(entities))
	for _, e := range entities {
		rec := record{Kind: e.Kind(), ID: e.ID()}
		switch v := e.(type) {
		case *User:
			rec.Name = v.Name
		case *Car:
			rec.ProductionYear = v.ProductionYear
		}
		records = append(records, rec)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]record{"entities": records}); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return enc.Close()
}

// RegisterKinds регистрирует виды user, car и AnyKind в фабрике
func RegisterKinds(f *repository.RepositoryFactory[int], opts ...repository.Option) error {
	if err := repository.RegisterKind[int, *User](f, KindUser, opts...); err != nil {
		return err
	}
	if err := repository.RegisterKind[int, *Car](f, KindCar, opts...); err != nil {
		return err
	}
	return repository.RegisterKind[int, repository.Storeable[int]](f, repository.AnyKind, opts...)
}
