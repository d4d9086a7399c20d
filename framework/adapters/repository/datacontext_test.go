package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataContext_Empty(t *testing.T) {
	dc := NewDataContext[int]()

	assert.NotNil(t, dc.Entities())
	assert.Empty(t, dc.Entities())
	assert.Equal(t, 0, dc.Len())
}

func TestNewDataContext_Seeded(t *testing.T) {
	seed := []Storeable[int]{
		&Car{IDField: 1},
		&User{IDField: 3, Name: "A"},
	}
	dc := NewDataContext(WithEntities(seed...))

	assert.Equal(t, 2, dc.Len())
	assert.Equal(t, seed, dc.Entities())

	// контекст не разделяет массив с исходным срезом
	seed[0] = &Car{IDField: 99}
	assert.Equal(t, 1, dc.Entities()[0].ID())
}

func TestDataContext_EntitiesIsSnapshot(t *testing.T) {
	dc := newSeededContext()

	snapshot := dc.Entities()
	snapshot[0] = nil

	assert.Equal(t, 5, dc.Len())
	assert.NotNil(t, dc.Entities()[0])
}

func TestDataContext_DuplicatesAllowed(t *testing.T) {
	dc := NewDataContext(WithEntities[int](&User{IDField: 3}, &User{IDField: 3}))
	assert.Equal(t, 2, dc.Len())
}

func TestDataContext_MutationPrimitives(t *testing.T) {
	dc := NewDataContext(WithEntities[int](&Car{IDField: 1}, &Car{IDField: 2}, &Car{IDField: 3}))

	dc.mu.Lock()
	dc.removeLocked(1)
	dc.replaceLocked(0, &User{IDField: 10})
	dc.appendLocked(&User{IDField: 11})
	dc.mu.Unlock()

	ids := make([]int, 0)
	for _, e := range dc.Entities() {
		ids = append(ids, e.ID())
	}
	assert.Equal(t, []int{10, 3, 11}, ids)
}

func TestWithEntities_SkipsNil(t *testing.T) {
	var nilUser *User
	dc := NewDataContext(WithEntities[int](nilUser, nil, &User{IDField: 3, Name: "A"}))
	require.Equal(t, 1, dc.Len())

	users := NewInMemoryRepository[int, *User](dc, kindUser)
	found, err := users.FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "A", found.Value().Name)
}
