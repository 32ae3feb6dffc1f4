package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/persistence/storetest"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.DocumentStore {
		return NewStore(nil)
	})
}

func TestStore_Open(t *testing.T) {
	s, err := Open(nil)(context.Background())
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestStore_Collections(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "b", "1", core.Document{}))
	require.NoError(t, s.Set(ctx, "a", "1", core.Document{}))
	require.NoError(t, s.Set(ctx, "empty", "1", core.Document{}))
	require.NoError(t, s.Delete(ctx, "empty", "1"))
	assert.Equal(t, []string{"a", "b"}, s.Collections())
}

func TestStore_CustomOperator(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "c", "x", core.Document{"tags": []any{"vip", "late"}}))
	require.NoError(t, s.Set(ctx, "c", "y", core.Document{"tags": []any{"late"}}))

	s.Processor().RegisterFilterFunction("array-contains", func(doc core.Document, field string, args query.FilterValue) (bool, error) {
		list, _ := doc[field].([]any)
		for _, v := range list {
			if query.Equal(v, args) {
				return true, nil
			}
		}
		return false, nil
	})

	dsl := query.NewQueryBuilder().Where("tags").Op("array-contains", "vip").Build()
	cursor, err := s.Query(ctx, "c", &dsl)
	require.NoError(t, err)
	snaps, err := persistence.ReadAll(cursor)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "x", snaps[0].ID)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, err := s.Add(ctx, "c", core.Document{"n": float64(n)})
			assert.NoError(t, err)
			assert.NoError(t, s.Merge(ctx, "c", id, map[string]any{"seen": true}))
			_, err = s.Get(ctx, "c", id)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cursor, err := s.Query(ctx, "c", nil)
	require.NoError(t, err)
	snaps, err := persistence.ReadAll(cursor)
	require.NoError(t, err)
	assert.Len(t, snaps, 50)
}
