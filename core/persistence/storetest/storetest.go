// Package storetest holds a behavioural test suite shared by DocumentStore
// implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a new, empty store for a single subtest.
type Factory func(t *testing.T) persistence.DocumentStore

// Run exercises every DocumentStore operation against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		doc, err := s.Get(ctx, "nowhere", "x")
		require.NoError(t, err)
		assert.Nil(t, doc)

		require.NoError(t, s.Set(ctx, "c", "a", core.Document{"k": "v"}))
		doc, err = s.Get(ctx, "c", "b")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("set and get", func(t *testing.T) {
		s := newStore(t)
		data := core.Document{
			"status": "pending",
			"amount": 12.5,
			"tags":   []any{"a", "b"},
			"guest":  map[string]any{"name": "Ann", "age": 30.0},
		}
		require.NoError(t, s.Set(ctx, "bookings", "b1", data))

		got, err := s.Get(ctx, "bookings", "b1")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "c", "x", core.Document{"a": 1.0, "b": 2.0}))
		require.NoError(t, s.Set(ctx, "c", "x", core.Document{"c": 3.0}))

		got, err := s.Get(ctx, "c", "x")
		require.NoError(t, err)
		assert.Equal(t, core.Document{"c": 3.0}, got)
	})

	t.Run("stored document is isolated from caller", func(t *testing.T) {
		s := newStore(t)
		data := core.Document{"a": 1.0}
		require.NoError(t, s.Set(ctx, "c", "x", data))
		data["a"] = 2.0

		got, err := s.Get(ctx, "c", "x")
		require.NoError(t, err)
		got["a"] = 3.0

		again, err := s.Get(ctx, "c", "x")
		require.NoError(t, err)
		assert.Equal(t, 1.0, again["a"])
	})

	t.Run("add generates ids", func(t *testing.T) {
		s := newStore(t)
		id1, err := s.Add(ctx, "c", core.Document{"n": 1.0})
		require.NoError(t, err)
		id2, err := s.Add(ctx, "c", core.Document{"n": 2.0})
		require.NoError(t, err)
		assert.NotEmpty(t, id1)
		assert.NotEqual(t, id1, id2)

		got, err := s.Get(ctx, "c", id2)
		require.NoError(t, err)
		assert.Equal(t, core.Document{"n": 2.0}, got)
	})

	t.Run("merge missing", func(t *testing.T) {
		s := newStore(t)
		err := s.Merge(ctx, "c", "ghost", map[string]any{"a": 1.0})
		assert.ErrorIs(t, err, core.ErrDocumentNotFound)

		got, err := s.Get(ctx, "c", "ghost")
		require.NoError(t, err)
		assert.Nil(t, got, "merge must not create the document")
	})

	t.Run("merge patches fields", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "c", "x", core.Document{
			"status": "pending",
			"keep":   true,
			"guest":  map[string]any{"name": "Ann", "age": 30.0},
		}))
		require.NoError(t, s.Merge(ctx, "c", "x", map[string]any{
			"status":    "confirmed",
			"guest.age": 31.0,
			"extra":     []any{1.0},
		}))

		got, err := s.Get(ctx, "c", "x")
		require.NoError(t, err)
		assert.Equal(t, core.Document{
			"status": "confirmed",
			"keep":   true,
			"guest":  map[string]any{"name": "Ann", "age": 31.0},
			"extra":  []any{1.0},
		}, got)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Delete(ctx, "c", "ghost"))
		require.NoError(t, s.Set(ctx, "c", "x", core.Document{"a": 1.0}))
		require.NoError(t, s.Delete(ctx, "c", "x"))

		got, err := s.Get(ctx, "c", "x")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("query missing collection", func(t *testing.T) {
		s := newStore(t)
		snaps := runQuery(t, s, "nowhere", nil)
		assert.Empty(t, snaps)
	})

	t.Run("query conjunction", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "c", map[string]core.Document{
			"d1": {"a": 1.0, "b": 1.0},
			"d2": {"a": 1.0, "b": 2.0},
			"d3": {"a": 2.0, "b": 1.0},
		})
		dsl := query.NewQueryBuilder().Where("a").Eq(1.0).Where("b").Eq(1.0).Build()
		assert.Equal(t, []string{"d1"}, ids(runQuery(t, s, "c", &dsl)))
	})

	t.Run("query lists everything without parameters", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "c", map[string]core.Document{
			"d1": {"a": 1.0}, "d2": {"a": 2.0}, "d3": {"b": 3.0},
		})
		snaps := runQuery(t, s, "c", &query.QueryDSL{})
		assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, ids(snaps))
	})

	t.Run("query order ascending", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "c", map[string]core.Document{
			"x": {"n": 3.0}, "y": {"n": 1.0}, "z": {"n": 2.0},
		})
		dsl := query.NewQueryBuilder().OrderByAsc("n").Build()
		snaps := runQuery(t, s, "c", &dsl)
		assert.Equal(t, []string{"y", "z", "x"}, ids(snaps))
		assert.Equal(t, 1.0, snaps[0].Data["n"])
	})

	t.Run("query order descending with limit", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "c", map[string]core.Document{
			"x": {"n": 3.0}, "y": {"n": 1.0}, "z": {"n": 2.0}, "w": {"other": true},
		})
		dsl := query.NewQueryBuilder().OrderByDesc("n").Limit(2).Build()
		assert.Equal(t, []string{"x", "z"}, ids(runQuery(t, s, "c", &dsl)))
	})

	t.Run("query drops documents missing the order field", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "c", map[string]core.Document{
			"x": {"n": 3.0}, "w": {"other": true},
		})
		dsl := query.NewQueryBuilder().OrderByAsc("n").Build()
		assert.Equal(t, []string{"x"}, ids(runQuery(t, s, "c", &dsl)))
	})

	t.Run("query range and inequality", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "c", map[string]core.Document{
			"a": {"n": 1.0, "s": "active"},
			"b": {"n": 5.0, "s": "cancelled"},
			"c": {"n": 9.0, "s": "active"},
			"d": {"s": "active"},
		})
		dsl := query.NewQueryBuilder().Where("n").Gte(5.0).OrderByAsc("n").Build()
		assert.Equal(t, []string{"b", "c"}, ids(runQuery(t, s, "c", &dsl)))

		dsl = query.NewQueryBuilder().Where("n").Lt(5.0).Build()
		assert.Equal(t, []string{"a"}, ids(runQuery(t, s, "c", &dsl)))

		dsl = query.NewQueryBuilder().Where("s").Neq("cancelled").Where("n").Lte(9.0).OrderByAsc("n").Build()
		assert.Equal(t, []string{"a", "c"}, ids(runQuery(t, s, "c", &dsl)))
	})

	t.Run("query nested field", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "c", map[string]core.Document{
			"a": {"guest": map[string]any{"name": "Ann"}},
			"b": {"guest": map[string]any{"name": "Bob"}},
		})
		dsl := query.NewQueryBuilder().Where("guest.name").Eq("Bob").Build()
		assert.Equal(t, []string{"b"}, ids(runQuery(t, s, "c", &dsl)))
	})
}

func seed(t *testing.T, s persistence.DocumentStore, collection string, docs map[string]core.Document) {
	t.Helper()
	for id, doc := range docs {
		require.NoError(t, s.Set(context.Background(), collection, id, doc))
	}
}

func runQuery(t *testing.T, s persistence.DocumentStore, collection string, dsl *query.QueryDSL) []core.Snapshot {
	t.Helper()
	cursor, err := s.Query(context.Background(), collection, dsl)
	require.NoError(t, err)
	snaps, err := persistence.ReadAll(cursor)
	require.NoError(t, err)
	return snaps
}

func ids(snaps []core.Snapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.ID)
	}
	return out
}
