package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asJSON renders v for comparison independent of Go map types.
func asJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestBuildSearch(t *testing.T) {
	t.Run("no query", func(t *testing.T) {
		body, err := buildSearch(nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"size": 10000,
			"query": {"match_all": {}},
			"sort": [{"docquery__id": {"order": "asc"}}]
		}`, asJSON(t, body))
	})

	t.Run("filters sort and limit", func(t *testing.T) {
		dsl := query.NewQueryBuilder().
			Where("status").Eq("pending").
			Where("amount").Gt(10).
			OrderByDesc("date").
			Limit(3).
			Build()
		body, err := buildSearch(&dsl)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"size": 3,
			"query": {"bool": {"filter": [
				{"bool": {"filter": [
					{"term": {"status": "pending"}},
					{"range": {"amount": {"gt": 10}}}
				]}},
				{"exists": {"field": "date"}}
			]}},
			"sort": [{"date": {"order": "desc"}}, {"docquery__id": {"order": "desc"}}]
		}`, asJSON(t, body))
	})

	t.Run("large limit is capped", func(t *testing.T) {
		dsl := query.NewQueryBuilder().Limit(50000).Build()
		body, err := buildSearch(&dsl)
		require.NoError(t, err)
		assert.Equal(t, maxResults, body["size"])
	})
}

func TestConditionClause(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		cond query.FilterCondition
		want string
	}{
		{"neq", query.FilterCondition{Field: "s", Operator: query.ComparisonOperatorNeq, Value: "x"},
			`{"bool": {"filter": [{"exists": {"field": "s"}}], "must_not": [{"term": {"s": "x"}}]}}`},
		{"eq null", query.FilterCondition{Field: "s", Operator: query.ComparisonOperatorEq, Value: nil},
			`{"bool": {"must_not": [{"exists": {"field": "s"}}]}}`},
		{"timestamp", query.FilterCondition{Field: "at", Operator: query.ComparisonOperatorGte, Value: ts},
			`{"range": {"at": {"gte": "2024-03-01T00:00:00Z"}}}`},
		{"in", query.FilterCondition{Field: "s", Operator: "in", Value: []any{"a", "b"}},
			`{"terms": {"s": ["a", "b"]}}`},
		{"array-contains", query.FilterCondition{Field: "tags", Operator: "array-contains", Value: "vip"},
			`{"term": {"tags": "vip"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conditionClause(&tt.cond)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, asJSON(t, got))
		})
	}

	_, err := conditionClause(&query.FilterCondition{Field: "a", Operator: "regex", Value: "x"})
	assert.Error(t, err)
	_, err = conditionClause(&query.FilterCondition{Field: "a", Operator: query.ComparisonOperatorEq, Value: map[string]any{}})
	assert.Error(t, err)
}

func TestSourceRoundTrip(t *testing.T) {
	b, err := encodeSource(core.Document{"a": 1.0}, "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1, "docquery__id": "x"}`, string(b))

	doc, err := decodeSource(b)
	require.NoError(t, err)
	assert.Equal(t, core.Document{"a": 1.0}, doc)
}

func TestHitSnapshot(t *testing.T) {
	var hit types.Hit
	require.NoError(t, json.Unmarshal([]byte(`{"_index":"c","_id":"raw","_source":{"a":1,"docquery__id":"x"}}`), &hit))
	snap, err := hitSnapshot(hit)
	require.NoError(t, err)
	assert.Equal(t, "x", snap.ID)
	assert.Equal(t, core.Document{"a": 1.0}, snap.Data)
}

func TestErrorHelpers(t *testing.T) {
	notFound := &types.ElasticsearchError{Status: 404, ErrorCause: types.ErrorCause{Type: "index_not_found_exception"}}
	assert.True(t, isNotFound(notFound))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.Equal(t, "index_not_found_exception", errorType(notFound))
	assert.Equal(t, "", errorType(errors.New("boom")))
}

func TestOpen_RequiresAddresses(t *testing.T) {
	_, err := Open(Config{}, nil)(context.Background())
	assert.Error(t, err)
}

// TestStore_Cluster runs against a live cluster when ELASTICSEARCH_URL is set.
func TestStore_Cluster(t *testing.T) {
	url := os.Getenv("ELASTICSEARCH_URL")
	if url == "" {
		t.Skip("ELASTICSEARCH_URL not set")
	}
	ctx := context.Background()
	s, err := Open(Config{Addresses: strings.Split(url, ","), IndexPrefix: "docquery-test-"}, nil)(ctx)
	require.NoError(t, err)
	defer s.Close()

	coll := uuid.New().String()
	require.NoError(t, s.Set(ctx, coll, "b1", core.Document{"status": "pending", "n": 2.0}))
	require.NoError(t, s.Set(ctx, coll, "b2", core.Document{"status": "pending", "n": 1.0}))
	require.NoError(t, s.Merge(ctx, coll, "b1", map[string]any{"guest.name": "Ann"}))
	assert.ErrorIs(t, s.Merge(ctx, coll, "ghost", map[string]any{"a": 1.0}), core.ErrDocumentNotFound)

	got, err := s.Get(ctx, coll, "b1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann"}, got["guest"])

	dsl := query.NewQueryBuilder().Where("status").Eq("pending").OrderByAsc("n").Build()
	cursor, err := s.Query(ctx, coll, &dsl)
	require.NoError(t, err)
	snaps, err := persistence.ReadAll(cursor)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "b2", snaps[0].ID)

	require.NoError(t, s.Delete(ctx, coll, "b1"))
	missing, err := s.Get(ctx, coll, "b1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
