package query

import (
	"context"
	"errors"
	"testing"

	"github.com/asaidimu/go-docquery/core"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func snapshotIDs(snaps []core.Snapshot) []string {
	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, s.ID)
	}
	return ids
}

func bookings() []core.Snapshot {
	return []core.Snapshot{
		{ID: "b1", Data: core.Document{"status": "active", "amount": 100.0, "guest": map[string]any{"name": "Ann"}}},
		{ID: "b2", Data: core.Document{"status": "cancelled", "amount": 50.0}},
		{ID: "b3", Data: core.Document{"status": "active", "amount": 75.0}},
		{ID: "b4", Data: core.Document{"status": "active"}},
		{ID: "b5", Data: core.Document{"status": "active", "amount": "n/a"}},
	}
}

func TestNewDataProcessor(t *testing.T) {
	p := NewDataProcessor(nil)
	assert.NotNil(t, p)
	assert.NotNil(t, p.goFilterFunctions)
	assert.NotNil(t, p.logger)

	p = NewDataProcessor(zap.NewNop())
	assert.NotNil(t, p)
}

func TestDataProcessor_RegisterFilterFunction(t *testing.T) {
	p := NewDataProcessor(nil)
	fn := func(doc core.Document, field string, args FilterValue) (bool, error) { return true, nil }
	p.RegisterFilterFunction("customOp", fn)
	assert.Contains(t, p.goFilterFunctions, ComparisonOperator("customOp"))

	p.RegisterFilterFunctions(map[ComparisonOperator]PredicateFunction{"op1": fn, "op2": fn})
	assert.Contains(t, p.goFilterFunctions, ComparisonOperator("op1"))
	assert.Contains(t, p.goFilterFunctions, ComparisonOperator("op2"))
}

func TestDataProcessor_Match(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	doc := core.Document{"status": "active", "amount": 100.0, "guest": map[string]any{"name": "Ann"}, "note": nil}

	tests := []struct {
		name     string
		filter   *QueryFilter
		expected bool
	}{
		{"nil filter", nil, true},
		{"eq match", NewQueryBuilder().Where("status").Eq("active").Build().Filters, true},
		{"eq mismatch", NewQueryBuilder().Where("status").Eq("cancelled").Build().Filters, false},
		{"numeric eq across types", NewQueryBuilder().Where("amount").Eq(100).Build().Filters, true},
		{"nested path", NewQueryBuilder().Where("guest.name").Eq("Ann").Build().Filters, true},
		{"gt", NewQueryBuilder().Where("amount").Gt(99).Build().Filters, true},
		{"lte boundary", NewQueryBuilder().Where("amount").Lte(100).Build().Filters, true},
		{"lt fails", NewQueryBuilder().Where("amount").Lt(100).Build().Filters, false},
		{"cross type ordering never matches", NewQueryBuilder().Where("amount").Gt("a").Build().Filters, false},
		{"missing field never matches eq", NewQueryBuilder().Where("missing").Eq(nil).Build().Filters, false},
		{"missing field never matches neq", NewQueryBuilder().Where("missing").Neq("x").Build().Filters, false},
		{"null field never matches neq", NewQueryBuilder().Where("note").Neq("x").Build().Filters, false},
		{"null field matches eq nil", NewQueryBuilder().Where("note").Eq(nil).Build().Filters, true},
		{"and group", NewQueryBuilder().Where("status").Eq("active").Where("amount").Gte(50).Build().Filters, true},
		{
			"or group",
			NewQueryBuilder().WhereGroup(LogicalOperatorOr).Where("status").Eq("x").Where("amount").Gt(1).End().Build().Filters,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := p.Match(ctx, tt.filter, doc)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestDataProcessor_MatchCustomOperator(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	filter := NewQueryBuilder().Where("status").Op("prefix", "act").Build().Filters

	_, err := p.Match(ctx, filter, core.Document{"status": "active"})
	assert.Error(t, err)

	p.RegisterFilterFunction("prefix", func(doc core.Document, field string, args FilterValue) (bool, error) {
		v, _ := doc[field].(string)
		return len(v) >= 3 && v[:3] == args.(string), nil
	})
	ok, err := p.Match(ctx, filter, core.Document{"status": "active"})
	assert.NoError(t, err)
	assert.True(t, ok)

	p.RegisterFilterFunction("boom", func(core.Document, string, FilterValue) (bool, error) {
		return false, errors.New("boom")
	})
	_, err = p.Match(ctx, NewQueryBuilder().Where("status").Op("boom", nil).Build().Filters, core.Document{})
	assert.EqualError(t, err, "boom")
}

func TestDataProcessor_Apply(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		dsl      *QueryDSL
		expected []string
	}{
		{"nil dsl orders by id", nil, []string{"b1", "b2", "b3", "b4", "b5"}},
		{"filter only", ptr(NewQueryBuilder().Where("status").Eq("active").Build()), []string{"b1", "b3", "b4", "b5"}},
		{
			"order drops documents missing the field",
			ptr(NewQueryBuilder().Where("status").Eq("active").OrderByAsc("amount").Build()),
			[]string{"b3", "b1", "b5"},
		},
		{
			"descending with limit",
			ptr(NewQueryBuilder().OrderByDesc("amount").Limit(2).Build()),
			[]string{"b5", "b1"},
		},
		{"limit without order", ptr(NewQueryBuilder().Limit(2).Build()), []string{"b1", "b2"}},
		{"no match", ptr(NewQueryBuilder().Where("status").Eq("pending").Build()), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := bookings()
			out, err := p.Apply(ctx, input, tt.dsl)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, snapshotIDs(out))
			assert.Equal(t, "b1", input[0].ID, "input must not be reordered")
		})
	}
}

func TestDataProcessor_ApplyTieBreak(t *testing.T) {
	p := NewDataProcessor(nil)
	snaps := []core.Snapshot{
		{ID: "a", Data: core.Document{"rank": 1}},
		{ID: "c", Data: core.Document{"rank": 1}},
		{ID: "b", Data: core.Document{"rank": 1}},
	}

	out, err := p.Apply(context.Background(), snaps, ptr(NewQueryBuilder().OrderByAsc("rank").Build()))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, snapshotIDs(out))

	out, err = p.Apply(context.Background(), snaps, ptr(NewQueryBuilder().OrderByDesc("rank").Build()))
	assert.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, snapshotIDs(out))
}

func TestDataProcessor_ApplyCancelled(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Apply(ctx, bookings(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func ptr(dsl QueryDSL) *QueryDSL { return &dsl }
