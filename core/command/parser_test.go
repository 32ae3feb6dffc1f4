package command

import (
	"testing"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected *Command
	}{
		{
			name:     "read",
			raw:      "read:users:u1",
			expected: &Command{Operation: OperationRead, Collection: "users", DocumentID: "u1"},
		},
		{
			name:     "read keeps special characters in id",
			raw:      "read:users:a b/c?d=e&f#g",
			expected: &Command{Operation: OperationRead, Collection: "users", DocumentID: "a b/c?d=e&f#g"},
		},
		{
			name:     "operation is case-insensitive, collection and id are not",
			raw:      "DELETE:Users:ID1",
			expected: &Command{Operation: OperationDelete, Collection: "Users", DocumentID: "ID1"},
		},
		{
			name:     "read id keeps embedded colons",
			raw:      "read:users:a:b",
			expected: &Command{Operation: OperationRead, Collection: "users", DocumentID: "a:b"},
		},
		{
			name: "write with id",
			raw:  `write:bookings:b1:{"status":"pending"}`,
			expected: &Command{
				Operation: OperationWrite, Collection: "bookings", DocumentID: "b1",
				Data: map[string]any{"status": "pending"},
			},
		},
		{
			name: "write with auto id",
			raw:  `write:bookings::{"n":1}`,
			expected: &Command{
				Operation: OperationWrite, Collection: "bookings",
				Data: map[string]any{"n": 1.0},
			},
		},
		{
			name: "payload may contain colons",
			raw:  `write:events:e1:{"at":"12:30:00","url":"http://x"}`,
			expected: &Command{
				Operation: OperationWrite, Collection: "events", DocumentID: "e1",
				Data: map[string]any{"at": "12:30:00", "url": "http://x"},
			},
		},
		{
			name: "update",
			raw:  `update:bookings:b1:{"status":"confirmed"}`,
			expected: &Command{
				Operation: OperationUpdate, Collection: "bookings", DocumentID: "b1",
				Data: map[string]any{"status": "confirmed"},
			},
		},
		{
			name:     "query with empty object",
			raw:      "query:bookings:{}",
			expected: &Command{Operation: OperationQuery, Collection: "bookings"},
		},
		{
			name:     "query with empty remainder",
			raw:      "query:bookings:",
			expected: &Command{Operation: OperationQuery, Collection: "bookings"},
		},
		{
			name:     "query with blank remainder",
			raw:      "query:bookings:   ",
			expected: &Command{Operation: OperationQuery, Collection: "bookings"},
		},
		{
			name: "query with parameters",
			raw:  `query:bookings:{"filters":[{"field":"status","op":"==","value":"active"}],"limit":5,"order_by":"date","direction":"ascending"}`,
			expected: &Command{
				Operation: OperationQuery, Collection: "bookings",
				Query: &QueryFilterSpec{
					Filters:   []FilterSpec{{Field: "status", Op: "==", Value: "active"}},
					Limit:     5,
					OrderBy:   "date",
					Direction: Ascending,
				},
			},
		},
		{
			name: "query direction defaults to descending",
			raw:  `query:bookings:{"order_by":"date","direction":"sideways","limit":"3"}`,
			expected: &Command{
				Operation: OperationQuery, Collection: "bookings",
				Query:     &QueryFilterSpec{Limit: 3, OrderBy: "date", Direction: Descending},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cmd)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    core.ErrorKind
		message string
	}{
		{"no colon", "read", core.KindMalformedInput, InvalidFormatMessage},
		{"one colon", "read:users", core.KindMalformedInput, InvalidFormatMessage},
		{"empty string", "", core.KindMalformedInput, InvalidFormatMessage},
		{"empty collection", "read::u1", core.KindMalformedInput, InvalidFormatMessage},
		{"unknown operation", "upsert:users:u1", core.KindUnsupportedOperation, "Unsupported operation: upsert"},
		{"unknown operation lower-cased", "LIST:users:", core.KindUnsupportedOperation, "Unsupported operation: list"},
		{"unknown operation empty collection", "FOO::x", core.KindMalformedInput, InvalidFormatMessage},
		{"overlapping update paths", `update:users:u1:{"a":{"x":1},"a.b":2}`, core.KindMalformedInput, "Invalid update data: field paths a and a.b overlap"},
		{"read without id", "read:users:", core.KindMalformedInput, "Missing document ID for read operation"},
		{"delete without id", "delete:users:", core.KindMalformedInput, "Missing document ID for delete operation"},
		{"write without payload", "write:users:u1", core.KindMalformedInput, "Missing data for write operation"},
		{"write with bad json", "write:c:id:{bad}", core.KindMalformedInput, "Invalid JSON in write data"},
		{"write with empty payload", "write:c:id:", core.KindMalformedInput, "Invalid JSON in write data"},
		{"write with array payload", "write:c:id:[1,2]", core.KindMalformedInput, "Invalid JSON in write data"},
		{"update without payload", "update:users:u1", core.KindMalformedInput, "Missing data for update operation"},
		{"update without id", `update:users::{"a":1}`, core.KindMalformedInput, "Missing document ID for update operation"},
		{"update with bad json", "update:users:u1:{nope", core.KindMalformedInput, "Invalid JSON in update data"},
		{"query with bad json", "query:users:{nope", core.KindMalformedInput, "Invalid JSON in query parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.raw)
			assert.Nil(t, cmd)
			require.Error(t, err)
			assert.Equal(t, tt.kind, core.KindOf(err))
			var cerr *core.Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.message, cerr.Message)
		})
	}
}

func TestParse_InvalidQueryParameters(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not an object", "query:c:[1]"},
		{"negative limit", `query:c:{"limit":-1}`},
		{"unknown operator", `query:c:{"filters":[{"field":"a","op":"~","value":1}]}`},
		{"filters of wrong shape", `query:c:{"filters":"a==1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.KindMalformedInput))
			var cerr *core.Error
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, cerr.Message, "Invalid query parameters: ")
		})
	}
}

func TestParse_InactiveFilterWithUnknownOperatorIsIgnored(t *testing.T) {
	cmd, err := Parse(`query:c:{"filters":[{"field":"a","op":"~","value":null}]}`)
	require.NoError(t, err)
	assert.Empty(t, cmd.Query.DSL().Filters)
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations {
		parsed, ok := ParseOperation(op.String())
		assert.True(t, ok)
		assert.Equal(t, op, parsed)
	}
	_, ok := ParseOperation("merge")
	assert.False(t, ok)
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, Ascending, ParseDirection("ASCENDING"))
	assert.Equal(t, Ascending, ParseDirection("ascending"))
	assert.Equal(t, Descending, ParseDirection("DESCENDING"))
	assert.Equal(t, Descending, ParseDirection(""))
	assert.Equal(t, Descending, ParseDirection("asc"))
}

func TestQueryFilterSpec_DSL(t *testing.T) {
	spec := &QueryFilterSpec{
		Filters: []FilterSpec{
			{Field: "a", Op: "==", Value: 1.0},
			{Field: "", Op: "==", Value: 1.0},
			{Field: "b", Op: "", Value: 1.0},
			{Field: "c", Op: "==", Value: nil},
			{Field: "b", Op: ">=", Value: 2.0},
		},
		Limit:     10,
		OrderBy:   "n",
		Direction: Ascending,
	}

	dsl := spec.DSL()
	conds, ok := dsl.Conjunction()
	require.True(t, ok)
	assert.Equal(t, []query.FilterCondition{
		{Field: "a", Operator: query.ComparisonOperatorEq, Value: 1.0},
		{Field: "b", Operator: query.ComparisonOperatorGte, Value: 2.0},
	}, conds)
	assert.Equal(t, []query.SortConfiguration{{Field: "n", Direction: query.SortDirectionAsc}}, dsl.Sort)
	assert.Equal(t, 10, dsl.Limit())

	var nilSpec *QueryFilterSpec
	empty := nilSpec.DSL()
	assert.Nil(t, empty.Filters)
	assert.Empty(t, empty.Sort)
	assert.Equal(t, 0, empty.Limit())

	desc := (&QueryFilterSpec{OrderBy: "n"}).DSL()
	assert.Equal(t, query.SortDirectionDesc, desc.Sort[0].Direction)
}
