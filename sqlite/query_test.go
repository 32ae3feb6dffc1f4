package sqlite

import (
	"testing"

	"github.com/asaidimu/go-docquery/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONPath(t *testing.T) {
	tests := []struct {
		field   string
		want    string
		wantErr bool
	}{
		{"status", "$.status", false},
		{"guest.age", "$.guest.age", false},
		{"guest.first name", `$.guest."first name"`, false},
		{`odd"key`, `$."odd\"key"`, false},
		{"", "", true},
		{"a..b", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := jsonPath(tt.field)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateSelectSQL(t *testing.T) {
	g := NewSqliteQuery("documents")

	t.Run("no query lists collection by id", func(t *testing.T) {
		sql, params, err := g.GenerateSelectSQL("bookings", nil)
		require.NoError(t, err)
		assert.Equal(t, `SELECT id, data FROM "documents" WHERE collection = ? ORDER BY id ASC;`, sql)
		assert.Equal(t, []any{"bookings"}, params)
	})

	t.Run("filter sort and limit", func(t *testing.T) {
		dsl := query.NewQueryBuilder().Where("status").Eq("pending").OrderByDesc("date").Limit(5).Build()
		sql, params, err := g.GenerateSelectSQL("bookings", &dsl)
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT id, data FROM "documents" WHERE collection = ? AND `+
				`(json_type(data, ?) IN ('text') AND json_extract(data, ?) = ?) AND `+
				`json_type(data, ?) IS NOT NULL `+
				`ORDER BY json_extract(data, ?) DESC, id DESC LIMIT ?;`,
			sql)
		assert.Equal(t, []any{"bookings", "$.status", "$.status", "pending", "$.date", "$.date", 5}, params)
	})

	t.Run("booleans compare as integers", func(t *testing.T) {
		dsl := query.NewQueryBuilder().Where("paid").Eq(true).Build()
		_, params, err := g.GenerateSelectSQL("c", &dsl)
		require.NoError(t, err)
		assert.Equal(t, []any{"c", "$.paid", "$.paid", 1}, params)
	})

	t.Run("inequality", func(t *testing.T) {
		dsl := query.NewQueryBuilder().Where("n").Neq(3).Build()
		sql, params, err := g.GenerateSelectSQL("c", &dsl)
		require.NoError(t, err)
		assert.Contains(t, sql, `(json_type(data, ?) != 'null' AND NOT (json_type(data, ?) IN ('integer', 'real') AND json_extract(data, ?) = ?))`)
		assert.Equal(t, []any{"c", "$.n", "$.n", "$.n", 3.0}, params)
	})

	t.Run("unsupported operator", func(t *testing.T) {
		dsl := query.NewQueryBuilder().Where("n").Op("array-contains", 3).Build()
		_, _, err := g.GenerateSelectSQL("c", &dsl)
		assert.Error(t, err)
	})
}

func TestCreateTableSQL(t *testing.T) {
	ddl := CreateTableSQL(DefaultOptions())
	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "documents"`)
	assert.Contains(t, ddl, "PRIMARY KEY (collection, id)")

	ddl = CreateTableSQL(&Options{TableName: "docs"})
	assert.Contains(t, ddl, `CREATE TABLE "docs"`)
}

func TestUsesCustomOperators(t *testing.T) {
	std := query.NewQueryBuilder().Where("a").Eq(1).Build()
	custom := query.NewQueryBuilder().Where("a").Eq(1).Where("b").Op("array-contains", 1).Build()
	assert.False(t, usesCustomOperators(nil))
	assert.False(t, usesCustomOperators(&std))
	assert.True(t, usesCustomOperators(&custom))
}
