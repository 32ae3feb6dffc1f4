package sqlite

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/query"
)

// SqliteQuery generates SQL against the documents table. Document fields are
// addressed with json_extract, so no per-collection schema is needed.
type SqliteQuery struct {
	table string
}

// NewSqliteQuery returns a generator for the given (unquoted) table name.
func NewSqliteQuery(table string) *SqliteQuery {
	return &SqliteQuery{table: table}
}

// quoteIdentifier safely quotes an identifier, such as a table or column name.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var plainSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// jsonPath converts a dotted field path into a SQLite JSON path such as
// $.guest."first name".
func jsonPath(fieldPath string) (string, error) {
	if fieldPath == "" {
		return "", fmt.Errorf("field path cannot be empty")
	}
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range core.SplitFieldPath(fieldPath) {
		if seg == "" {
			return "", fmt.Errorf("invalid field path %q", fieldPath)
		}
		sb.WriteString(".")
		if plainSegment.MatchString(seg) {
			sb.WriteString(seg)
			continue
		}
		sb.WriteString(`"` + strings.ReplaceAll(seg, `"`, `\"`) + `"`)
	}
	return sb.String(), nil
}

// jsonTypes returns the json_type names a value may be compared against, or
// nil for null.
func jsonTypes(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return []string{"true", "false"}, nil
	case string, time.Time, *time.Time:
		return []string{"text"}, nil
	case map[string]any, core.Document:
		return []string{"object"}, nil
	case []any:
		return []string{"array"}, nil
	default:
		if _, ok := query.ToFloat64(v); ok {
			return []string{"integer", "real"}, nil
		}
		switch reflect.ValueOf(v).Kind() {
		case reflect.Slice, reflect.Array:
			return []string{"array"}, nil
		case reflect.Map:
			return []string{"object"}, nil
		}
		return nil, fmt.Errorf("unsupported filter value of type %T", value)
	}
}

// prepareValueForQuery converts a filter value into the form json_extract
// yields for the stored field.
func (s *SqliteQuery) prepareValueForQuery(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return v, nil
	case time.Time:
		return core.FormatTimestamp(v), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return core.FormatTimestamp(*v), nil
	}
	if f, ok := query.ToFloat64(value); ok {
		return f, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter value to JSON: %w", err)
	}
	return string(encoded), nil
}

// GenerateSelectSQL creates the SELECT for a collection query. Results are
// ordered by the sort fields, then by id; without sort fields by id ascending.
func (s *SqliteQuery) GenerateSelectSQL(collection string, dsl *query.QueryDSL) (string, []any, error) {
	queryParams := []any{collection}
	whereClauses := []string{"collection = ?"}
	var orderByClauses []string

	if dsl != nil && dsl.Filters != nil {
		whereSQL, err := s.buildWhereClause(dsl.Filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
		}
		if whereSQL != "" {
			whereClauses = append(whereClauses, whereSQL)
		}
	}

	tieBreak := "ASC"
	var orderParams []any
	if dsl != nil {
		for _, sortCfg := range dsl.Sort {
			path, err := jsonPath(sortCfg.Field)
			if err != nil {
				return "", nil, fmt.Errorf("sort error: %w", err)
			}
			dir := "ASC"
			if sortCfg.Direction == query.SortDirectionDesc {
				dir = "DESC"
			}
			whereClauses = append(whereClauses, "json_type(data, ?) IS NOT NULL")
			queryParams = append(queryParams, path)
			orderByClauses = append(orderByClauses, "json_extract(data, ?) "+dir)
			orderParams = append(orderParams, path)
			tieBreak = dir
		}
	}
	orderByClauses = append(orderByClauses, "id "+tieBreak)
	queryParams = append(queryParams, orderParams...)

	var sb strings.Builder
	sb.WriteString("SELECT id, data FROM " + quoteIdentifier(s.table))
	sb.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	sb.WriteString(" ORDER BY " + strings.Join(orderByClauses, ", "))
	if limit := dsl.Limit(); limit > 0 {
		sb.WriteString(" LIMIT ?")
		queryParams = append(queryParams, limit)
	}
	return sb.String() + ";", queryParams, nil
}

// buildWhereClause recursively builds the WHERE clause from a query.QueryFilter.
func (s *SqliteQuery) buildWhereClause(filter *query.QueryFilter, params *[]any) (string, error) {
	if filter.Condition != nil {
		return s.buildCondition(filter.Condition, params)
	}
	if filter.Group != nil {
		if filter.Group.Operator == "" {
			return "", fmt.Errorf("logical operator missing in filter group")
		}
		var clauses []string
		for _, cond := range filter.Group.Conditions {
			clause, err := s.buildWhereClause(&cond, params)
			if err != nil {
				return "", err
			}
			if clause != "" {
				clauses = append(clauses, clause)
			}
		}
		if len(clauses) == 0 {
			return "", nil
		}
		op := strings.ToUpper(string(filter.Group.Operator))
		return fmt.Sprintf("(%s)", strings.Join(clauses, " "+op+" ")), nil
	}
	return "", fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
}

// buildCondition translates a single query.FilterCondition into SQL. A
// comparison only matches stored values of the same JSON type as the operand;
// missing fields never match.
func (s *SqliteQuery) buildCondition(cond *query.FilterCondition, params *[]any) (string, error) {
	path, err := jsonPath(cond.Field)
	if err != nil {
		return "", err
	}
	types, err := jsonTypes(cond.Value)
	if err != nil {
		return "", fmt.Errorf("condition field '%s': %w", cond.Field, err)
	}

	if types == nil {
		switch cond.Operator {
		case query.ComparisonOperatorEq:
			*params = append(*params, path)
			return "json_type(data, ?) = 'null'", nil
		case query.ComparisonOperatorNeq:
			*params = append(*params, path)
			return "json_type(data, ?) != 'null'", nil
		case query.ComparisonOperatorLt, query.ComparisonOperatorLte,
			query.ComparisonOperatorGt, query.ComparisonOperatorGte:
			return "1=0", nil
		default:
			return "", fmt.Errorf("unsupported comparison operator for direct SQL: %s", cond.Operator)
		}
	}

	preparedValue, err := s.prepareValueForQuery(cond.Value)
	if err != nil {
		return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
	}

	typeGuard := "json_type(data, ?) IN ('" + strings.Join(types, "', '") + "')"
	compare := func(op string) string {
		*params = append(*params, path, path, preparedValue)
		return fmt.Sprintf("(%s AND json_extract(data, ?) %s ?)", typeGuard, op)
	}

	switch cond.Operator {
	case query.ComparisonOperatorEq:
		return compare("="), nil
	case query.ComparisonOperatorLt:
		return compare("<"), nil
	case query.ComparisonOperatorLte:
		return compare("<="), nil
	case query.ComparisonOperatorGt:
		return compare(">"), nil
	case query.ComparisonOperatorGte:
		return compare(">="), nil
	case query.ComparisonOperatorNeq:
		*params = append(*params, path)
		return "(json_type(data, ?) != 'null' AND NOT " + compare("=") + ")", nil
	default:
		return "", fmt.Errorf("unsupported comparison operator for direct SQL: %s", cond.Operator)
	}
}

// GenerateUpsertSQL creates the statement that stores a whole document.
func (s *SqliteQuery) GenerateUpsertSQL(collection, id string, data string) (string, []any) {
	return fmt.Sprintf(
		"INSERT INTO %s (collection, id, data) VALUES (?, ?, ?) ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data;",
		quoteIdentifier(s.table),
	), []any{collection, id, data}
}

// GenerateGetSQL creates the statement that reads a single document.
func (s *SqliteQuery) GenerateGetSQL(collection, id string) (string, []any) {
	return fmt.Sprintf("SELECT data FROM %s WHERE collection = ? AND id = ?;", quoteIdentifier(s.table)),
		[]any{collection, id}
}

// GenerateDeleteSQL creates the statement that removes a single document.
func (s *SqliteQuery) GenerateDeleteSQL(collection, id string) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE collection = ? AND id = ?;", quoteIdentifier(s.table)),
		[]any{collection, id}
}
