package elasticsearch

import (
	"fmt"
	"reflect"
	"time"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/query"
)

// buildSearch renders dsl as a search request body. Conditions are placed in
// a bool filter; documents missing a sort field are excluded. Hits are
// ordered by the sort fields and then by id.
func buildSearch(dsl *query.QueryDSL) (map[string]any, error) {
	var filters []any
	if dsl != nil && dsl.Filters != nil {
		clause, err := filterClause(dsl.Filters)
		if err != nil {
			return nil, err
		}
		filters = append(filters, clause)
	}

	var sorts []any
	tieBreak := "asc"
	if dsl != nil {
		for _, sortCfg := range dsl.Sort {
			if sortCfg.Field == "" {
				return nil, fmt.Errorf("sort field cannot be empty")
			}
			dir := "asc"
			if sortCfg.Direction == query.SortDirectionDesc {
				dir = "desc"
			}
			filters = append(filters, exists(sortCfg.Field))
			sorts = append(sorts, map[string]any{sortCfg.Field: map[string]any{"order": dir}})
			tieBreak = dir
		}
	}
	sorts = append(sorts, map[string]any{idField: map[string]any{"order": tieBreak}})

	size := maxResults
	if limit := dsl.Limit(); limit > 0 && limit < maxResults {
		size = limit
	}

	q := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		q = map[string]any{"bool": map[string]any{"filter": filters}}
	}
	return map[string]any{
		"size":  size,
		"query": q,
		"sort":  sorts,
	}, nil
}

func filterClause(filter *query.QueryFilter) (map[string]any, error) {
	if filter.Condition != nil {
		return conditionClause(filter.Condition)
	}
	if filter.Group == nil {
		return nil, fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
	}
	clauses := make([]any, 0, len(filter.Group.Conditions))
	for i := range filter.Group.Conditions {
		clause, err := filterClause(&filter.Group.Conditions[i])
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	switch filter.Group.Operator {
	case query.LogicalOperatorAnd:
		return map[string]any{"bool": map[string]any{"filter": clauses}}, nil
	case query.LogicalOperatorOr:
		return map[string]any{"bool": map[string]any{"should": clauses, "minimum_should_match": 1}}, nil
	default:
		return nil, fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
	}
}

func exists(field string) map[string]any {
	return map[string]any{"exists": map[string]any{"field": field}}
}

// scalar converts a filter value to something a term or range query accepts.
func scalar(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, string:
		return v, nil
	case time.Time:
		return core.FormatTimestamp(v), nil
	}
	if f, ok := query.ToFloat64(value); ok {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported filter value of type %T", value)
}

// conditionClause translates one comparison. Null is never indexed, so
// equality with null matches documents without a value for the field.
func conditionClause(cond *query.FilterCondition) (map[string]any, error) {
	if cond.Field == "" {
		return nil, fmt.Errorf("field path cannot be empty")
	}
	field := cond.Field

	switch cond.Operator {
	case "in":
		values := reflect.ValueOf(cond.Value)
		if values.Kind() != reflect.Slice {
			return nil, fmt.Errorf("operator in requires a list value")
		}
		terms := make([]any, 0, values.Len())
		for i := 0; i < values.Len(); i++ {
			v, err := scalar(values.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			terms = append(terms, v)
		}
		return map[string]any{"terms": map[string]any{field: terms}}, nil
	case "array-contains":
		v, err := scalar(cond.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"term": map[string]any{field: v}}, nil
	}

	value, err := scalar(cond.Value)
	if err != nil {
		return nil, err
	}
	term := map[string]any{"term": map[string]any{field: value}}

	switch cond.Operator {
	case query.ComparisonOperatorEq:
		if value == nil {
			return map[string]any{"bool": map[string]any{"must_not": []any{exists(field)}}}, nil
		}
		return term, nil
	case query.ComparisonOperatorNeq:
		if value == nil {
			return exists(field), nil
		}
		return map[string]any{"bool": map[string]any{
			"filter":   []any{exists(field)},
			"must_not": []any{term},
		}}, nil
	case query.ComparisonOperatorLt, query.ComparisonOperatorLte,
		query.ComparisonOperatorGt, query.ComparisonOperatorGte:
		if value == nil {
			return map[string]any{"bool": map[string]any{"must_not": []any{map[string]any{"match_all": map[string]any{}}}}}, nil
		}
		return map[string]any{"range": map[string]any{field: map[string]any{string(cond.Operator): value}}}, nil
	default:
		return nil, fmt.Errorf("unsupported comparison operator: %s", cond.Operator)
	}
}
