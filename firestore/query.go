package firestore

import (
	"fmt"

	fsapi "cloud.google.com/go/firestore"
	"github.com/asaidimu/go-docquery/core/query"
)

var comparisonOperators = map[query.ComparisonOperator]string{
	query.ComparisonOperatorEq:  "==",
	query.ComparisonOperatorNeq: "!=",
	query.ComparisonOperatorLt:  "<",
	query.ComparisonOperatorLte: "<=",
	query.ComparisonOperatorGt:  ">",
	query.ComparisonOperatorGte: ">=",
}

// nativeOperators are Firestore operators passed through unchanged when used
// as custom filter operators.
var nativeOperators = map[query.ComparisonOperator]struct{}{
	"array-contains":     {},
	"array-contains-any": {},
	"in":                 {},
	"not-in":             {},
}

// firestoreOperator maps a DSL operator to its Firestore spelling.
func firestoreOperator(op query.ComparisonOperator) (string, error) {
	if s, ok := comparisonOperators[op]; ok {
		return s, nil
	}
	if _, ok := nativeOperators[op]; ok {
		return string(op), nil
	}
	return "", fmt.Errorf("unsupported comparison operator: %s", op)
}

// buildQuery applies dsl to base. Conjunctions use chained Where calls;
// anything containing an OR is sent as a composite entity filter.
func buildQuery(base fsapi.Query, dsl *query.QueryDSL) (fsapi.Query, error) {
	q := base
	if dsl == nil {
		return q, nil
	}
	if dsl.Filters != nil {
		if conditions, ok := dsl.Conjunction(); ok {
			for _, cond := range conditions {
				op, err := firestoreOperator(cond.Operator)
				if err != nil {
					return q, err
				}
				q = q.Where(cond.Field, op, cond.Value)
			}
		} else {
			filter, err := entityFilter(dsl.Filters)
			if err != nil {
				return q, err
			}
			q = q.WhereEntity(filter)
		}
	}
	for _, sortCfg := range dsl.Sort {
		dir := fsapi.Asc
		if sortCfg.Direction == query.SortDirectionDesc {
			dir = fsapi.Desc
		}
		q = q.OrderBy(sortCfg.Field, dir)
	}
	if limit := dsl.Limit(); limit > 0 {
		q = q.Limit(limit)
	}
	return q, nil
}

// entityFilter converts a filter tree into Firestore's composite filters.
func entityFilter(filter *query.QueryFilter) (fsapi.EntityFilter, error) {
	if filter.Condition != nil {
		op, err := firestoreOperator(filter.Condition.Operator)
		if err != nil {
			return nil, err
		}
		return fsapi.PropertyFilter{
			Path:     filter.Condition.Field,
			Operator: op,
			Value:    filter.Condition.Value,
		}, nil
	}
	if filter.Group == nil {
		return nil, fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
	}
	children := make([]fsapi.EntityFilter, 0, len(filter.Group.Conditions))
	for i := range filter.Group.Conditions {
		child, err := entityFilter(&filter.Group.Conditions[i])
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	switch filter.Group.Operator {
	case query.LogicalOperatorAnd:
		return fsapi.AndFilter{Filters: children}, nil
	case query.LogicalOperatorOr:
		return fsapi.OrFilter{Filters: children}, nil
	default:
		return nil, fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
	}
}
