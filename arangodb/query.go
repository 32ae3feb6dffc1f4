package arangodb

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/query"
)

// aqlBuilder accumulates an AQL statement and its bind variables. Field
// names are always bound, never interpolated.
type aqlBuilder struct {
	bindVars map[string]any
	n        int
}

func (b *aqlBuilder) bind(prefix string, value any) string {
	name := fmt.Sprintf("%s%d", prefix, b.n)
	b.n++
	b.bindVars[name] = value
	return "@" + name
}

// attribute returns the AQL accessor for a dotted field path on d.
func (b *aqlBuilder) attribute(fieldPath string) (string, error) {
	if fieldPath == "" {
		return "", fmt.Errorf("field path cannot be empty")
	}
	var sb strings.Builder
	sb.WriteString("d")
	for _, seg := range core.SplitFieldPath(fieldPath) {
		if seg == "" {
			return "", fmt.Errorf("invalid field path %q", fieldPath)
		}
		sb.WriteString("." + b.bind("f", seg))
	}
	return sb.String(), nil
}

// buildQuery generates
//
//	FOR d IN @@collection FILTER ... SORT ... LIMIT ... RETURN d
//
// Results are ordered by the sort fields then by _key; without sort fields
// by _key ascending.
func buildQuery(collection string, dsl *query.QueryDSL) (string, map[string]any, error) {
	b := &aqlBuilder{bindVars: map[string]any{"@collection": collection}}
	parts := []string{"FOR d IN @@collection"}

	if dsl != nil && dsl.Filters != nil {
		expr, err := b.filter(dsl.Filters)
		if err != nil {
			return "", nil, err
		}
		if expr != "" {
			parts = append(parts, "FILTER "+expr)
		}
	}

	var sorts []string
	tieBreak := "ASC"
	if dsl != nil {
		for _, sortCfg := range dsl.Sort {
			attr, err := b.attribute(sortCfg.Field)
			if err != nil {
				return "", nil, fmt.Errorf("sort error: %w", err)
			}
			dir := "ASC"
			if sortCfg.Direction == query.SortDirectionDesc {
				dir = "DESC"
			}
			parts = append(parts, "FILTER "+attr+" != null")
			sorts = append(sorts, attr+" "+dir)
			tieBreak = dir
		}
	}
	sorts = append(sorts, "d._key "+tieBreak)
	parts = append(parts, "SORT "+strings.Join(sorts, ", "))

	if limit := dsl.Limit(); limit > 0 {
		parts = append(parts, "LIMIT "+b.bind("limit", limit))
	}
	parts = append(parts, "RETURN d")
	return strings.Join(parts, " "), b.bindVars, nil
}

func (b *aqlBuilder) filter(filter *query.QueryFilter) (string, error) {
	if filter.Condition != nil {
		return b.condition(filter.Condition)
	}
	if filter.Group == nil {
		return "", fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
	}
	var joiner string
	switch filter.Group.Operator {
	case query.LogicalOperatorAnd:
		joiner = " && "
	case query.LogicalOperatorOr:
		joiner = " || "
	default:
		return "", fmt.Errorf("logical operator missing in filter group")
	}
	var clauses []string
	for i := range filter.Group.Conditions {
		clause, err := b.filter(&filter.Group.Conditions[i])
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
	return "(" + strings.Join(clauses, joiner) + ")", nil
}

// condition translates one comparison. AQL orders values across types, so
// range comparisons are restricted to operands of the same type.
func (b *aqlBuilder) condition(cond *query.FilterCondition) (string, error) {
	if cond.Value == nil {
		switch cond.Operator {
		case query.ComparisonOperatorLt, query.ComparisonOperatorLte,
			query.ComparisonOperatorGt, query.ComparisonOperatorGte:
			// Nothing orders against null; unused bind variables are an AQL error.
			return "false", nil
		}
	}
	attr, err := b.attribute(cond.Field)
	if err != nil {
		return "", err
	}
	value := b.bind("v", cond.Value)

	rangeOp := func(op string) string {
		return fmt.Sprintf("(TYPENAME(%s) == TYPENAME(%s) && %s %s %s)", attr, value, attr, op, value)
	}

	switch cond.Operator {
	case query.ComparisonOperatorEq:
		return fmt.Sprintf("%s == %s", attr, value), nil
	case query.ComparisonOperatorNeq:
		return fmt.Sprintf("(%s != null && %s != %s)", attr, attr, value), nil
	case query.ComparisonOperatorLt:
		return rangeOp("<"), nil
	case query.ComparisonOperatorLte:
		return rangeOp("<="), nil
	case query.ComparisonOperatorGt:
		return rangeOp(">"), nil
	case query.ComparisonOperatorGte:
		return rangeOp(">="), nil
	case "in":
		return fmt.Sprintf("%s IN %s", attr, value), nil
	case "array-contains":
		return fmt.Sprintf("%s IN %s", value, attr), nil
	default:
		return "", fmt.Errorf("unsupported comparison operator: %s", cond.Operator)
	}
}
