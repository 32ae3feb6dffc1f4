// Package query defines the structured form of a collection query: a
// conjunction of field conditions, an optional ordering and an optional
// limit. Every backing store translates a QueryDSL into its native query
// language; the in-memory store evaluates it with a DataProcessor.
package query

// LogicalOperator combines the conditions of a FilterGroup.
type LogicalOperator string

// Logical operators for combining filter conditions. Only conjunction can be
// expressed in a command string; disjunction is available to Go callers of
// the builder and the processor.
const (
	LogicalOperatorAnd LogicalOperator = "and"
	LogicalOperatorOr  LogicalOperator = "or"
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq  ComparisonOperator = "eq"
	ComparisonOperatorNeq ComparisonOperator = "neq"
	ComparisonOperatorLt  ComparisonOperator = "lt"
	ComparisonOperatorLte ComparisonOperator = "lte"
	ComparisonOperatorGt  ComparisonOperator = "gt"
	ComparisonOperatorGte ComparisonOperator = "gte"
)

// FilterValue represents the value used in a filter condition.
type FilterValue any

// FilterCondition defines a single condition for filtering the results of a query.
type FilterCondition struct {
	Field    string             // Dot-separated path of the field to test.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // The value to compare against.
}

// FilterGroup combines multiple filter conditions using a logical operator.
type FilterGroup struct {
	Operator   LogicalOperator
	Conditions []QueryFilter
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"`
	Group     *FilterGroup     `json:",omitempty"`
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string
	Direction SortDirection
}

// PaginationOptions bounds the number of records a query returns.
type PaginationOptions struct {
	Limit int
}

// QueryDSL is the top-level structure that represents a complete collection query.
type QueryDSL struct {
	Filters    *QueryFilter        `json:",omitempty"`
	Sort       []SortConfiguration `json:",omitempty"`
	Pagination *PaginationOptions  `json:",omitempty"`
}

// Limit returns the effective result limit, or 0 when the query is unbounded.
func (q *QueryDSL) Limit() int {
	if q == nil || q.Pagination == nil || q.Pagination.Limit < 0 {
		return 0
	}
	return q.Pagination.Limit
}

// Conjunction flattens the filter into a list of conditions that must all
// hold. It reports false when the filter contains a disjunction, which
// stores without native OR support cannot express.
func (q *QueryDSL) Conjunction() ([]FilterCondition, bool) {
	if q == nil || q.Filters == nil {
		return nil, true
	}
	var out []FilterCondition
	ok := flatten(q.Filters, &out)
	return out, ok
}

func flatten(filter *QueryFilter, out *[]FilterCondition) bool {
	if filter.Condition != nil {
		*out = append(*out, *filter.Condition)
		return true
	}
	if filter.Group == nil {
		return true
	}
	if filter.Group.Operator != LogicalOperatorAnd && len(filter.Group.Conditions) > 1 {
		return false
	}
	for i := range filter.Group.Conditions {
		if !flatten(&filter.Group.Conditions[i], out) {
			return false
		}
	}
	return true
}

// standardComparisonOperators is a set of all the built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:  {},
	ComparisonOperatorNeq: {},
	ComparisonOperatorLt:  {},
	ComparisonOperatorLte: {},
	ComparisonOperatorGt:  {},
	ComparisonOperatorGte: {},
}

// IsStandard checks if a comparison operator is one of the built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// GetStandardComparisonOperators returns a map of all standard comparison operators.
func GetStandardComparisonOperators() map[ComparisonOperator]struct{} {
	return standardComparisonOperators
}
