// Package command implements the colon-delimited command language used to
// address a document store:
//
//	read:<collection>:<document_id>
//	write:<collection>:<document_id_or_empty>:<json_object>
//	update:<collection>:<document_id>:<json_object>
//	delete:<collection>:<document_id>
//	query:<collection>:<json_query_spec_or_{}_or_empty>
//
// Parsing is pure and performs no I/O.
package command

import (
	"strings"

	"github.com/asaidimu/go-docquery/core/query"
)

// Operation is one of the five document operations a command can name.
type Operation string

const (
	OperationRead   Operation = "read"
	OperationWrite  Operation = "write"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationQuery  Operation = "query"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{OperationRead, OperationWrite, OperationUpdate, OperationDelete, OperationQuery}

func (o Operation) String() string { return string(o) }

// ParseOperation lower-cases token and matches it against the known
// operations.
func ParseOperation(token string) (Operation, bool) {
	op := Operation(strings.ToLower(token))
	switch op {
	case OperationRead, OperationWrite, OperationUpdate, OperationDelete, OperationQuery:
		return op, true
	}
	return "", false
}

// Command is the parsed form of one command string.
type Command struct {
	Operation  Operation
	Collection string
	// DocumentID is empty only for a write that asks the store to generate an id.
	DocumentID string
	// Data is the JSON object carried by write and update.
	Data map[string]any
	// Query holds the parameters of a query; nil means list the whole collection.
	Query *QueryFilterSpec
}

// Direction is the ordering direction of a query.
type Direction string

const (
	Ascending  Direction = "ASCENDING"
	Descending Direction = "DESCENDING"
)

// ParseDirection matches s case-insensitively. Anything unrecognized,
// including the empty string, is Descending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Ascending)) {
		return Ascending
	}
	return Descending
}

// FilterSpec is one `{field, op, value}` entry of a query.
type FilterSpec struct {
	Field string `mapstructure:"field" json:"field"`
	Op    string `mapstructure:"op" json:"op"`
	Value any    `mapstructure:"value" json:"value"`
}

// Active reports whether the filter takes part in the query. Filters with
// an empty field or operator, or a null value, are skipped.
func (f FilterSpec) Active() bool {
	return f.Field != "" && f.Op != "" && f.Value != nil
}

// comparisonOperators maps the wire operators onto the query DSL.
var comparisonOperators = map[string]query.ComparisonOperator{
	"==": query.ComparisonOperatorEq,
	"!=": query.ComparisonOperatorNeq,
	"<":  query.ComparisonOperatorLt,
	"<=": query.ComparisonOperatorLte,
	">":  query.ComparisonOperatorGt,
	">=": query.ComparisonOperatorGte,
}

// QueryFilterSpec holds the structured parameters of a query command.
type QueryFilterSpec struct {
	Filters   []FilterSpec `mapstructure:"filters" json:"filters,omitempty"`
	Limit     int          `mapstructure:"limit" json:"limit,omitempty"`
	OrderBy   string       `mapstructure:"order_by" json:"order_by,omitempty"`
	Direction Direction    `mapstructure:"direction" json:"direction,omitempty"`
}

// DSL converts the parameters into a backend-neutral query. Active filters
// are combined with AND in the order they were given.
func (s *QueryFilterSpec) DSL() *query.QueryDSL {
	qb := query.NewQueryBuilder()
	if s == nil {
		dsl := qb.Build()
		return &dsl
	}

	for _, f := range s.Filters {
		if !f.Active() {
			continue
		}
		qb.Where(f.Field).Op(comparisonOperators[f.Op], f.Value)
	}
	if s.OrderBy != "" {
		if ParseDirection(string(s.Direction)) == Ascending {
			qb.OrderByAsc(s.OrderBy)
		} else {
			qb.OrderByDesc(s.OrderBy)
		}
	}
	qb.Limit(s.Limit)

	dsl := qb.Build()
	return &dsl
}
