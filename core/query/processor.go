package query

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/asaidimu/go-docquery/core"
	"go.uber.org/zap"
)

// PredicateFunction is a Go function that evaluates a custom operator
// against a document. It returns true if the document passes the filter.
type PredicateFunction func(doc core.Document, field string, args FilterValue) (bool, error)

// DataProcessor evaluates a QueryDSL against documents held in memory. It
// follows document-store semantics: a condition on a field the document
// does not have never matches, ordering comparisons only succeed between
// values of the same class, and documents lacking an ordered field are
// left out of the result.
type DataProcessor struct {
	goFilterFunctions map[ComparisonOperator]PredicateFunction
	mu                sync.RWMutex
	logger            *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{
		goFilterFunctions: make(map[ComparisonOperator]PredicateFunction),
		logger:            logger,
	}
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (p *DataProcessor) RegisterFilterFunction(operator ComparisonOperator, fn PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goFilterFunctions[operator] = fn
	p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
}

// RegisterFilterFunctions registers multiple PredicateFunction functions from a map.
func (p *DataProcessor) RegisterFilterFunctions(functionMap map[ComparisonOperator]PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for operator, fn := range functionMap {
		p.goFilterFunctions[operator] = fn
		p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
	}
}

// Match evaluates a single document against a set of filter conditions.
func (p *DataProcessor) Match(ctx context.Context, filters *QueryFilter, data core.Document) (bool, error) {
	if filters == nil {
		return true, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluate(data, filters)
}

// Apply filters, orders and limits snapshots according to dsl. The input
// slice is not modified.
func (p *DataProcessor) Apply(ctx context.Context, snapshots []core.Snapshot, dsl *QueryDSL) ([]core.Snapshot, error) {
	if dsl == nil {
		dsl = &QueryDSL{}
	}

	p.mu.RLock()
	result := make([]core.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			p.mu.RUnlock()
			return nil, err
		}
		if dsl.Filters != nil {
			passes, err := p.evaluate(snap.Data, dsl.Filters)
			if err != nil {
				p.mu.RUnlock()
				return nil, fmt.Errorf("error evaluating filter for document %s: %w", snap.ID, err)
			}
			if !passes {
				continue
			}
		}
		if !hasSortFields(snap.Data, dsl.Sort) {
			continue
		}
		result = append(result, snap)
	}
	p.mu.RUnlock()
	p.logger.Debug("Documents remaining after filters", zap.Int("count", len(result)))

	sortSnapshots(result, dsl.Sort)

	if limit := dsl.Limit(); limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func hasSortFields(doc core.Document, sorts []SortConfiguration) bool {
	for _, s := range sorts {
		if _, ok := core.LookupField(doc, s.Field); !ok {
			return false
		}
	}
	return true
}

// sortSnapshots orders by each sort field in turn and breaks ties by
// document id, in the direction of the last sort field.
func sortSnapshots(snaps []core.Snapshot, sorts []SortConfiguration) {
	tieDirection := SortDirectionAsc
	if len(sorts) > 0 {
		tieDirection = sorts[len(sorts)-1].Direction
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		for _, s := range sorts {
			a, _ := core.LookupField(snaps[i].Data, s.Field)
			b, _ := core.LookupField(snaps[j].Data, s.Field)
			c := SortCompare(a, b)
			if c == 0 {
				continue
			}
			if s.Direction == SortDirectionDesc {
				return c > 0
			}
			return c < 0
		}
		if tieDirection == SortDirectionDesc {
			return snaps[i].ID > snaps[j].ID
		}
		return snaps[i].ID < snaps[j].ID
	})
}

func (p *DataProcessor) evaluate(doc core.Document, filter *QueryFilter) (bool, error) {
	if filter.Condition != nil {
		if !filter.Condition.Operator.IsStandard() {
			fn, ok := p.goFilterFunctions[filter.Condition.Operator]
			if !ok {
				return false, fmt.Errorf("unregistered Go filter function for operator: %s", filter.Condition.Operator)
			}
			return fn(doc, filter.Condition.Field, filter.Condition.Value)
		}
		return evaluateStandardCondition(doc, filter.Condition)
	}
	if filter.Group != nil {
		switch filter.Group.Operator {
		case LogicalOperatorAnd:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluate(doc, &filter.Group.Conditions[i])
				if err != nil || !passes {
					return false, err
				}
			}
			return true, nil
		case LogicalOperatorOr:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluate(doc, &filter.Group.Conditions[i])
				if err != nil {
					return false, err
				}
				if passes {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
		}
	}
	return false, fmt.Errorf("empty or invalid filter structure")
}

func evaluateStandardCondition(doc core.Document, condition *FilterCondition) (bool, error) {
	fieldValue, ok := core.LookupField(doc, condition.Field)
	if !ok {
		return false, nil
	}

	switch condition.Operator {
	case ComparisonOperatorEq:
		return Equal(fieldValue, condition.Value), nil
	case ComparisonOperatorNeq:
		if fieldValue == nil {
			return false, nil
		}
		return !Equal(fieldValue, condition.Value), nil
	}

	c, comparable := Compare(fieldValue, condition.Value)
	if !comparable {
		return false, nil
	}
	switch condition.Operator {
	case ComparisonOperatorLt:
		return c < 0, nil
	case ComparisonOperatorLte:
		return c <= 0, nil
	case ComparisonOperatorGt:
		return c > 0, nil
	case ComparisonOperatorGte:
		return c >= 0, nil
	default:
		return false, fmt.Errorf("unsupported comparison operator: %s", condition.Operator)
	}
}
