package query

import (
	"fmt"

	"github.com/quilldb/quill"
)

// AggregateFunction computes a single value from a column of grouped
// results, rather than a single binding.
type AggregateFunction interface {
	Pattern
	Variable() Symbol
	FunctionName() string
	Aggregate(values []interface{}) (interface{}, error)
}

// NewAggregate constructs the aggregate named by fn, or an error if fn is
// not one of the registered aggregate names.
func NewAggregate(fn string, v Symbol) (AggregateFunction, error) {
	switch fn {
	case "count":
		return CountAggregate{Var: v}, nil
	case "sum":
		return SumAggregate{Var: v}, nil
	case "avg":
		return AvgAggregate{Var: v}, nil
	case "min":
		return MinAggregate{Var: v}, nil
	case "max":
		return MaxAggregate{Var: v}, nil
	default:
		return nil, fmt.Errorf("query: unknown aggregate function %q", fn)
	}
}

// CountAggregate counts the number of rows in the group.
type CountAggregate struct{ Var Symbol }

func (c CountAggregate) Variable() Symbol     { return c.Var }
func (c CountAggregate) FunctionName() string { return "count" }
func (c CountAggregate) String() string       { return fmt.Sprintf("(count %s)", c.Var) }

func (c CountAggregate) Aggregate(values []interface{}) (interface{}, error) {
	return int64(len(values)), nil
}

// SumAggregate sums the numeric values in the group, producing a float64
// if any value is a float and an int64 otherwise.
type SumAggregate struct{ Var Symbol }

func (s SumAggregate) Variable() Symbol     { return s.Var }
func (s SumAggregate) FunctionName() string { return "sum" }
func (s SumAggregate) String() string       { return fmt.Sprintf("(sum %s)", s.Var) }

func (s SumAggregate) Aggregate(values []interface{}) (interface{}, error) {
	if len(values) == 0 {
		return int64(0), nil
	}
	hasFloat := false
	for _, v := range values {
		if _, f := toNumber(v); f {
			hasFloat = true
			break
		}
	}
	if hasFloat {
		var sum float64
		for _, v := range values {
			n, _ := toNumber(v)
			sum += toFloat64(n)
		}
		return sum, nil
	}
	var sum int64
	for _, v := range values {
		n, _ := toNumber(v)
		sum += toInt64(n)
	}
	return sum, nil
}

// AvgAggregate computes the arithmetic mean of the group's values.
type AvgAggregate struct{ Var Symbol }

func (a AvgAggregate) Variable() Symbol     { return a.Var }
func (a AvgAggregate) FunctionName() string { return "avg" }
func (a AvgAggregate) String() string       { return fmt.Sprintf("(avg %s)", a.Var) }

func (a AvgAggregate) Aggregate(values []interface{}) (interface{}, error) {
	if len(values) == 0 {
		return float64(0), nil
	}
	var sum float64
	for _, v := range values {
		n, _ := toNumber(v)
		sum += toFloat64(n)
	}
	return sum / float64(len(values)), nil
}

// MinAggregate finds the smallest value under quill.CompareValues.
type MinAggregate struct{ Var Symbol }

func (m MinAggregate) Variable() Symbol     { return m.Var }
func (m MinAggregate) FunctionName() string { return "min" }
func (m MinAggregate) String() string       { return fmt.Sprintf("(min %s)", m.Var) }

func (m MinAggregate) Aggregate(values []interface{}) (interface{}, error) {
	if len(values) == 0 {
		return nil, nil
	}
	min := values[0]
	for _, v := range values[1:] {
		if quill.CompareValues(v, min) < 0 {
			min = v
		}
	}
	return min, nil
}

// MaxAggregate finds the largest value under quill.CompareValues.
type MaxAggregate struct{ Var Symbol }

func (m MaxAggregate) Variable() Symbol     { return m.Var }
func (m MaxAggregate) FunctionName() string { return "max" }
func (m MaxAggregate) String() string       { return fmt.Sprintf("(max %s)", m.Var) }

func (m MaxAggregate) Aggregate(values []interface{}) (interface{}, error) {
	if len(values) == 0 {
		return nil, nil
	}
	max := values[0]
	for _, v := range values[1:] {
		if quill.CompareValues(v, max) > 0 {
			max = v
		}
	}
	return max, nil
}
