package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataPatternSymbols(t *testing.T) {
	p := &DataPattern{
		Elements: []PatternElement{
			Variable{Name: "?e"},
			Constant{Value: "name"},
			Variable{Name: "?name"},
		},
	}
	require.Equal(t, []Symbol{"?e", "?name"}, p.Symbols())
	require.Equal(t, "[?e name ?name]", p.String())
}

func TestDataPatternSymbolsDeduplicates(t *testing.T) {
	p := &DataPattern{
		Elements: []PatternElement{
			Variable{Name: "?e"},
			Variable{Name: "?e"},
		},
	}
	require.Equal(t, []Symbol{"?e"}, p.Symbols())
}

func TestComparisonEval(t *testing.T) {
	c := &Comparison{Op: OpLT, Left: VariableTerm{Symbol: "?x"}, Right: ConstantTerm{Value: int64(10)}}
	pass, err := c.Eval(map[Symbol]interface{}{"?x": int64(5)})
	require.NoError(t, err)
	require.True(t, pass)

	pass, err = c.Eval(map[Symbol]interface{}{"?x": int64(50)})
	require.NoError(t, err)
	require.False(t, pass)
}

func TestComparisonEvalUnboundTerm(t *testing.T) {
	c := &Comparison{Op: OpEQ, Left: VariableTerm{Symbol: "?x"}, Right: ConstantTerm{Value: int64(1)}}
	_, err := c.Eval(map[Symbol]interface{}{})
	require.Error(t, err)
}

func TestChainedComparison(t *testing.T) {
	c := &ChainedComparison{
		Op: OpLT,
		Terms: []Term{
			ConstantTerm{Value: int64(0)},
			VariableTerm{Symbol: "?x"},
			ConstantTerm{Value: int64(100)},
		},
	}
	pass, err := c.Eval(map[Symbol]interface{}{"?x": int64(50)})
	require.NoError(t, err)
	require.True(t, pass)

	pass, err = c.Eval(map[Symbol]interface{}{"?x": int64(500)})
	require.NoError(t, err)
	require.False(t, pass)
}

func TestGroundAndMissingPredicates(t *testing.T) {
	g := &GroundPredicate{Variables: []Symbol{"?x"}}
	pass, err := g.Eval(map[Symbol]interface{}{"?x": 1})
	require.NoError(t, err)
	require.True(t, pass)

	m := &MissingPredicate{Variables: []Symbol{"?x"}}
	pass, err = m.Eval(map[Symbol]interface{}{"?x": 1})
	require.NoError(t, err)
	require.False(t, pass)

	pass, err = m.Eval(map[Symbol]interface{}{})
	require.NoError(t, err)
	require.True(t, pass)
}

func TestFunctionPredicateStartsWith(t *testing.T) {
	p := &FunctionPredicate{
		Fn:   "str/starts-with?",
		Args: []Term{VariableTerm{Symbol: "?name"}, ConstantTerm{Value: "Al"}},
	}
	pass, err := p.Eval(map[Symbol]interface{}{"?name": "Alice"})
	require.NoError(t, err)
	require.True(t, pass)

	pass, err = p.Eval(map[Symbol]interface{}{"?name": "Bob"})
	require.NoError(t, err)
	require.False(t, pass)
}

func TestArithmeticFunction(t *testing.T) {
	f := &ArithmeticFunction{Op: OpAdd, Left: VariableTerm{Symbol: "?x"}, Right: ConstantTerm{Value: int64(1)}}
	result, err := f.Eval(map[Symbol]interface{}{"?x": int64(41)})
	require.NoError(t, err)
	require.Equal(t, int64(42), result)
}

func TestTupleAndUntupleFunctions(t *testing.T) {
	pack := &TupleFunction{Terms: []Term{ConstantTerm{Value: int64(1)}, ConstantTerm{Value: "a"}}}
	tup, err := pack.Eval(nil)
	require.NoError(t, err)

	unpack := &UntupleFunction{Arg: ConstantTerm{Value: tup}}
	result, err := unpack.Eval(nil)
	require.NoError(t, err)
	require.Equal(t, tup, result)
}

func TestAggregates(t *testing.T) {
	values := []interface{}{int64(1), int64(2), int64(3)}

	count := CountAggregate{Var: "?x"}
	c, err := count.Aggregate(values)
	require.NoError(t, err)
	require.Equal(t, int64(3), c)

	sum := SumAggregate{Var: "?x"}
	s, err := sum.Aggregate(values)
	require.NoError(t, err)
	require.Equal(t, int64(6), s)

	avg := AvgAggregate{Var: "?x"}
	a, err := avg.Aggregate(values)
	require.NoError(t, err)
	require.Equal(t, float64(2), a)

	min := MinAggregate{Var: "?x"}
	mn, err := min.Aggregate(values)
	require.NoError(t, err)
	require.Equal(t, int64(1), mn)

	max := MaxAggregate{Var: "?x"}
	mx, err := max.Aggregate(values)
	require.NoError(t, err)
	require.Equal(t, int64(3), mx)
}

func TestNewAggregateUnknown(t *testing.T) {
	_, err := NewAggregate("median", "?x")
	require.Error(t, err)
}

func TestOrAndOrJoinString(t *testing.T) {
	or := &Or{Branches: [][]Clause{
		{&DataPattern{Elements: []PatternElement{Variable{Name: "?e"}, Constant{Value: "name"}, Constant{Value: "Oleg"}}}},
		{&DataPattern{Elements: []PatternElement{Variable{Name: "?e"}, Constant{Value: "age"}, Constant{Value: int64(10)}}}},
	}}
	require.Contains(t, or.String(), "(or")

	oj := &OrJoin{
		Vars:     []Symbol{"?e", "?x"},
		Required: map[Symbol]bool{"?x": true},
		Branches: or.Branches,
	}
	require.Contains(t, oj.String(), "[?e [?x]]")
}

func TestFunctionRegistryValidate(t *testing.T) {
	r := NewFunctionRegistry()
	require.True(t, r.IsRegistered("str/starts-with?"))
	require.NoError(t, r.Validate("+", 2))
	require.Error(t, r.Validate("+", 1))
	require.Error(t, r.Validate("nope", 1))
}
