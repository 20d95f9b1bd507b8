package query

import (
	"fmt"

	"github.com/quilldb/quill"
)

// Predicate is a boolean condition evaluated against a tuple's bindings.
// It implements Clause so it can sit directly in a Query.Where list.
type Predicate interface {
	Clause
	RequiredSymbols() []Symbol
	Eval(bindings map[Symbol]interface{}) (bool, error)
}

// CompareOp is a comparison predicate operator.
type CompareOp string

const (
	OpEQ  CompareOp = "="
	OpNE  CompareOp = "!="
	OpLT  CompareOp = "<"
	OpLTE CompareOp = "<="
	OpGT  CompareOp = ">"
	OpGTE CompareOp = ">="
)

// Term is either a bound variable or a literal value inside a predicate
// or function call.
type Term interface {
	Resolve(bindings map[Symbol]interface{}) (interface{}, bool)
	RequiredSymbols() []Symbol
	String() string
}

// VariableTerm resolves to whatever the binding map holds for Symbol.
type VariableTerm struct{ Symbol Symbol }

func (v VariableTerm) Resolve(bindings map[Symbol]interface{}) (interface{}, bool) {
	val, ok := bindings[v.Symbol]
	return val, ok
}

func (v VariableTerm) RequiredSymbols() []Symbol { return []Symbol{v.Symbol} }
func (v VariableTerm) String() string            { return string(v.Symbol) }

// ConstantTerm always resolves to the same literal value.
type ConstantTerm struct{ Value interface{} }

func (c ConstantTerm) Resolve(map[Symbol]interface{}) (interface{}, bool) { return c.Value, true }
func (c ConstantTerm) RequiredSymbols() []Symbol                         { return nil }
func (c ConstantTerm) String() string                                    { return fmt.Sprintf("%v", c.Value) }

// Comparison implements [(< ?x 10)], [(>= ?y ?z)] and friends.
type Comparison struct {
	Op    CompareOp
	Left  Term
	Right Term
}

func (c *Comparison) clause() {}

func (c *Comparison) RequiredSymbols() []Symbol {
	return append(append([]Symbol{}, c.Left.RequiredSymbols()...), c.Right.RequiredSymbols()...)
}

func (c *Comparison) Eval(bindings map[Symbol]interface{}) (bool, error) {
	left, ok := c.Left.Resolve(bindings)
	if !ok {
		return false, fmt.Errorf("query: cannot resolve %s", c.Left)
	}
	right, ok := c.Right.Resolve(bindings)
	if !ok {
		return false, fmt.Errorf("query: cannot resolve %s", c.Right)
	}
	cmp := quill.CompareValues(left, right)
	switch c.Op {
	case OpEQ:
		return cmp == 0, nil
	case OpNE:
		return cmp != 0, nil
	case OpLT:
		return cmp < 0, nil
	case OpLTE:
		return cmp <= 0, nil
	case OpGT:
		return cmp > 0, nil
	case OpGTE:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("query: unknown comparison operator %q", c.Op)
	}
}

func (c *Comparison) String() string {
	return fmt.Sprintf("[(%s %s %s)]", c.Op, c.Left, c.Right)
}

// CanPushToStorage reports whether exactly one side of the comparison is a
// variable. The planner does not consult it: every comparison is applied
// as a filter after matching.
func (c *Comparison) CanPushToStorage() bool {
	_, leftVar := c.Left.(VariableTerm)
	_, rightVar := c.Right.(VariableTerm)
	return leftVar != rightVar
}

// ChainedComparison implements Clojure-style chained comparisons such as
// [(< 0 ?x 100)]: every adjacent pair must satisfy Op.
type ChainedComparison struct {
	Op    CompareOp
	Terms []Term
}

func (c *ChainedComparison) clause() {}

func (c *ChainedComparison) RequiredSymbols() []Symbol {
	var syms []Symbol
	for _, t := range c.Terms {
		syms = append(syms, t.RequiredSymbols()...)
	}
	return syms
}

func (c *ChainedComparison) Eval(bindings map[Symbol]interface{}) (bool, error) {
	if len(c.Terms) < 2 {
		return false, fmt.Errorf("query: chained comparison requires at least 2 terms")
	}
	for i := 0; i < len(c.Terms)-1; i++ {
		left, ok := c.Terms[i].Resolve(bindings)
		if !ok {
			return false, fmt.Errorf("query: cannot resolve %s", c.Terms[i])
		}
		right, ok := c.Terms[i+1].Resolve(bindings)
		if !ok {
			return false, fmt.Errorf("query: cannot resolve %s", c.Terms[i+1])
		}
		cmp := quill.CompareValues(left, right)
		var ok2 bool
		switch c.Op {
		case OpLT:
			ok2 = cmp < 0
		case OpLTE:
			ok2 = cmp <= 0
		case OpGT:
			ok2 = cmp > 0
		case OpGTE:
			ok2 = cmp >= 0
		case OpEQ:
			ok2 = cmp == 0
		}
		if !ok2 {
			return false, nil
		}
	}
	return true, nil
}

func (c *ChainedComparison) String() string {
	s := fmt.Sprintf("[(%s", c.Op)
	for _, t := range c.Terms {
		s += " " + t.String()
	}
	s += ")]"
	return s
}

// GroundPredicate checks that every listed variable is already bound.
type GroundPredicate struct{ Variables []Symbol }

func (g *GroundPredicate) clause()                      {}
func (g *GroundPredicate) RequiredSymbols() []Symbol { return nil }

func (g *GroundPredicate) Eval(bindings map[Symbol]interface{}) (bool, error) {
	for _, sym := range g.Variables {
		if _, ok := bindings[sym]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (g *GroundPredicate) String() string {
	s := "[(ground"
	for _, v := range g.Variables {
		s += " " + string(v)
	}
	return s + ")]"
}

// MissingPredicate checks that every listed variable is absent from the
// bindings -- the dual of GroundPredicate.
type MissingPredicate struct{ Variables []Symbol }

func (m *MissingPredicate) clause()                      {}
func (m *MissingPredicate) RequiredSymbols() []Symbol { return nil }

func (m *MissingPredicate) Eval(bindings map[Symbol]interface{}) (bool, error) {
	for _, sym := range m.Variables {
		if _, ok := bindings[sym]; ok {
			return false, nil
		}
	}
	return true, nil
}

func (m *MissingPredicate) String() string {
	s := "[(missing"
	for _, v := range m.Variables {
		s += " " + string(v)
	}
	return s + ")]"
}

// FunctionPredicate evaluates a named registered function and treats its
// boolean result as the predicate's pass/fail, e.g.
// [(str/starts-with? ?name "A")].
type FunctionPredicate struct {
	Fn   string
	Args []Term
}

func (f *FunctionPredicate) clause() {}

func (f *FunctionPredicate) RequiredSymbols() []Symbol {
	var syms []Symbol
	for _, a := range f.Args {
		syms = append(syms, a.RequiredSymbols()...)
	}
	return syms
}

func (f *FunctionPredicate) Eval(bindings map[Symbol]interface{}) (bool, error) {
	fn, ok := Builtins[f.Fn]
	if !ok {
		return false, fmt.Errorf("query: unknown predicate function %q", f.Fn)
	}
	args := make([]interface{}, len(f.Args))
	for i, a := range f.Args {
		val, ok := a.Resolve(bindings)
		if !ok {
			return false, fmt.Errorf("query: cannot resolve argument %s to %s", a, f.Fn)
		}
		args[i] = val
	}
	result, err := fn(args)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("query: function %q used as predicate did not return a bool", f.Fn)
	}
	return b, nil
}

func (f *FunctionPredicate) String() string {
	s := fmt.Sprintf("[(%s", f.Fn)
	for _, a := range f.Args {
		s += " " + a.String()
	}
	return s + ")]"
}
