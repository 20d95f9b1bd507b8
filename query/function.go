package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quilldb/quill"
)

// Function is an expression that evaluates to a value, bound to a new
// variable by an Expression clause: [(fn ...) ?out].
type Function interface {
	Pattern
	RequiredSymbols() []Symbol
	Eval(bindings map[Symbol]interface{}) (interface{}, error)
}

// ArithmeticOp is a binary arithmetic operator.
type ArithmeticOp string

const (
	OpAdd      ArithmeticOp = "+"
	OpSubtract ArithmeticOp = "-"
	OpMultiply ArithmeticOp = "*"
	OpDivide   ArithmeticOp = "/"
)

// ArithmeticFunction implements (+ ?x ?y) and friends.
type ArithmeticFunction struct {
	Op    ArithmeticOp
	Left  Term
	Right Term
}

func (a *ArithmeticFunction) RequiredSymbols() []Symbol {
	return append(append([]Symbol{}, a.Left.RequiredSymbols()...), a.Right.RequiredSymbols()...)
}

func (a *ArithmeticFunction) Eval(bindings map[Symbol]interface{}) (interface{}, error) {
	left, ok := a.Left.Resolve(bindings)
	if !ok {
		return nil, fmt.Errorf("query: cannot resolve %s", a.Left)
	}
	right, ok := a.Right.Resolve(bindings)
	if !ok {
		return nil, fmt.Errorf("query: cannot resolve %s", a.Right)
	}
	l, lFloat := toNumber(left)
	r, rFloat := toNumber(right)
	if lFloat || rFloat {
		lf, rf := toFloat64(l), toFloat64(r)
		switch a.Op {
		case OpAdd:
			return lf + rf, nil
		case OpSubtract:
			return lf - rf, nil
		case OpMultiply:
			return lf * rf, nil
		case OpDivide:
			if rf == 0 {
				return nil, fmt.Errorf("query: division by zero")
			}
			return lf / rf, nil
		}
	}
	li, ri := toInt64(l), toInt64(r)
	switch a.Op {
	case OpAdd:
		return li + ri, nil
	case OpSubtract:
		return li - ri, nil
	case OpMultiply:
		return li * ri, nil
	case OpDivide:
		if ri == 0 {
			return nil, fmt.Errorf("query: division by zero")
		}
		return float64(li) / float64(ri), nil
	}
	return nil, fmt.Errorf("query: unknown arithmetic operator %q", a.Op)
}

func (a *ArithmeticFunction) String() string {
	return fmt.Sprintf("(%s %s %s)", a.Op, a.Left, a.Right)
}

// StringConcatFunction implements (str ?a ?b ...).
type StringConcatFunction struct{ Terms []Term }

func (s *StringConcatFunction) RequiredSymbols() []Symbol {
	var syms []Symbol
	for _, t := range s.Terms {
		syms = append(syms, t.RequiredSymbols()...)
	}
	return syms
}

func (s *StringConcatFunction) Eval(bindings map[Symbol]interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, t := range s.Terms {
		val, ok := t.Resolve(bindings)
		if !ok {
			return nil, fmt.Errorf("query: cannot resolve %s", t)
		}
		sb.WriteString(fmt.Sprintf("%v", val))
	}
	return sb.String(), nil
}

func (s *StringConcatFunction) String() string {
	str := "(str"
	for _, t := range s.Terms {
		str += " " + t.String()
	}
	return str + ")"
}

// GroundFunction binds a constant to a variable: [(ground 42) ?x].
type GroundFunction struct{ Value interface{} }

func (g *GroundFunction) RequiredSymbols() []Symbol                         { return nil }
func (g *GroundFunction) Eval(map[Symbol]interface{}) (interface{}, error) { return g.Value, nil }
func (g *GroundFunction) String() string                                   { return fmt.Sprintf("(ground %v)", g.Value) }

// IdentityFunction passes a term through unchanged: [(identity ?x) ?y].
type IdentityFunction struct{ Arg Term }

func (i *IdentityFunction) RequiredSymbols() []Symbol { return i.Arg.RequiredSymbols() }

func (i *IdentityFunction) Eval(bindings map[Symbol]interface{}) (interface{}, error) {
	val, ok := i.Arg.Resolve(bindings)
	if !ok {
		return nil, fmt.Errorf("query: cannot resolve %s", i.Arg)
	}
	return val, nil
}

func (i *IdentityFunction) String() string { return fmt.Sprintf("(identity %s)", i.Arg) }

// TupleFunction packs several terms into a quill.Tuple value:
// [(tuple ?a ?b) ?t].
type TupleFunction struct{ Terms []Term }

func (t *TupleFunction) RequiredSymbols() []Symbol {
	var syms []Symbol
	for _, term := range t.Terms {
		syms = append(syms, term.RequiredSymbols()...)
	}
	return syms
}

func (t *TupleFunction) Eval(bindings map[Symbol]interface{}) (interface{}, error) {
	out := make(quill.Tuple, len(t.Terms))
	for i, term := range t.Terms {
		val, ok := term.Resolve(bindings)
		if !ok {
			return nil, fmt.Errorf("query: cannot resolve %s", term)
		}
		out[i] = val
	}
	return out, nil
}

func (t *TupleFunction) String() string {
	s := "(tuple"
	for _, term := range t.Terms {
		s += " " + term.String()
	}
	return s + ")"
}

// UntupleFunction unpacks a quill.Tuple value into its components; it is
// the inverse of TupleFunction and pairs with a TupleBinding:
// [(untuple ?t) [?a ?b]].
type UntupleFunction struct{ Arg Term }

func (u *UntupleFunction) RequiredSymbols() []Symbol { return u.Arg.RequiredSymbols() }

func (u *UntupleFunction) Eval(bindings map[Symbol]interface{}) (interface{}, error) {
	val, ok := u.Arg.Resolve(bindings)
	if !ok {
		return nil, fmt.Errorf("query: cannot resolve %s", u.Arg)
	}
	tup, ok := val.(quill.Tuple)
	if !ok {
		return nil, fmt.Errorf("query: untuple argument is not a tuple: %v", val)
	}
	return tup, nil
}

func (u *UntupleFunction) String() string { return fmt.Sprintf("(untuple %s)", u.Arg) }

func toNumber(val interface{}) (interface{}, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), false
	case int32:
		return int64(v), false
	case int64:
		return v, false
	case uint64:
		return int64(v), false
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, false
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return int64(0), false
}

func toInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func toFloat64(val interface{}) float64 {
	switch v := val.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

// BuiltinFunc is a named builtin evaluated directly on resolved argument
// values, used by FunctionPredicate. Expression clauses do not call these:
// the parser rejects a Builtins name in binding position.
type BuiltinFunc func(args []interface{}) (interface{}, error)

// Builtins is the fixed table of functions quill ships: the str/*
// predicates and the time-field extractors, mirroring the teacher's
// registered names for them.
var Builtins = map[string]BuiltinFunc{
	"str/starts-with?": func(args []interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("query: str/starts-with? requires 2 arguments")
		}
		s, ok1 := args[0].(string)
		prefix, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		return strings.HasPrefix(s, prefix), nil
	},
	"str/ends-with?": func(args []interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("query: str/ends-with? requires 2 arguments")
		}
		s, ok1 := args[0].(string)
		suffix, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		return strings.HasSuffix(s, suffix), nil
	},
	"str/contains?": func(args []interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("query: str/contains? requires 2 arguments")
		}
		s, ok1 := args[0].(string)
		sub, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		return strings.Contains(s, sub), nil
	},
	"year":   timeField(func(t time.Time) int64 { return int64(t.Year()) }),
	"month":  timeField(func(t time.Time) int64 { return int64(t.Month()) }),
	"day":    timeField(func(t time.Time) int64 { return int64(t.Day()) }),
	"hour":   timeField(func(t time.Time) int64 { return int64(t.Hour()) }),
	"minute": timeField(func(t time.Time) int64 { return int64(t.Minute()) }),
	"second": timeField(func(t time.Time) int64 { return int64(t.Second()) }),
}

func timeField(extract func(time.Time) int64) BuiltinFunc {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("query: time extraction function requires 1 argument")
		}
		t, ok := args[0].(time.Time)
		if !ok {
			return nil, fmt.Errorf("query: expected time.Time, got %T", args[0])
		}
		return extract(t), nil
	}
}
