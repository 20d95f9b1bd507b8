package parser

import (
	"fmt"

	"github.com/quilldb/quill/edn"
	"github.com/quilldb/quill/query"
)

// tryParsePredicate parses a single-element function pattern
// [(fn args...)] into a concrete Predicate.
func tryParsePredicate(node *edn.Node) (query.Predicate, error) {
	if node.Type != edn.NodeList {
		return nil, fmt.Errorf("parser: predicate must be a list")
	}
	if len(node.Nodes) < 2 {
		return nil, fmt.Errorf("parser: predicate must have a function name and at least one argument")
	}
	if node.Nodes[0].Type != edn.NodeSymbol {
		return nil, fmt.Errorf("parser: predicate function name must be a symbol, got %v", node.Nodes[0].Type)
	}
	fn := node.Nodes[0].Value

	args := make([]query.PatternElement, len(node.Nodes)-1)
	for i := 1; i < len(node.Nodes); i++ {
		arg, err := parsePatternElement(&node.Nodes[i])
		if err != nil {
			return nil, fmt.Errorf("parser: predicate argument %d: %w", i, err)
		}
		args[i-1] = arg
	}
	return parsePredicate(fn, args)
}

func parsePredicate(fn string, args []query.PatternElement) (query.Predicate, error) {
	switch fn {
	case "=":
		return parseEquality(args)
	case "!=", "not=":
		return parseComparisonOp(query.OpNE, args)
	case "<", "<=", ">", ">=":
		return parseComparisonOp(compareOpFor(fn), args)
	case "ground":
		return parseGroundPredicate(args)
	case "missing":
		return parseMissingPredicate(args)
	default:
		terms := make([]query.Term, len(args))
		for i, a := range args {
			terms[i] = elementToTerm(a)
		}
		if err := query.DefaultRegistry.Validate(fn, len(args)); err != nil {
			return nil, err
		}
		return &query.FunctionPredicate{Fn: fn, Args: terms}, nil
	}
}

func compareOpFor(fn string) query.CompareOp {
	switch fn {
	case "<":
		return query.OpLT
	case "<=":
		return query.OpLTE
	case ">":
		return query.OpGT
	case ">=":
		return query.OpGTE
	default:
		return query.OpEQ
	}
}

func parseEquality(args []query.PatternElement) (query.Predicate, error) {
	return parseComparisonOp(query.OpEQ, args)
}

func parseComparisonOp(op query.CompareOp, args []query.PatternElement) (query.Predicate, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("parser: %s requires at least 2 arguments, got %d", op, len(args))
	}
	if len(args) == 2 {
		return &query.Comparison{Op: op, Left: elementToTerm(args[0]), Right: elementToTerm(args[1])}, nil
	}
	terms := make([]query.Term, len(args))
	for i, a := range args {
		terms[i] = elementToTerm(a)
	}
	return &query.ChainedComparison{Op: op, Terms: terms}, nil
}

func parseGroundPredicate(args []query.PatternElement) (query.Predicate, error) {
	vars, err := variablesOnly(args, "ground")
	if err != nil {
		return nil, err
	}
	return &query.GroundPredicate{Variables: vars}, nil
}

func parseMissingPredicate(args []query.PatternElement) (query.Predicate, error) {
	vars, err := variablesOnly(args, "missing")
	if err != nil {
		return nil, err
	}
	return &query.MissingPredicate{Variables: vars}, nil
}

func variablesOnly(args []query.PatternElement, fn string) ([]query.Symbol, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("parser: %s requires at least 1 argument", fn)
	}
	vars := make([]query.Symbol, len(args))
	for i, a := range args {
		v, ok := a.(query.Variable)
		if !ok {
			return nil, fmt.Errorf("parser: %s only accepts variables, got %T", fn, a)
		}
		vars[i] = v.Name
	}
	return vars, nil
}

// elementToTerm converts a parsed pattern element into the Term interface
// used by predicates and functions.
func elementToTerm(elem query.PatternElement) query.Term {
	switch e := elem.(type) {
	case query.Variable:
		return query.VariableTerm{Symbol: e.Name}
	case query.Constant:
		return query.ConstantTerm{Value: e.Value}
	default:
		return query.ConstantTerm{Value: elem}
	}
}
