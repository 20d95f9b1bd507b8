package parser

import (
	"fmt"

	"github.com/quilldb/quill/edn"
	"github.com/quilldb/quill/query"
)

// parseExpression parses [(fn args...) binding] into an Expression clause.
func parseExpression(node *edn.Node, binding query.BindingForm) (*query.Expression, error) {
	if node.Type != edn.NodeList {
		return nil, fmt.Errorf("parser: expression must be a list")
	}
	if len(node.Nodes) < 2 {
		return nil, fmt.Errorf("parser: expression must have a function name and at least one argument")
	}
	if node.Nodes[0].Type != edn.NodeSymbol {
		return nil, fmt.Errorf("parser: expression function name must be a symbol, got %v", node.Nodes[0].Type)
	}
	fn := node.Nodes[0].Value

	args := make([]query.PatternElement, len(node.Nodes)-1)
	for i := 1; i < len(node.Nodes); i++ {
		arg, err := parsePatternElement(&node.Nodes[i])
		if err != nil {
			return nil, fmt.Errorf("parser: expression argument %d: %w", i, err)
		}
		args[i-1] = arg
	}

	function, err := parseFunction(fn, args)
	if err != nil {
		return nil, fmt.Errorf("parser: function: %w", err)
	}
	return &query.Expression{Function: function, Binding: binding}, nil
}

func parseFunction(fn string, args []query.PatternElement) (query.Function, error) {
	switch fn {
	case "+", "-", "*", "/":
		return parseArithmetic(fn, args)
	case "str":
		return parseStringConcat(args)
	case "ground":
		return parseGroundFunction(args)
	case "identity":
		return parseIdentityFunction(args)
	case "tuple":
		return parseTupleFunction(args)
	case "untuple":
		return parseUntupleFunction(args)
	default:
		if err := query.DefaultRegistry.Validate(fn, len(args)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("parser: %q is a predicate-only function and cannot bind a value", fn)
	}
}

func parseArithmetic(fn string, args []query.PatternElement) (query.Function, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("parser: %s requires exactly 2 arguments, got %d", fn, len(args))
	}
	var op query.ArithmeticOp
	switch fn {
	case "+":
		op = query.OpAdd
	case "-":
		op = query.OpSubtract
	case "*":
		op = query.OpMultiply
	case "/":
		op = query.OpDivide
	}
	return &query.ArithmeticFunction{Op: op, Left: elementToTerm(args[0]), Right: elementToTerm(args[1])}, nil
}

func parseStringConcat(args []query.PatternElement) (query.Function, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("parser: str requires at least 1 argument")
	}
	terms := make([]query.Term, len(args))
	for i, a := range args {
		terms[i] = elementToTerm(a)
	}
	return &query.StringConcatFunction{Terms: terms}, nil
}

func parseGroundFunction(args []query.PatternElement) (query.Function, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("parser: ground requires exactly 1 argument, got %d", len(args))
	}
	c, ok := args[0].(query.Constant)
	if !ok {
		return nil, fmt.Errorf("parser: ground requires a constant value, got %T", args[0])
	}
	return &query.GroundFunction{Value: c.Value}, nil
}

func parseIdentityFunction(args []query.PatternElement) (query.Function, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("parser: identity requires exactly 1 argument, got %d", len(args))
	}
	return &query.IdentityFunction{Arg: elementToTerm(args[0])}, nil
}

func parseTupleFunction(args []query.PatternElement) (query.Function, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("parser: tuple requires at least 1 argument")
	}
	terms := make([]query.Term, len(args))
	for i, a := range args {
		terms[i] = elementToTerm(a)
	}
	return &query.TupleFunction{Terms: terms}, nil
}

func parseUntupleFunction(args []query.PatternElement) (query.Function, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("parser: untuple requires exactly 1 argument, got %d", len(args))
	}
	return &query.UntupleFunction{Arg: elementToTerm(args[0])}, nil
}

func parseAggregate(fn string, v query.Symbol) (query.AggregateFunction, error) {
	return query.NewAggregate(fn, v)
}
