package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quilldb/quill"
	"github.com/quilldb/quill/edn"
	"github.com/quilldb/quill/query"
)

// parseWhereClause dispatches a single :where element: a vector is a data
// pattern, predicate, or expression (the teacher's surface); a list is one
// of or/or-join/not/not-join/a rule invocation, which the teacher's parser
// never had to handle.
func parseWhereClause(node *edn.Node) (query.Clause, error) {
	switch node.Type {
	case edn.NodeVector:
		return parseVectorClause(node)
	case edn.NodeList:
		return parseListClause(node)
	default:
		return nil, fmt.Errorf("parser: where clause must be a vector or list, got %v", node.Type)
	}
}

func parseListClause(node *edn.Node) (query.Clause, error) {
	if len(node.Nodes) == 0 || node.Nodes[0].Type != edn.NodeSymbol {
		return nil, fmt.Errorf("parser: clause list must start with a symbol")
	}
	head := node.Nodes[0].Value

	switch head {
	case "or":
		return parseOr(node.Nodes[1:])
	case "or-join":
		return parseOrJoin(node.Nodes[1:])
	case "not":
		clauses, err := parseClauseList(node.Nodes[1:])
		if err != nil {
			return nil, err
		}
		return &query.Not{Clauses: clauses}, nil
	case "not-join":
		return parseNotJoin(node.Nodes[1:])
	default:
		return parseRuleInvocation(query.Symbol(head), node.Nodes[1:])
	}
}

func parseVectorClause(node *edn.Node) (query.Clause, error) {
	// [(fn ...) ?binding] or [(fn ...)] -- function/expression/predicate.
	if len(node.Nodes) >= 1 && node.Nodes[0].Type == edn.NodeList {
		if len(node.Nodes) == 2 {
			binding, err := parseBindingForm(&node.Nodes[1])
			if err == nil {
				return parseExpression(&node.Nodes[0], binding)
			}
		}
		if len(node.Nodes) == 1 {
			return tryParsePredicate(&node.Nodes[0])
		}
		return nil, fmt.Errorf("parser: malformed function pattern")
	}

	return parseDataPattern(node)
}

func parseDataPattern(node *edn.Node) (*query.DataPattern, error) {
	elements := node.Nodes
	var src query.Symbol
	if len(elements) > 0 && elements[0].Type == edn.NodeSymbol && elements[0].IsSrcVar() {
		src = query.Symbol(elements[0].Value)
		elements = elements[1:]
	}
	if len(elements) < 2 || len(elements) > 4 {
		return nil, fmt.Errorf("parser: data pattern must have 2 to 4 elements, got %d", len(elements))
	}
	pattern := &query.DataPattern{Src: src, Elements: make([]query.PatternElement, len(elements))}
	for i := range elements {
		elem, err := parsePatternElement(&elements[i])
		if err != nil {
			return nil, fmt.Errorf("parser: pattern element %d: %w", i, err)
		}
		pattern.Elements[i] = elem
	}
	return pattern, nil
}

func parsePatternElement(node *edn.Node) (query.PatternElement, error) {
	switch node.Type {
	case edn.NodeSymbol:
		if node.IsBlank() {
			return query.Blank{}, nil
		}
		sym := query.Symbol(node.Value)
		if sym.IsVariable() {
			return query.Variable{Name: sym}, nil
		}
		return nil, fmt.Errorf("parser: invalid symbol in pattern: %s", node.Value)

	case edn.NodeKeyword:
		return query.Constant{Value: quill.NewKeyword(node.Value)}, nil
	case edn.NodeString:
		return query.Constant{Value: node.Value}, nil
	case edn.NodeInt:
		v, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid integer %q: %w", node.Value, err)
		}
		return query.Constant{Value: v}, nil
	case edn.NodeFloat:
		v, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid float %q: %w", node.Value, err)
		}
		return query.Constant{Value: v}, nil
	case edn.NodeBool:
		return query.Constant{Value: node.Value == "true"}, nil
	case edn.NodeTagged:
		v, err := tagValue(node)
		if err != nil {
			return nil, err
		}
		return query.Constant{Value: v}, nil
	default:
		return nil, fmt.Errorf("parser: unsupported pattern element type %v", node.Type)
	}
}

// tagValue resolves an EDN tagged literal (`#inst "..."`, `#uuid "..."`)
// into the quill.Value it denotes. These are the only two reader tags
// spec.md's value model gives independent meaning to (quill.TypeInstant,
// quill.TypeUUID); any other tag is passed through as a plain string so a
// query can still match it literally.
func tagValue(node *edn.Node) (quill.Value, error) {
	if node.Tagged == nil || node.Tagged.Type != edn.NodeString {
		return nil, fmt.Errorf("parser: tagged literal #%s must wrap a string", node.Tag)
	}
	raw := node.Tagged.Value
	switch node.Tag {
	case "inst":
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid #inst literal %q: %w", raw, err)
		}
		return t, nil
	case "uuid":
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid #uuid literal %q: %w", raw, err)
		}
		return id, nil
	default:
		return raw, nil
	}
}

// parseClauseList parses a flat sequence of :where-style elements, used
// for the bodies of not/not-join/or branches.
func parseClauseList(nodes []edn.Node) ([]query.Clause, error) {
	clauses := make([]query.Clause, 0, len(nodes))
	for i := range nodes {
		c, err := parseWhereClause(&nodes[i])
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

// parseBranch parses one or/or-join branch: either a single pattern or an
// explicit (and clause...) grouping.
func parseBranch(node *edn.Node) ([]query.Clause, error) {
	if node.Type == edn.NodeList && len(node.Nodes) > 0 && node.Nodes[0].Type == edn.NodeSymbol && node.Nodes[0].Value == "and" {
		return parseClauseList(node.Nodes[1:])
	}
	c, err := parseWhereClause(node)
	if err != nil {
		return nil, err
	}
	return []query.Clause{c}, nil
}

func parseOr(nodes []edn.Node) (*query.Or, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("parser: or requires at least one branch")
	}
	branches := make([][]query.Clause, 0, len(nodes))
	for i := range nodes {
		b, err := parseBranch(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("parser: or branch %d: %w", i, err)
		}
		branches = append(branches, b)
	}
	return &query.Or{Branches: branches}, nil
}

func parseOrJoin(nodes []edn.Node) (*query.OrJoin, error) {
	if len(nodes) == 0 || nodes[0].Type != edn.NodeVector {
		return nil, fmt.Errorf("parser: or-join requires a binding vector first")
	}
	varsNode := nodes[0]
	vars := make([]query.Symbol, 0, len(varsNode.Nodes))
	required := make(map[query.Symbol]bool)
	for _, v := range varsNode.Nodes {
		switch v.Type {
		case edn.NodeSymbol:
			sym := query.Symbol(v.Value)
			if !sym.IsVariable() {
				return nil, fmt.Errorf("parser: or-join variable list must contain variables, got %s", v.Value)
			}
			vars = append(vars, sym)
		case edn.NodeVector:
			if len(v.Nodes) != 1 || v.Nodes[0].Type != edn.NodeSymbol {
				return nil, fmt.Errorf("parser: or-join required-binding entry must be [?var]")
			}
			sym := query.Symbol(v.Nodes[0].Value)
			if !sym.IsVariable() {
				return nil, fmt.Errorf("parser: or-join required-binding entry must wrap a variable")
			}
			vars = append(vars, sym)
			required[sym] = true
		default:
			return nil, fmt.Errorf("parser: or-join variable list entries must be symbols or [symbol]")
		}
	}
	branches := make([][]query.Clause, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		b, err := parseBranch(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("parser: or-join branch %d: %w", i-1, err)
		}
		branches = append(branches, b)
	}
	if len(branches) == 0 {
		return nil, fmt.Errorf("parser: or-join requires at least one branch")
	}
	return &query.OrJoin{Vars: vars, Required: required, Branches: branches}, nil
}

func parseNotJoin(nodes []edn.Node) (*query.NotJoin, error) {
	if len(nodes) == 0 || nodes[0].Type != edn.NodeVector {
		return nil, fmt.Errorf("parser: not-join requires a binding vector first")
	}
	vars, err := symbolVector(&nodes[0])
	if err != nil {
		return nil, fmt.Errorf("parser: not-join binding vector: %w", err)
	}
	clauses, err := parseClauseList(nodes[1:])
	if err != nil {
		return nil, err
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("parser: not-join requires at least one clause")
	}
	return &query.NotJoin{Vars: vars, Clauses: clauses}, nil
}

func parseRuleInvocation(name query.Symbol, argNodes []edn.Node) (*query.RuleInvocation, error) {
	args := make([]query.PatternElement, len(argNodes))
	for i := range argNodes {
		elem, err := parsePatternElement(&argNodes[i])
		if err != nil {
			return nil, fmt.Errorf("parser: rule argument %d: %w", i, err)
		}
		args[i] = elem
	}
	return &query.RuleInvocation{Name: name, Args: args}, nil
}

// parseBindingForm parses a function-expression binding target: a plain
// variable (scalar binding) or a [?a ?b] tuple-destructuring vector.
func parseBindingForm(node *edn.Node) (query.BindingForm, error) {
	switch node.Type {
	case edn.NodeSymbol:
		sym := query.Symbol(node.Value)
		if !sym.IsVariable() {
			return nil, fmt.Errorf("parser: binding must be a variable, got %s", node.Value)
		}
		return query.ScalarBinding{Variable: sym}, nil
	case edn.NodeVector:
		vars, err := symbolVector(node)
		if err != nil {
			return nil, err
		}
		return query.TupleBinding{Variables: vars}, nil
	default:
		return nil, fmt.Errorf("parser: binding must be a variable or vector, got %v", node.Type)
	}
}
