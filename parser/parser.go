// Package parser turns EDN query syntax into the quill/query AST. It
// extends the teacher's flat pattern/predicate/expression parsing with
// or, or-join, not, not-join, and rule-invocation clauses, none of which
// the teacher's parser ever had to handle.
package parser

import (
	"fmt"

	"github.com/quilldb/quill/edn"
	"github.com/quilldb/quill/query"
	"github.com/quilldb/quill/quillerr"
)

// ParseQuery parses a single :find/:in/:where query from EDN text. Any
// failure is returned as a quillerr.QueryError.
func ParseQuery(input string) (*query.Query, error) {
	q, err := parseQuery(input)
	if err != nil {
		return nil, quillerr.Query(err)
	}
	return q, nil
}

func parseQuery(input string) (*query.Query, error) {
	node, err := edn.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	if node.Type != edn.NodeVector {
		return nil, fmt.Errorf("parser: query must be a vector, got %v", node.Type)
	}
	return parseQueryVector(node)
}

// ParseMultipleQueries parses every top-level query vector in input.
func ParseMultipleQueries(input string) ([]*query.Query, error) {
	queries, err := parseMultipleQueries(input)
	if err != nil {
		return nil, quillerr.Query(err)
	}
	return queries, nil
}

func parseMultipleQueries(input string) ([]*query.Query, error) {
	nodes, err := edn.ParseAll(input)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	queries := make([]*query.Query, 0, len(nodes))
	for i, node := range nodes {
		if node.Type != edn.NodeVector {
			return nil, fmt.Errorf("parser: query %d must be a vector, got %v", i, node.Type)
		}
		q, err := parseQueryVector(&node)
		if err != nil {
			return nil, fmt.Errorf("parser: query %d: %w", i, err)
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func parseQueryVector(node *edn.Node) (*query.Query, error) {
	q := &query.Query{}

	i := 0
	for i < len(node.Nodes) {
		if node.Nodes[i].Type != edn.NodeKeyword {
			return nil, fmt.Errorf("parser: expected keyword at position %d, got %v", i, node.Nodes[i].Type)
		}
		keyword := node.Nodes[i].Value
		i++

		switch keyword {
		case ":find":
			for i < len(node.Nodes) && node.Nodes[i].Type != edn.NodeKeyword {
				elem, err := parseFindElement(&node.Nodes[i])
				if err != nil {
					return nil, fmt.Errorf("parser: find element: %w", err)
				}
				q.Find = append(q.Find, elem)
				i++
			}

		case ":in":
			for i < len(node.Nodes) && node.Nodes[i].Type != edn.NodeKeyword {
				spec, err := parseInputSpec(&node.Nodes[i])
				if err != nil {
					return nil, fmt.Errorf("parser: input spec: %w", err)
				}
				q.In = append(q.In, spec)
				i++
			}

		case ":where":
			for i < len(node.Nodes) && node.Nodes[i].Type != edn.NodeKeyword {
				clause, err := parseWhereClause(&node.Nodes[i])
				if err != nil {
					return nil, fmt.Errorf("parser: where clause: %w", err)
				}
				q.Where = append(q.Where, clause)
				i++
			}

		case ":order-by":
			if i >= len(node.Nodes) || node.Nodes[i].Type != edn.NodeVector {
				return nil, fmt.Errorf("parser: :order-by must be followed by a vector")
			}
			orderVec := &node.Nodes[i]
			for j := range orderVec.Nodes {
				clause, err := parseOrderByClause(&orderVec.Nodes[j])
				if err != nil {
					return nil, fmt.Errorf("parser: order-by clause: %w", err)
				}
				q.OrderBy = append(q.OrderBy, clause)
			}
			i++

		default:
			return nil, fmt.Errorf("parser: unknown query clause %q", keyword)
		}
	}

	if len(q.Find) == 0 {
		return nil, fmt.Errorf("parser: query must have at least one :find element")
	}
	if len(q.Where) == 0 {
		return nil, fmt.Errorf("parser: query must have at least one :where clause")
	}
	return q, nil
}

func parseFindElement(node *edn.Node) (query.FindElement, error) {
	switch node.Type {
	case edn.NodeSymbol:
		sym := query.Symbol(node.Value)
		if !sym.IsVariable() {
			return nil, fmt.Errorf("parser: :find element must be a variable, got %s", sym)
		}
		return query.FindVariable{Symbol: sym}, nil

	case edn.NodeList:
		if len(node.Nodes) != 2 {
			return nil, fmt.Errorf("parser: aggregate must be (fn ?var)")
		}
		if node.Nodes[0].Type != edn.NodeSymbol || node.Nodes[1].Type != edn.NodeSymbol {
			return nil, fmt.Errorf("parser: aggregate must be a symbol applied to a variable")
		}
		fn := node.Nodes[0].Value
		arg := query.Symbol(node.Nodes[1].Value)
		if !arg.IsVariable() {
			return nil, fmt.Errorf("parser: aggregate argument must be a variable, got %s", arg)
		}
		switch fn {
		case "sum", "avg", "count", "min", "max":
		default:
			return nil, fmt.Errorf("parser: unknown aggregate function %q", fn)
		}
		return query.FindAggregate{Function: fn, Arg: arg}, nil

	default:
		return nil, fmt.Errorf("parser: :find element must be a symbol or list, got %v", node.Type)
	}
}

func parseInputSpec(node *edn.Node) (query.InputSpec, error) {
	switch node.Type {
	case edn.NodeSymbol:
		if node.IsSrcVar() {
			return query.DatabaseInput{Name: query.Symbol(node.Value)}, nil
		}
		sym := query.Symbol(node.Value)
		if !sym.IsVariable() {
			return nil, fmt.Errorf("parser: input must be $, $name, or a variable, got %s", node.Value)
		}
		return query.ScalarInput{Symbol: sym}, nil

	case edn.NodeVector:
		if len(node.Nodes) == 0 {
			return nil, fmt.Errorf("parser: input vector cannot be empty")
		}
		if node.Nodes[0].Type == edn.NodeVector {
			vars, err := symbolVector(&node.Nodes[0])
			if err != nil {
				return nil, err
			}
			if isEllipsisTail(node.Nodes) {
				return query.RelationInput{Symbols: vars}, nil
			}
			if len(node.Nodes) == 1 {
				return query.TupleInput{Symbols: vars}, nil
			}
			return nil, fmt.Errorf("parser: malformed tuple/relation input")
		}
		if isEllipsisTail(node.Nodes) {
			if node.Nodes[0].Type != edn.NodeSymbol {
				return nil, fmt.Errorf("parser: collection input must contain a variable")
			}
			sym := query.Symbol(node.Nodes[0].Value)
			if !sym.IsVariable() {
				return nil, fmt.Errorf("parser: collection input must contain a variable, got %s", sym)
			}
			return query.CollectionInput{Symbol: sym}, nil
		}
		return nil, fmt.Errorf("parser: invalid input specification")

	default:
		return nil, fmt.Errorf("parser: input spec must be a symbol or vector, got %v", node.Type)
	}
}

func parseOrderByClause(node *edn.Node) (query.OrderByClause, error) {
	switch node.Type {
	case edn.NodeSymbol:
		sym := query.Symbol(node.Value)
		if !sym.IsVariable() {
			return query.OrderByClause{}, fmt.Errorf("parser: order-by must use a variable, got %s", sym)
		}
		return query.OrderByClause{Variable: sym, Direction: query.OrderAsc}, nil

	case edn.NodeVector:
		if len(node.Nodes) != 2 || node.Nodes[0].Type != edn.NodeSymbol || node.Nodes[1].Type != edn.NodeKeyword {
			return query.OrderByClause{}, fmt.Errorf("parser: order-by vector must be [?var :asc|:desc]")
		}
		sym := query.Symbol(node.Nodes[0].Value)
		if !sym.IsVariable() {
			return query.OrderByClause{}, fmt.Errorf("parser: order-by must use a variable, got %s", sym)
		}
		var dir query.OrderDirection
		switch node.Nodes[1].Value {
		case ":asc":
			dir = query.OrderAsc
		case ":desc":
			dir = query.OrderDesc
		default:
			return query.OrderByClause{}, fmt.Errorf("parser: order-by direction must be :asc or :desc, got %s", node.Nodes[1].Value)
		}
		return query.OrderByClause{Variable: sym, Direction: dir}, nil

	default:
		return query.OrderByClause{}, fmt.Errorf("parser: order-by element must be a symbol or vector, got %v", node.Type)
	}
}

func isEllipsisTail(nodes []edn.Node) bool {
	return len(nodes) == 2 && nodes[1].Type == edn.NodeSymbol && nodes[1].Value == "..."
}

func symbolVector(node *edn.Node) ([]query.Symbol, error) {
	if node.Type != edn.NodeVector {
		return nil, fmt.Errorf("parser: expected a vector of symbols")
	}
	vars := make([]query.Symbol, 0, len(node.Nodes))
	for i, elem := range node.Nodes {
		if elem.Type != edn.NodeSymbol {
			return nil, fmt.Errorf("parser: element %d must be a symbol", i)
		}
		sym := query.Symbol(elem.Value)
		if !sym.IsVariable() {
			return nil, fmt.Errorf("parser: element %d must be a variable, got %s", i, sym)
		}
		vars = append(vars, sym)
	}
	return vars, nil
}

// ExtractVariables returns every distinct variable referenced anywhere in
// the query: :find, :where (including nested or/not clauses), and
// :order-by.
func ExtractVariables(q *query.Query) []query.Symbol {
	seen := make(map[query.Symbol]bool)
	var out []query.Symbol
	add := func(s query.Symbol) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, f := range q.Find {
		switch e := f.(type) {
		case query.FindVariable:
			add(e.Symbol)
		case query.FindAggregate:
			add(e.Arg)
		}
	}
	for _, c := range q.Where {
		extractClauseVariables(c, add)
	}
	for _, o := range q.OrderBy {
		add(o.Variable)
	}
	return out
}

func extractClauseVariables(c query.Clause, add func(query.Symbol)) {
	switch cl := c.(type) {
	case *query.DataPattern:
		for _, s := range cl.Symbols() {
			add(s)
		}
	case *query.Expression:
		for _, s := range cl.Function.RequiredSymbols() {
			add(s)
		}
		if tb, ok := cl.Binding.(query.TupleBinding); ok {
			for _, s := range tb.Variables {
				add(s)
			}
		} else if sb, ok := cl.Binding.(query.ScalarBinding); ok {
			add(sb.Variable)
		}
	case query.Predicate:
		for _, s := range cl.RequiredSymbols() {
			add(s)
		}
	case *query.Or:
		for _, branch := range cl.Branches {
			for _, bc := range branch {
				extractClauseVariables(bc, add)
			}
		}
	case *query.OrJoin:
		for _, v := range cl.Vars {
			add(v)
		}
	case *query.Not:
		for _, nc := range cl.Clauses {
			extractClauseVariables(nc, add)
		}
	case *query.NotJoin:
		for _, v := range cl.Vars {
			add(v)
		}
	case *query.RuleInvocation:
		for _, a := range cl.Args {
			if v, ok := a.(query.Variable); ok {
				add(v.Name)
			}
		}
	}
}

// ValidateQuery runs structural checks spec.md's error-handling section
// requires at parse time: every :find variable must appear in :where,
// and or branches must share free variables (or-join branches are not
// checked here).
func ValidateQuery(q *query.Query) error {
	return quillerr.Query(validateQuery(q))
}

func validateQuery(q *query.Query) error {
	bound := make(map[query.Symbol]bool)
	for _, c := range q.Where {
		extractClauseVariables(c, func(s query.Symbol) { bound[s] = true })
	}
	for _, f := range q.Find {
		if fv, ok := f.(query.FindVariable); ok && !bound[fv.Symbol] {
			return fmt.Errorf("parser: find variable %s is not bound by any where clause", fv.Symbol)
		}
	}
	for _, c := range q.Where {
		if err := validateClause(c); err != nil {
			return err
		}
	}
	return nil
}

func validateClause(c query.Clause) error {
	switch cl := c.(type) {
	case *query.Or:
		var first map[query.Symbol]bool
		for i, branch := range cl.Branches {
			vars := branchVariables(branch)
			if i == 0 {
				first = vars
				continue
			}
			if !sameVarSet(first, vars) {
				return fmt.Errorf("parser: or branches must use the same set of free variables")
			}
		}
	case *query.OrJoin:
		// Required ([[?x]]) bindings name a variable that must already be
		// bound in the *incoming* relation -- that's only known once the
		// planner threads bindings through, so it's checked by the
		// executor at evaluation time, not here.
	}
	return nil
}

func branchVariables(clauses []query.Clause) map[query.Symbol]bool {
	vars := make(map[query.Symbol]bool)
	for _, c := range clauses {
		extractClauseVariables(c, func(s query.Symbol) { vars[s] = true })
	}
	return vars
}

func sameVarSet(a, b map[query.Symbol]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
