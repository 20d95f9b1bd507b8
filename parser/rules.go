package parser

import (
	"fmt"

	"github.com/quilldb/quill/edn"
	"github.com/quilldb/quill/query"
	"github.com/quilldb/quill/quillerr"
)

// ParseRules parses a rules vector: [[(rule-name ?a ?b) clause...]
// [(rule-name ?a ?b) clause...] ...]. The teacher never had a rules
// concept at all (datalog/parser only ever parsed a single query), so
// this reuses parseClauseList -- the same machinery a rule body and a
// not/or branch already share -- rather than inventing new clause
// parsing. Any failure is returned as a quillerr.QueryError.
func ParseRules(input string) (query.Rules, error) {
	rules, err := parseRules(input)
	if err != nil {
		return nil, quillerr.Query(err)
	}
	return rules, nil
}

func parseRules(input string) (query.Rules, error) {
	node, err := edn.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	if node.Type != edn.NodeVector {
		return nil, fmt.Errorf("parser: rules must be a vector, got %v", node.Type)
	}

	rules := make(query.Rules)
	for i := range node.Nodes {
		if err := parseRuleDefinition(&node.Nodes[i], rules); err != nil {
			return nil, fmt.Errorf("parser: rule %d: %w", i, err)
		}
	}
	return rules, nil
}

func parseRuleDefinition(node *edn.Node, rules query.Rules) error {
	if node.Type != edn.NodeVector || len(node.Nodes) == 0 {
		return fmt.Errorf("a rule definition must be a vector starting with its head")
	}
	head := node.Nodes[0]
	if head.Type != edn.NodeList || len(head.Nodes) == 0 || head.Nodes[0].Type != edn.NodeSymbol {
		return fmt.Errorf("a rule's head must be a list starting with the rule name, got %v", head.Type)
	}

	name := query.Symbol(head.Nodes[0].Value)
	args, err := ruleArgList(head.Nodes[1:])
	if err != nil {
		return fmt.Errorf("rule %s head: %w", name, err)
	}

	body, err := parseClauseList(node.Nodes[1:])
	if err != nil {
		return fmt.Errorf("rule %s body: %w", name, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("rule %s has an empty body", name)
	}

	existing, ok := rules[name]
	if !ok {
		rules[name] = &query.Rule{Name: name, Args: args, Bodies: [][]query.Clause{body}}
		return nil
	}
	if !sameSymbols(existing.Args, args) {
		return fmt.Errorf("rule %s redefined with a different argument list (%v vs %v)", name, existing.Args, args)
	}
	existing.Bodies = append(existing.Bodies, body)
	return nil
}

func ruleArgList(nodes []edn.Node) ([]query.Symbol, error) {
	args := make([]query.Symbol, len(nodes))
	for i, n := range nodes {
		if n.Type != edn.NodeSymbol {
			return nil, fmt.Errorf("argument %d must be a variable, got %v", i, n.Type)
		}
		sym := query.Symbol(n.Value)
		if !sym.IsVariable() {
			return nil, fmt.Errorf("argument %d must be a variable, got %s", i, n.Value)
		}
		args[i] = sym
	}
	return args, nil
}

func sameSymbols(a, b []query.Symbol) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
