// Package planner turns a parsed query into an ordered execution plan. It
// keeps the teacher's two ideas -- group clauses into phases, order phases
// by symbol connectivity, prefer patterns with more bound components first
// -- and drops everything cost-based: subquery decorrelation, common
// subexpression elimination, semantic time-predicate rewriting, worker
// tuning, and plan caching. Nothing in this query language needs a
// cost-based optimizer; a deterministic reordering pass is enough.
package planner

import (
	"fmt"

	"github.com/quilldb/quill/query"
)

// QueryPlan is an ordered sequence of phases ready for the executor.
type QueryPlan struct {
	Query  *query.Query
	Phases []Phase
}

// Phase groups clauses that can run together once their inputs are
// available: data patterns first (so they can bind new variables), then
// the predicates/expressions/or/not clauses whose required symbols are
// satisfied by this phase's patterns or an earlier phase.
type Phase struct {
	Patterns    []*query.DataPattern
	Predicates  []query.Predicate
	Expressions []*query.Expression
	Ors         []query.Clause // *query.Or or *query.OrJoin
	Nots        []query.Clause // *query.Not or *query.NotJoin
	Rules       []*query.RuleInvocation
	Available   []query.Symbol // bound coming into this phase
	Provides    []query.Symbol // newly bound by this phase
}

// Planner builds plans. It holds no mutable state across calls; stats
// holds attribute-cardinality hints the same way the teacher's Statistics
// struct does. A constant attribute's count/100 is added to a pattern's
// score, which picks the starting pattern group and orders data patterns
// within a phase.
type Planner struct {
	stats AttributeStats
}

// AttributeStats estimates how many datoms carry a given attribute, used
// only to prefer more selective patterns first. A nil map means "no
// stats available" and every attribute scores the same.
type AttributeStats map[string]int

// New creates a Planner. stats may be nil.
func New(stats AttributeStats) *Planner {
	return &Planner{stats: stats}
}

// Plan builds an execution plan for q. inputSymbols are the variables
// already bound by the :in clause (and, for nested planning, by an outer
// query) before any :where clause runs.
func (p *Planner) Plan(q *query.Query, inputSymbols map[query.Symbol]bool) (*QueryPlan, error) {
	if inputSymbols == nil {
		inputSymbols = make(map[query.Symbol]bool)
	}
	for _, in := range q.In {
		for _, sym := range inputSpecSymbols(in) {
			inputSymbols[sym] = true
		}
	}

	patterns, predicates, expressions, ors, nots, rules := separateClauses(q.Where)

	phases := p.buildPhases(patterns, predicates, expressions, ors, nots, rules, inputSymbols)

	if err := validatePlan(phases, q.Find, inputSymbols); err != nil {
		return nil, err
	}

	return &QueryPlan{Query: q, Phases: phases}, nil
}

func inputSpecSymbols(in query.InputSpec) []query.Symbol {
	switch i := in.(type) {
	case query.ScalarInput:
		return []query.Symbol{i.Symbol}
	case query.CollectionInput:
		return []query.Symbol{i.Symbol}
	case query.TupleInput:
		return i.Symbols
	case query.RelationInput:
		return i.Symbols
	default:
		return nil
	}
}

func separateClauses(clauses []query.Clause) (
	patterns []*query.DataPattern,
	predicates []query.Predicate,
	expressions []*query.Expression,
	ors []query.Clause,
	nots []query.Clause,
	rules []*query.RuleInvocation,
) {
	for _, c := range clauses {
		switch cl := c.(type) {
		case *query.DataPattern:
			patterns = append(patterns, cl)
		case *query.Expression:
			expressions = append(expressions, cl)
		case query.Predicate:
			predicates = append(predicates, cl)
		case *query.Or, *query.OrJoin:
			ors = append(ors, cl)
		case *query.Not, *query.NotJoin:
			nots = append(nots, cl)
		case *query.RuleInvocation:
			rules = append(rules, cl)
		}
	}
	return
}

func validatePlan(phases []Phase, find []query.FindElement, inputSymbols map[query.Symbol]bool) error {
	bound := make(map[query.Symbol]bool)
	for sym := range inputSymbols {
		bound[sym] = true
	}
	for _, phase := range phases {
		for _, s := range phase.Provides {
			bound[s] = true
		}
	}
	for _, f := range find {
		switch e := f.(type) {
		case query.FindVariable:
			if !bound[e.Symbol] {
				return fmt.Errorf("planner: find variable %s is never bound by the plan", e.Symbol)
			}
		case query.FindAggregate:
			if !bound[e.Arg] {
				return fmt.Errorf("planner: aggregate argument %s is never bound by the plan", e.Arg)
			}
		}
	}
	return nil
}
