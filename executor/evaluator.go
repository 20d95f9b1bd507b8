package executor

import (
	"fmt"

	"github.com/quilldb/quill"
	"github.com/quilldb/quill/planner"
	"github.com/quilldb/quill/query"
	"github.com/quilldb/quill/store"
)

// Evaluator runs a planner.QueryPlan against a store.Store, phase by
// phase, building up one accumulator Relation via natural joins. This is
// the counterpart to the teacher's executor package as a whole, but the
// join-everything-relationally design (rather than substituting bound
// values into later patterns) means a single evaluator handles patterns,
// predicates, expressions, or/or-join, not/not-join, and rule invocations
// uniformly: every clause either produces a Relation joined into the
// accumulator or filters/transforms it in place.
type Evaluator struct {
	store   *store.Store
	matcher *StoreMatcher
	rules   query.Rules
	planner *planner.Planner
}

// NewEvaluator builds an Evaluator over s. rules may be nil if the query
// has no rule invocations.
func NewEvaluator(s *store.Store, rules query.Rules) *Evaluator {
	return &Evaluator{
		store:   s,
		matcher: NewStoreMatcher(s),
		rules:   rules,
		planner: planner.New(nil),
	}
}

// NewEvaluatorAsOf builds an Evaluator restricted to datoms asserted at or
// before asOfTx (see StoreMatcher.asOfTx).
func NewEvaluatorAsOf(s *store.Store, rules query.Rules, asOfTx uint64) *Evaluator {
	return &Evaluator{
		store:   s,
		matcher: NewStoreMatcherAsOf(s, asOfTx),
		rules:   rules,
		planner: planner.New(nil),
	}
}

// unitRelation is the empty-column, single-row relation: the identity
// element for Join, used to seed evaluation before any pattern has run.
func unitRelation() Relation {
	return NewRelation(nil, []Tuple{{}})
}

// Execute plans and evaluates q, with inputs supplied positionally, one
// per q.In element (a DatabaseInput takes a slot too; its value is
// ignored). Returns the relation
// over q.Find's variables, aggregated and sorted per q.OrderBy.
func (ev *Evaluator) Execute(q *query.Query, inputs []interface{}) (Relation, error) {
	seed, scalarBound, err := ev.seedRelation(q, inputs)
	if err != nil {
		return nil, err
	}

	inputSymbols := make(map[query.Symbol]bool)
	for s := range scalarBound {
		inputSymbols[s] = true
	}
	for _, c := range seed.Symbols() {
		inputSymbols[c] = true
	}

	plan, err := ev.planner.Plan(q, inputSymbols)
	if err != nil {
		return nil, err
	}

	acc, err := ev.evalPhases(plan.Phases, seed, scalarBound)
	if err != nil {
		return nil, err
	}

	acc, err = acc.Aggregate(q.Find)
	if err != nil {
		return nil, err
	}
	if !hasAggregate(q.Find) {
		columns := make([]query.Symbol, 0, len(q.Find))
		for _, f := range q.Find {
			if fv, ok := f.(query.FindVariable); ok {
				columns = append(columns, fv.Symbol)
			}
		}
		if len(columns) > 0 {
			acc, err = acc.Project(columns)
			if err != nil {
				return nil, err
			}
		}
	}

	if len(q.OrderBy) > 0 {
		acc = acc.Sort(q.OrderBy)
	}
	return acc, nil
}

func hasAggregate(find []query.FindElement) bool {
	for _, f := range find {
		if f.IsAggregate() {
			return true
		}
	}
	return false
}

// seedRelation builds the initial accumulator from q.In/inputs, and the
// map of genuinely fixed scalar values usable for pattern constant
// pushdown (StoreMatcher.Match's bound argument).
func (ev *Evaluator) seedRelation(q *query.Query, inputs []interface{}) (Relation, map[query.Symbol]interface{}, error) {
	acc := unitRelation()
	scalarBound := make(map[query.Symbol]interface{})

	if len(inputs) != len(q.In) {
		return nil, nil, fmt.Errorf("executor: query declares %d :in input(s), got %d", len(q.In), len(inputs))
	}

	for i, in := range q.In {
		val := inputs[i]
		switch spec := in.(type) {
		case query.DatabaseInput:
			// single-store evaluator: nothing to bind.

		case query.ScalarInput:
			scalarBound[spec.Symbol] = val
			acc = joinRelations(acc, NewRelation([]query.Symbol{spec.Symbol}, []Tuple{{val}}))

		case query.TupleInput:
			row, ok := val.([]interface{})
			if !ok || len(row) != len(spec.Symbols) {
				return nil, nil, fmt.Errorf("executor: :in tuple input %d expects %d values", i, len(spec.Symbols))
			}
			for j, s := range spec.Symbols {
				scalarBound[s] = row[j]
			}
			acc = joinRelations(acc, NewRelation(spec.Symbols, []Tuple{row}))

		case query.CollectionInput:
			values, ok := val.([]interface{})
			if !ok {
				return nil, nil, fmt.Errorf("executor: :in collection input %d expects a slice of values", i)
			}
			tuples := make([]Tuple, len(values))
			for j, v := range values {
				tuples[j] = Tuple{v}
			}
			acc = joinRelations(acc, NewRelation([]query.Symbol{spec.Symbol}, tuples))

		case query.RelationInput:
			rows, ok := val.([][]interface{})
			if !ok {
				return nil, nil, fmt.Errorf("executor: :in relation input %d expects a slice of value rows", i)
			}
			tuples := make([]Tuple, len(rows))
			for j, r := range rows {
				if len(r) != len(spec.Symbols) {
					return nil, nil, fmt.Errorf("executor: :in relation input %d row %d has %d values, want %d", i, j, len(r), len(spec.Symbols))
				}
				tuples[j] = Tuple(r)
			}
			acc = joinRelations(acc, NewRelation(spec.Symbols, tuples))

		default:
			return nil, nil, fmt.Errorf("executor: unsupported :in input spec %T", spec)
		}
	}
	return acc, scalarBound, nil
}

func (ev *Evaluator) evalPhases(phases []planner.Phase, acc Relation, scalarBound map[query.Symbol]interface{}) (Relation, error) {
	var err error
	for _, phase := range phases {
		acc, err = ev.evalPhase(phase, acc, scalarBound)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (ev *Evaluator) evalPhase(phase planner.Phase, acc Relation, scalarBound map[query.Symbol]interface{}) (Relation, error) {
	for _, p := range phase.Patterns {
		rel, err := ev.matcher.Match(p, scalarBound)
		if err != nil {
			return nil, fmt.Errorf("executor: matching %s: %w", p, err)
		}
		acc = joinRelations(acc, rel)
	}
	for _, pred := range phase.Predicates {
		acc = acc.Filter(pred)
	}
	for _, expr := range phase.Expressions {
		acc = acc.EvaluateFunction(expr.Function, expr.Binding)
	}
	for _, or := range phase.Ors {
		var err error
		acc, err = ev.evalOr(or, acc)
		if err != nil {
			return nil, err
		}
	}
	for _, not := range phase.Nots {
		var err error
		acc, err = ev.evalNot(not, acc)
		if err != nil {
			return nil, err
		}
	}
	for _, inv := range phase.Rules {
		var err error
		acc, err = ev.evalRule(inv, acc)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// joinRelations natural-joins a and b, falling back to a cross product
// when they share no columns (including the unitRelation base case,
// which shares none with anything and so concatenates cleanly).
func joinRelations(a, b Relation) Relation {
	common := commonColumns(a.Symbols(), b.Symbols())
	if len(common) == 0 {
		return crossProduct(a, b)
	}
	return HashJoin(a, b, common)
}

// evalBranch plans and evaluates an independent clause list (an or
// branch, a not's inner clauses, a rule body) from scratch. Variables the
// outer accumulator already binds are marked available so the planner
// doesn't demand they be rebound inside the branch; any pattern that does
// reference them is matched freely here and reconciled afterward by
// joining the branch's result back into the accumulator on those shared
// columns.
func (ev *Evaluator) evalBranch(clauses []query.Clause, availableFromOuter []query.Symbol) (Relation, error) {
	inputSymbols := make(map[query.Symbol]bool, len(availableFromOuter))
	for _, s := range availableFromOuter {
		inputSymbols[s] = true
	}
	subQuery := &query.Query{Where: clauses}
	plan, err := ev.planner.Plan(subQuery, inputSymbols)
	if err != nil {
		return nil, err
	}
	return ev.evalPhases(plan.Phases, unitRelation(), map[query.Symbol]interface{}{})
}

func (ev *Evaluator) evalOr(c query.Clause, acc Relation) (Relation, error) {
	var branches [][]query.Clause
	var exportVars []query.Symbol
	switch o := c.(type) {
	case *query.Or:
		branches = o.Branches
	case *query.OrJoin:
		branches = o.Branches
		exportVars = o.Vars
		bound := map[query.Symbol]bool{}
		for _, s := range acc.Symbols() {
			bound[s] = true
		}
		for v, required := range o.Required {
			if required && !bound[v] {
				return nil, fmt.Errorf("executor: or-join requires %s to already be bound (insufficient-binding error)", v)
			}
		}
	default:
		return nil, fmt.Errorf("executor: unexpected or clause %T", c)
	}

	branchRels := make([]Relation, len(branches))
	for i, branch := range branches {
		rel, err := ev.evalBranch(branch, acc.Symbols())
		if err != nil {
			return nil, err
		}
		branchRels[i] = rel
	}

	columns := exportVars
	if columns == nil {
		columns = intersectColumns(branchRels)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("executor: or/or-join branches share no variables to export")
	}

	projected := make([]Relation, len(branchRels))
	for i, rel := range branchRels {
		pr, err := rel.Project(columns)
		if err != nil {
			return nil, fmt.Errorf("executor: or branch %d does not bind %v: %w", i, columns, err)
		}
		projected[i] = pr
	}
	union, err := Union(projected)
	if err != nil {
		return nil, err
	}
	return joinRelations(acc, union), nil
}

func intersectColumns(rels []Relation) []query.Symbol {
	if len(rels) == 0 {
		return nil
	}
	counts := make(map[query.Symbol]int)
	for _, r := range rels {
		seen := make(map[query.Symbol]bool)
		for _, c := range r.Symbols() {
			if !seen[c] {
				seen[c] = true
				counts[c]++
			}
		}
	}
	var out []query.Symbol
	for _, c := range rels[0].Symbols() {
		if counts[c] == len(rels) {
			out = append(out, c)
		}
	}
	return out
}

func (ev *Evaluator) evalNot(c query.Clause, acc Relation) (Relation, error) {
	var clauses []query.Clause
	var joinVars []query.Symbol
	switch n := c.(type) {
	case *query.Not:
		clauses = n.Clauses
		joinVars = intersectSymbols(acc.Symbols(), clauseVars(clauses))
	case *query.NotJoin:
		clauses = n.Clauses
		joinVars = n.Vars
	default:
		return nil, fmt.Errorf("executor: unexpected not clause %T", c)
	}

	innerRel, err := ev.evalBranch(clauses, acc.Symbols())
	if err != nil {
		return nil, err
	}
	if len(joinVars) == 0 {
		// No shared variable: (not ...) degenerates to a boolean guard on
		// the inner clauses' existence, applied uniformly to every row.
		if innerRel.IsEmpty() {
			return acc, nil
		}
		return newRelationNoDedupe(acc.Symbols(), nil), nil
	}
	return acc.AntiJoin(innerRel, joinVars), nil
}

func intersectSymbols(a, b []query.Symbol) []query.Symbol {
	bset := make(map[query.Symbol]bool, len(b))
	for _, s := range b {
		bset[s] = true
	}
	var out []query.Symbol
	seen := make(map[query.Symbol]bool)
	for _, s := range a {
		if bset[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// clauseVars collects every variable a clause list references, to
// determine (not ...)'s implicit join columns the same way the planner's
// branchVariables does for or.
func clauseVars(clauses []query.Clause) []query.Symbol {
	seen := make(map[query.Symbol]bool)
	var out []query.Symbol
	add := func(s query.Symbol) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, c := range clauses {
		switch cl := c.(type) {
		case *query.DataPattern:
			for _, s := range cl.Symbols() {
				add(s)
			}
		case *query.Expression:
			for _, s := range cl.Function.RequiredSymbols() {
				add(s)
			}
			for _, s := range bindingColumns(cl.Binding) {
				add(s)
			}
		case query.Predicate:
			for _, s := range cl.RequiredSymbols() {
				add(s)
			}
		case *query.Or:
			for _, b := range cl.Branches {
				for _, s := range clauseVars(b) {
					add(s)
				}
			}
		case *query.OrJoin:
			for _, s := range cl.Vars {
				add(s)
			}
		case *query.Not:
			for _, s := range clauseVars(cl.Clauses) {
				add(s)
			}
		case *query.NotJoin:
			for _, s := range cl.Vars {
				add(s)
			}
		case *query.RuleInvocation:
			for _, arg := range cl.Args {
				if v, ok := arg.(query.Variable); ok {
					add(v.Name)
				}
			}
		}
	}
	return out
}

// evalRule expands a rule invocation: each alternative body is evaluated
// as its own independent clause list (in the rule's own variable
// namespace, so rule-local variables can't collide with the caller's),
// then its head columns are renamed/filtered to the call site's argument
// list before the alternatives are unioned. This handles non-recursive
// rules; a rule invoking itself (directly or through a cycle) is an Open
// Question resolved against -- see DESIGN.md.
func (ev *Evaluator) evalRule(inv *query.RuleInvocation, acc Relation) (Relation, error) {
	rule, ok := ev.rules[inv.Name]
	if !ok {
		return nil, fmt.Errorf("executor: rule %s is not defined", inv.Name)
	}
	if len(rule.Args) != len(inv.Args) {
		return nil, fmt.Errorf("executor: rule %s expects %d argument(s), got %d", inv.Name, len(rule.Args), len(inv.Args))
	}

	altRels := make([]Relation, 0, len(rule.Bodies))
	for _, body := range rule.Bodies {
		bodyRel, err := ev.evalBranch(body, nil)
		if err != nil {
			return nil, fmt.Errorf("executor: evaluating rule %s: %w", inv.Name, err)
		}
		renamed, err := bindRuleHead(bodyRel, rule.Args, inv.Args)
		if err != nil {
			return nil, fmt.Errorf("executor: rule %s: %w", inv.Name, err)
		}
		altRels = append(altRels, renamed)
	}

	union, err := Union(altRels)
	if err != nil {
		return nil, err
	}
	return joinRelations(acc, union), nil
}

// bindRuleHead reconciles a rule body's result (named by the rule's
// formal parameters) with the call site's argument list: a variable
// argument renames that column to the caller's symbol, a constant
// argument filters to rows matching it and drops the column, a blank
// argument just drops the column.
func bindRuleHead(bodyRel Relation, formalArgs []query.Symbol, callArgs []query.PatternElement) (Relation, error) {
	if len(formalArgs) == 0 {
		if bodyRel.IsEmpty() {
			return newRelationNoDedupe(nil, nil), nil
		}
		return unitRelation(), nil
	}

	headRel, err := bodyRel.Project(formalArgs)
	if err != nil {
		return nil, fmt.Errorf("rule body never binds every head argument: %w", err)
	}

	var outColumns []query.Symbol
	for _, arg := range callArgs {
		if v, ok := arg.(query.Variable); ok {
			outColumns = append(outColumns, v.Name)
		}
	}

	var out []Tuple
	it := headRel.Iterator()
	for it.Next() {
		t := it.Tuple()
		row := make(Tuple, 0, len(outColumns))
		keep := true
		for i, arg := range callArgs {
			switch a := arg.(type) {
			case query.Variable:
				row = append(row, t[i])
			case query.Constant:
				if quill.CompareValues(t[i], a.Value) != 0 {
					keep = false
				}
			case query.Blank:
				// contributes nothing to the output row
			}
			if !keep {
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return NewRelation(outColumns, out), nil
}
