package query

// Clause is anything that can appear in a query's :where vector.
type Clause interface {
	Pattern
	clause() // unexported marker, mirrors the sealed-interface idiom
}

func (*Or) clause()            {}
func (*OrJoin) clause()        {}
func (*Not) clause()           {}
func (*NotJoin) clause()       {}
func (*RuleInvocation) clause() {}
func (*Expression) clause()    {}

// Expression wraps a Function call with the variable it binds its result
// to: [(fn ...) ?out].
type Expression struct {
	Function Function
	Binding  BindingForm
}

func (e *Expression) String() string {
	return "[" + e.Function.String() + " " + e.Binding.String() + "]"
}

// Or is a union of branches, each evaluated independently against the
// incoming relation and then unioned. Every branch must produce the same
// set of free variables (spec.md 4.F's or/or-join invariant); Or itself
// (unlike OrJoin) infers that export set from the branches rather than
// declaring it.
type Or struct {
	Branches [][]Clause
}

func (o *Or) String() string {
	s := "(or"
	for _, branch := range o.Branches {
		s += " " + branchString(branch)
	}
	s += ")"
	return s
}

// OrJoin is `or` with an explicit exported-variable list. A variable
// wrapped in its own bracket, e.g. [[?x]], must already be bound in the
// incoming relation (an insufficient-binding error otherwise); a bare
// variable is a free variable the branches export.
type OrJoin struct {
	Vars     []Symbol
	Required map[Symbol]bool // subset of Vars that must already be bound
	Branches [][]Clause
}

func (o *OrJoin) String() string {
	s := "(or-join ["
	for i, v := range o.Vars {
		if i > 0 {
			s += " "
		}
		if o.Required[v] {
			s += "[" + v.String() + "]"
		} else {
			s += v.String()
		}
	}
	s += "]"
	for _, branch := range o.Branches {
		s += " " + branchString(branch)
	}
	s += ")"
	return s
}

// Not is an antijoin: rows of the incoming relation for which the inner
// clauses, evaluated with the outer bindings in scope, produce no match
// are kept; matching rows are dropped.
type Not struct {
	Clauses []Clause
}

func (n *Not) String() string {
	return "(not" + clausesString(n.Clauses) + ")"
}

// NotJoin is `not` with an explicit join-variable list, analogous to
// OrJoin's explicit export list.
type NotJoin struct {
	Vars    []Symbol
	Clauses []Clause
}

func (n *NotJoin) String() string {
	s := "(not-join [" + joinSymbols(n.Vars) + "]"
	s += clausesString(n.Clauses)
	s += ")"
	return s
}

// RuleInvocation expands a named rule with the given arguments, e.g.
// (movie-cast ?m ?actor). Rule bodies are supplied separately as a rules
// set (query.Rules) at evaluation time; the AST only records the call.
type RuleInvocation struct {
	Name Symbol
	Args []PatternElement
}

func (r *RuleInvocation) String() string {
	s := "(" + r.Name.String()
	for _, a := range r.Args {
		s += " " + a.String()
	}
	s += ")"
	return s
}

func branchString(clauses []Clause) string {
	if len(clauses) == 1 {
		return clauses[0].String()
	}
	return "(and" + clausesString(clauses) + ")"
}

func clausesString(clauses []Clause) string {
	s := ""
	for _, c := range clauses {
		s += " " + c.String()
	}
	return s
}

// Rule is one named rule definition: (name [args...] clauses...). A rule
// may have several alternative bodies sharing the same head, unioned like
// or-join branches.
type Rule struct {
	Name   Symbol
	Args   []Symbol
	Bodies [][]Clause
}

// Rules is a named set of rule definitions, passed alongside a Query to
// the planner/executor so RuleInvocation clauses can be expanded.
type Rules map[Symbol]*Rule
