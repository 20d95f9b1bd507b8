// Package query defines the Datalog query AST: the shapes produced by
// quill/parser and consumed by quill/planner and quill/executor. Nothing
// here touches storage -- it is pure syntax plus the small amount of
// evaluation logic (Term.Resolve, Predicate.Eval, Function.Eval) that
// operates on a binding map rather than the store.
package query

import (
	"fmt"

	"github.com/quilldb/quill"
)

// Symbol is a query variable, source variable, or plain identifier
// appearing in a parsed query. Variables begin with '?', source variables
// with '$', and the wildcard is the single symbol "_".
type Symbol string

// IsVariable reports whether s is a logic variable (?x).
func (s Symbol) IsVariable() bool {
	return len(s) > 0 && s[0] == '?'
}

// IsSrcVar reports whether s is a source variable ($ or $name).
func (s Symbol) IsSrcVar() bool {
	return len(s) > 0 && s[0] == '$'
}

func (s Symbol) String() string { return string(s) }

// Pattern is anything that renders back to query syntax. Clause and
// Function both embed it.
type Pattern interface {
	String() string
}

// PatternElement is one slot of a data pattern: a bound variable, the
// wildcard blank, or a literal value.
type PatternElement interface {
	IsVariable() bool
	IsBlank() bool
	String() string
}

// Variable is a pattern-element occurrence of a logic variable.
type Variable struct {
	Name Symbol
}

func (v Variable) IsVariable() bool { return true }
func (v Variable) IsBlank() bool    { return false }
func (v Variable) String() string   { return v.Name.String() }

// Blank is the wildcard "_" pattern element: matches anything, binds
// nothing.
type Blank struct{}

func (b Blank) IsVariable() bool { return false }
func (b Blank) IsBlank() bool    { return true }
func (b Blank) String() string   { return "_" }

// Constant is a literal value occupying a pattern slot (entity id,
// keyword, or typed value).
type Constant struct {
	Value interface{}
}

func (c Constant) IsVariable() bool { return false }
func (c Constant) IsBlank() bool    { return false }
func (c Constant) String() string   { return fmt.Sprintf("%v", c.Value) }

// DataPattern is a [e a v] or [e a v tx] clause.
type DataPattern struct {
	Src      Symbol // source variable, "" means the default/first input
	Elements []PatternElement
}

func (p *DataPattern) clause() {}

func (p *DataPattern) String() string {
	result := "["
	if p.Src != "" {
		result += p.Src.String() + " "
	}
	for i, elem := range p.Elements {
		if i > 0 {
			result += " "
		}
		result += elem.String()
	}
	result += "]"
	return result
}

// GetE, GetA, GetV, GetT return the pattern element at the corresponding
// position, or nil if the pattern is too short.
func (p *DataPattern) GetE() PatternElement {
	if len(p.Elements) > 0 {
		return p.Elements[0]
	}
	return nil
}

func (p *DataPattern) GetA() PatternElement {
	if len(p.Elements) > 1 {
		return p.Elements[1]
	}
	return nil
}

func (p *DataPattern) GetV() PatternElement {
	if len(p.Elements) > 2 {
		return p.Elements[2]
	}
	return nil
}

func (p *DataPattern) GetT() PatternElement {
	if len(p.Elements) > 3 {
		return p.Elements[3]
	}
	return nil
}

// Symbols returns the variables bound by this pattern, in E/A/V/T order,
// without duplicates.
func (p *DataPattern) Symbols() []Symbol {
	var symbols []Symbol
	add := func(elem PatternElement) {
		if elem == nil {
			return
		}
		v, ok := elem.(Variable)
		if !ok {
			return
		}
		for _, s := range symbols {
			if s == v.Name {
				return
			}
		}
		symbols = append(symbols, v.Name)
	}
	add(p.GetE())
	add(p.GetA())
	add(p.GetV())
	add(p.GetT())
	return symbols
}

// Query is a parsed :find/:in/:where[/:order-by] form.
type Query struct {
	Find    []FindElement
	In      []InputSpec
	Where   []Clause
	OrderBy []OrderByClause
}

func (q *Query) String() string {
	result := "[:find"
	for _, elem := range q.Find {
		result += " " + elem.String()
	}
	if len(q.In) > 0 {
		result += " :in"
		for _, in := range q.In {
			result += " " + in.String()
		}
	}
	result += " :where"
	for _, c := range q.Where {
		result += " " + c.String()
	}
	if len(q.OrderBy) > 0 {
		result += " :order-by ["
		for i, o := range q.OrderBy {
			if i > 0 {
				result += " "
			}
			result += o.String()
		}
		result += "]"
	}
	result += "]"
	return result
}

// InputSpec is one element of the :in clause.
type InputSpec interface {
	isInputSpec()
	String() string
}

// DatabaseInput is the default database source ($).
type DatabaseInput struct{ Name Symbol }

func (d DatabaseInput) isInputSpec() {}
func (d DatabaseInput) String() string {
	if d.Name == "" {
		return "$"
	}
	return d.Name.String()
}

// ScalarInput is a single-value input (?x).
type ScalarInput struct{ Symbol Symbol }

func (s ScalarInput) isInputSpec()   {}
func (s ScalarInput) String() string { return s.Symbol.String() }

// CollectionInput is a set-like input ([?x ...]).
type CollectionInput struct{ Symbol Symbol }

func (c CollectionInput) isInputSpec()   {}
func (c CollectionInput) String() string { return "[" + c.Symbol.String() + " ...]" }

// TupleInput is a single fixed-width row input ([[?x ?y]]).
type TupleInput struct{ Symbols []Symbol }

func (t TupleInput) isInputSpec() {}
func (t TupleInput) String() string {
	return "[[" + joinSymbols(t.Symbols) + "]]"
}

// RelationInput is a relation (many rows) input ([[?x ?y] ...]).
type RelationInput struct{ Symbols []Symbol }

func (r RelationInput) isInputSpec() {}
func (r RelationInput) String() string {
	return "[[" + joinSymbols(r.Symbols) + "] ...]"
}

func joinSymbols(syms []Symbol) string {
	s := ""
	for i, sym := range syms {
		if i > 0 {
			s += " "
		}
		s += sym.String()
	}
	return s
}

// BindingForm describes how a function result or subquery row binds new
// variables.
type BindingForm interface {
	isBindingForm()
	String() string
}

// ScalarBinding binds a single value to a single variable (?x).
type ScalarBinding struct{ Variable Symbol }

func (s ScalarBinding) isBindingForm() {}
func (s ScalarBinding) String() string { return s.Variable.String() }

// TupleBinding destructures a fixed-width tuple into variables ([?a ?b]).
type TupleBinding struct{ Variables []Symbol }

func (t TupleBinding) isBindingForm() {}
func (t TupleBinding) String() string { return "[" + joinSymbols(t.Variables) + "]" }

// CollectionBinding binds every value of a column to one variable
// ([?x ...]).
type CollectionBinding struct{ Variable Symbol }

func (c CollectionBinding) isBindingForm() {}
func (c CollectionBinding) String() string { return "[" + c.Variable.String() + " ...]" }

// RelationBinding binds rows of a multi-column relation ([[?a ?b] ...]).
type RelationBinding struct{ Variables []Symbol }

func (r RelationBinding) isBindingForm() {}
func (r RelationBinding) String() string { return "[[" + joinSymbols(r.Variables) + "] ...]" }

// FindElement is one element of the :find clause.
type FindElement interface {
	String() string
	IsAggregate() bool
}

// FindVariable is a plain variable projected as-is.
type FindVariable struct{ Symbol Symbol }

func (f FindVariable) String() string   { return f.Symbol.String() }
func (f FindVariable) IsAggregate() bool { return false }

// FindAggregate is an aggregate function applied to a variable
// ((count ?e)).
type FindAggregate struct {
	Function string
	Arg      Symbol
}

func (f FindAggregate) String() string   { return fmt.Sprintf("(%s %s)", f.Function, f.Arg) }
func (f FindAggregate) IsAggregate() bool { return true }

// FindMode describes the shape of a query's result (spec.md 4.F's "tuple,
// relation, scalar, or collection"). The parser accepts only plain
// variables and aggregates in :find and records no FindMode on a Query;
// a mode is passed explicitly to executor.PrintResult.
type FindMode int

const (
	// FindRelation is the default: every matching tuple is returned.
	FindRelation FindMode = iota
	// FindTuple returns the single result row, or nothing.
	FindTuple
	// FindScalar returns the first cell of the first row (:find ?x .).
	FindScalar
	// FindCollection returns the first column of every row (:find [?x ...]).
	FindCollection
)

// OrderByClause is one :order-by sort key.
type OrderByClause struct {
	Variable  Symbol
	Direction OrderDirection
}

// OrderDirection is ascending or descending.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

func (o OrderByClause) String() string {
	if o.Direction == "" || o.Direction == OrderAsc {
		return string(o.Variable)
	}
	return fmt.Sprintf("[%s :%s]", o.Variable, o.Direction)
}

// Result is one row of a query's output.
type Result []interface{}

// DatomToValues extracts the variable bindings a DataPattern produces from
// a matched datom, keyed by symbol.
func DatomToValues(d quill.Datom, p *DataPattern) map[Symbol]interface{} {
	values := make(map[Symbol]interface{})
	if v, ok := p.GetE().(Variable); ok {
		values[v.Name] = d.E
	}
	if v, ok := p.GetA().(Variable); ok {
		values[v.Name] = d.A
	}
	if v, ok := p.GetV().(Variable); ok {
		values[v.Name] = d.V
	}
	if v, ok := p.GetT().(Variable); ok {
		values[v.Name] = d.Tx
	}
	return values
}
