package planner

import (
	"fmt"
	"sort"

	"github.com/quilldb/quill"
	"github.com/quilldb/quill/query"
)

// patternGroup is a cluster of data patterns that share an entity
// variable, planned and emitted as a single phase.
type patternGroup struct {
	entity   query.Symbol
	patterns []*query.DataPattern
	symbols  map[query.Symbol]bool
}

// buildPhases groups data patterns by shared entity variable, orders the
// groups by how much they connect to what's already bound (falling back
// to the most selective group to start), and then slots every predicate,
// expression, or/not clause, and rule invocation into the earliest phase
// whose symbols are all available by then.
func (p *Planner) buildPhases(
	patterns []*query.DataPattern,
	predicates []query.Predicate,
	expressions []*query.Expression,
	ors []query.Clause,
	nots []query.Clause,
	rules []*query.RuleInvocation,
	inputSymbols map[query.Symbol]bool,
) []Phase {
	groups := p.groupByEntity(patterns)
	ordered := p.orderGroups(groups, findVarsPlaceholder(ors, nots), inputSymbols)

	resolved := make(map[query.Symbol]bool, len(inputSymbols))
	for s := range inputSymbols {
		resolved[s] = true
	}

	phases := make([]Phase, 0, len(ordered)+1)
	for _, g := range ordered {
		available := symbolSlice(resolved)
		sortedPatterns := p.sortPatternsByScore(g.patterns, resolved)
		provides := make(map[query.Symbol]bool)
		for _, pat := range sortedPatterns {
			for _, s := range pat.Symbols() {
				if !resolved[s] {
					provides[s] = true
				}
				resolved[s] = true
			}
		}
		phases = append(phases, Phase{
			Patterns:  sortedPatterns,
			Available: available,
			Provides:  symbolSlice(provides),
		})
	}

	if len(phases) == 0 {
		// No data patterns: clauses still need a phase to be placed in.
		phases = append(phases, Phase{Available: symbolSlice(resolved)})
	}
	attachClauses(phases, predicates, expressions, ors, nots, rules, resolved)
	return phases
}

// findVarsPlaceholder exists because or/not clause variables get their own
// bonus in orderGroups; pulling their symbols out front keeps scoring in
// one place instead of threading find-vars through from the caller.
func findVarsPlaceholder(ors, nots []query.Clause) []query.Symbol {
	var syms []query.Symbol
	collect := func(c query.Clause) {
		switch cl := c.(type) {
		case *query.OrJoin:
			syms = append(syms, cl.Vars...)
		case *query.NotJoin:
			syms = append(syms, cl.Vars...)
		}
	}
	for _, c := range ors {
		collect(c)
	}
	for _, c := range nots {
		collect(c)
	}
	return syms
}

func (p *Planner) groupByEntity(patterns []*query.DataPattern) []patternGroup {
	groups := make(map[query.Symbol]*patternGroup)
	var order []query.Symbol

	for i, pat := range patterns {
		key := query.Symbol("")
		if v, ok := pat.GetE().(query.Variable); ok {
			key = v.Name
		} else {
			key = query.Symbol(fmt.Sprintf("_pattern_%d", i))
		}
		g, ok := groups[key]
		if !ok {
			g = &patternGroup{entity: key, symbols: make(map[query.Symbol]bool)}
			groups[key] = g
			order = append(order, key)
		}
		g.patterns = append(g.patterns, pat)
		for _, s := range pat.Symbols() {
			g.symbols[s] = true
		}
	}

	result := make([]patternGroup, 0, len(order))
	for _, k := range order {
		result = append(result, *groups[k])
	}
	return result
}

// orderGroups greedily orders pattern groups: the first group is the most
// selective against the starting bindings, every later group is whichever
// remaining group shares the most symbols with what's already resolved
// (with a bonus for groups touching a variable an or/not clause needs).
func (p *Planner) orderGroups(groups []patternGroup, bonusVars []query.Symbol, inputSymbols map[query.Symbol]bool) []patternGroup {
	if len(groups) == 0 {
		return nil
	}
	bonus := make(map[query.Symbol]bool, len(bonusVars))
	for _, v := range bonusVars {
		bonus[v] = true
	}

	resolved := make(map[query.Symbol]bool, len(inputSymbols))
	for s := range inputSymbols {
		resolved[s] = true
	}

	remaining := append([]patternGroup{}, groups...)
	ordered := make([]patternGroup, 0, len(groups))

	// Seed with the most selective group.
	bestIdx, bestScore := 0, 1<<30
	for i, g := range remaining {
		s := p.groupSelectivity(g, resolved)
		if s < bestScore {
			bestScore, bestIdx = s, i
		}
	}
	ordered = append(ordered, remaining[bestIdx])
	for s := range remaining[bestIdx].symbols {
		resolved[s] = true
	}
	remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

	for len(remaining) > 0 {
		bestIdx, bestScore = -1, -1
		for i, g := range remaining {
			score := 0
			for s := range g.symbols {
				if resolved[s] {
					score += 10
				}
				if bonus[s] {
					score += 5
				}
			}
			if score > bestScore {
				bestScore, bestIdx = score, i
			}
		}
		ordered = append(ordered, remaining[bestIdx])
		for s := range remaining[bestIdx].symbols {
			resolved[s] = true
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return ordered
}

func (p *Planner) groupSelectivity(g patternGroup, resolved map[query.Symbol]bool) int {
	best := 1 << 30
	for _, pat := range g.patterns {
		if s := p.scorePattern(pat, resolved); s < best {
			best = s
		}
	}
	return best
}

// scorePattern scores a pattern for ordering: lower is more selective and
// should run earlier. Constants and already-bound variables are cheap to
// match; unbound variables in the entity/attribute/value slots widen the
// scan, so they cost more.
func (p *Planner) scorePattern(pat *query.DataPattern, resolved map[query.Symbol]bool) int {
	score := 0
	score += p.scoreElement(pat.GetE(), resolved, 1000)
	score += p.scoreAttribute(pat.GetA(), resolved)
	score += p.scoreElement(pat.GetV(), resolved, 500)

	newBindings := 0
	for _, s := range pat.Symbols() {
		if !resolved[s] {
			newBindings++
		}
	}
	score -= newBindings * 10
	return score
}

func (p *Planner) scoreElement(elem query.PatternElement, resolved map[query.Symbol]bool, unboundPenalty int) int {
	if elem == nil {
		return 0
	}
	if v, ok := elem.(query.Variable); ok {
		if resolved[v.Name] {
			return -unboundPenalty / 2
		}
		return unboundPenalty
	}
	return -unboundPenalty
}

func (p *Planner) scoreAttribute(elem query.PatternElement, resolved map[query.Symbol]bool) int {
	if elem == nil {
		return 0
	}
	if v, ok := elem.(query.Variable); ok {
		if resolved[v.Name] {
			return 10
		}
		return 100
	}
	if p.stats == nil {
		return 0
	}
	if c, ok := elem.(query.Constant); ok {
		if kw, ok := c.Value.(quill.Keyword); ok {
			if card, found := p.stats[kw.String()]; found {
				return card / 100
			}
		}
	}
	return 0
}

func (p *Planner) sortPatternsByScore(patterns []*query.DataPattern, resolved map[query.Symbol]bool) []*query.DataPattern {
	out := append([]*query.DataPattern{}, patterns...)
	sort.SliceStable(out, func(i, j int) bool {
		return p.scorePattern(out[i], resolved) < p.scorePattern(out[j], resolved)
	})
	return out
}

func symbolSlice(set map[query.Symbol]bool) []query.Symbol {
	out := make([]query.Symbol, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// attachClauses places each predicate/expression/or/not/rule into the
// earliest phase whose cumulative bindings satisfy its required symbols.
// Anything that still can't be satisfied after the last phase is attached
// there anyway; the executor surfaces an unbound-variable error at run
// time, same as an unresolvable find variable does in validatePlan.
func attachClauses(
	phases []Phase,
	predicates []query.Predicate,
	expressions []*query.Expression,
	ors []query.Clause,
	nots []query.Clause,
	rules []*query.RuleInvocation,
	finalResolved map[query.Symbol]bool,
) {
	if len(phases) == 0 {
		phases = append(phases, Phase{})
	}

	cumulative := make([]map[query.Symbol]bool, len(phases))
	seen := make(map[query.Symbol]bool)
	for i, ph := range phases {
		for _, s := range ph.Available {
			seen[s] = true
		}
		for _, s := range ph.Provides {
			seen[s] = true
		}
		cumulative[i] = copySet(seen)
	}

	placeAt := func(required []query.Symbol) int {
		for i, avail := range cumulative {
			if hasAll(avail, required) {
				return i
			}
		}
		return len(phases) - 1
	}

	for _, pred := range predicates {
		i := placeAt(pred.RequiredSymbols())
		phases[i].Predicates = append(phases[i].Predicates, pred)
	}
	for _, expr := range expressions {
		i := placeAt(expr.Function.RequiredSymbols())
		phases[i].Expressions = append(phases[i].Expressions, expr)
		for _, sym := range bindingSymbols(expr.Binding) {
			for j := i; j < len(cumulative); j++ {
				cumulative[j][sym] = true
			}
			phases[i].Provides = append(phases[i].Provides, sym)
		}
	}
	for _, c := range ors {
		i := placeAt(clauseRequiredSymbols(c))
		phases[i].Ors = append(phases[i].Ors, c)
	}
	for _, c := range nots {
		i := placeAt(clauseRequiredSymbols(c))
		phases[i].Nots = append(phases[i].Nots, c)
	}
	for _, r := range rules {
		var argVars []query.Symbol
		for _, a := range r.Args {
			if v, ok := a.(query.Variable); ok {
				argVars = append(argVars, v.Name)
			}
		}
		// Only the args already bound somewhere upstream gate where the
		// invocation can run; the rest are new bindings it introduces,
		// mirroring how an Expression's binding form works above.
		alreadyBound := cumulative[len(cumulative)-1]
		var required []query.Symbol
		for _, s := range argVars {
			if alreadyBound[s] {
				required = append(required, s)
			}
		}
		i := placeAt(required)
		phases[i].Rules = append(phases[i].Rules, r)
		for _, s := range argVars {
			if !alreadyBound[s] {
				alreadyBound[s] = true
				for j := i; j < len(cumulative); j++ {
					cumulative[j][s] = true
				}
				phases[i].Provides = append(phases[i].Provides, s)
			}
		}
	}
}

func bindingSymbols(b query.BindingForm) []query.Symbol {
	switch bf := b.(type) {
	case query.ScalarBinding:
		return []query.Symbol{bf.Variable}
	case query.TupleBinding:
		return bf.Variables
	case query.CollectionBinding:
		return []query.Symbol{bf.Variable}
	case query.RelationBinding:
		return bf.Variables
	default:
		return nil
	}
}

func clauseRequiredSymbols(c query.Clause) []query.Symbol {
	switch cl := c.(type) {
	case *query.OrJoin:
		var required []query.Symbol
		for v, req := range cl.Required {
			if req {
				required = append(required, v)
			}
		}
		return required
	case *query.NotJoin:
		return cl.Vars
	default:
		return nil
	}
}

func copySet(s map[query.Symbol]bool) map[query.Symbol]bool {
	out := make(map[query.Symbol]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func hasAll(avail map[query.Symbol]bool, required []query.Symbol) bool {
	for _, r := range required {
		if !avail[r] {
			return false
		}
	}
	return true
}
