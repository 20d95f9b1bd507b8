package transactor

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/quillerr"
	"github.com/quilldb/quill/schema"
	"github.com/quilldb/quill/store"
)

// CreatedAtAttr/UpdatedAtAttr are the synthetic attributes written per
// touched entity when Options.AutoEntityTime is set.
var (
	CreatedAtAttr = quill.NewKeyword(":db/created-at")
	UpdatedAtAttr = quill.NewKeyword(":db/updated-at")
	TxInstantAttr = quill.NewKeyword(":db/txInstant")
	CurrentTxKey  = ":db/current-tx"
)

// Options configures a Transactor's optional behaviors (spec.md §4.E).
type Options struct {
	// ValidateData, when true, checks every asserted value against its
	// attribute's declared type and rejects mismatches.
	ValidateData bool
	// AutoEntityTime, when true, injects :db/created-at (first touch
	// only) and :db/updated-at (every touch) for every entity a
	// transaction writes to.
	AutoEntityTime bool
	// Now returns the current time, overridable in tests so commits are
	// deterministic; defaults to time.Now.
	Now func() time.Time
}

// Transactor owns the mutable counters (max eid, max tx) and schema a
// database needs to process transactions, generalizing the teacher's
// Database (datalog/storage/database.go) beyond its plain txCounter.
type Transactor struct {
	store  *store.Store
	schema *schema.Schema
	opts   Options

	mu      sync.Mutex
	maxEid  atomic.Uint64
	maxTx   atomic.Uint64
	fns     map[quill.Keyword]TxFunc
}

// New creates a Transactor over an already-open store and schema.
func New(s *store.Store, sch *schema.Schema, opts Options) *Transactor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Transactor{store: s, schema: sch, opts: opts, fns: make(map[quill.Keyword]TxFunc)}
}

// RegisterFn installs a named transaction function, invoked by a
// `(:<ident>)` tx-item.
func (t *Transactor) RegisterFn(ident quill.Keyword, fn TxFunc) {
	t.fns[ident] = fn
}

// Schema returns the transactor's current schema.
func (t *Transactor) Schema() *schema.Schema { return t.schema }

// SetSchema installs a new schema, e.g. after a schema-as-data transaction
// adds attributes, propagating it to the underlying store as well.
func (t *Transactor) SetSchema(sch *schema.Schema) {
	t.schema = sch
	t.store.SetSchema(sch)
}

// NextEid allocates and returns the next fresh entity id.
func (t *Transactor) NextEid() quill.Identity {
	return quill.NewIdentity(t.maxEid.Add(1))
}

// Transact runs the full seven-phase commit pipeline over items and
// returns the resulting report, or the first phase's error with any
// partial state discarded (spec.md §4.E "Failure policy": any rejected
// tx-item aborts the whole transaction with no partial visibility -- since
// all phases validate in memory before the single store.Assert/Retract
// call, nothing is written until every phase has succeeded).
// Transact commits items as one atomic transaction, running them through
// the seven-phase pipeline below. Any rejection is returned as a
// quillerr.TransactError so callers can branch on quillerr.KindOf without
// parsing the message.
func (t *Transactor) Transact(items []TxItem) (*TxReport, error) {
	report, err := t.transact(items)
	if err != nil {
		return nil, quillerr.Transact(err)
	}
	return report, nil
}

func (t *Transactor) transact(items []TxItem) (*TxReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dbBefore := t.maxTx.Load()

	// Phase 1: flatten map-form entities into simple tx-items.
	flat, err := t.flatten(items)
	if err != nil {
		return nil, err
	}

	// Phase 2: tempid resolution (lookup-refs, upserts, fresh assignment).
	tempids, err := t.resolveTempids(flat)
	if err != nil {
		return nil, err
	}

	simple, err := t.applyResolution(flat, tempids)
	if err != nil {
		return nil, err
	}

	// Phase 3: reject direct writes to composite tuple attrs, except ones
	// that merely restate what the transactor would itself compute.
	simple, err = t.rejectDirectTupleWrites(simple)
	if err != nil {
		return nil, err
	}

	// Phase 4: validation.
	if t.opts.ValidateData {
		if err := t.validate(simple); err != nil {
			return nil, err
		}
	}

	// Phase 5: unique enforcement.
	if err := t.enforceUnique(simple); err != nil {
		return nil, err
	}

	// Phase 6: CAS preconditions.
	adds, retracts, err := t.splitAndCheckCAS(simple)
	if err != nil {
		return nil, err
	}

	// Cardinality-one enforcement: Store.assertDatom writes every asserted
	// datom unconditionally, so without this step two successive
	// cardinality-one adds to the same entity/attribute would leave both
	// values coexisting in the indices. Generate the implicit retract of
	// whatever value is currently stored before the new one is asserted.
	cardinalityRetracts, err := t.enforceCardinalityOne(adds, retracts)
	if err != nil {
		return nil, err
	}
	retracts = append(retracts, cardinalityRetracts...)

	// Phase 3: composite tuple attr recomputation, over the entities
	// touched by this batch of simple adds/retracts.
	tupleAdds, tupleRetracts, err := t.recomputeTupleAttrs(adds, retracts)
	if err != nil {
		return nil, err
	}
	adds = append(adds, tupleAdds...)
	retracts = append(retracts, tupleRetracts...)

	if t.opts.AutoEntityTime {
		autoAdds, err := t.autoEntityTime(adds)
		if err != nil {
			return nil, err
		}
		adds = append(adds, autoAdds...)
	}

	// Phase 7: commit.
	txID := t.maxTx.Add(1)
	now := t.opts.Now()
	for i := range adds {
		adds[i].Tx = txID
	}
	for i := range retracts {
		retracts[i].Tx = txID
	}

	if len(retracts) > 0 {
		if err := t.store.Retract(retracts); err != nil {
			t.maxTx.Store(txID - 1)
			return nil, fmt.Errorf("transact: %w", err)
		}
	}
	if len(adds) > 0 {
		if err := t.store.Assert(adds); err != nil {
			t.maxTx.Store(txID - 1)
			return nil, fmt.Errorf("transact: %w", err)
		}
	}

	// Transaction entities get their own id range (from 1<<62 up), so the
	// :db/txInstant datom never lands on an entity NextEid allocates or a
	// caller names with a small id.
	txEntity := quill.NewIdentity(1<<62 + txID)
	txMeta := []quill.Datom{{E: txEntity, A: TxInstantAttr, V: now, Tx: txID, Op: quill.Added}}
	if err := t.store.Assert(txMeta); err != nil {
		return nil, fmt.Errorf("transact: write tx metadata: %w", err)
	}

	tempidResult := make(map[string]quill.Identity, len(tempids))
	for k, v := range tempids {
		tempidResult[k] = v
	}
	tempidResult[CurrentTxKey] = txEntity

	allTxData := make([]quill.Datom, 0, len(adds)+len(retracts)+1)
	for _, d := range adds {
		allTxData = append(allTxData, d)
	}
	for _, d := range retracts {
		d.Op = quill.Retracted
		allTxData = append(allTxData, d)
	}
	allTxData = append(allTxData, txMeta...)

	return &TxReport{
		TxID:     txID,
		TxData:   allTxData,
		Tempids:  tempidResult,
		DbBefore: dbBefore,
		DbAfter:  txID,
	}, nil
}

// reverseAttr recognizes the `:ns/_attr` reverse-reference naming
// convention: the forward attribute is `:ns/attr`, and flattening a
// reverse-ref attribute flips which side is E and which is V.
func reverseAttr(a quill.Keyword) (quill.Keyword, bool) {
	s := a.String()
	slash := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			slash = i
		}
	}
	if slash == -1 || slash+1 >= len(s) || s[slash+1] != '_' {
		return a, false
	}
	return quill.NewKeyword(s[:slash+1] + s[slash+2:]), true
}

// flatten expands MapEntity items into AddDatom items, assigning a fresh
// TempID to every map-form entity lacking an explicit ID and to every
// nested sub-entity map, and flipping reverse-ref attributes (spec.md
// §4.E phase 1).
func (t *Transactor) flatten(items []TxItem) ([]TxItem, error) {
	var out []TxItem
	anon := 0
	newAnonTempID := func() EntityRef {
		anon++
		return NewTempID(fmt.Sprintf("__anon%d", anon))
	}

	var flattenEntity func(m *MapEntity) error
	flattenEntity = func(m *MapEntity) error {
		e := m.ID
		if e == nil {
			e = newAnonTempID()
		}
		for a, v := range m.Attrs {
			forward, isReverse := reverseAttr(a)
			values := v
			list, isSlice := values.([]interface{})
			if !isSlice {
				list = []interface{}{values}
			}
			for _, one := range list {
				vv := one
				if sub, ok := vv.(*MapEntity); ok {
					if sub.ID == nil {
						sub.ID = newAnonTempID()
					}
					if err := flattenEntity(sub); err != nil {
						return err
					}
					vv = sub.ID
				}
				if isReverse {
					out = append(out, AddDatom{E: vv, A: forward, V: e})
				} else {
					out = append(out, AddDatom{E: e, A: a, V: vv})
				}
			}
		}
		return nil
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		if m, ok := item.(*MapEntity); ok {
			if err := flattenEntity(m); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// resolveTempids implements spec.md §4.E phase 2: lookup-refs first,
// then upsert binding, then fresh assignment for everything left, in
// tempid-key order so results are deterministic.
func (t *Transactor) resolveTempids(items []TxItem) (map[string]quill.Identity, error) {
	bindings := make(map[string]quill.Identity)
	order := []string{}
	seen := map[string]bool{}
	asEntity := map[string]bool{}
	noteTemp := func(ref EntityRef) {
		if tid, ok := ref.(TempID); ok {
			if !seen[tid.key] {
				seen[tid.key] = true
				order = append(order, tid.key)
			}
		}
	}
	noteEntity := func(ref EntityRef) {
		noteTemp(ref)
		if tid, ok := ref.(TempID); ok {
			asEntity[tid.key] = true
		}
	}

	for _, item := range items {
		switch it := item.(type) {
		case AddDatom:
			noteEntity(it.E)
			noteTemp(it.V)
		case RetractDatom:
			noteEntity(it.E)
			noteTemp(it.V)
		case RetractEntity:
			noteEntity(it.E)
		case RetractAttribute:
			noteEntity(it.E)
		case CAS:
			if _, ok := it.E.(TempID); ok {
				return nil, fmt.Errorf("transact: tempid not allowed as entity id in :db.fn/cas")
			}
		}
	}

	// Lookup-refs resolve independent of tempid order: any EntityRef that
	// is a LookupRef is looked up directly wherever it is used, so no
	// binding table entry is needed for them; only TempIDs go through
	// `bindings`.
	resolveLookup := func(lr LookupRef) (quill.Identity, error) {
		id, ok, err := t.store.Lookup(lr.Attr, lr.Value)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("transact: unresolved lookup-ref [%s %v]", lr.Attr, lr.Value)
		}
		return id, nil
	}

	// Upsert pass: for each tempid, scan the add-items that define it
	// (E==tempid) for a unique/identity attribute whose value already
	// exists; bind to that eid. Detect conflicting upserts on a single
	// tempid.
	definingAdds := make(map[string][]AddDatom)
	for _, item := range items {
		if ad, ok := item.(AddDatom); ok {
			if tid, ok := ad.E.(TempID); ok {
				definingAdds[tid.key] = append(definingAdds[tid.key], ad)
			}
		}
	}

	for _, key := range order {
		adds := definingAdds[key]
		var resolved quill.Identity
		var resolvedFrom quill.Keyword
		haveResolved := false
		for _, ad := range adds {
			if !t.schema.IsUniqueIdentity(ad.A) {
				continue
			}
			val := ad.V
			if lr, ok := val.(LookupRef); ok {
				id, err := resolveLookup(lr)
				if err != nil {
					return nil, err
				}
				val = id
			}
			id, ok, err := t.store.Lookup(ad.A, val)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if haveResolved && resolved != id {
				return nil, fmt.Errorf("transact: conflicting upserts: tempid %q on %s and %s", key, resolvedFrom, ad.A)
			}
			resolved = id
			resolvedFrom = ad.A
			haveResolved = true
		}
		if haveResolved {
			bindings[key] = resolved
		}
	}

	// Anything left (not an upsert target, not a reused existing eid) is
	// a brand-new entity: assign fresh eids in increasing order, sorted by
	// tempid key so the assignment is deterministic across runs.
	remaining := make([]string, 0)
	for _, key := range order {
		if _, ok := bindings[key]; !ok {
			remaining = append(remaining, key)
		}
	}
	sort.Strings(remaining)
	for _, key := range remaining {
		bindings[key] = t.NextEid()
	}

	// Tempids that only ever appear as a value (never as the E of an
	// AddDatom/RetractDatom/defining item) are an error.
	for key := range seen {
		if !asEntity[key] {
			return nil, fmt.Errorf("transact: tempids used only as value in transaction: %q", key)
		}
	}

	return bindings, nil
}

// applyResolution rewrites every EntityRef (TempID, LookupRef, or an
// already-resolved Identity) in the flattened tx-items into a concrete
// Identity, producing the simple add/retract/cas items phase 4 onward
// operate on.
func (t *Transactor) applyResolution(items []TxItem, tempids map[string]quill.Identity) ([]TxItem, error) {
	resolve := func(ref EntityRef) (quill.Identity, error) {
		switch x := ref.(type) {
		case quill.Identity:
			return x, nil
		case TempID:
			id, ok := tempids[x.key]
			if !ok {
				return 0, fmt.Errorf("transact: unresolved tempid %q", x.key)
			}
			return id, nil
		case LookupRef:
			id, ok, err := t.store.Lookup(x.Attr, x.Value)
			if err != nil {
				return 0, err
			}
			if !ok {
				return 0, fmt.Errorf("transact: unresolved lookup-ref [%s %v]", x.Attr, x.Value)
			}
			return id, nil
		default:
			return 0, fmt.Errorf("transact: invalid entity reference %#v", ref)
		}
	}
	resolveValue := func(v quill.Value) (quill.Value, error) {
		switch v.(type) {
		case TempID, LookupRef:
			return resolve(v)
		default:
			return v, nil
		}
	}

	var out []TxItem
	for _, item := range items {
		switch it := item.(type) {
		case AddDatom:
			e, err := resolve(it.E)
			if err != nil {
				return nil, err
			}
			v, err := resolveValue(it.V)
			if err != nil {
				return nil, err
			}
			out = append(out, AddDatom{E: e, A: it.A, V: v})
		case RetractDatom:
			e, err := resolve(it.E)
			if err != nil {
				return nil, err
			}
			v, err := resolveValue(it.V)
			if err != nil {
				return nil, err
			}
			out = append(out, RetractDatom{E: e, A: it.A, V: v})
		case RetractEntity:
			e, err := resolve(it.E)
			if err != nil {
				return nil, err
			}
			out = append(out, RetractEntity{E: e})
		case RetractAttribute:
			e, err := resolve(it.E)
			if err != nil {
				return nil, err
			}
			out = append(out, RetractAttribute{E: e, A: it.A})
		case CAS:
			e, err := resolve(it.E)
			if err != nil {
				return nil, err
			}
			out = append(out, CAS{E: e, A: it.A, Old: it.Old, New: it.New})
		case CallFn:
			expanded, err := t.expandCallFn(it)
			if err != nil {
				return nil, err
			}
			resolvedExpanded, err := t.applyResolution(expanded, tempids)
			if err != nil {
				return nil, err
			}
			out = append(out, resolvedExpanded...)
		default:
			out = append(out, item)
		}
	}
	return out, nil
}

func (t *Transactor) expandCallFn(call CallFn) ([]TxItem, error) {
	fn, ok := t.fns[call.Ident]
	if !ok {
		return nil, fmt.Errorf("transact: unknown transaction fn %s", call.Ident)
	}
	return fn(t, call.Args)
}

// rejectDirectTupleWrites implements spec.md §4.E phase 3: a composite
// tuple attribute's own value is computed by the transactor from its
// source attributes, so a direct `[:db/add e tuple-attr v]` against it is
// rejected -- unless v already equals what the transactor would compute,
// in which case it is a redundant restatement and silently dropped.
func (t *Transactor) rejectDirectTupleWrites(items []TxItem) ([]TxItem, error) {
	var adds, retracts []quill.Datom
	for _, item := range items {
		switch it := item.(type) {
		case AddDatom:
			if e, ok := it.E.(quill.Identity); ok {
				adds = append(adds, quill.Datom{E: e, A: it.A, V: it.V})
			}
		case RetractDatom:
			if e, ok := it.E.(quill.Identity); ok {
				retracts = append(retracts, quill.Datom{E: e, A: it.A, V: it.V})
			}
		}
	}

	out := make([]TxItem, 0, len(items))
	for _, item := range items {
		ad, ok := item.(AddDatom)
		if !ok {
			out = append(out, item)
			continue
		}
		attr, declared := t.schema.Attr(ad.A)
		if !declared || !attr.IsTupleDerived() {
			out = append(out, item)
			continue
		}
		e, ok := ad.E.(quill.Identity)
		if !ok {
			return nil, fmt.Errorf("transact: Can't modify tuple attrs directly")
		}
		computed, err := t.computeTuple(e, attr, adds, retracts)
		if err != nil {
			return nil, err
		}
		given, _ := ad.V.(quill.Tuple)
		if tuplesEqual(given, computed) {
			continue
		}
		return nil, fmt.Errorf("transact: Can't modify tuple attrs directly")
	}
	return out, nil
}

// computeTuple builds tupleAttr's composite value for e from attr's
// source attributes, reading each through currentValue so a source also
// touched earlier in this same batch is reflected.
func (t *Transactor) computeTuple(e quill.Identity, attr schema.Attribute, adds, retracts []quill.Datom) (quill.Tuple, error) {
	components := make(quill.Tuple, len(attr.TupleAttrs))
	for i, src := range attr.TupleAttrs {
		vals, err := t.currentValue(e, src, adds, retracts)
		if err != nil {
			return nil, err
		}
		if len(vals) > 0 {
			components[i] = vals[0]
		}
	}
	return components, nil
}

// validate checks every asserted value's Go dynamic type against the
// attribute's declared ValueType (spec.md §4.E phase 4).
func (t *Transactor) validate(items []TxItem) error {
	for _, item := range items {
		ad, ok := item.(AddDatom)
		if !ok {
			continue
		}
		attr, declared := t.schema.Attr(ad.A)
		if !declared {
			continue
		}
		got := quill.TypeOf(ad.V)
		if attr.ValueType == quill.TypeTuple || attr.ValueType == quill.TypeHomogeneousTuple || attr.ValueType == quill.TypeHeterogeneousTuple {
			if got != quill.TypeTuple {
				return fmt.Errorf("transact: attribute %s expects a tuple value, got %s", ad.A, got)
			}
			continue
		}
		if got != attr.ValueType {
			return fmt.Errorf("transact: attribute %s expects %s, got %s", ad.A, attr.ValueType, got)
		}
	}
	return nil
}

// enforceUnique checks every asserted datom on a unique attribute against
// the store, failing if the value already exists on a different entity
// (spec.md §4.E phase 5). Upserts that already resolved to the *same*
// entity in phase 2 are naturally exempt because Lookup returns that same
// entity.
func (t *Transactor) enforceUnique(items []TxItem) error {
	for _, item := range items {
		ad, ok := item.(AddDatom)
		if !ok {
			continue
		}
		if !t.schema.IsUnique(ad.A) {
			continue
		}
		existing, found, err := t.store.Lookup(ad.A, ad.V)
		if err != nil {
			return err
		}
		e, ok := ad.E.(quill.Identity)
		if !ok {
			return fmt.Errorf("transact: internal error: unresolved entity ref reached unique check")
		}
		if found && existing != e {
			return fmt.Errorf("transact: unique constraint violation: cannot add %v to entity %s on %s", ad.V, e, ad.A)
		}
	}
	return nil
}

// splitAndCheckCAS separates adds/retracts from the resolved simple items
// and applies CAS items as an additional add once their precondition is
// confirmed (spec.md §4.E phase 6).
func (t *Transactor) splitAndCheckCAS(items []TxItem) (adds, retracts []quill.Datom, err error) {
	for _, item := range items {
		switch it := item.(type) {
		case AddDatom:
			e := it.E.(quill.Identity)
			adds = append(adds, quill.Datom{E: e, A: it.A, V: it.V, Op: quill.Added})
		case RetractDatom:
			e := it.E.(quill.Identity)
			retracts = append(retracts, quill.Datom{E: e, A: it.A, V: it.V, Op: quill.Retracted})
		case RetractEntity:
			e := it.E.(quill.Identity)
			entRetracts, err := t.expandRetractEntity(e)
			if err != nil {
				return nil, nil, err
			}
			retracts = append(retracts, entRetracts...)
		case RetractAttribute:
			e := it.E.(quill.Identity)
			current, err := t.store.EntityAttr(e, it.A)
			if err != nil {
				return nil, nil, err
			}
			for _, v := range current {
				retracts = append(retracts, quill.Datom{E: e, A: it.A, V: v, Op: quill.Retracted})
			}
		case CAS:
			e := it.E.(quill.Identity)
			current, err := t.store.EntityAttr(e, it.A)
			if err != nil {
				return nil, nil, err
			}
			var currentVal quill.Value
			if len(current) > 0 {
				currentVal = current[0]
			}
			if !quill.ValuesEqual(currentVal, it.Old) {
				return nil, nil, fmt.Errorf("transact: cas failed for %s %s: expected %v, got %v", e, it.A, it.Old, currentVal)
			}
			if len(current) > 0 {
				retracts = append(retracts, quill.Datom{E: e, A: it.A, V: current[0], Op: quill.Retracted})
			}
			adds = append(adds, quill.Datom{E: e, A: it.A, V: it.New, Op: quill.Added})
		}
	}
	return adds, retracts, nil
}

// enforceCardinalityOne generates the implicit retract of an entity's
// prior value for every add against a cardinality-one attribute, so the
// store never ends up holding two coexisting current values for one
// (entity, attribute) pair. Values this same batch is already retracting
// are left alone to avoid a duplicate retract of the same datom.
func (t *Transactor) enforceCardinalityOne(adds, retracts []quill.Datom) ([]quill.Datom, error) {
	alreadyRetracted := func(e quill.Identity, a quill.Keyword, v quill.Value) bool {
		for _, r := range retracts {
			if r.E == e && r.A == a && quill.ValuesEqual(r.V, v) {
				return true
			}
		}
		return false
	}

	type entityAttr struct {
		e quill.Identity
		a quill.Keyword
	}
	handled := map[entityAttr]bool{}

	var out []quill.Datom
	for _, ad := range adds {
		if t.schema.Cardinality(ad.A) != schema.CardinalityOne {
			continue
		}
		key := entityAttr{ad.E, ad.A}
		if handled[key] {
			continue
		}
		handled[key] = true

		existing, err := t.store.EntityAttr(ad.E, ad.A)
		if err != nil {
			return nil, err
		}
		for _, v := range existing {
			if quill.ValuesEqual(v, ad.V) || alreadyRetracted(ad.E, ad.A, v) {
				continue
			}
			out = append(out, quill.Datom{E: ad.E, A: ad.A, V: v, Op: quill.Retracted})
		}
	}
	return out, nil
}

// expandRetractEntity removes every datom naming e as the entity, plus
// every datom where e is the value of a ref attribute, recursing into
// component refs (spec.md §4.E "Retract-entity semantics").
func (t *Transactor) expandRetractEntity(e quill.Identity) ([]quill.Datom, error) {
	var out []quill.Datom

	owned, err := t.store.Entity(e)
	if err != nil {
		return nil, err
	}
	for _, d := range owned {
		d.Op = quill.Retracted
		out = append(out, d)
		if attr, ok := t.schema.Attr(d.A); ok && attr.IsComponent {
			if childID, ok := d.V.(quill.Identity); ok {
				childDatoms, err := t.expandRetractEntity(childID)
				if err != nil {
					return nil, err
				}
				out = append(out, childDatoms...)
			}
		}
	}

	incoming, err := t.store.ReferencesTo(e)
	if err != nil {
		return nil, err
	}
	for _, d := range incoming {
		d.Op = quill.Retracted
		out = append(out, d)
	}

	return out, nil
}

// recomputeTupleAttrs implements spec.md §4.E phase 3: for every composite
// tuple attribute with a source attribute touched by this batch, recompute
// the tuple from the entity's current (post-batch) source values and
// retract/re-add if it changed.
func (t *Transactor) recomputeTupleAttrs(adds, retracts []quill.Datom) (tupleAdds, tupleRetracts []quill.Datom, err error) {
	type entityAttr struct {
		e quill.Identity
		a quill.Keyword
	}
	touched := map[entityAttr]bool{}
	for _, d := range adds {
		touched[entityAttr{d.E, d.A}] = true
	}
	for _, d := range retracts {
		touched[entityAttr{d.E, d.A}] = true
	}

	type entityTuple struct {
		e quill.Identity
		a quill.Keyword
	}
	seen := map[entityTuple]bool{}

	for ea := range touched {
		for _, tupleAttr := range t.schema.TupleAttrsOf(ea.a) {
			key := entityTuple{ea.e, tupleAttr}
			if seen[key] {
				continue
			}
			seen[key] = true

			attr, _ := t.schema.Attr(tupleAttr)
			components, err := t.computeTuple(ea.e, attr, adds, retracts)
			if err != nil {
				return nil, nil, err
			}

			existing, err := t.store.EntityAttr(ea.e, tupleAttr)
			if err != nil {
				return nil, nil, err
			}
			var existingTuple quill.Tuple
			if len(existing) > 0 {
				existingTuple, _ = existing[0].(quill.Tuple)
			}

			if tuplesEqual(existingTuple, components) {
				continue
			}
			if len(existing) > 0 {
				tupleRetracts = append(tupleRetracts, quill.Datom{E: ea.e, A: tupleAttr, V: existing[0], Op: quill.Retracted})
			}
			tupleAdds = append(tupleAdds, quill.Datom{E: ea.e, A: tupleAttr, V: quill.Tuple(append(quill.Tuple{}, components...)), Op: quill.Added})
		}
	}
	return tupleAdds, tupleRetracts, nil
}

// currentValue reads e's value(s) for attribute a as they will be after
// this batch commits: the store's current value, overridden by any
// pending add/retract in this same batch.
func (t *Transactor) currentValue(e quill.Identity, a quill.Keyword, adds, retracts []quill.Datom) ([]quill.Value, error) {
	base, err := t.store.EntityAttr(e, a)
	if err != nil {
		return nil, err
	}
	result := append([]quill.Value{}, base...)
	for _, d := range retracts {
		if d.E == e && d.A == a {
			result = removeValue(result, d.V)
		}
	}
	for _, d := range adds {
		if d.E == e && d.A == a {
			result = append(result, d.V)
		}
	}
	return result, nil
}

func removeValue(values []quill.Value, v quill.Value) []quill.Value {
	out := values[:0]
	for _, existing := range values {
		if !quill.ValuesEqual(existing, v) {
			out = append(out, existing)
		}
	}
	return out
}

func tuplesEqual(a, b quill.Tuple) bool {
	if len(a) != len(b) {
		return len(a) == 0 && len(b) == 0
	}
	for i := range a {
		if !quill.ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// autoEntityTime injects :db/created-at (only if the entity has no prior
// datoms) and :db/updated-at for every entity touched by adds.
func (t *Transactor) autoEntityTime(adds []quill.Datom) ([]quill.Datom, error) {
	now := t.opts.Now()
	touched := map[quill.Identity]bool{}
	for _, d := range adds {
		touched[d.E] = true
	}

	var out []quill.Datom
	for e := range touched {
		existing, err := t.store.EntityAttr(e, CreatedAtAttr)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			out = append(out, quill.Datom{E: e, A: CreatedAtAttr, V: now, Op: quill.Added})
		}
		out = append(out, quill.Datom{E: e, A: UpdatedAtAttr, V: now, Op: quill.Added})
	}
	return out, nil
}
