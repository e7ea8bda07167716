// Package rt implements the Runtime Intrinsic Table: qubit allocation,
// the four reference-counted heap tables (arrays, tuples, results,
// strings), and the observable result_record_output channel.
package rt

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/value"
)

// entry is the refcount/alias-count discipline shared by every heap table:
// an entry is freed once refcount reaches zero, and must be deep-copied
// before mutation while alias-count is above zero.
type entry[T any] struct {
	data    T
	refs    int
	aliases int
}

type arrayData struct {
	elems    []value.Value
	elemSize int
}

type tupleData struct {
	elems []value.Value
}

// Heap owns the engine's four reference-counted tables plus the live
// qubit pool. It is created once per run and never escapes the engine
// (no external reference may escape the heap).
type Heap struct {
	arrays  map[uint64]*entry[arrayData]
	tuples  map[uint64]*entry[tupleData]
	results map[uint64]*entry[value.Outcome]
	strings map[uint64]*entry[string]

	qubits    mapset.Set[uint64]
	nextQ     uint64
	nextArr   uint64
	nextTup   uint64
	nextRes   uint64
	nextStr   uint64
	// pending tracks ResultRef ids created but not yet materialized, so
	// the engine can assert "no outstanding results" cleanly distinct
	// from "result exists but reads Pending".
	pending mapset.Set[uint64]

	outputs  []OutputRecord
	messages []string
	bitPos   map[uint64]int

	warn func(format string, args ...any)
}

// NewHeap constructs an empty Heap. warn receives non-fatal refcount
// underflow notices (logged, not fatal).
func NewHeap(warn func(format string, args ...any)) *Heap {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Heap{
		arrays:  map[uint64]*entry[arrayData]{},
		tuples:  map[uint64]*entry[tupleData]{},
		results: map[uint64]*entry[value.Outcome]{},
		strings: map[uint64]*entry[string]{},
		qubits:  mapset.NewThreadUnsafeSet[uint64](),
		pending: mapset.NewThreadUnsafeSet[uint64](),
		bitPos:  map[uint64]int{},
		warn:    warn,
	}
}

// --- Qubit pool -----------------------------------------------------------

// AllocateQubit returns a fresh, live qubit id.
func (h *Heap) AllocateQubit() value.QubitRef {
	id := h.nextQ
	h.nextQ++
	h.qubits.Add(id)
	return value.QubitRef{ID: id}
}

// AllocateQubitArray allocates n fresh qubits and returns them as an
// ArrayRef of QubitRef values.
func (h *Heap) AllocateQubitArray(n int) value.ArrayRef {
	elems := make([]value.Value, n)
	for i := 0; i < n; i++ {
		elems[i] = h.AllocateQubit()
	}
	return h.NewArray(elems, 8)
}

// ReleaseQubit removes q from the live set. Releasing an already-released
// or never-allocated id is a use-after-release error.
func (h *Heap) ReleaseQubit(q value.QubitRef) error {
	if !h.qubits.Contains(q.ID) {
		return rerr.New(rerr.KindQubitUseAfterFree, rerr.Location{}, "qubit %d released twice or never allocated", q.ID)
	}
	h.qubits.Remove(q.ID)
	return nil
}

// ReleaseQubitArray releases every qubit named by an array of QubitRefs.
func (h *Heap) ReleaseQubitArray(a value.ArrayRef) error {
	elems, _, err := h.ArrayElements(a)
	if err != nil {
		return err
	}
	for _, e := range elems {
		q, ok := value.AsQubit(e)
		if !ok {
			continue
		}
		if err := h.ReleaseQubit(q); err != nil {
			return err
		}
	}
	return nil
}

// LiveQubitCount reports how many qubits are currently allocated —
// this must be zero after a successful run.
func (h *Heap) LiveQubitCount() int { return h.qubits.Cardinality() }

// IsLiveQubit reports whether q is currently allocated. CallGate does not
// consult it: a gate is emitted for whatever qubit id its operand names,
// live or not.
func (h *Heap) IsLiveQubit(q value.QubitRef) bool { return h.qubits.Contains(q.ID) }

// --- Arrays -----------------------------------------------------------

// NewArray creates a fresh array with refcount 1.
func (h *Heap) NewArray(elems []value.Value, elemSize int) value.ArrayRef {
	id := h.nextArr
	h.nextArr++
	h.arrays[id] = &entry[arrayData]{data: arrayData{elems: elems, elemSize: elemSize}, refs: 1}
	return value.ArrayRef{ID: id}
}

// ArrayElements returns an array's backing slice and its declared element
// size. The returned slice must not be mutated directly by callers who
// have not checked alias-count == 0 (use UpdateArrayElement instead).
func (h *Heap) ArrayElements(a value.ArrayRef) ([]value.Value, int, error) {
	e, ok := h.arrays[a.ID]
	if !ok {
		return nil, 0, rerr.New(rerr.KindUndefinedSymbol, rerr.Location{}, "array %d does not exist", a.ID)
	}
	return e.data.elems, e.data.elemSize, nil
}

// ArraySize returns the element count of an array.
func (h *Heap) ArraySize(a value.ArrayRef) (int, error) {
	elems, _, err := h.ArrayElements(a)
	if err != nil {
		return 0, err
	}
	return len(elems), nil
}

// UpdateArrayElement writes elems[i] = v, deep-copying the backing store
// first if the array is currently aliased (alias-count > 0).
func (h *Heap) UpdateArrayElement(a value.ArrayRef, i int, v value.Value) error {
	e, ok := h.arrays[a.ID]
	if !ok {
		return rerr.New(rerr.KindUndefinedSymbol, rerr.Location{}, "array %d does not exist", a.ID)
	}
	if i < 0 || i >= len(e.data.elems) {
		return rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array index %d out of range", i)
	}
	if e.aliases > 0 {
		cp := make([]value.Value, len(e.data.elems))
		for j, el := range e.data.elems {
			cp[j] = value.DeepCopy(el)
		}
		e.data.elems = cp
		e.aliases = 0
	}
	e.data.elems[i] = v
	return nil
}

// ConcatArrays creates a new array (refcount 1) holding a's elements
// followed by b's; neither input array is mutated.
func (h *Heap) ConcatArrays(a, b value.ArrayRef) (value.ArrayRef, error) {
	ae, _, err := h.ArrayElements(a)
	if err != nil {
		return value.ArrayRef{}, err
	}
	be, _, err := h.ArrayElements(b)
	if err != nil {
		return value.ArrayRef{}, err
	}
	out := make([]value.Value, 0, len(ae)+len(be))
	out = append(out, ae...)
	out = append(out, be...)
	_, elemSize, _ := h.ArrayElements(a)
	return h.NewArray(out, elemSize), nil
}

// UpdateArrayRefcount applies delta to an array's refcount, freeing the
// entry at zero and warning (not failing) on underflow.
func (h *Heap) UpdateArrayRefcount(a value.ArrayRef, delta int) {
	e, ok := h.arrays[a.ID]
	if !ok {
		return
	}
	e.refs += delta
	if e.refs < 0 {
		h.warn("array %d refcount underflow", a.ID)
		e.refs = 0
	}
	if e.refs == 0 {
		delete(h.arrays, a.ID)
	}
}

// UpdateArrayAliasCount applies delta to an array's alias-count.
func (h *Heap) UpdateArrayAliasCount(a value.ArrayRef, delta int) {
	e, ok := h.arrays[a.ID]
	if !ok {
		return
	}
	e.aliases += delta
	if e.aliases < 0 {
		h.warn("array %d alias-count underflow", a.ID)
		e.aliases = 0
	}
}

// --- Tuples -----------------------------------------------------------

// NewTuple creates a fresh fixed-size tuple with refcount 1.
func (h *Heap) NewTuple(size int) value.TupleRef {
	id := h.nextTup
	h.nextTup++
	h.tuples[id] = &entry[tupleData]{data: tupleData{elems: make([]value.Value, size)}, refs: 1}
	return value.TupleRef{ID: id}
}

// TupleElements returns a tuple's backing slice.
func (h *Heap) TupleElements(t value.TupleRef) ([]value.Value, error) {
	e, ok := h.tuples[t.ID]
	if !ok {
		return nil, rerr.New(rerr.KindUndefinedSymbol, rerr.Location{}, "tuple %d does not exist", t.ID)
	}
	return e.data.elems, nil
}

// UpdateTupleElement writes tuple[i] = v with the same copy-on-write
// discipline as UpdateArrayElement.
func (h *Heap) UpdateTupleElement(t value.TupleRef, i int, v value.Value) error {
	e, ok := h.tuples[t.ID]
	if !ok {
		return rerr.New(rerr.KindUndefinedSymbol, rerr.Location{}, "tuple %d does not exist", t.ID)
	}
	if i < 0 || i >= len(e.data.elems) {
		return rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "tuple index %d out of range", i)
	}
	if e.aliases > 0 {
		cp := make([]value.Value, len(e.data.elems))
		copy(cp, e.data.elems)
		e.data.elems = cp
		e.aliases = 0
	}
	e.data.elems[i] = v
	return nil
}

// UpdateTupleRefcount applies delta to a tuple's refcount, freeing at zero.
func (h *Heap) UpdateTupleRefcount(t value.TupleRef, delta int) {
	e, ok := h.tuples[t.ID]
	if !ok {
		return
	}
	e.refs += delta
	if e.refs < 0 {
		h.warn("tuple %d refcount underflow", t.ID)
		e.refs = 0
	}
	if e.refs == 0 {
		delete(h.tuples, t.ID)
	}
}

// --- Results ------------------------------------------------------------

// NewResult creates a fresh result handle with the given initial outcome
// (Pending, Zero, or One) and refcount 1.
func (h *Heap) NewResult(outcome value.Outcome) value.ResultRef {
	id := h.nextRes
	h.nextRes++
	h.results[id] = &entry[value.Outcome]{data: outcome, refs: 1}
	if outcome == value.Pending {
		h.pending.Add(id)
	}
	return value.ResultRef{ID: id, Outcome: outcome}
}

// ResultZero and ResultOne return the two constant result handles the
// result_get_zero/result_get_one intrinsics hand out. Each call mints a
// fresh handle, matching the reference-counted-constant semantics QIR
// programs rely on.
func (h *Heap) ResultZero() value.ResultRef { return h.NewResult(value.Zero) }
func (h *Heap) ResultOne() value.ResultRef  { return h.NewResult(value.One) }

// Materialize records r's measured outcome, the one point where a Pending
// result becomes concrete (the "force" step).
func (h *Heap) Materialize(r value.ResultRef, outcome value.Outcome) value.ResultRef {
	e, ok := h.results[r.ID]
	if ok {
		e.data = outcome
	}
	h.pending.Remove(r.ID)
	return value.ResultRef{ID: r.ID, Outcome: outcome}
}

// Outcome looks up a result's current outcome.
func (h *Heap) Outcome(id uint64) (value.Outcome, bool) {
	e, ok := h.results[id]
	if !ok {
		return value.Pending, false
	}
	return e.data, true
}

// PendingResults returns the ids of every result handle not yet
// materialized — the set of outstanding unresolved Result handles.
func (h *Heap) PendingResults() []uint64 { return h.pending.ToSlice() }

// BindBitPosition records the classical bit position the builder assigned
// a measurement at, so forcing can later ask the backend for its outcome.
func (h *Heap) BindBitPosition(r value.ResultRef, pos int) { h.bitPos[r.ID] = pos }

// BitPosition looks up the classical bit position bound to a result.
func (h *Heap) BitPosition(r value.ResultRef) (int, bool) {
	pos, ok := h.bitPos[r.ID]
	return pos, ok
}

// UpdateResultRefcount applies delta to a result's refcount, freeing at zero.
func (h *Heap) UpdateResultRefcount(r value.ResultRef, delta int) {
	e, ok := h.results[r.ID]
	if !ok {
		return
	}
	e.refs += delta
	if e.refs < 0 {
		h.warn("result %d refcount underflow", r.ID)
		e.refs = 0
	}
	if e.refs == 0 {
		delete(h.results, r.ID)
		h.pending.Remove(r.ID)
	}
}

// --- Strings --------------------------------------------------------------

// NewString creates a fresh string handle with refcount 1.
func (h *Heap) NewString(s string) value.StringRef {
	id := h.nextStr
	h.nextStr++
	h.strings[id] = &entry[string]{data: s, refs: 1}
	return value.StringRef{ID: id}
}

// StringValue returns a string handle's backing text.
func (h *Heap) StringValue(s value.StringRef) (string, error) {
	e, ok := h.strings[s.ID]
	if !ok {
		return "", rerr.New(rerr.KindUndefinedSymbol, rerr.Location{}, "string %d does not exist", s.ID)
	}
	return e.data, nil
}

// UpdateStringRefcount applies delta to a string's refcount, freeing at zero.
func (h *Heap) UpdateStringRefcount(s value.StringRef, delta int) {
	e, ok := h.strings[s.ID]
	if !ok {
		return
	}
	e.refs += delta
	if e.refs < 0 {
		h.warn("string %d refcount underflow", s.ID)
		e.refs = 0
	}
	if e.refs == 0 {
		delete(h.strings, s.ID)
	}
}

// Leaks reports every heap entry still holding a non-zero refcount, for
// the orchestrator's end-of-run leak warning ("warn on leak, do not
// fail").
func (h *Heap) Leaks() (arrays, tuples, results, strings int) {
	return len(h.arrays), len(h.tuples), len(h.results), len(h.strings)
}
