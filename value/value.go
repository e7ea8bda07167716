// Package value implements the tagged value union the projection engine
// operates over: classical scalars, heap-table handles, qubit/result
// handles, and deferred symbolic expressions awaiting a measurement.
package value

import (
	"fmt"
)

// Width is an integer bit width. QIR only ever uses this fixed set.
type Width int

const (
	W1  Width = 1
	W2  Width = 2
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

// Value is the closed sum type every SSA slot, constant, and heap cell holds.
// The unexported marker method keeps the set closed to this package.
type Value interface {
	valueTag()
	String() string
}

// Int is a fixed-width two's-complement integer.
type Int struct {
	Width Width
	V     int64
}

func (Int) valueTag() {}
func (v Int) String() string { return fmt.Sprintf("i%d %d", v.Width, v.V) }

// Float is a double-precision classical float.
type Float struct{ V float64 }

func (Float) valueTag() {}
func (v Float) String() string { return fmt.Sprintf("%v", v.V) }

// Bool is boolean-typed Int(1,·) sugar; kept distinct so call sites don't
// have to remember that width-1 ints are booleans.
type Bool struct{ V bool }

func (Bool) valueTag() {}
func (v Bool) String() string { return fmt.Sprintf("%t", v.V) }

// QubitRef is a logical qubit handle.
type QubitRef struct{ ID uint64 }

func (QubitRef) valueTag() {}
func (v QubitRef) String() string { return fmt.Sprintf("qubit(%d)", v.ID) }

// Outcome is a materialized measurement bit, or Pending before materialization.
type Outcome int

const (
	Pending Outcome = iota
	Zero
	One
)

// ResultRef is a measurement-outcome handle. Outcome is Pending until the
// engine forces it (branch-on-result) or a result_equal comparison does.
type ResultRef struct {
	ID      uint64
	Outcome Outcome
}

func (ResultRef) valueTag() {}
func (v ResultRef) String() string {
	switch v.Outcome {
	case Zero:
		return fmt.Sprintf("result(%d)=0", v.ID)
	case One:
		return fmt.Sprintf("result(%d)=1", v.ID)
	default:
		return fmt.Sprintf("result(%d)=?", v.ID)
	}
}

// ArrayRef is a handle into the array heap table.
type ArrayRef struct{ ID uint64 }

func (ArrayRef) valueTag() {}
func (v ArrayRef) String() string { return fmt.Sprintf("array(%d)", v.ID) }

// TupleRef is a handle into the tuple heap table.
type TupleRef struct{ ID uint64 }

func (TupleRef) valueTag() {}
func (v TupleRef) String() string { return fmt.Sprintf("tuple(%d)", v.ID) }

// StringRef is a handle into the string heap table.
type StringRef struct{ ID uint64 }

func (StringRef) valueTag() {}
func (v StringRef) String() string { return fmt.Sprintf("string(%d)", v.ID) }

// Bytes is a raw immutable byte buffer: the classical literal form a
// string-typed global constant (an `i8*` operand) reads as before
// __quantum__rt__string_create turns it into an owned StringRef heap
// handle. It carries no heap identity of its own — nothing refcounts it —
// which is exactly why string_create exists to promote it into one.
type Bytes struct{ Data string }

func (Bytes) valueTag() {}
func (v Bytes) String() string { return fmt.Sprintf("bytes(%q)", v.Data) }

// Pointer is an SSA-local location carrying one of the other variants.
type Pointer struct{ Target Value }

func (Pointer) valueTag() {}
func (v Pointer) String() string { return fmt.Sprintf("*%s", v.Target) }

// Null is a typed null pointer; TypeName is purely informational (used in
// diagnostics, never compared on).
type Null struct{ TypeName string }

func (Null) valueTag() {}
func (v Null) String() string { return fmt.Sprintf("null(%s)", v.TypeName) }

// Deferred is a symbolic expression that cannot be folded yet because it
// transitively depends on an unmeasured ResultRef. See expr.go.
type Deferred struct{ Expr Expr }

func (Deferred) valueTag() {}
func (v Deferred) String() string { return fmt.Sprintf("deferred(%s)", v.Expr) }

// AsInt extracts an Int's two's-complement-extended int64 value. Non-Int
// values are coerced when semantically sound (Bool -> Int(1,·)).
func AsInt(v Value) (Int, bool) {
	switch t := v.(type) {
	case Int:
		return t, true
	case Bool:
		n := int64(0)
		if t.V {
			n = 1
		}
		return Int{Width: W1, V: n}, true
	}
	return Int{}, false
}

// AsBool extracts a boolean reading of v: zero/non-zero for Int, the Bool
// field for Bool.
func AsBool(v Value) (bool, bool) {
	switch t := v.(type) {
	case Bool:
		return t.V, true
	case Int:
		return t.V != 0, true
	}
	return false, false
}

// AsFloat extracts a float64 reading of v.
func AsFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case Float:
		return t.V, true
	case Int:
		return float64(t.V), true
	}
	return 0, false
}

// AsQubit extracts the qubit id referenced by v, following one level of
// Pointer indirection if present.
func AsQubit(v Value) (QubitRef, bool) {
	if p, ok := v.(Pointer); ok {
		v = p.Target
	}
	q, ok := v.(QubitRef)
	return q, ok
}

// AsResult extracts the ResultRef referenced by v, following one level of
// Pointer indirection if present.
func AsResult(v Value) (ResultRef, bool) {
	if p, ok := v.(Pointer); ok {
		v = p.Target
	}
	r, ok := v.(ResultRef)
	return r, ok
}

// SignExtend widens n, currently held in `from` bits, to 64 bits using the
// sign bit of `from`. Matches LLVM's sext semantics.
func SignExtend(n int64, from Width) int64 {
	if from >= W64 {
		return n
	}
	shift := uint(64 - from)
	return (n << shift) >> shift
}

// ZeroExtend widens n, held in `from` bits, to 64 bits with zero fill.
// Matches LLVM's zext semantics.
func ZeroExtend(n int64, from Width) int64 {
	if from >= W64 {
		return n
	}
	mask := (int64(1) << uint(from)) - 1
	return n & mask
}

// Truncate narrows n to `to` bits, matching LLVM's trunc semantics.
func Truncate(n int64, to Width) int64 {
	if to >= W64 {
		return n
	}
	mask := (int64(1) << uint(to)) - 1
	return n & mask
}

// DeepCopy returns a value safe to mutate independently of v. Scalars and
// handles are already immutable from the caller's perspective (the heap
// tables they name own the copy-on-write discipline), so DeepCopy is a
// structural copy only for the composite Deferred/Pointer cases.
func DeepCopy(v Value) Value {
	switch t := v.(type) {
	case Pointer:
		return Pointer{Target: DeepCopy(t.Target)}
	case Deferred:
		return Deferred{Expr: t.Expr.clone()}
	default:
		return v
	}
}

// Equal compares two values structurally. Comparing two ResultRefs is the
// caller's job to materialize first (see the result_equal case of
// rt.Heap.CallRuntime) — Equal here just
// compares whatever Outcome each currently holds.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av.V == bv.V
	case Float:
		bv, ok := b.(Float)
		return ok && av.V == bv.V
	case Bool:
		bv, ok := b.(Bool)
		return ok && av.V == bv.V
	case QubitRef:
		bv, ok := b.(QubitRef)
		return ok && av.ID == bv.ID
	case ResultRef:
		bv, ok := b.(ResultRef)
		return ok && av.Outcome == bv.Outcome
	case ArrayRef:
		bv, ok := b.(ArrayRef)
		return ok && av.ID == bv.ID
	case TupleRef:
		bv, ok := b.(TupleRef)
		return ok && av.ID == bv.ID
	case StringRef:
		bv, ok := b.(StringRef)
		return ok && av.ID == bv.ID
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && av.Data == bv.Data
	case Null:
		_, ok := b.(Null)
		return ok
	case Pointer:
		bv, ok := b.(Pointer)
		return ok && Equal(av.Target, bv.Target)
	}
	return false
}

// ToPrimitive converts a fully-resolved classical value into a host
// primitive (int64, float64, or bool; nil for Null) for handing back
// across the orchestrator boundary. A materialized ResultRef converts to
// bool (true for One). A Pending ResultRef and every other handle
// (qubits, arrays, tuples, strings, bytes, pointers) have no host
// representation and return ok=false.
func ToPrimitive(v Value) (any, bool) {
	switch t := v.(type) {
	case Int:
		return t.V, true
	case Float:
		return t.V, true
	case Bool:
		return t.V, true
	case ResultRef:
		return t.Outcome == One, t.Outcome != Pending
	case Null:
		return nil, true
	}
	return nil, false
}
