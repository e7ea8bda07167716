package value

import "fmt"

// Op is a classical operator a Deferred expression can carry. It mirrors
// the subset of IR opcodes that can appear on a classical expression whose
// operands transitively reach an unmeasured ResultRef.
type Op string

const (
	OpAdd Op = "add"
	OpSub Op = "sub"
	OpMul Op = "mul"
	OpAnd Op = "and"
	OpOr  Op = "or"
	OpXor Op = "xor"
	OpEq  Op = "icmp.eq"
	OpNe  Op = "icmp.ne"
)

// Expr is a small symbolic expression tree. Leaves are either a resolved
// Value (Const) or a not-yet-materialized ResultRef (ResultLeaf); interior
// nodes are Binary operator applications.
type Expr interface {
	fmt.Stringer
	clone() Expr
	// freeResults returns every ResultRef id this expression still depends
	// on that has not yet been materialized.
	freeResults() []uint64
}

// Const is a resolved leaf value embedded in a larger deferred expression
// (e.g. the classical half of `add %r, 1` where %r depends on a result).
type Const struct{ V Value }

func (c Const) String() string          { return c.V.String() }
func (c Const) clone() Expr             { return Const{V: DeepCopy(c.V)} }
func (c Const) freeResults() []uint64   { return nil }

// ResultLeaf names a ResultRef this expression cannot resolve past until
// that handle materializes.
type ResultLeaf struct{ ID uint64 }

func (r ResultLeaf) String() string        { return fmt.Sprintf("result(%d)", r.ID) }
func (r ResultLeaf) clone() Expr           { return r }
func (r ResultLeaf) freeResults() []uint64 { return []uint64{r.ID} }

// Binary applies Op to two sub-expressions.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (b Binary) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }

func (b Binary) clone() Expr {
	return Binary{Op: b.Op, Left: b.Left.clone(), Right: b.Right.clone()}
}

func (b Binary) freeResults() []uint64 {
	return append(b.Left.freeResults(), b.Right.freeResults()...)
}

// FreeResults returns the ids of every ResultRef a Deferred value still
// needs materialized before it can fold to a concrete Value.
func FreeResults(d Deferred) []uint64 {
	return d.Expr.freeResults()
}

// Resolve attempts to fold a Deferred expression given a lookup from
// ResultRef id to its now-materialized Outcome. It returns ok=false if any
// leaf is still Pending.
func Resolve(d Deferred, outcome func(id uint64) (Outcome, bool)) (Value, bool) {
	v, ok := resolveExpr(d.Expr, outcome)
	return v, ok
}

func resolveExpr(e Expr, outcome func(id uint64) (Outcome, bool)) (Value, bool) {
	switch t := e.(type) {
	case Const:
		return t.V, true
	case ResultLeaf:
		o, ok := outcome(t.ID)
		if !ok || o == Pending {
			return nil, false
		}
		return Bool{V: o == One}, true
	case Binary:
		l, ok := resolveExpr(t.Left, outcome)
		if !ok {
			return nil, false
		}
		r, ok := resolveExpr(t.Right, outcome)
		if !ok {
			return nil, false
		}
		return applyOp(t.Op, l, r)
	}
	return nil, false
}

func applyOp(op Op, l, r Value) (Value, bool) {
	li, lok := AsInt(l)
	ri, rok := AsInt(r)
	if !lok || !rok {
		return nil, false
	}
	switch op {
	case OpAdd:
		return Int{Width: li.Width, V: li.V + ri.V}, true
	case OpSub:
		return Int{Width: li.Width, V: li.V - ri.V}, true
	case OpMul:
		return Int{Width: li.Width, V: li.V * ri.V}, true
	case OpAnd:
		return Int{Width: li.Width, V: li.V & ri.V}, true
	case OpOr:
		return Int{Width: li.Width, V: li.V | ri.V}, true
	case OpXor:
		return Int{Width: li.Width, V: li.V ^ ri.V}, true
	case OpEq:
		return Bool{V: li.V == ri.V}, true
	case OpNe:
		return Bool{V: li.V != ri.V}, true
	}
	return nil, false
}
