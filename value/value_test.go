package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignExtend(t *testing.T) {
	// 0xFF at width 8 is -1; sign-extended to 64 bits it stays -1.
	assert.Equal(t, int64(-1), SignExtend(0xFF, W8))
	assert.Equal(t, int64(127), SignExtend(0x7F, W8))
}

func TestZeroExtend(t *testing.T) {
	assert.Equal(t, int64(0xFF), ZeroExtend(-1, W8))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, int64(0xFF&0xFF), Truncate(0x1FF, W8))
}

func TestEqualScalars(t *testing.T) {
	assert.True(t, Equal(Int{Width: W32, V: 5}, Int{Width: W32, V: 5}))
	assert.False(t, Equal(Int{Width: W32, V: 5}, Int{Width: W32, V: 6}))
	assert.True(t, Equal(QubitRef{ID: 1}, QubitRef{ID: 1}))
	assert.False(t, Equal(QubitRef{ID: 1}, ArrayRef{ID: 1}))
}

func TestAsBoolFromInt(t *testing.T) {
	b, ok := AsBool(Int{Width: W1, V: 1})
	assert.True(t, ok)
	assert.True(t, b)
}

func TestDeepCopyDeferredIsIndependent(t *testing.T) {
	d := Deferred{Expr: Binary{Op: OpAdd, Left: ResultLeaf{ID: 1}, Right: Const{V: Int{Width: W64, V: 1}}}}
	cp := DeepCopy(d).(Deferred)
	assert.Equal(t, d.Expr.String(), cp.Expr.String())
}

func TestResolveDeferred(t *testing.T) {
	d := Deferred{Expr: Binary{
		Op:    OpEq,
		Left:  ResultLeaf{ID: 1},
		Right: Const{V: Bool{V: true}},
	}}
	assert.ElementsMatch(t, []uint64{1}, FreeResults(d))

	_, ok := Resolve(d, func(id uint64) (Outcome, bool) { return Pending, true })
	assert.False(t, ok)

	v, ok := Resolve(d, func(id uint64) (Outcome, bool) { return One, true })
	assert.True(t, ok)
	b, _ := AsBool(v)
	assert.True(t, b)
}

func TestToPrimitive(t *testing.T) {
	v, ok := ToPrimitive(Int{Width: W32, V: 42})
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	_, ok = ToPrimitive(QubitRef{ID: 0})
	assert.False(t, ok)
}
