package rt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqc-community/rasqal/qgate"
	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/value"
)

func TestQubitAllocateRelease(t *testing.T) {
	h := NewHeap(nil)
	q := h.AllocateQubit()
	assert.Equal(t, 1, h.LiveQubitCount())
	assert.True(t, h.IsLiveQubit(q))

	require.NoError(t, h.ReleaseQubit(q))
	assert.Equal(t, 0, h.LiveQubitCount())
}

func TestReleaseUnallocatedQubitFails(t *testing.T) {
	h := NewHeap(nil)
	err := h.ReleaseQubit(value.QubitRef{ID: 99})
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.KindQubitUseAfterFree))
}

func TestArrayCopyOnWriteUnderAlias(t *testing.T) {
	h := NewHeap(nil)
	a := h.NewArray([]value.Value{value.Int{Width: value.W64, V: 1}, value.Int{Width: value.W64, V: 2}}, 8)
	h.UpdateArrayAliasCount(a, 1)

	require.NoError(t, h.UpdateArrayElement(a, 0, value.Int{Width: value.W64, V: 42}))

	elems, _, err := h.ArrayElements(a)
	require.NoError(t, err)
	assert.Equal(t, int64(42), elems[0].(value.Int).V)
}

func TestArrayRefcountFreesAtZero(t *testing.T) {
	h := NewHeap(nil)
	a := h.NewArray(nil, 8)
	h.UpdateArrayRefcount(a, -1)
	_, _, err := h.ArrayElements(a)
	assert.Error(t, err)
}

func TestResultMaterializeAndBitPosition(t *testing.T) {
	h := NewHeap(nil)
	r := h.NewResult(value.Pending)
	assert.Contains(t, h.PendingResults(), r.ID)

	h.BindBitPosition(r, 3)
	pos, ok := h.BitPosition(r)
	require.True(t, ok)
	assert.Equal(t, 3, pos)

	h.Materialize(r, value.One)
	o, ok := h.Outcome(r.ID)
	require.True(t, ok)
	assert.Equal(t, value.One, o)
	assert.NotContains(t, h.PendingResults(), r.ID)
}

func TestCallRuntimeQubitAllocateArray(t *testing.T) {
	h := NewHeap(nil)
	v, err := h.CallRuntime("__quantum__rt__qubit_allocate_array", []value.Value{value.Int{Width: value.W64, V: 3}})
	require.NoError(t, err)
	arr, ok := v.(value.ArrayRef)
	require.True(t, ok)
	n, err := h.ArraySize(arr)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, h.LiveQubitCount())
}

func TestCallRuntimeResultRecordOutput(t *testing.T) {
	h := NewHeap(nil)
	r := h.ResultOne()
	s := h.NewString("0")
	_, err := h.CallRuntime("__quantum__rt__result_record_output", []value.Value{r, s})
	require.NoError(t, err)
	require.Len(t, h.Outputs(), 1)
	assert.Equal(t, "0", h.Outputs()[0].Label)
}

func TestStringCreateFromBytesAndMessage(t *testing.T) {
	h := NewHeap(nil)

	v, err := h.CallRuntime("__quantum__rt__string_create", []value.Value{value.Bytes{Data: "hello"}})
	require.NoError(t, err)
	s, ok := v.(value.StringRef)
	require.True(t, ok)
	text, err := h.StringValue(s)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = h.CallRuntime("__quantum__rt__message", []value.Value{s})
	require.NoError(t, err)
	require.Len(t, h.Messages(), 1)
	assert.Equal(t, "hello", h.Messages()[0])
}

func TestStringCreateRejectsNonByteOperand(t *testing.T) {
	h := NewHeap(nil)
	_, err := h.CallRuntime("__quantum__rt__string_create", []value.Value{value.Int{Width: value.W64, V: 1}})
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.KindTypeMismatch))
}

func TestResultRecordOutputAcceptsRawByteLabel(t *testing.T) {
	h := NewHeap(nil)
	r := h.ResultOne()
	_, err := h.CallRuntime("__quantum__rt__result_record_output", []value.Value{r, value.Bytes{Data: "r0"}})
	require.NoError(t, err)
	require.Len(t, h.Outputs(), 1)
	assert.Equal(t, "r0", h.Outputs()[0].Label)
}

func TestCallGateMeasureBindsBitPosition(t *testing.T) {
	h := NewHeap(nil)
	rec := &noopBuilder{}
	p := qgate.New(rec)
	q := h.AllocateQubit()

	v, err := CallGate(p, h, "__quantum__qis__mz__body", []value.Value{q})
	require.NoError(t, err)
	r, ok := v.(value.ResultRef)
	require.True(t, ok)
	pos, ok := h.BitPosition(r)
	require.True(t, ok)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 1, rec.measures)
}

func TestCallGateControlledXResolvesControlArray(t *testing.T) {
	h := NewHeap(nil)
	rec := &noopBuilder{}
	p := qgate.New(rec)
	c0 := h.AllocateQubit()
	c1 := h.AllocateQubit()
	target := h.AllocateQubit()
	controls := h.NewArray([]value.Value{c0, c1}, 8)

	_, err := CallGate(p, h, "__quantum__qis__x__ctl", []value.Value{controls, target})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.cxs)
}

type noopBuilder struct {
	cxs, measures int
}

func (b *noopBuilder) X(int, float64)         {}
func (b *noopBuilder) Y(int, float64)         {}
func (b *noopBuilder) Z(int, float64)         {}
func (b *noopBuilder) CX([]int, int, float64) { b.cxs++ }
func (b *noopBuilder) CY([]int, int, float64) {}
func (b *noopBuilder) CZ([]int, int, float64) {}
func (b *noopBuilder) Swap(int, int)          {}
func (b *noopBuilder) Reset(int)              {}
func (b *noopBuilder) Measure(int)            { b.measures++ }
func (b *noopBuilder) Clear() {}
