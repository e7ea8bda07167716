package rasqal

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqc-community/rasqal/exec"
	"github.com/oqc-community/rasqal/qgate"
	"github.com/oqc-community/rasqal/rasqaltest"
	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/value"
)

const bellQIR = `
declare %Qubit* @__quantum__rt__qubit_allocate()
declare void @__quantum__qis__h__body(%Qubit*)
declare void @__quantum__qis__cnot__body(%Qubit*, %Qubit*)
declare %Result* @__quantum__qis__mz__body(%Qubit*)
declare void @__quantum__rt__result_record_output(%Result*, i8*)

define void @Bell() #attrs(EntryPoint) {
entry:
  %q0 = call %Qubit* @__quantum__rt__qubit_allocate()
  %q1 = call %Qubit* @__quantum__rt__qubit_allocate()
  call void @__quantum__qis__h__body(%Qubit* %q0)
  call void @__quantum__qis__cnot__body(%Qubit* %q0, %Qubit* %q1)
  %r0 = call %Result* @__quantum__qis__mz__body(%Qubit* %q0)
  %r1 = call %Result* @__quantum__qis__mz__body(%Qubit* %q1)
  call void @__quantum__rt__result_record_output(%Result* %r0, i8* null)
  call void @__quantum__rt__result_record_output(%Result* %r1, i8* null)
  ret void
}
`

// S1 — Bell, base profile.
func TestBellBaseProfile(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{"00": 100})

	result, err := NewRunner(backend).RunLL(context.Background(), bellQIR, nil)
	require.NoError(t, err)

	assert.True(t, result.BaseProfile)
	assert.Equal(t, Distribution{"00": 100}, result.Distribution)
	assert.Equal(t, []string{
		"z 0 3.141592653589793",
		"y 0 1.5707963267948966",
		"cx [0] 1 3.141592653589793",
		"measure 0",
		"measure 1",
	}, builder.Strings())
	assert.Equal(t, 1, backend.Executions)
}

// S5 — Routed Bell: a decorator over qgate.Builder renames physical
// qubits without the engine or the Bell program changing at all.
func TestBellWithRing4Routing(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	ring := &ring4Router{next: builder, physical: map[int]int{0: 3, 1: 0}}
	backend := &routedMockBackend{builder: ring, dist: Distribution{"00": 100}}

	result, err := NewRunner(backend).RunLL(context.Background(), bellQIR, nil)
	require.NoError(t, err)
	assert.True(t, result.BaseProfile)
	assert.Equal(t, []string{
		"z 3 3.141592653589793",
		"y 3 1.5707963267948966",
		"cx [3] 0 3.141592653589793",
		"measure 3",
		"measure 0",
	}, builder.Strings())
}

// S6 — a step-count limit of 2 aborts the Bell program with
// StepLimitExceeded and a message containing "step count".
func TestStepCountLimitExceeded(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{})

	_, err := NewRunner(backend).StepCountLimit(2).RunLL(context.Background(), bellQIR, nil)
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.KindStepLimitExceeded))
	assert.Contains(t, strings.ToLower(err.Error()), "step count")
}

// S7 — a backend whose Execute raises an error fails the run with
// BackendFailure wrapping that error's message verbatim.
func TestBackendFailurePropagates(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, nil)
	backend.Err = assertErr("simulator exploded")

	_, err := NewRunner(backend).RunLL(context.Background(), bellQIR, nil)
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.KindBackendFailure))
	assert.Contains(t, err.Error(), "simulator exploded")
	assert.Equal(t, "simulator exploded", rerr.Cause(err).Error())
}

// S3 — minified oracle generator: a classical i1 argument picks between
// emitting an X gate before the measurement or not.
const oracleQIR = `
declare %Qubit* @__quantum__rt__qubit_allocate()
declare void @__quantum__qis__x__body(%Qubit*)
declare %Result* @__quantum__qis__mz__body(%Qubit*)
declare void @__quantum__rt__result_record_output(%Result*, i8*)

define void @Oracle(i1 %flag) #attrs(EntryPoint) {
entry:
  %q0 = call %Qubit* @__quantum__rt__qubit_allocate()
  br i1 %flag, label %flip, label %skip
flip:
  call void @__quantum__qis__x__body(%Qubit* %q0)
  br label %done
skip:
  br label %done
done:
  %r0 = call %Result* @__quantum__qis__mz__body(%Qubit* %q0)
  call void @__quantum__rt__result_record_output(%Result* %r0, i8* null)
  ret void
}
`

func TestOracleGeneratorTrueFlipsFirst(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{"1": 1})

	_, err := NewRunner(backend).RunLL(context.Background(), oracleQIR, []value.Value{value.Bool{V: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x 0 3.141592653589793", "measure 0"}, builder.Strings())
}

func TestOracleGeneratorFalseSkipsFlip(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{"0": 1})

	_, err := NewRunner(backend).RunLL(context.Background(), oracleQIR, []value.Value{value.Bool{V: false}})
	require.NoError(t, err)
	assert.Equal(t, []string{"measure 0"}, builder.Strings())
}

// S4 — oracle generator, 3-bit enumeration: the same conditional-flip
// shape as S3, extended to three flag qubits, driven by a host loop over
// all eight flag subsets in lexicographic order.
const oracle3QIR = `
declare %Qubit* @__quantum__rt__qubit_allocate()
declare void @__quantum__qis__x__body(%Qubit*)
declare %Result* @__quantum__qis__mz__body(%Qubit*)
declare void @__quantum__rt__result_record_output(%Result*, i8*)

define void @Oracle3(i1 %f0, i1 %f1, i1 %f2) #attrs(EntryPoint) {
entry:
  %q0 = call %Qubit* @__quantum__rt__qubit_allocate()
  %q1 = call %Qubit* @__quantum__rt__qubit_allocate()
  %q2 = call %Qubit* @__quantum__rt__qubit_allocate()
  br i1 %f0, label %flip0, label %skip0
flip0:
  call void @__quantum__qis__x__body(%Qubit* %q0)
  br label %skip0
skip0:
  br i1 %f1, label %flip1, label %skip1
flip1:
  call void @__quantum__qis__x__body(%Qubit* %q1)
  br label %skip1
skip1:
  br i1 %f2, label %flip2, label %skip2
flip2:
  call void @__quantum__qis__x__body(%Qubit* %q2)
  br label %skip2
skip2:
  %r0 = call %Result* @__quantum__qis__mz__body(%Qubit* %q0)
  %r1 = call %Result* @__quantum__qis__mz__body(%Qubit* %q1)
  %r2 = call %Result* @__quantum__qis__mz__body(%Qubit* %q2)
  call void @__quantum__rt__result_record_output(%Result* %r0, i8* null)
  call void @__quantum__rt__result_record_output(%Result* %r1, i8* null)
  call void @__quantum__rt__result_record_output(%Result* %r2, i8* null)
  ret void
}
`

func TestOracleGeneratorEnumeratesEightSubsets(t *testing.T) {
	for n := 0; n < 8; n++ {
		bits := [3]bool{n&4 != 0, n&2 != 0, n&1 != 0}

		builder := rasqaltest.NewMockBuilder()
		backend := rasqaltest.NewMockBackend(builder, Distribution{"000": 1})

		args := []value.Value{
			value.Bool{V: bits[0]},
			value.Bool{V: bits[1]},
			value.Bool{V: bits[2]},
		}
		_, err := NewRunner(backend).RunLL(context.Background(), oracle3QIR, args)
		require.NoError(t, err)

		var want []string
		for q, flip := range bits {
			if flip {
				want = append(want, fmt.Sprintf("x %d 3.141592653589793", q))
			}
		}
		want = append(want, "measure 0", "measure 1", "measure 2")
		assert.Equal(t, want, builder.Strings(), "subset %d (%v)", n, bits)
	}
}

// S2 — full QIR "is result one": a classical bool return forces
// measurement mid-run via result_equal rather than waiting for an
// end-of-run flush.
const isResultOneQIR = `
declare %Qubit* @__quantum__rt__qubit_allocate()
declare void @__quantum__qis__h__body(%Qubit*)
declare void @__quantum__qis__cnot__body(%Qubit*, %Qubit*)
declare %Result* @__quantum__qis__mz__body(%Qubit*)
declare %Result* @__quantum__rt__result_get_one()
declare i1 @__quantum__rt__result_equal(%Result*, %Result*)

define i1 @IsResultOne() #attrs(EntryPoint) {
entry:
  %q0 = call %Qubit* @__quantum__rt__qubit_allocate()
  %q1 = call %Qubit* @__quantum__rt__qubit_allocate()
  call void @__quantum__qis__h__body(%Qubit* %q0)
  call void @__quantum__qis__cnot__body(%Qubit* %q0, %Qubit* %q1)
  %r0 = call %Result* @__quantum__qis__mz__body(%Qubit* %q0)
  %one = call %Result* @__quantum__rt__result_get_one()
  %eq = call i1 @__quantum__rt__result_equal(%Result* %r0, %Result* %one)
  ret i1 %eq
}
`

func TestIsResultOneMajorityOne(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{"00": 1, "01": 1, "10": 1, "11": 100})

	result, err := NewRunner(backend).RunLL(context.Background(), isResultOneQIR, nil)
	require.NoError(t, err)
	assert.Equal(t, true, result.Value)
}

func TestIsResultOneMajorityZero(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{"00": 100, "01": 1, "10": 1, "11": 1})

	result, err := NewRunner(backend).RunLL(context.Background(), isResultOneQIR, nil)
	require.NoError(t, err)
	assert.Equal(t, false, result.Value)
}

// The live-qubit set is empty after a successful run that releases
// everything it allocated.
const releasingQIR = `
declare %Qubit* @__quantum__rt__qubit_allocate()
declare void @__quantum__rt__qubit_release(%Qubit*)

define void @Releases() #attrs(EntryPoint, requiredQubits=2) {
entry:
  %q0 = call %Qubit* @__quantum__rt__qubit_allocate()
  call void @__quantum__rt__qubit_release(%Qubit* %q0)
  ret void
}
`

const messageQIR = `
@msg = private unnamed_addr constant [6 x i8] c"hello\00"

declare i8* @__quantum__rt__string_create(i8*)
declare void @__quantum__rt__message(i8*)
declare void @__quantum__rt__string_update_reference_count(i8*, i32)

define void @Greet() #attrs(EntryPoint) {
entry:
  %s = call i8* @__quantum__rt__string_create(i8* @msg)
  call void @__quantum__rt__message(i8* %s)
  call void @__quantum__rt__string_update_reference_count(i8* %s, i32 -1)
  ret void
}
`

// Regression test for the string-constant surface: a global i8* literal
// must resolve through the module's string table, string_create must turn
// it into an owned StringRef, and message must read it back.
func TestStringCreateAndMessageEndToEnd(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{})

	result, err := NewRunner(backend).RunLL(context.Background(), messageQIR, nil)
	require.NoError(t, err)
	assert.False(t, result.BaseProfile)
	assert.Nil(t, result.Value)
}

func TestNoCapableBackendFails(t *testing.T) {
	builder := rasqaltest.NewMockBuilder()
	backend := rasqaltest.NewMockBackend(builder, Distribution{})
	backend.MinQubits = 1

	_, err := NewRunner(backend).RunLL(context.Background(), releasingQIR, nil)
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.KindNoCapableBackend))
}

// --- test-local helpers -----------------------------------------------

type assertErr string

func (e assertErr) Error() string { return string(e) }

// ring4Router is a decorator over qgate.Builder that renames logical
// qubit ids to fixed physical ids, the same "decorator over the Builder
// interface" pattern a routing layer would use.
type ring4Router struct {
	next     *rasqaltest.MockBuilder
	physical map[int]int
}

func (r *ring4Router) phys(q int) int {
	if p, ok := r.physical[q]; ok {
		return p
	}
	return q
}

func (r *ring4Router) X(q int, theta float64) { r.next.X(r.phys(q), theta) }
func (r *ring4Router) Y(q int, theta float64) { r.next.Y(r.phys(q), theta) }
func (r *ring4Router) Z(q int, theta float64) { r.next.Z(r.phys(q), theta) }
func (r *ring4Router) CX(controls []int, target int, theta float64) {
	r.next.CX(r.physAll(controls), r.phys(target), theta)
}
func (r *ring4Router) CY(controls []int, target int, theta float64) {
	r.next.CY(r.physAll(controls), r.phys(target), theta)
}
func (r *ring4Router) CZ(controls []int, target int, theta float64) {
	r.next.CZ(r.physAll(controls), r.phys(target), theta)
}
func (r *ring4Router) Swap(q1, q2 int) { r.next.Swap(r.phys(q1), r.phys(q2)) }
func (r *ring4Router) Reset(q int)     { r.next.Reset(r.phys(q)) }
func (r *ring4Router) Measure(q int)   { r.next.Measure(r.phys(q)) }
func (r *ring4Router) Clear()          { r.next.Clear() }

func (r *ring4Router) physAll(qs []int) []int {
	out := make([]int, len(qs))
	for i, q := range qs {
		out[i] = r.phys(q)
	}
	return out
}

type routedMockBackend struct {
	builder *ring4Router
	dist    Distribution
}

func (b *routedMockBackend) CreateBuilder() qgate.Builder { return b.builder }
func (b *routedMockBackend) Execute(ctx context.Context, _ qgate.Builder) (exec.Distribution, error) {
	return b.dist, nil
}
func (b *routedMockBackend) HasFeatures(exec.RequiredFeatures) bool { return true }
