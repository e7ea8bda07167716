package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestParseBell(t *testing.T) {
	mod, err := ParseText(bellQIR)
	require.NoError(t, err)

	eps := mod.EntryPoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "Bell", eps[0].Name)
	require.Len(t, eps[0].Blocks, 1)
	assert.Len(t, eps[0].Blocks[0].Instrs, 9)
}

func TestParseUnsupportedIntrinsic(t *testing.T) {
	_, err := ParseText(`
define void @Bad() #attrs(EntryPoint) {
entry:
  call void @__quantum__qis__bogus__body()
  ret void
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnsupportedFeature")
}

func TestParseMalformed(t *testing.T) {
	_, err := ParseText(`this is not QIR at all`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ParseError")
}

func TestRoundTripBitcode(t *testing.T) {
	bc, err := Assemble(bellQIR)
	require.NoError(t, err)

	fromBC, err := ParseBitcode(bc)
	require.NoError(t, err)
	fromText, err := ParseText(bellQIR)
	require.NoError(t, err)

	assert.Equal(t, len(fromText.Functions), len(fromBC.Functions))
	assert.Equal(t, fromText.EntryPoints()[0].Name, fromBC.EntryPoints()[0].Name)
}

func TestBranchingAndPhi(t *testing.T) {
	mod, err := ParseText(`
define i64 @F(i64 %x) #attrs(EntryPoint) {
entry:
  %c = icmp eq i64 %x, 0
  br i1 %c, label %then, label %else
then:
  br label %join
else:
  br label %join
join:
  %v = phi i64 [ 1, %then ], [ 2, %else ]
  ret i64 %v
}
`)
	require.NoError(t, err)
	f := mod.Functions["F"]
	require.Len(t, f.Blocks, 4)
	join, ok := f.Block("join")
	require.True(t, ok)
	require.Len(t, join.Instrs, 2)
	assert.Equal(t, "phi", join.Instrs[0].Op)
	require.Len(t, join.Instrs[0].Phi, 2)
}

func TestParseStringGlobal(t *testing.T) {
	mod, err := ParseText(`
@msg = private unnamed_addr constant [6 x i8] c"hello\00"

define void @F() #attrs(EntryPoint) {
entry:
  ret void
}
`)
	require.NoError(t, err)
	require.Contains(t, mod.Strings, "msg")
	assert.Equal(t, "hello", mod.Strings["msg"])
}

func TestRequiredAttrHints(t *testing.T) {
	mod, err := ParseText(`
define void @F() #attrs(EntryPoint, requiredQubits=2, requiredResults=2) {
entry:
  ret void
}
`)
	require.NoError(t, err)
	f := mod.Functions["F"]
	assert.Equal(t, 2, f.RequiredQubits())
	assert.Equal(t, 2, f.RequiredResults())
}
