package ir

// Classical opcodes the loader and projection engine recognize, taken
// verbatim from the required-opcode set.
var ClassicalOpcodes = map[string]bool{
	"add": true, "sub": true, "mul": true, "sdiv": true, "udiv": true,
	"srem": true, "urem": true, "and": true, "or": true, "xor": true,
	"shl": true, "lshr": true, "ashr": true, "icmp": true, "fcmp": true,
	"fadd": true, "fsub": true, "fmul": true, "fdiv": true, "call": true,
	"br": true, "ret": true, "phi": true, "select": true,
	"getelementptr": true, "bitcast": true, "inttoptr": true,
	"ptrtoint": true, "load": true, "store": true, "alloca": true,
	"zext": true, "sext": true, "trunc": true, "fptosi": true, "sitofp": true,
}

// QuantumGateIntrinsics are the __quantum__qis__* gate opcodes.
var QuantumGateIntrinsics = map[string]bool{
	"__quantum__qis__x__body": true, "__quantum__qis__x__ctl": true,
	"__quantum__qis__y__body": true, "__quantum__qis__y__ctl": true,
	"__quantum__qis__z__body": true, "__quantum__qis__z__ctl": true,
	"__quantum__qis__h__body": true,
	"__quantum__qis__s__body": true, "__quantum__qis__s__adj": true,
	"__quantum__qis__t__body": true, "__quantum__qis__t__adj": true,
	"__quantum__qis__rx__body": true, "__quantum__qis__rx__ctl": true,
	"__quantum__qis__ry__body": true, "__quantum__qis__ry__ctl": true,
	"__quantum__qis__rz__body": true, "__quantum__qis__rz__ctl": true,
	"__quantum__qis__cnot__body": true, "__quantum__qis__cx__body": true,
	"__quantum__qis__cz__body": true,
	"__quantum__qis__swap__body": true,
	"__quantum__qis__reset__body": true,
	"__quantum__qis__mz__body": true, "__quantum__qis__measure__body": true,
}

// RuntimeIntrinsics are the __quantum__rt__* intrinsics.
var RuntimeIntrinsics = map[string]bool{
	"__quantum__rt__qubit_allocate": true, "__quantum__rt__qubit_allocate_array": true,
	"__quantum__rt__qubit_release": true, "__quantum__rt__qubit_release_array": true,
	"__quantum__rt__array_create_1d": true, "__quantum__rt__array_get_element_ptr_1d": true,
	"__quantum__rt__array_get_size_1d": true, "__quantum__rt__array_concatenate": true,
	"__quantum__rt__array_update_reference_count": true, "__quantum__rt__array_update_alias_count": true,
	"__quantum__rt__tuple_create": true, "__quantum__rt__tuple_update_reference_count": true,
	"__quantum__rt__result_get_zero": true, "__quantum__rt__result_get_one": true,
	"__quantum__rt__result_equal": true, "__quantum__rt__result_update_reference_count": true,
	"__quantum__rt__result_record_output": true,
	"__quantum__rt__string_create": true, "__quantum__rt__string_update_reference_count": true,
	"__quantum__rt__message": true,
}

// IsIntrinsic reports whether name is any recognized quantum or runtime
// intrinsic (as opposed to a classical opcode or a user-defined call).
func IsIntrinsic(name string) bool {
	return QuantumGateIntrinsics[name] || RuntimeIntrinsics[name]
}

// IsQuantumGate reports whether name is a __quantum__qis__* intrinsic.
func IsQuantumGate(name string) bool { return QuantumGateIntrinsics[name] }

// IsRuntimeCall reports whether name is a __quantum__rt__* intrinsic.
func IsRuntimeCall(name string) bool { return RuntimeIntrinsics[name] }

// Supported reports whether opcode/intrinsic name is understood by this
// engine at all — classical opcode, quantum gate, or runtime call.
func Supported(name string) bool {
	return ClassicalOpcodes[name] || IsIntrinsic(name)
}
