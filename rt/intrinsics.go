package rt

import (
	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/value"
)

// OutputRecord is one __quantum__rt__result_record_output call, captured
// in call order for the orchestrator to shape into the run's return value.
type OutputRecord struct {
	Label string
	Value value.Value
}

func (h *Heap) recordOutput(label string, v value.Value) {
	h.outputs = append(h.outputs, OutputRecord{Label: label, Value: v})
}

// Outputs returns every recorded output in call order.
func (h *Heap) Outputs() []OutputRecord {
	out := make([]OutputRecord, len(h.outputs))
	copy(out, h.outputs)
	return out
}

// Messages returns every string passed to __quantum__rt__message, in call
// order — a diagnostics channel distinct from recorded outputs.
func (h *Heap) Messages() []string {
	out := make([]string, len(h.messages))
	copy(out, h.messages)
	return out
}

// CallRuntime dispatches one __quantum__rt__* intrinsic call against this
// heap. args and the returned Value follow the same calling convention as
// classical folding: by-value Value slice in, single Value (or Null for
// void) out.
func (h *Heap) CallRuntime(name string, args []value.Value) (value.Value, error) {
	switch name {
	case "__quantum__rt__qubit_allocate":
		return h.AllocateQubit(), nil

	case "__quantum__rt__qubit_allocate_array":
		n, ok := value.AsInt(arg(args, 0))
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "qubit_allocate_array: expected integer count")
		}
		return h.AllocateQubitArray(int(n.V)), nil

	case "__quantum__rt__qubit_release":
		q, ok := value.AsQubit(arg(args, 0))
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "qubit_release: expected Qubit")
		}
		return value.Null{}, h.ReleaseQubit(q)

	case "__quantum__rt__qubit_release_array":
		a, ok := arg(args, 0).(value.ArrayRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "qubit_release_array: expected Array")
		}
		return value.Null{}, h.ReleaseQubitArray(a)

	case "__quantum__rt__array_create_1d":
		elemSize, _ := value.AsInt(arg(args, 0))
		n, ok := value.AsInt(arg(args, 1))
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array_create_1d: expected integer length")
		}
		elems := make([]value.Value, n.V)
		for i := range elems {
			elems[i] = value.Null{}
		}
		return h.NewArray(elems, int(elemSize.V)), nil

	case "__quantum__rt__array_get_element_ptr_1d":
		a, ok := arg(args, 0).(value.ArrayRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array_get_element_ptr_1d: expected Array")
		}
		idxv, _ := value.AsInt(arg(args, 1))
		idx := idxv.V
		elems, _, err := h.ArrayElements(a)
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(elems) {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array index %d out of range", idx)
		}
		return value.Pointer{Target: elems[idx]}, nil

	case "__quantum__rt__array_get_size_1d":
		a, ok := arg(args, 0).(value.ArrayRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array_get_size_1d: expected Array")
		}
		n, err := h.ArraySize(a)
		if err != nil {
			return nil, err
		}
		return value.Int{Width: value.W64, V: int64(n)}, nil

	case "__quantum__rt__array_concatenate":
		a, ok1 := arg(args, 0).(value.ArrayRef)
		b, ok2 := arg(args, 1).(value.ArrayRef)
		if !ok1 || !ok2 {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array_concatenate: expected two Arrays")
		}
		return h.ConcatArrays(a, b)

	case "__quantum__rt__array_update_reference_count":
		a, ok := arg(args, 0).(value.ArrayRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array_update_reference_count: expected Array")
		}
		delta, _ := value.AsInt(arg(args, 1))
		h.UpdateArrayRefcount(a, int(delta.V))
		return value.Null{}, nil

	case "__quantum__rt__array_update_alias_count":
		a, ok := arg(args, 0).(value.ArrayRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "array_update_alias_count: expected Array")
		}
		delta, _ := value.AsInt(arg(args, 1))
		h.UpdateArrayAliasCount(a, int(delta.V))
		return value.Null{}, nil

	case "__quantum__rt__tuple_create":
		size, ok := value.AsInt(arg(args, 0))
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "tuple_create: expected integer size")
		}
		return h.NewTuple(int(size.V)), nil

	case "__quantum__rt__tuple_update_reference_count":
		tp, ok := arg(args, 0).(value.TupleRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "tuple_update_reference_count: expected Tuple")
		}
		delta, _ := value.AsInt(arg(args, 1))
		h.UpdateTupleRefcount(tp, int(delta.V))
		return value.Null{}, nil

	case "__quantum__rt__result_get_zero":
		return h.ResultZero(), nil

	case "__quantum__rt__result_get_one":
		return h.ResultOne(), nil

	case "__quantum__rt__result_equal":
		r1, ok1 := arg(args, 0).(value.ResultRef)
		r2, ok2 := arg(args, 1).(value.ResultRef)
		if !ok1 || !ok2 {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "result_equal: expected two Results")
		}
		o1, _ := h.Outcome(r1.ID)
		o2, _ := h.Outcome(r2.ID)
		return value.Bool{V: o1 == o2}, nil

	case "__quantum__rt__result_update_reference_count":
		r, ok := arg(args, 0).(value.ResultRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "result_update_reference_count: expected Result")
		}
		delta, _ := value.AsInt(arg(args, 1))
		h.UpdateResultRefcount(r, int(delta.V))
		return value.Null{}, nil

	case "__quantum__rt__result_record_output":
		r, ok := arg(args, 0).(value.ResultRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "result_record_output: expected Result")
		}
		label, err := stringArg(h, arg(args, 1))
		if err != nil {
			return nil, err
		}
		h.recordOutput(label, r)
		return value.Null{}, nil

	case "__quantum__rt__string_create":
		switch v := arg(args, 0).(type) {
		case value.Bytes:
			return h.NewString(v.Data), nil
		case value.StringRef:
			// Already a managed handle (e.g. re-wrapped from a prior
			// string_create); constructing from it again is a no-op copy.
			s, err := h.StringValue(v)
			if err != nil {
				return nil, err
			}
			return h.NewString(s), nil
		}
		return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "string_create: expected a raw i8* byte buffer")

	case "__quantum__rt__string_update_reference_count":
		s, ok := arg(args, 0).(value.StringRef)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "string_update_reference_count: expected String")
		}
		delta, _ := value.AsInt(arg(args, 1))
		h.UpdateStringRefcount(s, int(delta.V))
		return value.Null{}, nil

	case "__quantum__rt__message":
		text, err := stringArg(h, arg(args, 0))
		if err != nil {
			return nil, err
		}
		h.messages = append(h.messages, text)
		return value.Null{}, nil
	}

	return nil, rerr.New(rerr.KindUnsupportedFeature, rerr.Location{}, "unrecognized runtime intrinsic %q", name)
}

// stringArg reads v as text: a StringRef resolves through the heap, Bytes
// reads its payload directly (the raw i8* form before string_create has
// run), and Null yields an empty string — result_record_output's label
// argument is routinely passed as a bare null i8*.
func stringArg(h *Heap, v value.Value) (string, error) {
	switch t := v.(type) {
	case value.StringRef:
		return h.StringValue(t)
	case value.Bytes:
		return t.Data, nil
	case value.Null:
		return "", nil
	}
	return "", rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "expected a String or i8* operand")
}

func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Null{}
	}
	return args[i]
}
