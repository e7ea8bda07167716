package rt

import (
	"github.com/oqc-community/rasqal/qgate"
	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/value"
)

// CallGate dispatches one __quantum__qis__* intrinsic call, translating
// QubitRef/Array-of-QubitRef operands into the Proxy's int qubit ids and,
// for measurement, binding the resulting classical bit position on the
// fresh Pending ResultRef the heap mints. Gates are always accumulated
// into proxy immediately — only a Result's Outcome is deferred until the
// engine's measure-now policy decides to force it.
func CallGate(proxy *qgate.Proxy, h *Heap, name string, args []value.Value) (value.Value, error) {
	switch name {
	case "__quantum__qis__x__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.GateX(q)
		return value.Null{}, nil

	case "__quantum__qis__y__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.GateY(q)
		return value.Null{}, nil

	case "__quantum__qis__z__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.GateZ(q)
		return value.Null{}, nil

	case "__quantum__qis__h__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.H(q)
		return value.Null{}, nil

	case "__quantum__qis__s__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.S(q)
		return value.Null{}, nil

	case "__quantum__qis__s__adj":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.SAdjoint(q)
		return value.Null{}, nil

	case "__quantum__qis__t__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.T(q)
		return value.Null{}, nil

	case "__quantum__qis__t__adj":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.TAdjoint(q)
		return value.Null{}, nil

	case "__quantum__qis__rx__body":
		theta, q, err := angleQubitArgs(args)
		if err != nil {
			return nil, err
		}
		proxy.RX(q, theta)
		return value.Null{}, nil

	case "__quantum__qis__ry__body":
		theta, q, err := angleQubitArgs(args)
		if err != nil {
			return nil, err
		}
		proxy.RY(q, theta)
		return value.Null{}, nil

	case "__quantum__qis__rz__body":
		theta, q, err := angleQubitArgs(args)
		if err != nil {
			return nil, err
		}
		proxy.RZ(q, theta)
		return value.Null{}, nil

	case "__quantum__qis__x__ctl":
		controls, target, err := controlledArgs(h, args)
		if err != nil {
			return nil, err
		}
		proxy.ControlledX(controls, target)
		return value.Null{}, nil

	case "__quantum__qis__y__ctl":
		controls, target, err := controlledArgs(h, args)
		if err != nil {
			return nil, err
		}
		proxy.ControlledY(controls, target)
		return value.Null{}, nil

	case "__quantum__qis__z__ctl":
		controls, target, err := controlledArgs(h, args)
		if err != nil {
			return nil, err
		}
		proxy.ControlledZ(controls, target)
		return value.Null{}, nil

	case "__quantum__qis__rx__ctl":
		controls, theta, target, err := controlledAngleArgs(h, args)
		if err != nil {
			return nil, err
		}
		proxy.ControlledRX(controls, target, theta)
		return value.Null{}, nil

	case "__quantum__qis__ry__ctl":
		controls, theta, target, err := controlledAngleArgs(h, args)
		if err != nil {
			return nil, err
		}
		proxy.ControlledRY(controls, target, theta)
		return value.Null{}, nil

	case "__quantum__qis__rz__ctl":
		controls, theta, target, err := controlledAngleArgs(h, args)
		if err != nil {
			return nil, err
		}
		proxy.ControlledRZ(controls, target, theta)
		return value.Null{}, nil

	case "__quantum__qis__cnot__body", "__quantum__qis__cx__body":
		control, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		target, err := qubitArg(args, 1)
		if err != nil {
			return nil, err
		}
		proxy.CNOT(control, target)
		return value.Null{}, nil

	// cz is deliberately lowered through ControlledZ (z-axis controlled
	// rotation), not a cz->crx routing — crz is the semantically correct
	// lowering here.
	case "__quantum__qis__cz__body":
		control, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		target, err := qubitArg(args, 1)
		if err != nil {
			return nil, err
		}
		proxy.ControlledZ([]int{control}, target)
		return value.Null{}, nil

	case "__quantum__qis__swap__body":
		q1, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		q2, err := qubitArg(args, 1)
		if err != nil {
			return nil, err
		}
		proxy.Swap(q1, q2)
		return value.Null{}, nil

	case "__quantum__qis__reset__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		proxy.Reset(q)
		return value.Null{}, nil

	case "__quantum__qis__mz__body", "__quantum__qis__measure__body":
		q, err := qubitArg(args, 0)
		if err != nil {
			return nil, err
		}
		pos := proxy.Measure(q)
		r := h.NewResult(value.Pending)
		h.BindBitPosition(r, pos)
		return r, nil
	}

	return nil, rerr.New(rerr.KindUnsupportedFeature, rerr.Location{}, "unrecognized quantum gate intrinsic %q", name)
}

func qubitArg(args []value.Value, i int) (int, error) {
	if i < 0 || i >= len(args) {
		return 0, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "missing qubit operand %d", i)
	}
	q, ok := value.AsQubit(args[i])
	if !ok {
		return 0, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "operand %d is not a Qubit", i)
	}
	return int(q.ID), nil
}

func angleQubitArgs(args []value.Value) (theta float64, qubit int, err error) {
	if len(args) < 2 {
		return 0, 0, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "rotation gate needs (angle, qubit)")
	}
	f, ok := value.AsFloat(args[0])
	if !ok {
		return 0, 0, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "rotation angle operand is not numeric")
	}
	q, err := qubitArg(args, 1)
	return f, q, err
}

// controlsOf converts an ArrayRef of QubitRef values into Proxy control ids.
func controlsOf(h *Heap, a value.Value) ([]int, error) {
	arr, ok := a.(value.ArrayRef)
	if !ok {
		return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "control operand is not a Qubit array")
	}
	elems, _, err := h.ArrayElements(arr)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(elems))
	for i, e := range elems {
		q, ok := value.AsQubit(e)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "control array element %d is not a Qubit", i)
		}
		out[i] = int(q.ID)
	}
	return out, nil
}

// controlledArgs parses the (controls-array, target-qubit) calling
// convention every __ctl Pauli intrinsic uses.
func controlledArgs(h *Heap, args []value.Value) (controls []int, target int, err error) {
	if len(args) < 2 {
		return nil, 0, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "controlled gate needs (controls, target)")
	}
	controls, err = controlsOf(h, args[0])
	if err != nil {
		return nil, 0, err
	}
	target, err = qubitArg(args, 1)
	return controls, target, err
}

// controlledAngleArgs parses the (controls-array, angle, target-qubit)
// calling convention every __ctl rotation intrinsic uses.
func controlledAngleArgs(h *Heap, args []value.Value) (controls []int, theta float64, target int, err error) {
	if len(args) < 3 {
		return nil, 0, 0, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "controlled rotation needs (controls, angle, target)")
	}
	controls, err = controlsOf(h, args[0])
	if err != nil {
		return nil, 0, 0, err
	}
	f, ok := value.AsFloat(args[1])
	if !ok {
		return nil, 0, 0, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "rotation angle operand is not numeric")
	}
	target, err = qubitArg(args, 2)
	return controls, f, target, err
}
