package exec

import (
	"github.com/oqc-community/rasqal/ir"
	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/value"
)

// widthFromTy maps a QIR integer type name to its Width; unrecognized or
// non-integer type names default to W64, the width every classical
// computation in this engine is carried at internally unless narrowed by
// an explicit trunc.
func widthFromTy(ty string) value.Width {
	switch ty {
	case "i1":
		return value.W1
	case "i2":
		return value.W2
	case "i8":
		return value.W8
	case "i16":
		return value.W16
	case "i32":
		return value.W32
	default:
		return value.W64
	}
}

// resolveOperand reads an operand's current Value: a constant folds to its
// literal, an SSA name reads the frame's environment, and a reference to a
// module-level string-constant global reads its decoded bytes out of the
// module's string table (the raw i8* payload __quantum__rt__string_create
// promotes into an owned StringRef).
func (e *Engine) resolveOperand(f *frame, op ir.Operand, at rerr.Location) (value.Value, error) {
	switch op.Kind {
	case ir.OperandConst:
		return constValue(op.Const), nil
	case ir.OperandSSA:
		v, ok := f.get(op.Name)
		if !ok {
			return nil, rerr.New(rerr.KindUndefinedSymbol, at, "undefined SSA value %%%s", op.Name)
		}
		return v, nil
	case ir.OperandGlobal:
		if text, ok := e.mod.Strings[op.Name]; ok {
			return value.Bytes{Data: text}, nil
		}
		return nil, rerr.New(rerr.KindTypeMismatch, at, "operand %q cannot be read as a value", op.Name)
	default:
		return nil, rerr.New(rerr.KindTypeMismatch, at, "operand %q cannot be read as a value", op.Name)
	}
}

func constValue(c ir.ConstLit) value.Value {
	if c.Null {
		return value.Null{TypeName: c.Ty}
	}
	switch c.Ty {
	case "double":
		return value.Float{V: c.Flt}
	case "i1":
		return value.Bool{V: c.Int != 0}
	default:
		return value.Int{Width: widthFromTy(c.Ty), V: c.Int}
	}
}

// toExpr lifts a resolved Value into a symbolic Expr leaf: a materialized
// value becomes a Const, a still-Pending ResultRef becomes a ResultLeaf,
// and an already-Deferred value contributes its own expression tree.
func toExpr(v value.Value) value.Expr {
	switch t := v.(type) {
	case value.Deferred:
		return t.Expr
	case value.ResultRef:
		if t.Outcome == value.Pending {
			return value.ResultLeaf{ID: t.ID}
		}
		return value.Const{V: value.Bool{V: t.Outcome == value.One}}
	default:
		return value.Const{V: v}
	}
}

func isPending(v value.Value) bool {
	switch t := v.(type) {
	case value.Deferred:
		return true
	case value.ResultRef:
		return t.Outcome == value.Pending
	}
	return false
}

var deferrableOps = map[string]value.Op{
	"add":      value.OpAdd,
	"sub":      value.OpSub,
	"mul":      value.OpMul,
	"and":      value.OpAnd,
	"or":       value.OpOr,
	"xor":      value.OpXor,
	"icmp.eq":  value.OpEq,
	"icmp.ne":  value.OpNe,
}

// foldBinary evaluates opcode(a, b). If either operand transitively depends
// on an unmeasured ResultRef, the classical opcodes listed as
// deferrable fold into a Deferred expression instead of failing; any other
// opcode touched by a pending operand is an unsupported-feature error,
// since this engine never speculates past a measurement outside of that
// fixed operator set.
func foldBinary(op string, a, b value.Value, at rerr.Location) (value.Value, error) {
	if isPending(a) || isPending(b) {
		vop, ok := deferrableOps[op]
		if !ok {
			return nil, rerr.New(rerr.KindUnsupportedFeature, at, "opcode %q cannot be deferred past an unmeasured result", op)
		}
		return value.Deferred{Expr: value.Binary{Op: vop, Left: toExpr(a), Right: toExpr(b)}}, nil
	}

	switch op {
	case "add", "sub", "mul", "sdiv", "udiv", "srem", "urem", "and", "or", "xor", "shl", "lshr", "ashr":
		ai, aok := value.AsInt(a)
		bi, bok := value.AsInt(b)
		if !aok || !bok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "opcode %q requires integer operands", op)
		}
		return intBinary(op, ai, bi, at)
	case "fadd", "fsub", "fmul", "fdiv":
		af, aok := value.AsFloat(a)
		bf, bok := value.AsFloat(b)
		if !aok || !bok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "opcode %q requires numeric operands", op)
		}
		return floatBinary(op, af, bf)
	case "icmp.eq", "icmp.ne", "icmp.slt", "icmp.sgt", "icmp.sle", "icmp.sge", "icmp.ult", "icmp.ugt", "icmp.ule", "icmp.uge":
		ai, aok := value.AsInt(a)
		bi, bok := value.AsInt(b)
		if !aok || !bok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "icmp requires integer operands")
		}
		return intCompare(op, ai, bi), nil
	case "fcmp.oeq", "fcmp.one", "fcmp.olt", "fcmp.ogt", "fcmp.ole", "fcmp.oge":
		af, aok := value.AsFloat(a)
		bf, bok := value.AsFloat(b)
		if !aok || !bok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "fcmp requires numeric operands")
		}
		return floatCompare(op, af, bf), nil
	}
	return nil, rerr.New(rerr.KindUnsupportedFeature, at, "unrecognized binary opcode %q", op)
}

func intBinary(op string, a, b value.Int, at rerr.Location) (value.Value, error) {
	w := a.Width
	switch op {
	case "add":
		return value.Int{Width: w, V: a.V + b.V}, nil
	case "sub":
		return value.Int{Width: w, V: a.V - b.V}, nil
	case "mul":
		return value.Int{Width: w, V: a.V * b.V}, nil
	case "sdiv":
		if b.V == 0 {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "sdiv by zero")
		}
		return value.Int{Width: w, V: a.V / b.V}, nil
	case "udiv":
		if b.V == 0 {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "udiv by zero")
		}
		return value.Int{Width: w, V: int64(uint64(a.V) / uint64(b.V))}, nil
	case "srem":
		if b.V == 0 {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "srem by zero")
		}
		return value.Int{Width: w, V: a.V % b.V}, nil
	case "urem":
		if b.V == 0 {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "urem by zero")
		}
		return value.Int{Width: w, V: int64(uint64(a.V) % uint64(b.V))}, nil
	case "and":
		return value.Int{Width: w, V: a.V & b.V}, nil
	case "or":
		return value.Int{Width: w, V: a.V | b.V}, nil
	case "xor":
		return value.Int{Width: w, V: a.V ^ b.V}, nil
	case "shl":
		return value.Int{Width: w, V: a.V << uint(b.V)}, nil
	case "lshr":
		return value.Int{Width: w, V: int64(uint64(a.V) >> uint(b.V))}, nil
	case "ashr":
		return value.Int{Width: w, V: a.V >> uint(b.V)}, nil
	}
	return nil, rerr.New(rerr.KindUnsupportedFeature, at, "unrecognized integer opcode %q", op)
}

func floatBinary(op string, a, b float64) (value.Value, error) {
	switch op {
	case "fadd":
		return value.Float{V: a + b}, nil
	case "fsub":
		return value.Float{V: a - b}, nil
	case "fmul":
		return value.Float{V: a * b}, nil
	case "fdiv":
		return value.Float{V: a / b}, nil
	}
	return value.Float{}, rerr.New(rerr.KindUnsupportedFeature, rerr.Location{}, "unrecognized float opcode %q", op)
}

func intCompare(op string, a, b value.Int) value.Value {
	ua, ub := uint64(a.V), uint64(b.V)
	switch op {
	case "icmp.eq":
		return value.Bool{V: a.V == b.V}
	case "icmp.ne":
		return value.Bool{V: a.V != b.V}
	case "icmp.slt":
		return value.Bool{V: a.V < b.V}
	case "icmp.sgt":
		return value.Bool{V: a.V > b.V}
	case "icmp.sle":
		return value.Bool{V: a.V <= b.V}
	case "icmp.sge":
		return value.Bool{V: a.V >= b.V}
	case "icmp.ult":
		return value.Bool{V: ua < ub}
	case "icmp.ugt":
		return value.Bool{V: ua > ub}
	case "icmp.ule":
		return value.Bool{V: ua <= ub}
	case "icmp.uge":
		return value.Bool{V: ua >= ub}
	}
	return value.Bool{V: false}
}

func floatCompare(op string, a, b float64) value.Value {
	switch op {
	case "fcmp.oeq":
		return value.Bool{V: a == b}
	case "fcmp.one":
		return value.Bool{V: a != b}
	case "fcmp.olt":
		return value.Bool{V: a < b}
	case "fcmp.ogt":
		return value.Bool{V: a > b}
	case "fcmp.ole":
		return value.Bool{V: a <= b}
	case "fcmp.oge":
		return value.Bool{V: a >= b}
	}
	return value.Bool{V: false}
}

// foldConv evaluates the single-operand conversion opcodes.
func foldConv(op string, v value.Value, ty string, at rerr.Location) (value.Value, error) {
	if isPending(v) && op != "bitcast" {
		return nil, rerr.New(rerr.KindUnsupportedFeature, at, "conversion %q cannot be deferred past an unmeasured result", op)
	}
	switch op {
	case "zext":
		i, ok := value.AsInt(v)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "zext requires an integer operand")
		}
		return value.Int{Width: widthFromTy(ty), V: value.ZeroExtend(i.V, i.Width)}, nil
	case "sext":
		i, ok := value.AsInt(v)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "sext requires an integer operand")
		}
		return value.Int{Width: widthFromTy(ty), V: value.SignExtend(i.V, i.Width)}, nil
	case "trunc":
		i, ok := value.AsInt(v)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "trunc requires an integer operand")
		}
		return value.Int{Width: widthFromTy(ty), V: value.Truncate(i.V, widthFromTy(ty))}, nil
	case "fptosi":
		f, ok := value.AsFloat(v)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "fptosi requires a float operand")
		}
		return value.Int{Width: widthFromTy(ty), V: int64(f)}, nil
	case "sitofp":
		i, ok := value.AsInt(v)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "sitofp requires an integer operand")
		}
		return value.Float{V: float64(i.V)}, nil
	case "bitcast", "ptrtoint", "inttoptr":
		return v, nil
	}
	return nil, rerr.New(rerr.KindUnsupportedFeature, at, "unrecognized conversion opcode %q", op)
}
