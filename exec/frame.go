package exec

import (
	"github.com/oqc-community/rasqal/graph"
	"github.com/oqc-community/rasqal/ir"
	"github.com/oqc-community/rasqal/value"
)

// frame is one function activation: its CFG, the current cursor into it,
// and the SSA environment (%name -> Value) accumulated so far. Mirrors
// core/vm's ScopeContext, generalized from an EVM stack+memory pair to an
// SSA register file.
type frame struct {
	fn    *ir.Function
	cfg   *graph.CFG
	env   map[string]value.Value
	block graph.BlockID
	pc    int // index into block.Instrs
	prev  graph.BlockID // predecessor block, for phi resolution

	// retSlot names the caller's SSA slot for this call's result. newFrame
	// leaves it empty for every frame: execCall hands a call's result back
	// as its return value instead.
	retSlot string
}

func newFrame(fn *ir.Function, cfg *graph.CFG, args []value.Value) *frame {
	env := make(map[string]value.Value, len(fn.Params))
	for i, p := range fn.Params {
		if i < len(args) {
			env[p.Name] = args[i]
		}
	}
	return &frame{fn: fn, cfg: cfg, env: env, block: cfg.Entry}
}

func (f *frame) currentBlock() *ir.Block {
	bi, ok := f.cfg.Blocks[f.block]
	if !ok {
		return nil
	}
	return bi.Block
}

// advance moves the cursor to the next instruction in program order. It
// does not check the block's bounds; execFrame reports a block that runs
// past its end.
func (f *frame) advance() {
	f.pc++
}

// jump transfers control to target, recording the block just left so a phi
// in target can pick the matching incoming edge.
func (f *frame) jump(target graph.BlockID) {
	f.prev = f.block
	f.block = target
	f.pc = 0
}

func (f *frame) get(name string) (value.Value, bool) {
	v, ok := f.env[name]
	return v, ok
}

func (f *frame) set(name string, v value.Value) {
	if name == "" {
		return
	}
	f.env[name] = v
}
