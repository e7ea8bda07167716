// Package exec implements the Projection Engine: the partial evaluator
// that walks a function's execution graph, folding classical computation
// immediately and accumulating quantum gates into the Quantum Builder
// Proxy, forcing a measurement outcome only when a branch condition
// cannot be resolved classically.
package exec

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/oqc-community/rasqal/graph"
	"github.com/oqc-community/rasqal/ir"
	"github.com/oqc-community/rasqal/qgate"
	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/rt"
	"github.com/oqc-community/rasqal/value"
)

// Distribution is a shot-count histogram keyed by measurement bitstring,
// the shape every Backend.Execute call returns.
type Distribution map[string]uint64

// RequiredFeatures is the capability query a Backend answers against.
// MinQubits is the only standard field.
type RequiredFeatures struct {
	MinQubits int
}

// Backend is the external collaborator a run dispatches accumulated
// circuits to. Implementations may log, reroute, or transform gates by
// wrapping the Builder they hand back from CreateBuilder.
type Backend interface {
	CreateBuilder() qgate.Builder
	Execute(ctx context.Context, b qgate.Builder) (Distribution, error)
	HasFeatures(req RequiredFeatures) bool
}

// TraceSinks are the three opt-in diagnostic channels. Any field
// left nil is simply not invoked.
type TraceSinks struct {
	Graph      func(line string)
	Projection func(line string)
	Runtime    func(line string)
}

// Config configures one Engine run.
type Config struct {
	// StepLimit bounds the number of instructions executed; 0 means
	// unbounded by default.
	StepLimit int
	// RecursionLimit bounds call depth; 0 defaults to 256.
	RecursionLimit int
	Trace          TraceSinks
}

// Stats reports engine-internal counters useful to callers and tests;
// none of it is part of the observable contract.
type Stats struct {
	Steps     int
	CacheHits int
}

type cacheKey struct {
	fn      string
	block   graph.BlockID
	finger  string
}

type cacheEntry struct {
	exitBlock graph.BlockID // "" if the tail returned instead of branching out
	returned  bool
	retVal    value.Value
	writes    map[string]value.Value
}

// tailTrace tracks the pure-classical span starting at a loop header
// until it either exits the loop, returns, or is proven impure (touches
// a call instruction), at which point it stops being tracked. See the
// projection-cache notes above markImpure for why this engine only
// memoizes call-free tails.
type tailTrace struct {
	key   cacheKey
	before map[string]value.Value
	impure bool
}

// Engine executes one function at a time against a parsed Module,
// accumulating quantum gates into builder via proxy and forcing
// measurements through backend only when a branch needs one.
type Engine struct {
	mod     *ir.Module
	heap    *rt.Heap
	proxy   *qgate.Proxy
	builder qgate.Builder
	backend Backend

	stepLimit      int
	recursionLimit int
	steps          int
	depth          int

	trace TraceSinks
	cfgs  map[string]*graph.CFG
	cache map[cacheKey]cacheEntry
	tail  *tailTrace

	stats Stats
}

// NewEngine constructs an Engine over mod. heap and proxy are owned by
// the caller (the orchestrator) so it can inspect heap state and flush
// the accumulated circuit after Run returns; builder is the concrete
// accumulator proxy forwards into, needed here only to hand to backend
// when forcing a measurement.
func NewEngine(mod *ir.Module, backend Backend, builder qgate.Builder, proxy *qgate.Proxy, heap *rt.Heap, cfg Config) *Engine {
	limit := cfg.RecursionLimit
	if limit == 0 {
		limit = 256
	}
	return &Engine{
		mod:            mod,
		heap:           heap,
		proxy:          proxy,
		builder:        builder,
		backend:        backend,
		stepLimit:      cfg.StepLimit,
		recursionLimit: limit,
		trace:          cfg.Trace,
		cfgs:           map[string]*graph.CFG{},
		cache:          map[cacheKey]cacheEntry{},
	}
}

// Stats returns the engine's internal counters after a Run.
func (e *Engine) Stats() Stats { return e.stats }

// Heap exposes the runtime heap this engine's run accumulated into, for
// the orchestrator's post-run leak assertions.
func (e *Engine) Heap() *rt.Heap { return e.heap }

// Flush executes whatever remains accumulated in builder against
// backend, without forcing any particular pending result — this is the
// orchestrator's end-of-run base-profile flush, distinct from the
// engine's own mid-run "measure-now" forcing.
func (e *Engine) Flush(ctx context.Context) (Distribution, error) {
	if e.backend == nil {
		return nil, rerr.New(rerr.KindNoCapableBackend, rerr.Location{}, "no backend configured to flush the circuit")
	}
	dist, err := e.backend.Execute(ctx, e.builder)
	if err != nil {
		return nil, rerr.Wrap(rerr.Location{}, err, "backend execution failed")
	}
	e.proxy.Clear()
	return dist, nil
}

// Run executes entry with the given host-supplied arguments and returns
// its classical return value (value.Null for a void entry).
func (e *Engine) Run(ctx context.Context, entry *ir.Function, args []value.Value) (value.Value, error) {
	cfg, err := e.cfgFor(entry)
	if err != nil {
		return nil, err
	}
	fr := newFrame(entry, cfg, args)
	return e.execFrame(ctx, fr)
}

func (e *Engine) cfgFor(fn *ir.Function) (*graph.CFG, error) {
	if cfg, ok := e.cfgs[fn.Name]; ok {
		return cfg, nil
	}
	var traceFn graph.TraceFn
	if e.trace.Graph != nil {
		traceFn = e.trace.Graph
	}
	cfg, err := graph.Build(fn, traceFn)
	if err != nil {
		return nil, err
	}
	e.cfgs[fn.Name] = cfg
	return cfg, nil
}

func (e *Engine) step(at rerr.Location) error {
	e.steps++
	e.stats.Steps++
	if e.stepLimit > 0 && e.steps > e.stepLimit {
		return rerr.New(rerr.KindStepLimitExceeded, at, "step count limit exceeded")
	}
	return nil
}

func (e *Engine) loc(fr *frame, instr ir.Instr) rerr.Location {
	return rerr.Location{Function: fr.fn.Name, Block: fr.block, Instr: instr.Index}
}

// execFrame runs fr to completion (a ret instruction), returning its
// classical result. Calls recurse into execFrame directly rather than
// maintaining an explicit frame stack — Go's own call stack plays that
// role, with e.depth as the recursion-limit counter.
func (e *Engine) execFrame(ctx context.Context, fr *frame) (value.Value, error) {
	for {
		block := fr.currentBlock()
		if block == nil {
			return nil, rerr.New(rerr.KindUndefinedSymbol, rerr.Location{Function: fr.fn.Name, Block: fr.block}, "branch to undefined block %q", fr.block)
		}

		if fr.pc == 0 {
			if bi, ok := fr.cfg.Blocks[fr.block]; ok && bi.IsLoopHeader {
				jumped, done, retVal, err := e.enterLoopHeader(fr)
				if err != nil {
					return nil, err
				}
				if done {
					return retVal, nil
				}
				if jumped {
					continue
				}
			}
		}

		if fr.pc >= len(block.Instrs) {
			return nil, rerr.New(rerr.KindParseError, e.loc(fr, ir.Instr{}), "block %q falls off its end without a terminator", fr.block)
		}
		instr := block.Instrs[fr.pc]
		at := e.loc(fr, instr)
		if err := e.step(at); err != nil {
			return nil, err
		}
		if e.trace.Runtime != nil {
			e.trace.Runtime(fmt.Sprintf("step=%d depth=%d %s/%s#%d %s", e.steps, e.depth, fr.fn.Name, fr.block, instr.Index, instr.Op))
		}

		switch instr.Op {
		case "br":
			target, err := e.execBr(ctx, fr, instr, at)
			if err != nil {
				return nil, err
			}
			e.endTailIfHeader(fr, target)
			fr.jump(target)
			continue

		case "ret":
			var retVal value.Value = value.Null{}
			if len(instr.Operands) == 1 {
				v, err := e.resolveOperand(fr, instr.Operands[0], at)
				if err != nil {
					return nil, err
				}
				retVal = v
			}
			e.endTailReturn(fr, retVal)
			return retVal, nil

		default:
			v, err := e.execValueInstr(ctx, fr, instr, at)
			if err != nil {
				return nil, err
			}
			fr.set(instr.Result, v)
			fr.advance()
		}
	}
}

// execValueInstr evaluates every non-terminator instruction, returning
// the Value bound to its Result slot (Null for void calls).
func (e *Engine) execValueInstr(ctx context.Context, fr *frame, instr ir.Instr, at rerr.Location) (value.Value, error) {
	switch instr.Op {
	case "phi":
		for _, edge := range instr.Phi {
			if edge.Pred == fr.prev {
				return e.resolveOperand(fr, edge.Value, at)
			}
		}
		return nil, rerr.New(rerr.KindUndefinedSymbol, at, "phi has no incoming edge from block %q", fr.prev)

	case "select":
		cond, err := e.resolveOperand(fr, instr.Operands[0], at)
		if err != nil {
			return nil, err
		}
		b, ok := value.AsBool(cond)
		if !ok {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "select condition is not boolean")
		}
		if b {
			return e.resolveOperand(fr, instr.Operands[1], at)
		}
		return e.resolveOperand(fr, instr.Operands[2], at)

	case "getelementptr":
		return e.execGEP(fr, instr, at)

	case "alloca":
		return value.Pointer{Target: value.Null{}}, nil

	case "load":
		v, err := e.resolveOperand(fr, instr.Operands[0], at)
		if err != nil {
			return nil, err
		}
		if p, ok := v.(value.Pointer); ok {
			return p.Target, nil
		}
		return v, nil

	case "store":
		v, err := e.resolveOperand(fr, instr.Operands[0], at)
		if err != nil {
			return nil, err
		}
		ptrOp := instr.Operands[1]
		if ptrOp.Kind != ir.OperandSSA {
			return nil, rerr.New(rerr.KindTypeMismatch, at, "store target must be an SSA pointer")
		}
		fr.set(ptrOp.Name, value.Pointer{Target: v})
		return value.Null{}, nil

	case "call":
		return e.execCall(ctx, fr, instr, at)

	case "bitcast", "ptrtoint", "inttoptr", "zext", "sext", "trunc", "fptosi", "sitofp":
		v, err := e.resolveOperand(fr, instr.Operands[0], at)
		if err != nil {
			return nil, err
		}
		return foldConv(instr.Op, v, instr.Ty, at)

	default:
		if len(instr.Operands) == 2 {
			a, err := e.resolveOperand(fr, instr.Operands[0], at)
			if err != nil {
				return nil, err
			}
			b, err := e.resolveOperand(fr, instr.Operands[1], at)
			if err != nil {
				return nil, err
			}
			return foldBinary(instr.Op, a, b, at)
		}
	}
	return nil, rerr.New(rerr.KindUnsupportedFeature, at, "unrecognized instruction %q", instr.Op)
}

// execGEP implements the one addressing pattern this engine's SSA subset
// needs: indexing a qubit/value array by a constant or classical index.
// A full pointer-arithmetic GEP is out of scope.
func (e *Engine) execGEP(fr *frame, instr ir.Instr, at rerr.Location) (value.Value, error) {
	base, err := e.resolveOperand(fr, instr.Operands[0], at)
	if err != nil {
		return nil, err
	}
	if p, ok := base.(value.Pointer); ok {
		base = p.Target
	}
	arr, ok := base.(value.ArrayRef)
	if !ok {
		return nil, rerr.New(rerr.KindTypeMismatch, at, "getelementptr base is not an array")
	}
	idxVal, err := e.resolveOperand(fr, instr.Operands[1], at)
	if err != nil {
		return nil, err
	}
	idx, ok := value.AsInt(idxVal)
	if !ok {
		return nil, rerr.New(rerr.KindTypeMismatch, at, "getelementptr index is not an integer")
	}
	elems, _, err := e.heap.ArrayElements(arr)
	if err != nil {
		return nil, err
	}
	if idx.V < 0 || int(idx.V) >= len(elems) {
		return nil, rerr.New(rerr.KindTypeMismatch, at, "array index %d out of range", idx.V)
	}
	return value.Pointer{Target: elems[idx.V]}, nil
}

func (e *Engine) execCall(ctx context.Context, fr *frame, instr ir.Instr, at rerr.Location) (value.Value, error) {
	callee := instr.Operands[0].Name
	args := make([]value.Value, 0, len(instr.Operands)-1)
	for _, op := range instr.Operands[1:] {
		v, err := e.resolveOperand(fr, op, at)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	switch {
	case ir.IsQuantumGate(callee):
		e.markImpure()
		if e.trace.Projection != nil {
			e.trace.Projection(fmt.Sprintf("gate %s %v", callee, args))
		}
		return rt.CallGate(e.proxy, e.heap, callee, args)

	case ir.IsRuntimeCall(callee):
		e.markImpure()
		if callee == "__quantum__rt__result_equal" {
			if err := e.forceIfPending(ctx, args, at); err != nil {
				return nil, err
			}
			for i, a := range args {
				args[i] = e.refreshResult(a)
			}
		}
		v, err := e.heap.CallRuntime(callee, args)
		if e.trace.Projection != nil {
			e.trace.Projection(fmt.Sprintf("runtime %s -> %v", callee, v))
		}
		return v, err

	default:
		e.markImpure()
		fn, ok := e.mod.Functions[callee]
		if !ok {
			return nil, rerr.New(rerr.KindUndefinedSymbol, at, "call to undefined function %q", callee)
		}
		if len(fn.Blocks) == 0 {
			// A declared-only function with no recognized intrinsic body;
			// nothing to execute.
			return value.Null{}, nil
		}
		if e.depth+1 > e.recursionLimit {
			return nil, rerr.New(rerr.KindRecursionLimit, at, "recursion depth exceeds limit of %d", e.recursionLimit)
		}
		cfg, err := e.cfgFor(fn)
		if err != nil {
			return nil, err
		}
		e.depth++
		ret, err := e.execFrame(ctx, newFrame(fn, cfg, args))
		e.depth--
		return ret, err
	}
}

// --- Branching and measurement forcing ------------------------------------

func (e *Engine) execBr(ctx context.Context, fr *frame, instr ir.Instr, at rerr.Location) (graph.BlockID, error) {
	if len(instr.Operands) == 1 {
		return instr.Operands[0].Name, nil
	}
	cond, err := e.resolveOperand(fr, instr.Operands[0], at)
	if err != nil {
		return "", err
	}
	if r, ok := cond.(value.ResultRef); ok {
		if r.Outcome == value.Pending {
			if err := e.force(ctx, at); err != nil {
				return "", err
			}
		}
		o, _ := e.heap.Outcome(r.ID)
		cond = value.Bool{V: o == value.One}
	} else if isPending(cond) {
		if err := e.force(ctx, at); err != nil {
			return "", err
		}
		d := cond.(value.Deferred)
		resolved, ok := value.Resolve(d, e.heap.Outcome)
		if !ok {
			return "", rerr.New(rerr.KindUndefinedSymbol, at, "branch condition still unresolved after forcing a measurement")
		}
		cond = resolved
	}
	b, ok := value.AsBool(cond)
	if !ok {
		return "", rerr.New(rerr.KindTypeMismatch, at, "branch condition is not boolean")
	}
	if e.trace.Projection != nil {
		e.trace.Projection(fmt.Sprintf("branch %v -> %s", b, pick(b, instr.Operands[1].Name, instr.Operands[2].Name)))
	}
	if b {
		return instr.Operands[1].Name, nil
	}
	return instr.Operands[2].Name, nil
}

func pick(b bool, t, f string) string {
	if b {
		return t
	}
	return f
}

// refreshResult reads v's current Outcome out of the heap if it is a
// ResultRef, returning a ResultRef that carries it; any other value is
// returned unchanged.
func (e *Engine) refreshResult(v value.Value) value.Value {
	r, ok := v.(value.ResultRef)
	if !ok {
		return v
	}
	o, _ := e.heap.Outcome(r.ID)
	return value.ResultRef{ID: r.ID, Outcome: o}
}

// forceIfPending forces a measurement if any of vs is a still-pending
// ResultRef.
func (e *Engine) forceIfPending(ctx context.Context, vs []value.Value, at rerr.Location) error {
	for _, v := range vs {
		if r, ok := v.(value.ResultRef); ok && r.Outcome == value.Pending {
			return e.force(ctx, at)
		}
	}
	return nil
}

// force implements the "measure-now" policy: flush the
// accumulated builder to the backend, read a distribution, and
// materialize every outstanding Result by sampling its bound classical
// bit position's majority outcome.
func (e *Engine) force(ctx context.Context, at rerr.Location) error {
	if e.backend == nil {
		return rerr.New(rerr.KindNoCapableBackend, at, "no backend configured to force a measurement")
	}
	dist, err := e.backend.Execute(ctx, e.builder)
	if err != nil {
		return rerr.Wrap(at, err, "backend execution failed")
	}
	for _, id := range e.heap.PendingResults() {
		pos, ok := e.heap.BitPosition(value.ResultRef{ID: id})
		if !ok {
			continue
		}
		outcome := majorityBit(dist, pos)
		e.heap.Materialize(value.ResultRef{ID: id}, outcome)
		if e.trace.Projection != nil {
			e.trace.Projection(fmt.Sprintf("forced result %d = %v (bit %d)", id, outcome, pos))
		}
	}
	e.proxy.Clear()
	return nil
}

func majorityBit(dist Distribution, pos int) value.Outcome {
	var zero, one uint64
	for bits, count := range dist {
		if pos < 0 || pos >= len(bits) {
			continue
		}
		if bits[pos] == '1' {
			one += count
		} else {
			zero += count
		}
	}
	if one > zero {
		return value.One
	}
	return value.Zero
}

// --- Projection cache (loop collapsing) ------------------------------------
//
// Only call-free tails are memoized: a tail that never executes a "call"
// instruction cannot touch the heap, the qubit pool, or the builder, so
// replaying its recorded effect (an environment diff plus an exit block
// or return value) is sound regardless of how many times the loop body
// would otherwise have run. A tail is abandoned (never cached) the
// moment it executes any call, and a tail that loops back to its own
// header with an unchanged classical fingerprint is left uncached too —
// that state never terminates, and caching it would just replay the
// same non-termination forever instead of letting the step budget catch
// it.

func (e *Engine) markImpure() {
	if e.tail != nil {
		e.tail.impure = true
	}
}

// enterLoopHeader is called whenever fr's cursor is at the start of a
// loop-header block. It either replays a cached tail (returning
// done=true with retVal when the tail returned, or jumped=true after
// moving fr to the tail's exit block, with the frame updated in place)
// or begins tracking a new tail from this header.
func (e *Engine) enterLoopHeader(fr *frame) (jumped, done bool, retVal value.Value, err error) {
	key := cacheKey{fn: fr.fn.Name, block: fr.block, finger: classicalFingerprint(fr.env)}
	if entry, ok := e.cache[key]; ok {
		e.stats.CacheHits++
		for k, v := range entry.writes {
			fr.set(k, v)
		}
		if entry.returned {
			return false, true, entry.retVal, nil
		}
		fr.jump(entry.exitBlock)
		return true, false, nil, nil
	}
	// Starting a new tail abandons any in-flight one from an outer loop
	// header this frame may still be inside of; an abandoned outer tail
	// is never cached.
	e.tail = &tailTrace{key: key, before: snapshotClassical(fr.env)}
	return false, false, nil, nil
}

// endTailIfHeader finalizes the in-flight tail when control reaches
// target and target is a loop header (this frame's own, or any other).
func (e *Engine) endTailIfHeader(fr *frame, target graph.BlockID) {
	if e.tail == nil {
		return
	}
	bi, ok := fr.cfg.Blocks[target]
	if !ok || !bi.IsLoopHeader {
		return
	}
	t := e.tail
	e.tail = nil
	if t.impure {
		return
	}
	if target == t.key.block {
		finger := classicalFingerprint(fr.env)
		if finger == t.key.finger {
			return // unproductive loop: never cache, let the step budget catch it
		}
	}
	e.cache[t.key] = cacheEntry{exitBlock: target, writes: diffClassical(t.before, fr.env)}
}

// endTailReturn finalizes an in-flight tail when the frame returns.
func (e *Engine) endTailReturn(fr *frame, retVal value.Value) {
	if e.tail == nil {
		return
	}
	t := e.tail
	e.tail = nil
	if t.impure {
		return
	}
	e.cache[t.key] = cacheEntry{returned: true, retVal: retVal, writes: diffClassical(t.before, fr.env)}
}

// classicalFingerprint renders the scalar (Int/Float/Bool) portion of an
// SSA environment into a stable string key; non-scalar bindings
// (qubits, results, arrays, ...) are intentionally excluded because any
// instruction that could touch them is a call, which already marks the
// tail impure and keeps it out of the cache.
func classicalFingerprint(env map[string]value.Value) string {
	names := make([]string, 0, len(env))
	for n, v := range env {
		if isClassicalScalar(v) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s=%s;", n, env[n].String())
	}
	return b.String()
}

func snapshotClassical(env map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(env))
	for n, v := range env {
		if isClassicalScalar(v) {
			out[n] = v
		}
	}
	return out
}

func diffClassical(before, after map[string]value.Value) map[string]value.Value {
	diff := map[string]value.Value{}
	for n, v := range after {
		if !isClassicalScalar(v) {
			continue
		}
		if old, ok := before[n]; !ok || !value.Equal(old, v) {
			diff[n] = v
		}
	}
	return diff
}

func isClassicalScalar(v value.Value) bool {
	switch v.(type) {
	case value.Int, value.Float, value.Bool:
		return true
	default:
		return false
	}
}
