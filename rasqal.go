// Package rasqal is the Execution Orchestrator: the top-level
// Run/RunLL/RunBitcode entry points that load a module, negotiate a
// capable backend, drive the Projection Engine, and shape the result.
package rasqal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/oqc-community/rasqal/exec"
	"github.com/oqc-community/rasqal/ir"
	"github.com/oqc-community/rasqal/qgate"
	"github.com/oqc-community/rasqal/rerr"
	"github.com/oqc-community/rasqal/rt"
	"github.com/oqc-community/rasqal/trace"
	"github.com/oqc-community/rasqal/value"
)

// Backend is the external collaborator a run dispatches accumulated
// circuits to. Re-exported from exec so callers never have to import
// exec directly just to implement one.
type Backend = exec.Backend

// RequiredFeatures is the capability query a Backend answers.
type RequiredFeatures = exec.RequiredFeatures

// Distribution is a shot-count histogram keyed by measurement bitstring.
type Distribution = exec.Distribution

// Result is what a completed Run hands back to the host. At most one of
// Distribution and Value is populated: Distribution (with BaseProfile
// set) for a base-profile entry (its only observable channel is
// result_record_output), Value for a full-QIR entry that returns a
// classical value directly. A void entry that records no outputs leaves
// both empty.
type Result struct {
	Distribution Distribution
	Value        any
	BaseProfile  bool
}

// Runner is the top-level entry point for loading and executing a module.
// Every mutator returns the receiver so calls chain into a single fluent
// construction.
type Runner struct {
	backends       []Backend
	stepLimit      int
	recursionLimit int
	logFile        string
	sink           *trace.Sink
}

// NewRunner constructs a Runner configured against one or more candidate
// backends, tried in order during feature negotiation.
func NewRunner(backends ...Backend) *Runner {
	return &Runner{backends: backends}
}

// StepCountLimit bounds the number of instructions any one Run executes;
// 0 (the default) is unbounded.
func (r *Runner) StepCountLimit(n int) *Runner {
	r.stepLimit = n
	return r
}

// RecursionLimit overrides the call-depth bound; 0 defaults to 256.
func (r *Runner) RecursionLimit(n int) *Runner {
	r.recursionLimit = n
	return r
}

// LogFile selects the file trace output is appended to; empty means
// stdout.
func (r *Runner) LogFile(path string) *Runner {
	r.logFile = path
	return r
}

// TraceGraphs enables the graph-building trace channel.
func (r *Runner) TraceGraphs() *Runner {
	r.sink = r.sinkOrNew()
	r.sink.Graphs = true
	return r
}

// TraceProjections enables the projection-engine trace channel.
func (r *Runner) TraceProjections() *Runner {
	r.sink = r.sinkOrNew()
	r.sink.Projections = true
	return r
}

// TraceRuntime enables the per-instruction runtime trace channel.
func (r *Runner) TraceRuntime() *Runner {
	r.sink = r.sinkOrNew()
	r.sink.Runtime = true
	return r
}

func (r *Runner) sinkOrNew() *trace.Sink {
	if r.sink == nil {
		r.sink = trace.NewSink(r.logFile)
	}
	return r.sink
}

// Run loads path (a ".ll" or ".bc" file) and executes its entry point.
func (r *Runner) Run(ctx context.Context, path string, args []value.Value) (Result, error) {
	mod, err := ir.Load(path)
	if err != nil {
		return Result{}, err
	}
	return r.run(ctx, mod, args)
}

// RunLL parses text as textual QIR and executes its entry point.
func (r *Runner) RunLL(ctx context.Context, text string, args []value.Value) (Result, error) {
	mod, err := ir.ParseText(text)
	if err != nil {
		return Result{}, err
	}
	return r.run(ctx, mod, args)
}

// RunBitcode parses data as our bitcode container and executes its entry
// point. Property 6 (run_ll(text) == run_bitcode(assemble(text))) holds
// because ParseBitcode ultimately delegates to ParseText.
func (r *Runner) RunBitcode(ctx context.Context, data []byte, args []value.Value) (Result, error) {
	mod, err := ir.ParseBitcode(data)
	if err != nil {
		return Result{}, err
	}
	return r.run(ctx, mod, args)
}

func (r *Runner) run(ctx context.Context, mod *ir.Module, args []value.Value) (Result, error) {
	runID := uuid.New()

	entries := mod.EntryPoints()
	if len(entries) == 0 {
		return Result{}, rerr.New(rerr.KindUndefinedSymbol, rerr.Location{}, "module declares no EntryPoint function")
	}
	entry := entries[0]

	required := RequiredFeatures{MinQubits: entry.RequiredQubits()}
	backend, err := r.selectBackend(required)
	if err != nil {
		return Result{}, err
	}

	heap := rt.NewHeap(func(format string, a ...any) {
		r.sinkOrTraceOnly().Projection(fmt.Sprintf("run=%s WARN "+format, append([]any{runID}, a...)...))
	})
	builder := backend.CreateBuilder()
	proxy := qgate.New(builder)

	cfg := exec.Config{
		StepLimit:      r.stepLimit,
		RecursionLimit: r.recursionLimit,
		Trace:          r.traceSinks(runID),
	}
	engine := exec.NewEngine(mod, backend, builder, proxy, heap, cfg)

	retVal, err := engine.Run(ctx, entry, args)
	if err != nil {
		return Result{}, err
	}

	return r.shapeResult(ctx, engine, retVal)
}

// selectBackend walks the configured backends in order, returning the
// first that answers HasFeatures(required); the skip of an incapable
// backend is the one local-recovery case besides refcount
// warnings.
func (r *Runner) selectBackend(required RequiredFeatures) (Backend, error) {
	for _, b := range r.backends {
		if b.HasFeatures(required) {
			return b, nil
		}
	}
	return nil, rerr.New(rerr.KindNoCapableBackend, rerr.Location{}, "no configured backend satisfies %+v", required)
}

func (r *Runner) traceSinks(runID uuid.UUID) exec.TraceSinks {
	sink := r.sinkOrTraceOnly()
	return exec.TraceSinks{
		Graph:      func(line string) { sink.Graph(fmt.Sprintf("run=%s %s", runID, line)) },
		Projection: func(line string) { sink.Projection(fmt.Sprintf("run=%s %s", runID, line)) },
		Runtime:    func(line string) { sink.RuntimeLine(fmt.Sprintf("run=%s %s", runID, line)) },
	}
}

// sinkOrTraceOnly returns the configured sink, or an all-off Sink so
// warning calls have somewhere harmless to go when no trace channel was
// ever enabled (an all-off Sink's methods are no-ops, see trace.Sink).
func (r *Runner) sinkOrTraceOnly() *trace.Sink {
	if r.sink != nil {
		return r.sink
	}
	return &trace.Sink{}
}

// shapeResult implements the base-profile vs full-QIR split: a
// base-profile entry's only observable channel is its recorded outputs,
// so the run's result is whatever shot distribution the backend returns
// once the remaining accumulated circuit is flushed; a full-QIR entry's
// classical return value is marshalled to a host primitive directly.
func (r *Runner) shapeResult(ctx context.Context, engine *exec.Engine, retVal value.Value) (Result, error) {
	outputs := engine.Heap().Outputs()
	warnLeaks(r.sinkOrTraceOnly(), engine.Heap())

	if len(outputs) > 0 {
		dist, err := engine.Flush(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Distribution: dist, BaseProfile: true}, nil
	}

	prim, ok := value.ToPrimitive(retVal)
	if !ok {
		return Result{}, rerr.New(rerr.KindTypeMismatch, rerr.Location{}, "entry point return value has no host representation")
	}
	return Result{Value: prim}, nil
}

// warnLeaks implements the "warn on leak, do not fail" discipline:
// any qubit still live, or any heap entry still holding a non-zero
// refcount, after a successful run is logged, never surfaced as an error.
func warnLeaks(sink *trace.Sink, heap *rt.Heap) {
	if n := heap.LiveQubitCount(); n > 0 {
		sink.Projection(fmt.Sprintf("WARN %d qubit(s) still live at end of run", n))
	}
	arrays, tuples, results, strings := heap.Leaks()
	if arrays+tuples+results+strings > 0 {
		sink.Projection(fmt.Sprintf("WARN heap leak at end of run: arrays=%d tuples=%d results=%d strings=%d",
			arrays, tuples, results, strings))
	}
}
