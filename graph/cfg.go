// Package graph lowers a parsed function into an execution graph: a
// topologically-ordered block list annotated with dominators, loop-header
// flags, and phi groupings, ready for the projection engine to walk.
package graph

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/oqc-community/rasqal/ir"
)

// BlockID names a basic block within one CFG by its label.
type BlockID = string

// BlockInfo annotates one ir.Block with the structural facts the
// projection engine needs: its successors/predecessors, whether it is a
// loop header (targeted by a back edge), and its immediate dominator.
type BlockInfo struct {
	Block        *ir.Block
	Succs        []BlockID
	Preds        []BlockID
	IsLoopHeader bool
	Dominator    BlockID // "" for the entry block
}

// CFG is the execution graph for one function.
type CFG struct {
	Function *ir.Function
	Blocks   map[BlockID]*BlockInfo
	// Order is a topological ordering of blocks suitable for forward
	// dataflow passes; loop headers appear before the blocks their back
	// edges originate from is not guaranteed (a CFG with cycles has no
	// true topological order) but headers always precede their natural
	// first visit.
	Order []BlockID
	Entry BlockID
}

// TraceFn, when non-nil, receives one line per block as the CFG is built —
// the Graph Builder's trace_graphs channel.
type TraceFn func(line string)

// Build constructs the CFG for fn: successor/predecessor edges from each
// block's terminator, loop headers via DFS back-edge detection, and a
// simple iterative dominator computation.
func Build(fn *ir.Function, trace TraceFn) (*CFG, error) {
	if len(fn.Blocks) == 0 {
		return &CFG{Function: fn, Blocks: map[BlockID]*BlockInfo{}}, nil
	}
	cfg := &CFG{
		Function: fn,
		Blocks:   make(map[BlockID]*BlockInfo, len(fn.Blocks)),
		Entry:    fn.Blocks[0].Label,
	}
	for i := range fn.Blocks {
		b := &fn.Blocks[i]
		cfg.Blocks[b.Label] = &BlockInfo{Block: b}
	}
	for _, bi := range cfg.Blocks {
		bi.Succs = successorsOf(bi.Block)
		for _, s := range bi.Succs {
			if target, ok := cfg.Blocks[s]; ok {
				target.Preds = append(target.Preds, bi.Block.Label)
			}
		}
	}

	order, headers := depthFirstOrder(cfg)
	cfg.Order = order
	for id := range headers.Iter() {
		if bi, ok := cfg.Blocks[id]; ok {
			bi.IsLoopHeader = true
		}
	}

	computeDominators(cfg)

	if trace != nil {
		for _, id := range cfg.Order {
			bi := cfg.Blocks[id]
			trace(fmt.Sprintf("block %s: succs=%v loopHeader=%t dom=%s", id, bi.Succs, bi.IsLoopHeader, bi.Dominator))
		}
	}
	return cfg, nil
}

// successorsOf reads the terminator instruction (always the last
// instruction in a well-formed block) to find the block's successors.
func successorsOf(b *ir.Block) []BlockID {
	if len(b.Instrs) == 0 {
		return nil
	}
	term := b.Instrs[len(b.Instrs)-1]
	switch term.Op {
	case "br":
		var out []BlockID
		for _, op := range term.Operands {
			if op.Kind == ir.OperandBlock {
				out = append(out, op.Name)
			}
		}
		return out
	default:
		return nil // ret or an (invalid) fallthrough
	}
}

// depthFirstOrder walks the CFG from its entry block using the classic
// white/gray/black coloring: a gray set (on the current DFS stack) and a
// black set (fully explored) detect back edges, whose targets are loop
// headers. Both sets are mapset.Set so repeated membership checks during
// deep recursive exploration stay O(1) without a hand-rolled map+bool.
func depthFirstOrder(cfg *CFG) ([]BlockID, mapset.Set[BlockID]) {
	gray := mapset.NewThreadUnsafeSet[BlockID]()
	black := mapset.NewThreadUnsafeSet[BlockID]()
	headers := mapset.NewThreadUnsafeSet[BlockID]()
	var order []BlockID

	var visit func(id BlockID)
	visit = func(id BlockID) {
		bi, ok := cfg.Blocks[id]
		if !ok || black.Contains(id) {
			return
		}
		if gray.Contains(id) {
			headers.Add(id)
			return
		}
		gray.Add(id)
		for _, s := range bi.Succs {
			visit(s)
		}
		gray.Remove(id)
		black.Add(id)
		order = append(order, id)
	}
	visit(cfg.Entry)

	// order was built post-order; reverse for a forward topological-ish
	// traversal (correct whenever the CFG is acyclic; loops just revisit
	// their header, which is fine for the engine's iterate-until-budget
	// execution model).
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, headers
}

// computeDominators runs the standard iterative dominator algorithm
// (Cooper/Harvey/Kennedy) over cfg.Order, which is good enough for the
// reducible CFGs QIR programs produce.
func computeDominators(cfg *CFG) {
	if len(cfg.Order) == 0 {
		return
	}
	idx := make(map[BlockID]int, len(cfg.Order))
	for i, id := range cfg.Order {
		idx[id] = i
	}
	doms := make([]int, len(cfg.Order))
	for i := range doms {
		doms[i] = -1
	}
	entryIdx := idx[cfg.Entry]
	doms[entryIdx] = entryIdx

	changed := true
	for changed {
		changed = false
		for i, id := range cfg.Order {
			if i == entryIdx {
				continue
			}
			newIdom := -1
			for _, p := range cfg.Blocks[id].Preds {
				pi, ok := idx[p]
				if !ok || doms[pi] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = pi
					continue
				}
				newIdom = intersect(doms, pi, newIdom)
			}
			if newIdom != -1 && doms[i] != newIdom {
				doms[i] = newIdom
				changed = true
			}
		}
	}
	for i, id := range cfg.Order {
		if i == entryIdx || doms[i] == -1 {
			continue
		}
		cfg.Blocks[id].Dominator = cfg.Order[doms[i]]
	}
}

func intersect(doms []int, a, b int) int {
	// doms[] indices compare by position in the reverse-postorder walk;
	// lower index == closer to the entry along some path.
	for a != b {
		for a > b {
			a = doms[a]
		}
		for b > a {
			b = doms[b]
		}
	}
	return a
}
