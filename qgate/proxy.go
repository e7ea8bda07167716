package qgate

import (
	"math"
	"sort"
)

// Proxy accumulates gates into an underlying Builder, applying the
// lowering and same-axis run-merging rules before
// forwarding anything. One Proxy is scoped to a single circuit; Clear
// resets it for reuse across branch-forced circuit boundaries.
type Proxy struct {
	backend Builder
	// pending holds at most one buffered single-qubit rotation per
	// qubit: the tail of a same-axis run not yet flushed because no
	// other operation has touched that qubit, and no measurement has
	// been made, since. The same
	// run-length merge shape as quest/utils/delta_compression.go,
	// generalized from byte deltas to rotation angles.
	pending map[int]pendingRot
	log     []Gate // every gate actually forwarded, in program order
	bitPos  int    // next classical bit position to hand out
}

type pendingRot struct {
	axis  string // "x", "y", or "z"
	theta float64
}

// New wraps backend in a Proxy.
func New(backend Builder) *Proxy {
	return &Proxy{backend: backend, pending: map[int]pendingRot{}}
}

// Log returns every gate forwarded to the backend since the Proxy was
// created, in program order, with a "clear" entry marking each Clear that
// followed at least one gate — used by tests asserting against literal
// gate sequences.
func (p *Proxy) Log() []Gate {
	out := make([]Gate, len(p.log))
	copy(out, p.log)
	return out
}

// touch flushes any pending rotation on qubit q because a non-matching
// operation is about to touch it.
func (p *Proxy) touch(q int) {
	pend, ok := p.pending[q]
	if !ok {
		return
	}
	delete(p.pending, q)
	p.emit(pend.axis, q, pend.theta)
}

func (p *Proxy) emit(axis string, q int, theta float64) {
	g := Gate{Op: axis, Qubit: q, Theta: theta, IsAngled: true}
	p.log = append(p.log, g)
	switch axis {
	case "x":
		p.backend.X(q, theta)
	case "y":
		p.backend.Y(q, theta)
	case "z":
		p.backend.Z(q, theta)
	}
}

// rotate buffers a single-qubit rotation, merging it into a pending
// same-axis run on q if one is outstanding.
func (p *Proxy) rotate(axis string, q int, theta float64) {
	if pend, ok := p.pending[q]; ok {
		if pend.axis == axis {
			p.pending[q] = pendingRot{axis: axis, theta: pend.theta + theta}
			return
		}
		p.touch(q)
	}
	p.pending[q] = pendingRot{axis: axis, theta: theta}
}

// flushControlled forwards any qubit in ids that has a pending rotation.
func (p *Proxy) flushControlled(ids ...int) {
	for _, q := range ids {
		p.touch(q)
	}
}

// --- Primitive rotations -------------------------------------------------

func (p *Proxy) X(q int, theta float64) { p.rotate("x", q, theta) }
func (p *Proxy) Y(q int, theta float64) { p.rotate("y", q, theta) }
func (p *Proxy) Z(q int, theta float64) { p.rotate("z", q, theta) }

func (p *Proxy) CX(controls []int, target int, theta float64) {
	p.flushControlled(append(append([]int{}, controls...), target)...)
	g := Gate{Op: "cx", Controls: append([]int{}, controls...), Target: target, Theta: theta, IsAngled: true}
	p.log = append(p.log, g)
	p.backend.CX(controls, target, theta)
}

func (p *Proxy) CY(controls []int, target int, theta float64) {
	p.flushControlled(append(append([]int{}, controls...), target)...)
	g := Gate{Op: "cy", Controls: append([]int{}, controls...), Target: target, Theta: theta, IsAngled: true}
	p.log = append(p.log, g)
	p.backend.CY(controls, target, theta)
}

// CZ lowers through the z-axis controlled-rotation primitive. See
// DESIGN.md for why this deliberately does not reproduce a cz -> crx
// routing, which would be a typo for this gate.
func (p *Proxy) CZ(controls []int, target int, theta float64) {
	p.flushControlled(append(append([]int{}, controls...), target)...)
	g := Gate{Op: "cz", Controls: append([]int{}, controls...), Target: target, Theta: theta, IsAngled: true}
	p.log = append(p.log, g)
	p.backend.CZ(controls, target, theta)
}

func (p *Proxy) Swap(q1, q2 int) {
	p.flushControlled(q1, q2)
	p.log = append(p.log, Gate{Op: "swap", Qubit: q1, Other: q2})
	p.backend.Swap(q1, q2)
}

func (p *Proxy) Reset(q int) {
	p.flushControlled(q)
	p.log = append(p.log, Gate{Op: "reset", Qubit: q})
	p.backend.Reset(q)
}

// Measure flushes every pending rotation (on any qubit, in ascending qubit
// order), forwards the measurement, and returns its classical bit
// position: arrival order into the builder since the last Clear.
func (p *Proxy) Measure(q int) int {
	pendingQs := make([]int, 0, len(p.pending))
	for pq := range p.pending {
		pendingQs = append(pendingQs, pq)
	}
	sort.Ints(pendingQs)
	p.flushControlled(pendingQs...)
	p.log = append(p.log, Gate{Op: "measure", Qubit: q})
	p.backend.Measure(q)
	pos := p.bitPos
	p.bitPos++
	return pos
}

// Clear flushes nothing (a clear discards, it does not finalize pending
// rotations) and resets the proxy for the next circuit.
func (p *Proxy) Clear() {
	p.pending = map[int]pendingRot{}
	if len(p.log) > 0 {
		p.log = append(p.log, Gate{Op: "clear"})
	}
	p.bitPos = 0
	p.backend.Clear()
}

// --- Named gates and lowering rules --------------------------------------

const pi = math.Pi

// H lowers to z(q,pi); y(q,pi/2).
func (p *Proxy) H(q int) {
	p.Z(q, pi)
	p.Y(q, pi/2)
}

func (p *Proxy) GateX(q int) { p.X(q, pi) }
func (p *Proxy) GateY(q int) { p.Y(q, pi) }
func (p *Proxy) GateZ(q int) { p.Z(q, pi) }

// S is the sqrt(Z) phase gate: a pi/2 rotation about z.
func (p *Proxy) S(q int) { p.Z(q, pi/2) }

// SAdjoint is S's adjoint: negate the angle.
func (p *Proxy) SAdjoint(q int) { p.Z(q, -pi/2) }

// T is the fourth-root-of-Z phase gate: a pi/4 rotation about z.
func (p *Proxy) T(q int) { p.Z(q, pi/4) }

// TAdjoint is T's adjoint.
func (p *Proxy) TAdjoint(q int) { p.Z(q, -pi/4) }

// RX/RY/RZ are the native parameterized rotations; no lowering needed.
func (p *Proxy) RX(q int, theta float64) { p.X(q, theta) }
func (p *Proxy) RY(q int, theta float64) { p.Y(q, theta) }
func (p *Proxy) RZ(q int, theta float64) { p.Z(q, theta) }

// CNOT lowers to cx([control], target, pi).
func (p *Proxy) CNOT(control, target int) { p.CX([]int{control}, target, pi) }

// ControlledX/Y/Z lower the controlled-Pauli intrinsics to the
// corresponding primitive at angle pi.
func (p *Proxy) ControlledX(controls []int, target int) { p.CX(controls, target, pi) }
func (p *Proxy) ControlledY(controls []int, target int) { p.CY(controls, target, pi) }
func (p *Proxy) ControlledZ(controls []int, target int) { p.CZ(controls, target, pi) }

// ControlledRX/RY/RZ lower the controlled-rotation intrinsics directly.
func (p *Proxy) ControlledRX(controls []int, target int, theta float64) { p.CX(controls, target, theta) }
func (p *Proxy) ControlledRY(controls []int, target int, theta float64) { p.CY(controls, target, theta) }
func (p *Proxy) ControlledRZ(controls []int, target int, theta float64) { p.CZ(controls, target, theta) }
