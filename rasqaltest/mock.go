// Package rasqaltest provides the MockBackend/MockBuilder pair the
// testable-property scenarios in this repo are written against: a
// Builder that records every call in program order and renders it via
// qgate.Gate.String(), and a Backend that hands back a pre-scripted
// Distribution or a scripted error.
package rasqaltest

import (
	"context"

	"github.com/oqc-community/rasqal/exec"
	"github.com/oqc-community/rasqal/qgate"
)

// MockBuilder records every primitive call it receives, in order, and
// counts calls per gate kind for assertions that only care about totals.
type MockBuilder struct {
	Calls  []qgate.Gate
	Counts map[string]int
}

// NewMockBuilder returns an empty MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{Counts: map[string]int{}}
}

func (m *MockBuilder) record(g qgate.Gate) {
	m.Calls = append(m.Calls, g)
	m.Counts[g.Op]++
}

func (m *MockBuilder) X(q int, theta float64) { m.record(qgate.Gate{Op: "x", Qubit: q, Theta: theta, IsAngled: true}) }
func (m *MockBuilder) Y(q int, theta float64) { m.record(qgate.Gate{Op: "y", Qubit: q, Theta: theta, IsAngled: true}) }
func (m *MockBuilder) Z(q int, theta float64) { m.record(qgate.Gate{Op: "z", Qubit: q, Theta: theta, IsAngled: true}) }

func (m *MockBuilder) CX(controls []int, target int, theta float64) {
	m.record(qgate.Gate{Op: "cx", Controls: append([]int{}, controls...), Target: target, Theta: theta, IsAngled: true})
}
func (m *MockBuilder) CY(controls []int, target int, theta float64) {
	m.record(qgate.Gate{Op: "cy", Controls: append([]int{}, controls...), Target: target, Theta: theta, IsAngled: true})
}
func (m *MockBuilder) CZ(controls []int, target int, theta float64) {
	m.record(qgate.Gate{Op: "cz", Controls: append([]int{}, controls...), Target: target, Theta: theta, IsAngled: true})
}

func (m *MockBuilder) Swap(q1, q2 int) { m.record(qgate.Gate{Op: "swap", Qubit: q1, Other: q2}) }
func (m *MockBuilder) Reset(q int)     { m.record(qgate.Gate{Op: "reset", Qubit: q}) }
func (m *MockBuilder) Measure(q int)   { m.record(qgate.Gate{Op: "measure", Qubit: q}) }
func (m *MockBuilder) Clear()          { m.record(qgate.Gate{Op: "clear"}) }

// Strings renders every recorded call via qgate.Gate.String(), the
// literal form the S1/S5 scenarios assert against, skipping the
// bookkeeping "clear" entries that record() adds but the scenarios don't
// expect to see.
func (m *MockBuilder) Strings() []string {
	out := make([]string, 0, len(m.Calls))
	for _, g := range m.Calls {
		if g.Op == "clear" {
			continue
		}
		out = append(out, g.String())
	}
	return out
}

// MockBackend hands back a scripted Distribution (or error) from every
// Execute call and records how many times, and against what features
// query, it was asked to run.
type MockBackend struct {
	Builder      *MockBuilder
	Distribution exec.Distribution
	Err          error
	MinQubits    int
	Executions   int
	LastFeatures exec.RequiredFeatures
}

// NewMockBackend returns a MockBackend that always builds into builder and
// returns dist on Execute.
func NewMockBackend(builder *MockBuilder, dist exec.Distribution) *MockBackend {
	return &MockBackend{Builder: builder, Distribution: dist}
}

func (b *MockBackend) CreateBuilder() qgate.Builder { return b.Builder }

func (b *MockBackend) Execute(ctx context.Context, _ qgate.Builder) (exec.Distribution, error) {
	b.Executions++
	if b.Err != nil {
		return nil, b.Err
	}
	return b.Distribution, nil
}

// HasFeatures reports true when req.MinQubits does not exceed MinQubits;
// MinQubits == 0 (the default) means "accepts anything".
func (b *MockBackend) HasFeatures(req exec.RequiredFeatures) bool {
	b.LastFeatures = req
	if b.MinQubits == 0 {
		return true
	}
	return req.MinQubits <= b.MinQubits
}
