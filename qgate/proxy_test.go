package qgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a minimal Builder that just counts calls per kind.
type recorder struct {
	xs, ys, zs, cxs, cys, czs, swaps, resets, measures int
}

func (r *recorder) X(int, float64)            { r.xs++ }
func (r *recorder) Y(int, float64)            { r.ys++ }
func (r *recorder) Z(int, float64)            { r.zs++ }
func (r *recorder) CX([]int, int, float64)    { r.cxs++ }
func (r *recorder) CY([]int, int, float64)    { r.cys++ }
func (r *recorder) CZ([]int, int, float64)    { r.czs++ }
func (r *recorder) Swap(int, int)             { r.swaps++ }
func (r *recorder) Reset(int)                 { r.resets++ }
func (r *recorder) Measure(int)               { r.measures++ }
func (r *recorder) Clear()                    {}

func TestHLowering(t *testing.T) {
	rec := &recorder{}
	p := New(rec)
	p.H(0)
	p.Measure(0) // flushes the pending y rotation

	got := gateStrings(p)
	assert.Equal(t, []string{"z 0 3.141592653589793", "y 0 1.5707963267948966", "measure 0"}, got)
}

func TestBellSequence(t *testing.T) {
	rec := &recorder{}
	p := New(rec)
	p.H(0)
	p.CNOT(0, 1)
	p.Measure(0)
	p.Measure(1)

	assert.Equal(t, []string{
		"z 0 3.141592653589793",
		"y 0 1.5707963267948966",
		"cx [0] 1 3.141592653589793",
		"measure 0",
		"measure 1",
	}, gateStrings(p))
}

func TestSameAxisRunMerges(t *testing.T) {
	rec := &recorder{}
	p := New(rec)
	p.RX(0, 1.0)
	p.RX(0, 2.0)
	p.Measure(0)

	assert.Equal(t, []string{"x 0 3", "measure 0"}, gateStrings(p))
	assert.Equal(t, 1, rec.xs)
}

func TestIntervalOpFlushesPending(t *testing.T) {
	rec := &recorder{}
	p := New(rec)
	p.RX(0, 1.0)
	p.RY(0, 1.0) // different axis: flushes the pending x first
	p.Measure(0)

	assert.Equal(t, []string{"x 0 1", "y 0 1", "measure 0"}, gateStrings(p))
}

func TestMeasureBitPositionResetsOnClear(t *testing.T) {
	rec := &recorder{}
	p := New(rec)
	require.Equal(t, 0, p.Measure(0))
	require.Equal(t, 1, p.Measure(1))
	p.Clear()
	require.Equal(t, 0, p.Measure(2))
}

func gateStrings(p *Proxy) []string {
	var out []string
	for _, g := range p.Log() {
		out = append(out, g.String())
	}
	return out
}
