package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqc-community/rasqal/ir"
)

func TestBuildLoopHeaderDetection(t *testing.T) {
	mod, err := ir.ParseText(`
define void @Loop() #attrs(EntryPoint) {
entry:
  br label %head
head:
  br i1 true, label %body, label %exit
body:
  br label %head
exit:
  ret void
}
`)
	require.NoError(t, err)

	var lines []string
	cfg, err := Build(mod.Functions["Loop"], func(l string) { lines = append(lines, l) })
	require.NoError(t, err)

	assert.True(t, cfg.Blocks["head"].IsLoopHeader)
	assert.False(t, cfg.Blocks["body"].IsLoopHeader)
	assert.NotEmpty(t, lines)
}

func TestBuildStraightLine(t *testing.T) {
	mod, err := ir.ParseText(`
define void @F() #attrs(EntryPoint) {
entry:
  ret void
}
`)
	require.NoError(t, err)

	cfg, err := Build(mod.Functions["F"], nil)
	require.NoError(t, err)
	assert.Len(t, cfg.Order, 1)
	assert.False(t, cfg.Blocks["entry"].IsLoopHeader)
}
