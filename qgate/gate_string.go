package qgate

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders a Gate in the "op arg arg ..." form the test mocks in
// this repo log builder calls with.
func (g Gate) String() string {
	switch g.Op {
	case "x", "y", "z":
		return fmt.Sprintf("%s %d %s", g.Op, g.Qubit, formatAngle(g.Theta))
	case "cx", "cy", "cz":
		return fmt.Sprintf("%s %s %d %s", g.Op, formatControls(g.Controls), g.Target, formatAngle(g.Theta))
	case "swap":
		return fmt.Sprintf("swap %d %d", g.Qubit, g.Other)
	case "reset":
		return fmt.Sprintf("reset %d", g.Qubit)
	case "measure":
		return fmt.Sprintf("measure %d", g.Qubit)
	case "clear":
		return "clear"
	default:
		return g.Op
	}
}

func formatAngle(theta float64) string {
	return strconv.FormatFloat(theta, 'g', -1, 64)
}

func formatControls(controls []int) string {
	parts := make([]string, len(controls))
	for i, c := range controls {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
