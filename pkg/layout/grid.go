package layout

import (
	"context"
	"math"

	"github.com/matzehuels/codeflow/pkg/graph"
)

// Grid spacing used by GridSolver.
const (
	gridGap     = 40
	gridPadding = 20
	gridHeader  = 40
)

// GridSolver stacks the items of each container in rows and columns. It is
// deterministic, never fails and ignores edges, which makes it the fallback
// when the real solver is unavailable.
//
// For LR and RL the grid is filled column by column, otherwise row by row.
type GridSolver struct{}

// Name implements Solver.
func (GridSolver) Name() string { return "grid" }

// Place implements Solver.
func (GridSolver) Place(_ context.Context, t *Tree) (*Tree, error) {
	out := t.Clone()

	// Containers in pre-order; arranged in reverse so that nested sizes are
	// known before their parent is arranged.
	var containers []*Item
	stack := []*Item{out.Root}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		containers = append(containers, it)
		for _, ch := range it.Children {
			if ch.IsContainer() {
				stack = append(stack, ch)
			}
		}
	}
	for i := len(containers) - 1; i >= 0; i-- {
		c := containers[i]
		if c == out.Root {
			arrangeGrid(c, 0, 0)
		} else {
			arrangeGrid(c, gridPadding, gridHeader)
		}
	}
	out.Root.X, out.Root.Y = 0, 0
	return out, nil
}

func arrangeGrid(c *Item, pad, header float64) {
	n := len(c.Children)
	if n == 0 {
		c.Width, c.Height = 2*pad, header+pad
		return
	}

	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	columnMajor := false
	if c.Options != nil && (c.Options.Direction == graph.DirectionLR || c.Options.Direction == graph.DirectionRL) {
		columnMajor = true
		cols, rows = rows, cols
	}

	var cellW, cellH float64
	for _, ch := range c.Children {
		cellW = max(cellW, ch.Width)
		cellH = max(cellH, ch.Height)
	}

	for i, ch := range c.Children {
		r, col := i/cols, i%cols
		if columnMajor {
			r, col = i%rows, i/rows
		}
		ch.X = pad + float64(col)*(cellW+gridGap)
		ch.Y = header + float64(r)*(cellH+gridGap)
	}
	c.Width = 2*pad + float64(cols)*cellW + float64(cols-1)*gridGap
	c.Height = header + pad + float64(rows)*cellH + float64(rows-1)*gridGap
}
