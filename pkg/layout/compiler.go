package layout

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/observability"
)

// DefaultTimeout bounds a single solver call.
const DefaultTimeout = 5 * time.Second

// Option configures a Compiler.
type Option func(*Compiler)

// WithMode sets the default layout mode. A document's layout.type wins.
func WithMode(mode string) Option {
	return func(c *Compiler) {
		if mode != "" {
			c.mode = mode
		}
	}
}

// WithDirection sets the default flow direction. A document's
// layout.direction wins.
func WithDirection(dir string) Option {
	return func(c *Compiler) {
		if dir != "" {
			c.direction = dir
		}
	}
}

// WithTimeout bounds each solver call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Compiler) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for solver failures and timings.
func WithLogger(l *log.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// Compiler turns graph documents into layouts using a Solver.
// It is safe for concurrent use if the Solver is.
type Compiler struct {
	solver    Solver
	fallback  Solver
	mode      string
	direction string
	timeout   time.Duration
	logger    *log.Logger
}

// NewCompiler returns a compiler backed by s. A nil solver places everything
// on the grid.
func NewCompiler(s Solver, opts ...Option) *Compiler {
	if s == nil {
		s = GridSolver{}
	}
	c := &Compiler{
		solver:    s,
		fallback:  GridSolver{},
		mode:      graph.ModeLayered,
		direction: graph.DirectionTB,
		timeout:   DefaultTimeout,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the mode and direction used for g.
func (c *Compiler) Settings(g *graph.Graph) (mode, direction string) {
	mode, direction = c.mode, c.direction
	if g.Layout != nil {
		if g.Layout.Type != "" {
			mode = g.Layout.Type
		}
		if g.Layout.Direction != "" {
			direction = g.Layout.Direction
		}
	}
	return mode, direction
}

// Compile lays out g.
//
// The only error returned is ctx's own error when ctx ends before a result is
// available. Solver failures and timeouts produce a grid placement with
// Result.Fallback set.
func (c *Compiler) Compile(ctx context.Context, g *graph.Graph) (*Result, error) {
	mode, direction := c.Settings(g)
	tree := BuildTree(g, mode, direction)

	hooks := observability.Layout()
	hooks.OnLayoutStart(ctx, mode, len(g.Nodes))
	start := time.Now()

	placed, err := c.place(ctx, tree)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	fallback := false
	if err != nil {
		c.logger.Warn("layout solver failed, using grid placement",
			"solver", c.solver.Name(), "mode", mode, "err", err)
		placed, _ = c.fallback.Place(ctx, tree)
		fallback = true
	}

	res := unflatten(placed, g, mode, direction)
	res.Fallback = fallback

	elapsed := time.Since(start)
	hooks.OnLayoutComplete(ctx, mode, elapsed, fallback)
	c.logger.Debug("layout compiled",
		"mode", mode, "direction", direction,
		"nodes", len(res.Positions), "groups", len(res.Groups),
		"fallback", fallback, "duration", elapsed)
	return res, nil
}

type placeOutcome struct {
	tree *Tree
	err  error
}

// place runs the solver on its own goroutine so that a solver ignoring ctx
// cannot hold the caller past the timeout.
func (c *Compiler) place(ctx context.Context, tree *Tree) (*Tree, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan placeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- placeOutcome{err: errors.New(errors.ErrCodeSolver, "solver panicked: %v", r)}
			}
		}()
		out, err := c.solver.Place(ctx, tree.Clone())
		done <- placeOutcome{tree: out, err: err}
	}()

	select {
	case <-ctx.Done():
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.New(errors.ErrCodeTimeout, "solver %s exceeded %s", c.solver.Name(), c.timeout)
		}
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return nil, errors.Wrap(errors.ErrCodeSolver, o.err, "solver %s", c.solver.Name())
		}
		if err := checkPlaced(tree, o.tree); err != nil {
			return nil, err
		}
		return o.tree, nil
	}
}

// checkPlaced verifies that out places every item of req with finite
// coordinates.
func checkPlaced(req, out *Tree) error {
	if out == nil || out.Root == nil {
		return errors.New(errors.ErrCodeSolver, "solver returned no tree")
	}
	placed := make(map[string]*Item)
	stack := append([]*Item(nil), out.Root.Children...)
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		placed[it.ID] = it
		stack = append(stack, it.Children...)
	}

	stack = append(stack[:0], req.Root.Children...)
	for len(stack) > 0 {
		want := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		got, ok := placed[want.ID]
		if !ok {
			return errors.New(errors.ErrCodeSolver, "solver dropped %q", want.ID)
		}
		if got.IsContainer() != want.IsContainer() {
			return errors.New(errors.ErrCodeSolver, "solver changed the nesting of %q", want.ID)
		}
		if !finite(got.X, got.Y, got.Width, got.Height) {
			return errors.New(errors.ErrCodeSolver, "solver produced non-finite geometry for %q", want.ID)
		}
		stack = append(stack, want.Children...)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type unflattenFrame struct {
	item   *Item
	offset graph.Point
}

// unflatten converts parent-relative solver coordinates into absolute ones
// and applies the overrides stored in g. A group's final position, whether
// computed or stored, is the offset for its children, so children without
// their own override follow a moved group.
func unflatten(t *Tree, g *graph.Graph, mode, direction string) *Result {
	idx := graph.NewIndex(g)
	res := newResult(mode, direction)

	stack := make([]unflattenFrame, 0, len(t.Root.Children))
	for i := len(t.Root.Children) - 1; i >= 0; i-- {
		stack = append(stack, unflattenFrame{item: t.Root.Children[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		it := f.item
		pos := graph.Point{X: f.offset.X + it.X, Y: f.offset.Y + it.Y}

		if it.IsContainer() {
			size := graph.Size{Width: it.Width, Height: it.Height}
			if grp, ok := idx.Group(it.ID); ok {
				if grp.Position != nil {
					pos = *grp.Position
				}
				if grp.Size != nil {
					size = *grp.Size
				}
			}
			p, s := graph.RoundPoint(pos), graph.RoundSize(size)
			res.Groups[it.ID] = Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}
			for i := len(it.Children) - 1; i >= 0; i-- {
				stack = append(stack, unflattenFrame{item: it.Children[i], offset: pos})
			}
			continue
		}

		n, ok := idx.Node(it.ID)
		if !ok {
			continue
		}
		if n.Position != nil {
			pos = *n.Position
		}
		res.Positions[it.ID] = graph.RoundPoint(pos)
		res.Sizes[it.ID] = Dimensions(*n)
	}
	return res
}
