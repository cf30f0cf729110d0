// Package dot implements a layout solver on top of Graphviz.
//
// The solver translates a [layout.Tree] into DOT, one cluster subgraph per
// container, runs the engine that matches the requested mode and reads the
// placement back from Graphviz's JSON output:
//
//	layered -> dot
//	force   -> fdp
//	stress  -> neato
//
// Graphviz runs in-process (WebAssembly), so no external binary is needed.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/layout"
)

// pointsPerInch converts diagram units to Graphviz inches.
const pointsPerInch = 72.0

// Solver places trees with Graphviz.
type Solver struct {
	// NodeSep and RankSep are passed to the engine in inches.
	NodeSep float64
	RankSep float64
}

// New returns a solver with default spacing.
func New() *Solver {
	return &Solver{NodeSep: 0.6, RankSep: 0.8}
}

// Name implements layout.Solver.
func (s *Solver) Name() string { return "graphviz" }

// Engine returns the Graphviz layout engine for a mode.
func Engine(mode string) graphviz.Layout {
	switch mode {
	case graph.ModeForce:
		return graphviz.FDP
	case graph.ModeStress:
		return graphviz.NEATO
	default:
		return graphviz.DOT
	}
}

// Place implements layout.Solver.
func (s *Solver) Place(ctx context.Context, t *layout.Tree) (*layout.Tree, error) {
	src, names := s.ToDOT(t)

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(src))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	mode := graph.ModeLayered
	if t.Root != nil && t.Root.Options != nil {
		mode = t.Root.Options.Mode
	}
	gv.SetLayout(Engine(mode))

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.Format("json"), &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	placement, err := parseOutput(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return apply(t, names, placement)
}

// ToDOT renders the request as a DOT digraph. The second return value maps
// generated DOT identifiers back to item ids.
func (s *Solver) ToDOT(t *layout.Tree) (string, map[string]string) {
	names := make(map[string]string)
	byID := make(map[string]string)
	var buf bytes.Buffer

	dir := graph.DirectionTB
	if t.Root != nil && t.Root.Options != nil && t.Root.Options.Direction != "" {
		dir = t.Root.Options.Direction
	}

	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", dir)
	fmt.Fprintf(&buf, "  nodesep=%.2f;\n", s.NodeSep)
	fmt.Fprintf(&buf, "  ranksep=%.2f;\n", s.RankSep)
	buf.WriteString("  splines=false;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  node [shape=box, fixedsize=true, label=\"\"];\n")

	var leaves, clusters int
	type frame struct {
		item   *layout.Item
		indent string
		close  bool
	}
	var stack []frame
	if t.Root != nil {
		for i := len(t.Root.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{item: t.Root.Children[i], indent: "  "})
		}
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.close {
			fmt.Fprintf(&buf, "%s}\n", f.indent)
			continue
		}
		it := f.item
		if it.IsContainer() {
			name := fmt.Sprintf("cluster_%d", clusters)
			clusters++
			names[name] = it.ID
			fmt.Fprintf(&buf, "%ssubgraph %s {\n", f.indent, name)
			fmt.Fprintf(&buf, "%s  margin=20;\n", f.indent)
			fmt.Fprintf(&buf, "%s  label=%s;\n", f.indent, clusterLabel(it.ID))
			stack = append(stack, frame{indent: f.indent, close: true})
			for i := len(it.Children) - 1; i >= 0; i-- {
				stack = append(stack, frame{item: it.Children[i], indent: f.indent + "  "})
			}
			continue
		}
		name := fmt.Sprintf("n%d", leaves)
		leaves++
		names[name] = it.ID
		byID[it.ID] = name
		fmt.Fprintf(&buf, "%s%s [width=%.4f, height=%.4f];\n",
			f.indent, name, it.Width/pointsPerInch, it.Height/pointsPerInch)
	}

	for _, e := range t.Edges {
		src, ok1 := byID[e.Source]
		dst, ok2 := byID[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s;\n", src, dst)
	}
	buf.WriteString("}\n")
	return buf.String(), names
}

// apply copies absolute Graphviz boxes into a clone of t, converting them to
// coordinates relative to each item's parent.
func apply(t *layout.Tree, names map[string]string, p *placement) (*layout.Tree, error) {
	abs := make(map[string]layout.Rect, len(names))
	for name, box := range p.boxes {
		if id, ok := names[name]; ok {
			abs[id] = box
		}
	}

	out := t.Clone()
	if out.Root == nil {
		return nil, fmt.Errorf("empty request")
	}

	// Containers without a cluster box (neato ignores clusters) are sized
	// from their children, so resolve containers after their children.
	var order []*layout.Item
	parent := make(map[*layout.Item]*layout.Item)
	stack := []*layout.Item{out.Root}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, it)
		for _, ch := range it.Children {
			parent[ch] = it
			stack = append(stack, ch)
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		it := order[i]
		if it == out.Root || !it.IsContainer() {
			continue
		}
		if _, ok := abs[it.ID]; !ok {
			abs[it.ID] = enclose(it, abs)
		}
	}

	for _, it := range order[1:] {
		box, ok := abs[it.ID]
		if !ok {
			return nil, fmt.Errorf("graphviz did not place %q", it.ID)
		}
		origin := graph.Point{}
		if par := parent[it]; par != out.Root {
			pb := abs[par.ID]
			origin = graph.Point{X: pb.X, Y: pb.Y}
		}
		it.X, it.Y = box.X-origin.X, box.Y-origin.Y
		if it.IsContainer() {
			it.Width, it.Height = box.Width, box.Height
		}
	}
	return out, nil
}

// Padding used when a container box is derived from its children.
const (
	enclosePad    = 20
	encloseHeader = 40
)

func enclose(c *layout.Item, abs map[string]layout.Rect) layout.Rect {
	first := true
	var minX, minY, maxX, maxY float64
	for _, ch := range c.Children {
		b, ok := abs[ch.ID]
		if !ok {
			continue
		}
		if first {
			minX, minY, maxX, maxY = b.X, b.Y, b.X+b.Width, b.Y+b.Height
			first = false
			continue
		}
		minX, minY = min(minX, b.X), min(minY, b.Y)
		maxX, maxY = max(maxX, b.X+b.Width), max(maxY, b.Y+b.Height)
	}
	if first {
		return layout.Rect{Width: 2 * enclosePad, Height: encloseHeader + enclosePad}
	}
	return layout.Rect{
		X:      minX - enclosePad,
		Y:      minY - encloseHeader,
		Width:  maxX - minX + 2*enclosePad,
		Height: maxY - minY + encloseHeader + enclosePad,
	}
}

var labelEscaper = strings.NewReplacer(`\`, "", `"`, "", "\n", " ")

func clusterLabel(id string) string {
	return `"` + labelEscaper.Replace(id) + `"`
}
