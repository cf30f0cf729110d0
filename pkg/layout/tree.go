package layout

import "github.com/matzehuels/codeflow/pkg/graph"

// Tree is the solver request and, once placed, its response.
type Tree struct {
	Root  *Item      `json:"root"`
	Edges []TreeEdge `json:"edges"`
}

// Item is a leaf box or a container of other items.
//
// X and Y are the top-left corner relative to the parent's top-left corner.
// They are zero in a request. For containers, Width and Height are filled in
// by the solver.
type Item struct {
	ID       string   `json:"id"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Options  *Options `json:"options,omitempty"`
	Children []*Item  `json:"children,omitempty"`
}

// IsContainer reports whether the item holds other items.
func (it *Item) IsContainer() bool { return it.Options != nil }

// Options are per-container solver settings.
type Options struct {
	Mode      string `json:"mode"`
	Direction string `json:"direction"`
}

// TreeEdge connects two leaf ids regardless of nesting.
type TreeEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// BuildTree creates the solver request for g.
//
// Nodes whose group exists and has at least one member are nested under a
// container for that group; every other node is a root leaf. Containers come
// first in document group order, then root leaves in node order. Edges with a
// missing endpoint are left out.
func BuildTree(g *graph.Graph, mode, direction string) *Tree {
	opts := Options{Mode: mode, Direction: direction}
	idx := graph.NewIndex(g)

	root := &Item{ID: "", Options: &opts}
	containers := make(map[string]*Item)
	for _, grp := range g.Groups {
		if _, dup := containers[grp.ID]; dup || len(idx.Members(grp.ID)) == 0 {
			continue
		}
		o := opts
		c := &Item{ID: grp.ID, Options: &o}
		containers[grp.ID] = c
		root.Children = append(root.Children, c)
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		size := Dimensions(n)
		leaf := &Item{ID: n.ID, Width: size.Width, Height: size.Height}
		if c, ok := containers[n.GroupID]; ok {
			c.Children = append(c.Children, leaf)
		} else {
			root.Children = append(root.Children, leaf)
		}
	}

	t := &Tree{Root: root}
	for _, e := range g.Edges {
		if !idx.Connected(e) {
			continue
		}
		t.Edges = append(t.Edges, TreeEdge{ID: e.ID, Source: e.Source, Target: e.Target})
	}
	return t
}

// Leaves returns every leaf in depth-first order.
func (t *Tree) Leaves() []*Item {
	var out []*Item
	stack := []*Item{t.Root}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !it.IsContainer() {
			out = append(out, it)
			continue
		}
		for i := len(it.Children) - 1; i >= 0; i-- {
			stack = append(stack, it.Children[i])
		}
	}
	return out
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := &Tree{Edges: append([]TreeEdge(nil), t.Edges...)}
	if t.Root == nil {
		return out
	}

	type pair struct{ src, dst *Item }
	out.Root = cloneItem(t.Root)
	stack := []pair{{t.Root, out.Root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ch := range p.src.Children {
			c := cloneItem(ch)
			p.dst.Children = append(p.dst.Children, c)
			stack = append(stack, pair{ch, c})
		}
	}
	return out
}

func cloneItem(it *Item) *Item {
	c := &Item{ID: it.ID, X: it.X, Y: it.Y, Width: it.Width, Height: it.Height}
	if it.Options != nil {
		o := *it.Options
		c.Options = &o
	}
	return c
}
