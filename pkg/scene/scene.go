// Package scene assembles the drawable view of a document: node and group
// boxes from a layout, edge anchors from the router and emphasis from the
// current selection.
//
// A Scene is what a render session presents to its client and what the SVG
// sink draws. It carries no behaviour and is safe to marshal as JSON.
package scene

import (
	"math"

	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/highlight"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/route"
)

// Scene is one renderable frame.
type Scene struct {
	Title     string              `json:"title,omitempty"`
	Direction string              `json:"direction,omitempty"`
	Bounds    layout.Rect         `json:"bounds"`
	Nodes     []NodeView          `json:"nodes"`
	Groups    []GroupView         `json:"groups"`
	Edges     []EdgeView          `json:"edges"`
	Legend    []LegendEntry       `json:"legend,omitempty"`
	Selection highlight.Selection `json:"selection"`
	Fallback  bool                `json:"fallback,omitempty"`
	Skipped   int                 `json:"skippedEdges,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// NodeView is a positioned node box.
type NodeView struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Kind        string         `json:"kind"`
	Description string         `json:"description,omitempty"`
	Location    graph.Location `json:"location"`
	Box         layout.Rect    `json:"box"`
	Pinned      bool           `json:"pinned,omitempty"` // position comes from the document
	Dimmed      bool           `json:"dimmed,omitempty"`
}

// GroupView is a positioned group container.
type GroupView struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Color  string      `json:"color,omitempty"`
	Box    layout.Rect `json:"box"`
	Dimmed bool        `json:"dimmed,omitempty"`
}

// EdgeView is a connector between two node boxes.
type EdgeView struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	Target     string        `json:"target"`
	Kind       string        `json:"kind"`
	Importance string        `json:"importance,omitempty"`
	Color      string        `json:"color"`
	Anchors    route.Anchors `json:"anchors"`
	Opacity    float64       `json:"opacity"`
	Dashed     bool          `json:"dashed,omitempty"`
	Animated   bool          `json:"animated,omitempty"`
	ZIndex     int           `json:"zIndex"`
}

// LegendEntry is one selectable color.
type LegendEntry struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Build creates the scene for g placed by res under sel.
//
// Edges with an endpoint missing from the layout are skipped and counted in
// Scene.Skipped. Groups without members have no box and are left out.
func Build(g *graph.Graph, res *layout.Result, sel highlight.Selection) *Scene {
	hl := highlight.Compute(sel, g.Edges)
	s := &Scene{
		Title:     g.Metadata.Title,
		Direction: res.Direction,
		Nodes:     make([]NodeView, 0, len(g.Nodes)),
		Groups:    []GroupView{},
		Edges:     make([]EdgeView, 0, len(g.Edges)),
		Legend:    legend(g),
		Selection: sel,
		Fallback:  res.Fallback,
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		box, ok := res.NodeBox(n.ID)
		if !ok || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		s.Nodes = append(s.Nodes, NodeView{
			ID:          n.ID,
			Label:       n.Label,
			Kind:        n.Kind,
			Description: n.Description,
			Location:    n.Location,
			Box:         box,
			Pinned:      n.Position != nil,
			Dimmed:      hl.NodeDimmed(n.ID),
		})
	}

	for _, grp := range g.Groups {
		box, ok := res.Groups[grp.ID]
		if !ok {
			continue
		}
		s.Groups = append(s.Groups, GroupView{
			ID:     grp.ID,
			Label:  grp.Label,
			Color:  grp.Color,
			Box:    box,
			Dimmed: hl.GroupDimmed(),
		})
	}

	for _, e := range g.Edges {
		src, ok1 := res.NodeBox(e.Source)
		dst, ok2 := res.NodeBox(e.Target)
		if !ok1 || !ok2 {
			s.Skipped++
			continue
		}
		a := route.Route(toBox(src), toBox(dst), res.Direction)
		v := EdgeView{
			ID:         e.ID,
			Source:     e.Source,
			Target:     e.Target,
			Kind:       e.Kind,
			Importance: e.Importance,
			Color:      highlight.EdgeColor(e),
			Anchors:    a,
			Opacity:    hl.EdgeOpacity(e.ID),
			Animated:   !a.BackEdge,
		}
		if a.BackEdge {
			v.Dashed = true
			v.ZIndex = -1
		}
		s.Edges = append(s.Edges, v)
	}

	s.Bounds = bounds(s)
	return s
}

// Error returns a scene that only reports msg. Sessions present it when the
// document cannot be parsed.
func Error(msg string) *Scene {
	return &Scene{
		Nodes:  []NodeView{},
		Groups: []GroupView{},
		Edges:  []EdgeView{},
		Error:  msg,
	}
}

func toBox(r layout.Rect) route.Box {
	return route.Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// legend lists the document's legend, or one entry per edge color in use
// when the document has none.
func legend(g *graph.Graph) []LegendEntry {
	if g.Legend != nil && len(g.Legend.Items) > 0 {
		out := make([]LegendEntry, 0, len(g.Legend.Items))
		for _, it := range g.Legend.Items {
			out = append(out, LegendEntry{Label: it.Label, Color: it.Color})
		}
		return out
	}

	var out []LegendEntry
	seen := map[string]bool{}
	for _, e := range g.Edges {
		c := highlight.EdgeColor(e)
		if seen[c] {
			continue
		}
		seen[c] = true
		label := e.Kind
		if e.Color != "" {
			label = e.Color
		}
		out = append(out, LegendEntry{Label: label, Color: c})
	}
	return out
}

func bounds(s *Scene) layout.Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(r layout.Rect) {
		minX, minY = math.Min(minX, r.X), math.Min(minY, r.Y)
		maxX, maxY = math.Max(maxX, r.X+r.Width), math.Max(maxY, r.Y+r.Height)
	}
	for _, n := range s.Nodes {
		grow(n.Box)
	}
	for _, g := range s.Groups {
		grow(g.Box)
	}
	if math.IsInf(minX, 1) {
		return layout.Rect{}
	}
	return layout.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
