// Package highlight computes which nodes and edges stay emphasised for a
// selection.
//
// At most one thing is selected at a time: a node, an edge or a legend
// color. [Compute] is a pure function of the selection and the edge list;
// [Selector] holds the current selection and enforces exclusivity.
package highlight

import (
	"strings"

	"github.com/matzehuels/codeflow/pkg/graph"
)

// DimmedEdgeOpacity is the opacity of edges outside an active selection.
const DimmedEdgeOpacity = 0.15

// Kind identifies what a selection targets.
type Kind string

const (
	KindNone  Kind = ""
	KindNode  Kind = "node"
	KindEdge  Kind = "edge"
	KindColor Kind = "color"
)

// Selection is the current selection. The zero value selects nothing.
type Selection struct {
	Kind  Kind   `json:"kind,omitempty"`
	Value string `json:"value,omitempty"` // node id, edge id or color
}

// None returns the empty selection.
func None() Selection { return Selection{} }

// Node selects a node by id.
func Node(id string) Selection { return Selection{Kind: KindNode, Value: id} }

// Edge selects an edge by id.
func Edge(id string) Selection { return Selection{Kind: KindEdge, Value: id} }

// LegendColor selects every edge drawn in color.
func LegendColor(color string) Selection {
	return Selection{Kind: KindColor, Value: normalizeColor(color)}
}

// Active reports whether anything is selected.
func (s Selection) Active() bool { return s.Kind != KindNone }

// DefaultEdgeColors maps edge kinds to the color used when an edge has no
// explicit color.
var DefaultEdgeColors = map[string]string{
	graph.EdgeCalls:      "#4dabf7",
	graph.EdgeImports:    "#69db7c",
	graph.EdgeExtends:    "#ff6b6b",
	graph.EdgeImplements: "#da77f2",
	graph.EdgeUses:       "#ffa94d",
}

// FallbackEdgeColor is used for edges of an unknown kind without a color.
const FallbackEdgeColor = "#868e96"

// EdgeColor returns the color an edge is drawn with.
func EdgeColor(e graph.Edge) string {
	if e.Color != "" {
		return normalizeColor(e.Color)
	}
	if c, ok := DefaultEdgeColors[e.Kind]; ok {
		return c
	}
	return FallbackEdgeColor
}

func normalizeColor(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// Highlight is the outcome of a selection.
type Highlight struct {
	Active bool
	Nodes  map[string]bool
	Edges  map[string]bool
}

// NodeDimmed reports whether node id is drawn dimmed.
func (h Highlight) NodeDimmed(id string) bool {
	return h.Active && !h.Nodes[id]
}

// EdgeOpacity returns the opacity for edge id.
func (h Highlight) EdgeOpacity(id string) float64 {
	if !h.Active || h.Edges[id] {
		return 1
	}
	return DimmedEdgeOpacity
}

// GroupDimmed reports whether group containers are dimmed. Groups are
// dimmed whenever a selection is active, whatever their members.
func (h Highlight) GroupDimmed() bool { return h.Active }

// Compute returns the highlighted nodes and edges for sel.
//
// A selected node highlights itself, every edge touching it and the other
// endpoints of those edges. A selected edge highlights itself and its two
// endpoints. A legend color highlights every edge of that color and their
// endpoints. Selecting something that does not exist still dims everything.
func Compute(sel Selection, edges []graph.Edge) Highlight {
	h := Highlight{
		Active: sel.Active(),
		Nodes:  make(map[string]bool),
		Edges:  make(map[string]bool),
	}
	if !h.Active {
		return h
	}
	if sel.Kind == KindNode {
		h.Nodes[sel.Value] = true
	}

	for _, e := range edges {
		var hit bool
		switch sel.Kind {
		case KindNode:
			hit = e.Source == sel.Value || e.Target == sel.Value
		case KindEdge:
			hit = e.ID == sel.Value
		case KindColor:
			hit = EdgeColor(e) == sel.Value
		}
		if hit {
			h.Edges[e.ID] = true
			h.Nodes[e.Source] = true
			h.Nodes[e.Target] = true
		}
	}
	return h
}
