package layout

import (
	"unicode/utf8"

	"github.com/matzehuels/codeflow/pkg/graph"
)

// Node box bounds in diagram units.
const (
	MinNodeWidth   = 220
	MaxNodeWidth   = 320
	NodeHeight     = 60
	NodeHeightTall = 90

	charWidth     = 8
	labelPadding  = 80
	descCharWidth = 6
	maxDescWidth  = 280
)

// Dimensions returns the box size of a node. It depends only on the label
// and description so that the same document always yields the same solver
// request.
func Dimensions(n graph.Node) graph.Size {
	labelW := utf8.RuneCountInString(n.Label)*charWidth + labelPadding
	descW := min(utf8.RuneCountInString(n.Description)*descCharWidth, maxDescWidth)
	w := clamp(max(labelW, descW), MinNodeWidth, MaxNodeWidth)

	h := NodeHeight
	if n.Description != "" {
		h = NodeHeightTall
	}
	return graph.Size{Width: float64(w), Height: float64(h)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
