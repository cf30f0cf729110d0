// Package route picks the sides of two boxes that an edge connects.
//
// Routing is a pure function of the endpoint geometry and the flow
// direction: it keeps no state and calls with the same arguments always
// return the same anchors. There is no path finding; the renderer draws a
// curve between the chosen sides.
package route

import "github.com/matzehuels/codeflow/pkg/graph"

// Side of a box where an edge attaches.
type Side string

const (
	Top    Side = "top"
	Bottom Side = "bottom"
	Left   Side = "left"
	Right  Side = "right"
)

// RankThreshold is the distance along the flow axis below which two boxes
// count as being on the same rank.
const RankThreshold = 30

// Box is an endpoint rectangle with a top-left origin.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of b.
func (b Box) Center() graph.Point {
	return graph.Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Anchors is the routing decision for one edge.
type Anchors struct {
	Source   Side `json:"source"`
	Target   Side `json:"target"`
	BackEdge bool `json:"backEdge"`
}

// Route chooses anchors for an edge from source to target.
//
// Along the flow axis of dir a target more than RankThreshold ahead of the
// source gets the forward pair (bottom to top for TB); one more than
// RankThreshold behind is a back edge and gets the reversed pair. Otherwise
// the boxes share a rank and the sides facing each other across the cross
// axis are used. BT and RL measure "ahead" against their own flow, so a back
// edge always points against the layout direction.
func Route(source, target Box, dir string) Anchors {
	sc, tc := source.Center(), target.Center()
	dx, dy := tc.X-sc.X, tc.Y-sc.Y

	switch dir {
	case graph.DirectionLR:
		return decide(dx, dy, Right, Left, Bottom, Top)
	case graph.DirectionRL:
		return decide(-dx, dy, Left, Right, Bottom, Top)
	case graph.DirectionBT:
		return decide(-dy, dx, Top, Bottom, Right, Left)
	default:
		return decide(dy, dx, Bottom, Top, Right, Left)
	}
}

// decide works in flow space: along is the signed distance in the flow
// direction, across is the signed distance on the other axis. fwdOut and
// fwdIn are the forward sides; crossPos and crossNeg are the sides facing the
// positive and negative cross direction.
func decide(along, across float64, fwdOut, fwdIn, crossPos, crossNeg Side) Anchors {
	switch {
	case along > RankThreshold:
		return Anchors{Source: fwdOut, Target: fwdIn}
	case along < -RankThreshold:
		return Anchors{Source: fwdIn, Target: fwdOut, BackEdge: true}
	case across >= 0:
		return Anchors{Source: crossPos, Target: crossNeg}
	default:
		return Anchors{Source: crossNeg, Target: crossPos}
	}
}
