package graph

import "math"

// Round rounds v to the nearest integer, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v)
}

// RoundPoint rounds both coordinates of p.
func RoundPoint(p Point) Point {
	return Point{X: Round(p.X), Y: Round(p.Y)}
}

// RoundSize rounds both dimensions of s.
func RoundSize(s Size) Size {
	return Size{Width: Round(s.Width), Height: Round(s.Height)}
}

// ApplyPositions returns a copy of g with the batch applied.
//
// Within a batch the last entry for an id wins. Ids that do not exist in the
// document are ignored. Every coordinate is rounded before it is stored, so
// applying the same batch twice yields the same document.
func ApplyPositions(g *Graph, c PositionChanges) *Graph {
	out := g.Clone()

	nodePos := make(map[string]Point, len(c.NodePositions))
	for _, p := range c.NodePositions {
		nodePos[p.ID] = RoundPoint(p.Position)
	}
	groupPos := make(map[string]Point, len(c.GroupPositions))
	for _, p := range c.GroupPositions {
		groupPos[p.ID] = RoundPoint(p.Position)
	}
	groupSize := make(map[string]Size, len(c.GroupSizes))
	for _, s := range c.GroupSizes {
		groupSize[s.ID] = RoundSize(s.Size)
	}

	for i := range out.Nodes {
		if p, ok := nodePos[out.Nodes[i].ID]; ok {
			out.Nodes[i].Position = &p
		}
	}
	for i := range out.Groups {
		id := out.Groups[i].ID
		if p, ok := groupPos[id]; ok {
			out.Groups[i].Position = &p
		}
		if s, ok := groupSize[id]; ok {
			out.Groups[i].Size = &s
		}
	}
	return out
}

// ClearOverrides returns a copy of g with every stored node position, group
// position and group size removed.
func ClearOverrides(g *Graph) *Graph {
	out := g.Clone()
	for i := range out.Nodes {
		out.Nodes[i].Position = nil
	}
	for i := range out.Groups {
		out.Groups[i].Position = nil
		out.Groups[i].Size = nil
	}
	return out
}

// HasOverrides reports whether any node or group carries a manual override.
func (g *Graph) HasOverrides() bool {
	for _, n := range g.Nodes {
		if n.Position != nil {
			return true
		}
	}
	for _, grp := range g.Groups {
		if grp.Position != nil || grp.Size != nil {
			return true
		}
	}
	return false
}
