package layout

import "github.com/matzehuels/codeflow/pkg/graph"

// Rect is an axis-aligned box with a top-left origin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of r.
func (r Rect) Center() graph.Point {
	return graph.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Result is a compiled layout in absolute, integer diagram coordinates.
type Result struct {
	Mode      string                 `json:"mode"`
	Direction string                 `json:"direction"`
	Positions map[string]graph.Point `json:"positions"` // top-left of each node box
	Sizes     map[string]graph.Size  `json:"sizes"`
	Groups    map[string]Rect        `json:"groups"`
	Fallback  bool                   `json:"fallback,omitempty"`
}

func newResult(mode, direction string) *Result {
	return &Result{
		Mode:      mode,
		Direction: direction,
		Positions: make(map[string]graph.Point),
		Sizes:     make(map[string]graph.Size),
		Groups:    make(map[string]Rect),
	}
}

// NodeBox returns the box of node id.
func (r *Result) NodeBox(id string) (Rect, bool) {
	p, ok := r.Positions[id]
	if !ok {
		return Rect{}, false
	}
	s := r.Sizes[id]
	return Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}, true
}

// WithPosition returns a copy of r with node id moved to p. Used for the
// optimistic position of an entity that is still being dragged.
func (r *Result) WithPosition(id string, p graph.Point) *Result {
	out := r.clone()
	if _, ok := out.Positions[id]; ok {
		out.Positions[id] = graph.RoundPoint(p)
	}
	return out
}

// WithGroup returns a copy of r with group id moved to p and, when size is
// non-nil, resized. Nodes listed in follow are translated by the same offset
// as the group; all other nodes keep their absolute positions.
func (r *Result) WithGroup(id string, p graph.Point, size *graph.Size, follow []string) *Result {
	out := r.clone()
	rect, ok := out.Groups[id]
	if !ok {
		return out
	}
	p = graph.RoundPoint(p)
	dx, dy := p.X-rect.X, p.Y-rect.Y
	for _, n := range follow {
		if np, ok := out.Positions[n]; ok {
			out.Positions[n] = graph.Point{X: np.X + dx, Y: np.Y + dy}
		}
	}
	rect.X, rect.Y = p.X, p.Y
	if size != nil {
		s := graph.RoundSize(*size)
		rect.Width, rect.Height = s.Width, s.Height
	}
	out.Groups[id] = rect
	return out
}

func (r *Result) clone() *Result {
	out := newResult(r.Mode, r.Direction)
	out.Fallback = r.Fallback
	for k, v := range r.Positions {
		out.Positions[k] = v
	}
	for k, v := range r.Sizes {
		out.Sizes[k] = v
	}
	for k, v := range r.Groups {
		out.Groups[k] = v
	}
	return out
}
