package layout

import "context"

// Solver places a tree. Implementations return a new tree with X, Y set on
// every item relative to its parent and Width, Height set on every container.
// Leaf sizes must be kept as given.
//
// Place may be called from a goroutine that the caller stops waiting for, so
// implementations must not mutate the request.
type Solver interface {
	Name() string
	Place(ctx context.Context, t *Tree) (*Tree, error)
}
