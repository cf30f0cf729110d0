package layout

import (
	"context"
	"reflect"
	"testing"

	"github.com/matzehuels/codeflow/pkg/cache"
	"github.com/matzehuels/codeflow/pkg/graph"
)

func TestCachingSolver(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	inner := &countingSolver{inner: defaultFixed()}
	c := NewCompiler(NewCachingSolver(inner, fc, nil, nil))

	g := testGraph()
	first, err := c.Compile(ctx, g)
	if err != nil {
		t.Fatal(err)
	}

	dragged := graph.ApplyPositions(g, graph.PositionChanges{
		NodePositions: []graph.EntityPosition{{ID: "a", Position: graph.Point{X: 500, Y: 500}}},
	})
	second, err := c.Compile(ctx, dragged)
	if err != nil {
		t.Fatal(err)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("solver calls = %d, a drag should not invalidate the cached placement", n)
	}
	if second.Positions["a"] != (graph.Point{X: 500, Y: 500}) {
		t.Errorf("a = %+v, override must still apply on a cache hit", second.Positions["a"])
	}
	if !reflect.DeepEqual(first.Groups, second.Groups) {
		t.Error("cached placement differs from the original")
	}

	relabeled := g.Clone()
	relabeled.Layout = &graph.LayoutHint{Direction: graph.DirectionLR}
	if _, err := c.Compile(ctx, relabeled); err != nil {
		t.Fatal(err)
	}
	if n := inner.calls.Load(); n != 2 {
		t.Errorf("solver calls = %d, a new direction must miss the cache", n)
	}
}

func TestCachingSolverKey(t *testing.T) {
	s := NewCachingSolver(GridSolver{}, cache.Disabled(), cache.NewScopedKeyer(nil, "codeflow:"), nil)

	a, err := s.Key(BuildTree(testGraph(), graph.ModeLayered, graph.DirectionTB))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Key(BuildTree(testGraph(), graph.ModeLayered, graph.DirectionTB))
	if a != b {
		t.Error("same request should produce the same key")
	}
	if a[:9] != "codeflow:" {
		t.Errorf("key %q should carry the scope prefix", a)
	}

	g := testGraph()
	g.Nodes[0].Label = "a much longer label than before"
	if c, _ := s.Key(BuildTree(g, graph.ModeLayered, graph.DirectionTB)); c == a {
		t.Error("a resized node should change the key")
	}
}

func TestCachingSolverCorruptEntry(t *testing.T) {
	ctx := context.Background()
	fc, _ := cache.NewFileCache(t.TempDir())
	inner := &countingSolver{inner: GridSolver{}}
	s := NewCachingSolver(inner, fc, nil, nil)

	tree := BuildTree(testGraph(), graph.ModeLayered, graph.DirectionTB)
	key, _ := s.Key(tree)
	if err := fc.Set(ctx, key, []byte("not a tree"), 0); err != nil {
		t.Fatal(err)
	}

	out, err := s.Place(ctx, tree)
	if err != nil || out == nil {
		t.Fatalf("Place = %v, %v", out, err)
	}
	if inner.calls.Load() != 1 {
		t.Error("corrupt entry should fall through to the solver")
	}
}
