package layout_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/layout"
)

func ExampleCompiler_Compile() {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "a", Label: "main", Kind: graph.KindFunction},
			{ID: "b", Label: "serve", Kind: graph.KindFunction, Position: &graph.Point{X: 400.4, Y: 99.6}},
		},
		Edges: []graph.Edge{{ID: "e", Source: "a", Target: "b", Kind: graph.EdgeCalls}},
	}

	res, err := layout.NewCompiler(layout.GridSolver{}).Compile(context.Background(), g)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	for _, id := range []string{"a", "b"} {
		box, _ := res.NodeBox(id)
		fmt.Printf("%s at (%v, %v) size %vx%v\n", id, box.X, box.Y, box.Width, box.Height)
	}
	// Output:
	// a at (0, 0) size 220x60
	// b at (400, 100) size 220x60
}

func ExampleDimensions() {
	s := layout.Dimensions(graph.Node{Label: "ParseDocument", Description: "decodes JSON"})
	fmt.Printf("%vx%v\n", s.Width, s.Height)
	// Output: 220x90
}
