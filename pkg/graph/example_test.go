package graph_test

import (
	"fmt"

	"github.com/matzehuels/codeflow/pkg/graph"
)

func ExampleApplyPositions() {
	g, err := graph.ParseString(`{
		"version": "1.0",
		"metadata": {"title": "demo", "generated": "2025-01-01"},
		"nodes": [{"id": "n1", "label": "run", "kind": "function",
		           "location": {"file": "run.go", "startLine": 1}}],
		"edges": []
	}`)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	moved := graph.ApplyPositions(g, graph.PositionChanges{
		NodePositions: []graph.EntityPosition{
			{ID: "n1", Position: graph.Point{X: 10.6, Y: 20.4}},
		},
	})

	p := moved.Nodes[0].Position
	fmt.Printf("n1 at (%v, %v)\n", p.X, p.Y)
	fmt.Println("original has overrides:", g.HasOverrides())
	fmt.Println("reset has overrides:", graph.ClearOverrides(moved).HasOverrides())
	// Output:
	// n1 at (11, 20)
	// original has overrides: false
	// reset has overrides: false
}
