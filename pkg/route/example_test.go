package route_test

import (
	"fmt"

	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/route"
)

func ExampleRoute() {
	a := route.Box{X: 0, Y: 0, Width: 220, Height: 60}
	b := route.Box{X: 100, Y: 50, Width: 220, Height: 60}

	fwd := route.Route(a, b, graph.DirectionTB)
	back := route.Route(b, route.Box{X: 0, Y: -200, Width: 220, Height: 60}, graph.DirectionTB)

	fmt.Println(fwd.Source, fwd.Target, fwd.BackEdge)
	fmt.Println(back.Source, back.Target, back.BackEdge)
	// Output:
	// bottom top false
	// top bottom true
}
