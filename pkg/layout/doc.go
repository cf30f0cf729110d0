// Package layout compiles a graph document into absolute box coordinates.
//
// Compilation has four steps:
//
//  1. [BuildTree] sizes every node with [Dimensions] and nests the members
//     of each non-empty group under a container item.
//  2. A [Solver] places the tree. Coordinates it returns are relative to the
//     item's immediate parent.
//  3. The placed tree is un-flattened into absolute positions. Manual
//     overrides stored in the document replace solver values, and children
//     of a moved group follow it.
//  4. Every coordinate is rounded to an integer.
//
// A solver error, timeout or malformed result never reaches the caller.
// [Compiler.Compile] falls back to [GridSolver] and reports it through
// [Result.Fallback] so the diagram is never blank.
//
// # Usage
//
//	c := layout.NewCompiler(dot.New(),
//	    layout.WithMode(graph.ModeLayered),
//	    layout.WithTimeout(5*time.Second),
//	)
//	res, err := c.Compile(ctx, g)
//	if err != nil {
//	    return err // ctx was cancelled
//	}
//	pos := res.Positions["n1"]
package layout
