// Package render draws scenes.
//
// [RenderSVG] turns a [scene.Scene] into a standalone SVG document: group
// containers first, then edges as curves between their anchor sides, then
// node boxes on top. Dimmed entities are drawn with reduced opacity, back
// edges dashed.
//
// [Convert] turns the SVG into PNG or PDF with the external rsvg-convert
// tool (from librsvg):
//
//	svg := render.RenderSVG(s, render.WithInteraction())
//	png, err := render.Convert(ctx, svg, render.FormatPNG, 2.0) // 2x scale
//
// [scene.Scene]: github.com/matzehuels/codeflow/pkg/scene.Scene
package render
