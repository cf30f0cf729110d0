package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/highlight"
	"github.com/matzehuels/codeflow/pkg/render"
	"github.com/matzehuels/codeflow/pkg/scene"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string   // output file (single format) or base path
	formats     []string // svg, png, pdf
	mode        string
	direction   string
	selectNode  string
	selectEdge  string
	selectColor string
	interactive bool    // embed hover highlighting
	padding     float64 // margin around the drawing
	scale       float64 // PNG scale factor
	noCache     bool
}

// renderCommand creates the render command for drawing a document.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{padding: 24, scale: 2}

	cmd := &cobra.Command{
		Use:   "render [document.json]",
		Short: "Render a document to SVG, PNG or PDF",
		Long: `Render a document to SVG, PNG or PDF.

A selection can be applied before drawing: --select-node highlights a node
and its neighbours, --select-edge a single edge, --select-color every edge
of one legend color. Everything else is dimmed.

PNG and PDF output require rsvg-convert (librsvg).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, pdf (comma-separated)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "layout mode: layered, force, stress (default from config)")
	cmd.Flags().StringVar(&opts.direction, "direction", "", "flow direction: TB, BT, LR, RL (default from config)")
	cmd.Flags().StringVar(&opts.selectNode, "select-node", "", "highlight a node and its neighbours")
	cmd.Flags().StringVar(&opts.selectEdge, "select-edge", "", "highlight one edge")
	cmd.Flags().StringVar(&opts.selectColor, "select-color", "", "highlight edges of one legend color")
	cmd.Flags().BoolVar(&opts.interactive, "interactive", false, "embed hover highlighting (svg)")
	cmd.Flags().Float64Var(&opts.padding, "padding", opts.padding, "margin around the drawing")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "scale factor (png)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout cache")
	cmd.MarkFlagsMutuallyExclusive("select-node", "select-edge", "select-color")

	return cmd
}

// runRender compiles the layout, builds the scene and writes every format.
func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	g, res, err := c.compile(ctx, input, opts.mode, opts.direction, opts.noCache)
	if err != nil {
		return err
	}

	sel := selection(opts)
	if !selectable(graph.NewIndex(g), sel) {
		printWarning("No %s %q in %s, rendering without selection", sel.Kind, sel.Value, input)
		sel = highlight.None()
	}
	s := scene.Build(g, res, sel)
	if s.Skipped > 0 {
		printWarning("Skipped %d edge(s) with a missing endpoint", s.Skipped)
	}

	svgOpts := []render.SVGOption{render.WithPadding(opts.padding)}
	if opts.interactive {
		svgOpts = append(svgOpts, render.WithInteraction())
	}
	svg := render.RenderSVG(s, svgOpts...)

	var written []string
	for _, format := range opts.formats {
		out := formatPath(input, opts.output, format, len(opts.formats) > 1)

		data := svg
		if format != render.FormatSVG {
			spinner := newSpinner(ctx, os.Stderr, fmt.Sprintf("Converting to %s...", format))
			spinner.Start()
			data, err = render.Convert(ctx, svg, format, opts.scale)
			spinner.Stop()
			if err != nil {
				if spinner.Cancelled() {
					return ctx.Err()
				}
				return fmt.Errorf("render %s: %w", format, err)
			}
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("write output %s: %w", out, err)
		}
		written = append(written, out)
	}

	printSuccess("Rendered %s", input)
	for _, out := range written {
		printFile(out)
	}
	printStats(len(g.Nodes), len(g.Edges), res)
	return nil
}

// selection maps the --select-* flags to a highlight selection.
func selection(opts renderOpts) highlight.Selection {
	switch {
	case opts.selectNode != "":
		return highlight.Node(opts.selectNode)
	case opts.selectEdge != "":
		return highlight.Edge(opts.selectEdge)
	case opts.selectColor != "":
		return highlight.LegendColor(opts.selectColor)
	default:
		return highlight.None()
	}
}

// selectable reports whether sel names an existing node or edge. Color
// selections are always accepted.
func selectable(idx *graph.Index, sel highlight.Selection) bool {
	switch sel.Kind {
	case highlight.KindNode:
		_, ok := idx.Node(sel.Value)
		return ok
	case highlight.KindEdge:
		_, ok := idx.Edge(sel.Value)
		return ok
	default:
		return true
	}
}

// formatPath names the file for one output format. An explicit output is
// used as is for a single format and as the base path for several.
func formatPath(input, output, format string, multi bool) string {
	if output != "" && !multi {
		return output
	}
	base := output
	if base == "" {
		base = input
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + format
}

// parseFormats parses a comma-separated format string. Empty means svg.
func parseFormats(s string) []string {
	if s == "" {
		return []string{render.FormatSVG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// validateFormats checks that all requested formats are supported.
func validateFormats(formats []string) error {
	for _, f := range formats {
		if !render.ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidInput, "invalid format: %s (must be 'svg', 'png' or 'pdf')", f)
		}
	}
	return nil
}
