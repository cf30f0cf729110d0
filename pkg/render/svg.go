package render

import (
	"bytes"
	"fmt"
	"html"
	"slices"

	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/route"
	"github.com/matzehuels/codeflow/pkg/scene"
)

const (
	dimmedOpacity = 0.3
	defaultPad    = 40
	curvature     = 0.5
)

var kindFill = map[string]string{
	graph.KindFunction: "#e7f5ff",
	graph.KindMethod:   "#edf2ff",
	graph.KindClass:    "#fff4e6",
	graph.KindModule:   "#ebfbee",
	graph.KindFile:     "#f8f9fa",
}

const interactionCSS = `
    .node { cursor: pointer; transition: opacity 0.2s ease; }
    .node:hover rect { stroke-width: 2.5; }
    .edge { transition: opacity 0.2s ease; }`

const interactionJS = `
    document.querySelectorAll('.node').forEach(n => {
      n.addEventListener('mouseenter', () => {
        document.querySelectorAll('.edge').forEach(e => {
          const on = e.dataset.source === n.dataset.id || e.dataset.target === n.dataset.id;
          e.style.opacity = on ? 1 : 0.15;
        });
      });
      n.addEventListener('mouseleave', () => {
        document.querySelectorAll('.edge').forEach(e => e.style.opacity = '');
      });
    });`

// SVGOption configures RenderSVG.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	padding     float64
	interaction bool
}

// WithPadding sets the margin around the drawing.
func WithPadding(p float64) SVGOption { return func(r *svgRenderer) { r.padding = p } }

// WithInteraction embeds hover highlighting for use in a browser.
func WithInteraction() SVGOption { return func(r *svgRenderer) { r.interaction = true } }

// RenderSVG draws s as a standalone SVG document.
func RenderSVG(s *scene.Scene, opts ...SVGOption) []byte {
	r := svgRenderer{padding: defaultPad}
	for _, opt := range opts {
		opt(&r)
	}

	b := s.Bounds
	w, h := b.Width+2*r.padding, b.Height+2*r.padding
	if s.Error != "" {
		w, h = 640, 120
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.1f %.1f %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		b.X-r.padding, b.Y-r.padding, w, h, w, h)

	if s.Error != "" {
		fmt.Fprintf(&buf, `  <text x="%.1f" y="%.1f" font-family="sans-serif" font-size="16" fill="#c92a2a">%s</text>`+"\n",
			b.X-r.padding+20, b.Y-r.padding+60, html.EscapeString(s.Error))
		buf.WriteString("</svg>\n")
		return buf.Bytes()
	}

	renderDefs(&buf, s, r.interaction)
	for _, g := range s.Groups {
		renderGroup(&buf, g)
	}

	edges := slices.Clone(s.Edges)
	slices.SortStableFunc(edges, func(a, b scene.EdgeView) int { return a.ZIndex - b.ZIndex })
	for _, e := range edges {
		renderEdge(&buf, s, e)
	}
	for _, n := range s.Nodes {
		renderNode(&buf, n)
	}

	if r.interaction {
		fmt.Fprintf(&buf, "  <script><![CDATA[%s\n  ]]></script>\n", interactionJS)
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderDefs(buf *bytes.Buffer, s *scene.Scene, interaction bool) {
	buf.WriteString("  <defs>\n")
	for i, c := range edgeColors(s) {
		fmt.Fprintf(buf, `    <marker id="arrow-%d" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="8" markerHeight="8" orient="auto-start-reverse">`+
			`<path d="M0,0 L10,5 L0,10 z" fill="%s"/></marker>`+"\n", i, html.EscapeString(c))
	}
	if interaction {
		fmt.Fprintf(buf, "    <style>%s\n    </style>\n", interactionCSS)
	}
	buf.WriteString("  </defs>\n")
}

func edgeColors(s *scene.Scene) []string {
	var out []string
	for _, e := range s.Edges {
		if !slices.Contains(out, e.Color) {
			out = append(out, e.Color)
		}
	}
	return out
}

func opacity(dimmed bool) float64 {
	if dimmed {
		return dimmedOpacity
	}
	return 1
}

func renderGroup(buf *bytes.Buffer, g scene.GroupView) {
	color := g.Color
	if color == "" {
		color = "#adb5bd"
	}
	fmt.Fprintf(buf, `  <g class="group" id="group-%s" opacity="%.2f">`+"\n", html.EscapeString(g.ID), opacity(g.Dimmed))
	fmt.Fprintf(buf, `    <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="12" fill="%s" fill-opacity="0.08" stroke="%s" stroke-dasharray="6 4"/>`+"\n",
		g.Box.X, g.Box.Y, g.Box.Width, g.Box.Height, html.EscapeString(color), html.EscapeString(color))
	fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" font-family="sans-serif" font-size="13" font-weight="bold" fill="#495057">%s</text>`+"\n",
		g.Box.X+14, g.Box.Y+24, html.EscapeString(g.Label))
	buf.WriteString("  </g>\n")
}

func renderNode(buf *bytes.Buffer, n scene.NodeView) {
	fill, ok := kindFill[n.Kind]
	if !ok {
		fill = "#ffffff"
	}
	fmt.Fprintf(buf, `  <g class="node" id="node-%s" data-id="%s" opacity="%.2f">`+"\n",
		html.EscapeString(n.ID), html.EscapeString(n.ID), opacity(n.Dimmed))
	fmt.Fprintf(buf, `    <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="8" fill="%s" stroke="#343a40" stroke-width="1.2"/>`+"\n",
		n.Box.X, n.Box.Y, n.Box.Width, n.Box.Height, fill)
	fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" font-family="sans-serif" font-size="14" font-weight="bold" fill="#212529">%s</text>`+"\n",
		n.Box.X+12, n.Box.Y+24, html.EscapeString(n.Label))
	fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" font-family="monospace" font-size="10" fill="#868e96">%s</text>`+"\n",
		n.Box.X+n.Box.Width-12, n.Box.Y+18, html.EscapeString(n.Kind))
	if n.Description != "" {
		fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" font-family="sans-serif" font-size="11" fill="#495057">%s</text>`+"\n",
			n.Box.X+12, n.Box.Y+48, html.EscapeString(truncate(n.Description, int(n.Box.Width-24)/6)))
	}
	buf.WriteString("  </g>\n")
}

func renderEdge(buf *bytes.Buffer, s *scene.Scene, e scene.EdgeView) {
	src, ok1 := nodeBox(s, e.Source)
	dst, ok2 := nodeBox(s, e.Target)
	if !ok1 || !ok2 {
		return
	}
	p1, n1 := anchorPoint(src, e.Anchors.Source)
	p2, n2 := anchorPoint(dst, e.Anchors.Target)

	dist := max(abs(p2.X-p1.X), abs(p2.Y-p1.Y)) * curvature
	c1 := graph.Point{X: p1.X + n1.X*dist, Y: p1.Y + n1.Y*dist}
	c2 := graph.Point{X: p2.X + n2.X*dist, Y: p2.Y + n2.Y*dist}

	dash := ""
	if e.Dashed {
		dash = ` stroke-dasharray="6 4"`
	}
	width := 1.5
	if e.Importance == graph.ImportancePrimary {
		width = 2.5
	}
	marker := slices.Index(edgeColors(s), e.Color)
	fmt.Fprintf(buf, `  <path class="edge" id="edge-%s" data-source="%s" data-target="%s" d="M%.1f,%.1f C%.1f,%.1f %.1f,%.1f %.1f,%.1f" fill="none" stroke="%s" stroke-width="%.1f" opacity="%.2f"%s marker-end="url(#arrow-%d)"/>`+"\n",
		html.EscapeString(e.ID), html.EscapeString(e.Source), html.EscapeString(e.Target),
		p1.X, p1.Y, c1.X, c1.Y, c2.X, c2.Y, p2.X, p2.Y,
		html.EscapeString(e.Color), width, e.Opacity, dash, marker)
}

func nodeBox(s *scene.Scene, id string) (layout.Rect, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n.Box, true
		}
	}
	return layout.Rect{}, false
}

// anchorPoint returns the midpoint of side on r and the outward normal.
func anchorPoint(r layout.Rect, side route.Side) (graph.Point, graph.Point) {
	switch side {
	case route.Top:
		return graph.Point{X: r.X + r.Width/2, Y: r.Y}, graph.Point{Y: -1}
	case route.Bottom:
		return graph.Point{X: r.X + r.Width/2, Y: r.Y + r.Height}, graph.Point{Y: 1}
	case route.Left:
		return graph.Point{X: r.X, Y: r.Y + r.Height/2}, graph.Point{X: -1}
	default:
		return graph.Point{X: r.X + r.Width, Y: r.Y + r.Height/2}, graph.Point{X: 1}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 4 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
