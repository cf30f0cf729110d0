package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/codeflow/pkg/errors"
)

// =============================================================================
// Serialization API
// =============================================================================

// Parse decodes document text into a Graph.
// Malformed JSON yields an error with code [errors.ErrCodeParse]; structural
// rules are checked separately by [Graph.Validate].
func Parse(data []byte) (*Graph, error) {
	return readFrom(bytes.NewReader(data))
}

// ParseString is a convenience wrapper around [Parse].
func ParseString(content string) (*Graph, error) {
	return Parse([]byte(content))
}

// Read decodes a document from an io.Reader.
func Read(r io.Reader) (*Graph, error) {
	return readFrom(r)
}

// ReadFile reads and decodes a document file.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readFrom(f)
}

// Marshal encodes a Graph as indented JSON with a trailing newline.
// Output is deterministic for a given Graph value.
func Marshal(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeTo(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes a Graph to an io.Writer.
func Write(g *Graph, w io.Writer) error {
	return writeTo(g, w)
}

// WriteFile writes a Graph to a file with 0644 permissions.
func WriteFile(g *Graph, path string) error {
	data, err := Marshal(g)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeTo(g *Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readFrom(r io.Reader) (*Graph, error) {
	var g Graph
	dec := json.NewDecoder(r)
	if err := dec.Decode(&g); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode document")
	}
	if dec.More() {
		return nil, errors.New(errors.ErrCodeParse, "decode document: trailing data after JSON value")
	}
	return &g, nil
}

// normalized returns g with nil collections replaced by empty ones so the
// encoded document always carries "nodes" and "edges" arrays.
func normalized(g *Graph) *Graph {
	if g.Nodes != nil && g.Edges != nil {
		return g
	}
	out := *g
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	return &out
}

// =============================================================================
// Lookups
// =============================================================================

// Index provides id-keyed lookups over a Graph.
// It is built once per parse; the Graph must not be mutated afterwards.
type Index struct {
	nodes   map[string]*Node
	edges   map[string]*Edge
	groups  map[string]*Group
	members map[string][]string
}

// NewIndex builds lookup tables for g. When ids are duplicated the first
// occurrence wins.
func NewIndex(g *Graph) *Index {
	idx := &Index{
		nodes:   make(map[string]*Node, len(g.Nodes)),
		edges:   make(map[string]*Edge, len(g.Edges)),
		groups:  make(map[string]*Group, len(g.Groups)),
		members: make(map[string][]string),
	}
	for i := range g.Groups {
		if _, dup := idx.groups[g.Groups[i].ID]; !dup {
			idx.groups[g.Groups[i].ID] = &g.Groups[i]
		}
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, dup := idx.nodes[n.ID]; dup {
			continue
		}
		idx.nodes[n.ID] = n
		if n.GroupID != "" {
			if _, ok := idx.groups[n.GroupID]; ok {
				idx.members[n.GroupID] = append(idx.members[n.GroupID], n.ID)
			}
		}
	}
	for i := range g.Edges {
		if _, dup := idx.edges[g.Edges[i].ID]; !dup {
			idx.edges[g.Edges[i].ID] = &g.Edges[i]
		}
	}
	return idx
}

// Node returns the node with the given id.
func (x *Index) Node(id string) (*Node, bool) {
	n, ok := x.nodes[id]
	return n, ok
}

// Edge returns the edge with the given id.
func (x *Index) Edge(id string) (*Edge, bool) {
	e, ok := x.edges[id]
	return e, ok
}

// Group returns the group with the given id.
func (x *Index) Group(id string) (*Group, bool) {
	g, ok := x.groups[id]
	return g, ok
}

// Members returns the ids of nodes belonging to an existing group, in
// document order. Nodes referencing unknown groups are not members of anything.
func (x *Index) Members(groupID string) []string {
	return x.members[groupID]
}

// Connected reports whether both endpoints of e exist.
func (x *Index) Connected(e Edge) bool {
	_, src := x.nodes[e.Source]
	_, dst := x.nodes[e.Target]
	return src && dst
}

// =============================================================================
// Copying
// =============================================================================

// Clone returns a deep copy of g. Override pointers are duplicated so edits
// on the copy never reach the original.
func (g *Graph) Clone() *Graph {
	out := *g
	out.Nodes = make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.Position != nil {
			p := *n.Position
			n.Position = &p
		}
		out.Nodes[i] = n
	}
	out.Edges = append([]Edge(nil), g.Edges...)
	if g.Groups != nil {
		out.Groups = make([]Group, len(g.Groups))
		for i, grp := range g.Groups {
			if grp.Position != nil {
				p := *grp.Position
				grp.Position = &p
			}
			if grp.Size != nil {
				s := *grp.Size
				grp.Size = &s
			}
			out.Groups[i] = grp
		}
	}
	if g.Layout != nil {
		l := *g.Layout
		out.Layout = &l
	}
	if g.Legend != nil {
		l := *g.Legend
		l.Items = append([]LegendItem(nil), g.Legend.Items...)
		out.Legend = &l
	}
	return &out
}
