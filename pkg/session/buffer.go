package session

import (
	"sort"

	"github.com/matzehuels/codeflow/pkg/graph"
)

// buffer holds the latest unsent value per entity.
type buffer struct {
	nodes  map[string]graph.Point
	groups map[string]graph.Point
	sizes  map[string]graph.Size
}

func newBuffer() *buffer {
	return &buffer{
		nodes:  make(map[string]graph.Point),
		groups: make(map[string]graph.Point),
		sizes:  make(map[string]graph.Size),
	}
}

func (b *buffer) len() int {
	return len(b.nodes) + len(b.groups) + len(b.sizes)
}

func (b *buffer) has(id string) bool {
	_, n := b.nodes[id]
	_, g := b.groups[id]
	return n || g
}

// ids returns every entity with a buffered value.
func (b *buffer) ids() []string {
	var out []string
	for id := range b.nodes {
		out = append(out, id)
	}
	for id := range b.groups {
		out = append(out, id)
	}
	return out
}

// changes returns the buffer as a batch ordered by id.
func (b *buffer) changes() graph.PositionChanges {
	var c graph.PositionChanges
	for _, id := range sortedKeys(b.nodes) {
		c.NodePositions = append(c.NodePositions, graph.EntityPosition{ID: id, Position: b.nodes[id]})
	}
	for _, id := range sortedKeys(b.groups) {
		c.GroupPositions = append(c.GroupPositions, graph.EntityPosition{ID: id, Position: b.groups[id]})
	}
	for _, id := range sortedKeys(b.sizes) {
		c.GroupSizes = append(c.GroupSizes, graph.EntitySize{ID: id, Size: b.sizes[id]})
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
