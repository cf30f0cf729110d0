package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/codeflow/pkg/errors"
)

// object is one JSON object with its members kept as raw text.
type object map[string]json.RawMessage

// Patch edits the override fields of a document in place of a full
// re-encode. Members the Graph type does not model (extra metadata, node
// tags, sections added by other tools) are written back untouched. Object
// keys come out sorted.
type Patch struct {
	root   object
	nodes  []object
	groups []object
}

// NewPatch decodes content for patching. Malformed JSON yields an error with
// code [errors.ErrCodeParse].
func NewPatch(content []byte) (*Patch, error) {
	var p Patch
	dec := json.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&p.root); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode document")
	}
	if dec.More() {
		return nil, errors.New(errors.ErrCodeParse, "decode document: trailing data after JSON value")
	}
	if p.root == nil {
		return nil, errors.New(errors.ErrCodeParse, "decode document: not a JSON object")
	}
	if err := p.entities("nodes", &p.nodes); err != nil {
		return nil, err
	}
	if err := p.entities("groups", &p.groups); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Patch) entities(key string, dst *[]object) error {
	raw, ok := p.root[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "decode %s", key)
	}
	return nil
}

// ApplyPositions sets the batch on the document with the same rules as the
// package-level [ApplyPositions].
func (p *Patch) ApplyPositions(c PositionChanges) error {
	for _, e := range c.NodePositions {
		if err := set(p.nodes, e.ID, "position", RoundPoint(e.Position)); err != nil {
			return err
		}
	}
	for _, e := range c.GroupPositions {
		if err := set(p.groups, e.ID, "position", RoundPoint(e.Position)); err != nil {
			return err
		}
	}
	for _, e := range c.GroupSizes {
		if err := set(p.groups, e.ID, "size", RoundSize(e.Size)); err != nil {
			return err
		}
	}
	return nil
}

// ClearOverrides removes every node position, group position and group size.
func (p *Patch) ClearOverrides() {
	for _, n := range p.nodes {
		delete(n, "position")
	}
	for _, g := range p.groups {
		delete(g, "position")
		delete(g, "size")
	}
}

// Bytes encodes the patched document the way [Marshal] does: two-space
// indent, no HTML escaping, trailing newline.
func (p *Patch) Bytes() ([]byte, error) {
	if p.nodes != nil {
		if err := p.root.put("nodes", p.nodes); err != nil {
			return nil, err
		}
	}
	if p.groups != nil {
		if err := p.root.put("groups", p.groups); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p.root); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// set writes v under key on every entity with the given id.
func set(list []object, id, key string, v any) error {
	for _, o := range list {
		if o != nil && o.id() == id {
			if err := o.put(key, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o object) id() string {
	var id string
	if raw, ok := o["id"]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	return id
}

func (o object) put(key string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	o[key] = json.RawMessage(bytes.TrimSpace(buf.Bytes()))
	return nil
}
