package graph

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/codeflow/pkg/errors"
)

// docValidate caches struct metadata across Validate calls.
var docValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural rules of the document: required fields, enum
// values and id uniqueness within each collection.
//
// Edges whose endpoints do not exist are not reported here. They are skipped
// at render time so that a partially generated document still displays.
func (g *Graph) Validate() error {
	if err := docValidate.Struct(g); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid document: %s", describe(verrs))
		}
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid document")
	}

	if dup := firstDuplicate(len(g.Nodes), func(i int) string { return g.Nodes[i].ID }); dup != "" {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate node id %q", dup)
	}
	if dup := firstDuplicate(len(g.Edges), func(i int) string { return g.Edges[i].ID }); dup != "" {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate edge id %q", dup)
	}
	if dup := firstDuplicate(len(g.Groups), func(i int) string { return g.Groups[i].ID }); dup != "" {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate group id %q", dup)
	}
	return nil
}

// DanglingEdges returns the ids of edges whose source or target is missing.
func (g *Graph) DanglingEdges() []string {
	idx := NewIndex(g)
	var out []string
	for _, e := range g.Edges {
		if !idx.Connected(e) {
			out = append(out, e.ID)
		}
	}
	return out
}

func firstDuplicate(n int, id func(int) string) string {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		k := id(i)
		if _, ok := seen[k]; ok {
			return k
		}
		seen[k] = struct{}{}
	}
	return ""
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Graph.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
