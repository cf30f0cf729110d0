package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
)

// validateCommand creates the validate command for checking documents.
func (c *CLI) validateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [document.json...]",
		Short: "Check documents against the schema",
		Long: `Check documents against the schema and report their contents.

Edges whose source or target is missing are reported as warnings; they are
skipped when rendering. With --strict they fail validation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if !c.validateOne(path, strict) {
					failed++
				}
			}
			if failed > 0 {
				return errors.New(errors.ErrCodeInvalidInput, "%d of %d document(s) invalid", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat dangling edges as errors")

	return cmd
}

func (c *CLI) validateOne(path string, strict bool) bool {
	g, err := readDocument(path)
	if err != nil {
		printError("%s: %s", path, errors.UserMessage(err))
		c.Logger.Debug("validation failed", "path", path, "err", err)
		return false
	}

	dangling := g.DanglingEdges()
	if len(dangling) > 0 && strict {
		printError("%s: dangling edges: %s", path, strings.Join(dangling, ", "))
		return false
	}

	printSuccess("%s", path)
	printKeyValue("Title", g.Metadata.Title)
	nodes := fmt.Sprint(len(g.Nodes))
	if len(g.Nodes) > 0 {
		nodes += " (" + documentKinds(g) + ")"
	}
	printKeyValue("Nodes", nodes)
	printKeyValue("Edges", fmt.Sprint(len(g.Edges)))
	printKeyValue("Groups", fmt.Sprint(len(g.Groups)))
	if n := countOverrides(g); n > 0 {
		printKeyValue("Overrides", fmt.Sprint(n))
	}
	if g.Layout != nil && g.Layout.Type != "" {
		printKeyValue("Layout", g.Layout.Type)
	}
	if len(dangling) > 0 {
		printWarning("Dangling edges: %s", strings.Join(dangling, ", "))
	}
	return true
}

// documentKinds summarizes node kinds, e.g. "3 function · 1 class".
func documentKinds(g *graph.Graph) string {
	counts := make(map[string]int)
	var order []string
	for _, n := range g.Nodes {
		if counts[n.Kind] == 0 {
			order = append(order, n.Kind)
		}
		counts[n.Kind]++
	}
	parts := make([]string, len(order))
	for i, k := range order {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	return strings.Join(parts, " · ")
}
