package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/codeflow/pkg/document"
	"github.com/matzehuels/codeflow/pkg/graph"
)

// resetCommand creates the reset command, which drops manual positions.
func (c *CLI) resetCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reset [document.json]",
		Short: "Remove stored node positions and group sizes from a document",
		Long: `Remove stored node positions and group sizes from a document.

The document is rewritten in place so that the next layout is computed from
scratch. Everything other than position overrides is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReset(cmd.Context(), args[0], dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report overrides without writing")

	return cmd
}

func (c *CLI) runReset(ctx context.Context, path string, dryRun bool) error {
	doc, err := document.OpenFile(path, document.WithFileLogger(loggerFromContext(ctx)))
	if err != nil {
		return err
	}
	g, err := graph.ParseString(doc.Content())
	if err != nil {
		return err
	}

	n := countOverrides(g)
	if n == 0 {
		printInfo("No stored positions in %s", path)
		return nil
	}
	if dryRun {
		printInfo("Would remove %d override(s) from %s", n, path)
		return nil
	}

	p, err := graph.NewPatch([]byte(doc.Content()))
	if err != nil {
		return err
	}
	p.ClearOverrides()
	data, err := p.Bytes()
	if err != nil {
		return err
	}
	if err := doc.Replace(ctx, string(data)); err != nil {
		return err
	}
	if err := doc.Save(ctx); err != nil {
		return err
	}

	printSuccess("Removed %d override(s)", n)
	printFile(doc.Path())
	return nil
}

// countOverrides counts stored node positions, group positions and group
// sizes.
func countOverrides(g *graph.Graph) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Position != nil {
			n++
		}
	}
	for _, grp := range g.Groups {
		if grp.Position != nil {
			n++
		}
		if grp.Size != nil {
			n++
		}
	}
	return n
}
