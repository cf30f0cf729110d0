package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/layout"
)

// layoutOpts holds the command-line flags for the layout command.
type layoutOpts struct {
	output    string
	mode      string
	direction string
	noCache   bool
}

// layoutCommand creates the layout command for computing node positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var opts layoutOpts

	cmd := &cobra.Command{
		Use:   "layout [document.json]",
		Short: "Compute node and group positions for a document",
		Long: `Compute node and group positions for a document.

The result is written as JSON (default: <input>.layout.json) with the
top-left corner and size of every node box and the bounds of every group.
Manual positions stored in the document are kept as they are.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>.layout.json, - for stdout)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "layout mode: layered, force, stress (default from config)")
	cmd.Flags().StringVar(&opts.direction, "direction", "", "flow direction: TB, BT, LR, RL (default from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

// runLayout loads the document, compiles its layout and writes the result.
func (c *CLI) runLayout(ctx context.Context, input string, opts layoutOpts) error {
	g, res, err := c.compile(ctx, input, opts.mode, opts.direction, opts.noCache)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	data = append(data, '\n')

	if opts.output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	out := outputPath(input, opts.output, ".layout.json")
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("write output %s: %w", out, err)
	}

	printSuccess("Layout complete")
	printFile(out)
	printStats(len(g.Nodes), len(g.Edges), res)
	return nil
}

// compile runs the layout compiler on one document, with a spinner while
// the solver works.
func (c *CLI) compile(ctx context.Context, input, mode, direction string, noCache bool) (*graph.Graph, *layout.Result, error) {
	logger := loggerFromContext(ctx)

	g, err := readDocument(input)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if mode != "" {
		cfg.Layout.Mode = mode
	}
	if direction != "" {
		cfg.Layout.Direction = direction
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	compiler, closeCache := c.newCompiler(ctx, cfg, noCache)
	defer closeCache()

	m, d := compiler.Settings(g)
	spinner := newSpinner(ctx, os.Stderr, fmt.Sprintf("Computing %s layout...", m))
	spinner.Start()

	prog := newProgress(logger)
	res, err := compiler.Compile(ctx, g)
	if err != nil {
		spinner.StopWithError("Layout cancelled")
		return nil, nil, err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Compiled %s/%s layout of %s", m, d, input))

	if res.Fallback {
		printWarning("Solver unavailable, used grid placement")
	}
	return g, res, nil
}
