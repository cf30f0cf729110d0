package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/codeflow/internal/config"
	"github.com/matzehuels/codeflow/pkg/buildinfo"
	"github.com/matzehuels/codeflow/pkg/cache"
	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/layout/dot"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "codeflow"

	// pointsPerInch converts config spacing to Graphviz inches.
	pointsPerInch = 72.0
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "codeflow",
		Short: "Codeflow renders code graphs and keeps them in sync with their document",
		Long: `Codeflow lays out code graph documents (functions, classes, modules and
the calls between them), renders them to SVG/PNG/PDF, and serves them to a
browser where nodes can be dragged and the positions are written back to
the document.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./"+config.FileName+" if present)")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.resetCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config & Compiler
// =============================================================================

// loadConfig reads --config, or codeflow.toml in the working directory, or
// falls back to the defaults.
func (c *CLI) loadConfig() (config.Config, error) {
	if c.configPath != "" {
		return config.Load(c.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Default(), nil
	}
	if path, ok := config.Find(wd); ok {
		c.Logger.Debug("using config", "path", path)
		return config.Load(path)
	}
	return config.Default(), nil
}

// newCompiler builds a Graphviz-backed compiler for cfg. The returned close
// function releases the layout cache.
func (c *CLI) newCompiler(ctx context.Context, cfg config.Config, noCache bool) (*layout.Compiler, func()) {
	solver := dot.New()
	if cfg.Layout.NodeSep > 0 {
		solver.NodeSep = cfg.Layout.NodeSep / pointsPerInch
	}
	if cfg.Layout.RankSep > 0 {
		solver.RankSep = cfg.Layout.RankSep / pointsPerInch
	}

	backend := cfg.Cache
	if noCache {
		backend.Backend = config.BackendNone
	}
	store := c.newCache(ctx, backend)

	compiler := layout.NewCompiler(
		layout.NewCachingSolver(solver, store, nil, c.Logger),
		layout.WithMode(cfg.Layout.Mode),
		layout.WithDirection(cfg.Layout.Direction),
		layout.WithTimeout(cfg.Layout.SolverTimeout),
		layout.WithLogger(c.Logger),
	)
	return compiler, func() { _ = store.Close() }
}

// newCache opens the configured backend. An unusable backend degrades to no
// caching rather than failing the command.
func (c *CLI) newCache(ctx context.Context, cfg config.Cache) cache.Cache {
	switch cfg.Backend {
	case config.BackendNone:
		return cache.Disabled()
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			c.Logger.Warn("redis cache unavailable, caching disabled", "addr", cfg.RedisAddr, "err", err)
			return cache.Disabled()
		}
		return rc
	default:
		dir, err := cacheDir(cfg.Dir)
		if err != nil {
			return cache.Disabled()
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			c.Logger.Warn("file cache unavailable, caching disabled", "dir", dir, "err", err)
			return cache.Disabled()
		}
		return fc
	}
}

// =============================================================================
// Paths & Documents
// =============================================================================

// cacheDir returns dir when set, otherwise the XDG cache directory
// (~/.cache/codeflow/).
func cacheDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// readDocument loads and validates a graph document.
func readDocument(path string) (*graph.Graph, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "document not found: %s", path)
	}
	g, err := graph.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// outputPath derives "<input-base><suffix>" when output is empty.
func outputPath(input, output, suffix string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}
