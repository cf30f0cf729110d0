package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/codeflow/internal/config"
	"github.com/matzehuels/codeflow/internal/server"
	"github.com/matzehuels/codeflow/pkg/authority"
	"github.com/matzehuels/codeflow/pkg/buildinfo"
	"github.com/matzehuels/codeflow/pkg/document"
	"github.com/matzehuels/codeflow/pkg/observability"
	"github.com/matzehuels/codeflow/pkg/session"
)

// serveOpts holds flag overrides for the serve command.
type serveOpts struct {
	addr      string
	workspace string
	editor    string
	autosave  bool
	noCache   bool
}

// serveCommand creates the serve command: one document authority shared by
// every connected browser session.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [document.json]",
		Short: "Serve a document to browsers and write node positions back",
		Long: `Serve a graph document over HTTP and WebSocket.

Each browser connection gets its own render session. Dragging or resizing
in the browser is debounced and written back to the document as position
overrides; changes made to the file by other programs are pushed to all
sessions. Undo, redo, save, reset layout and revert to saved operate on the
shared document.

Endpoints:
  GET /ws        WebSocket session
  GET /healthz   health and session count
  GET /metrics   Prometheus metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = opts.addr
			}
			if flags.Changed("workspace") {
				cfg.Server.Workspace = opts.workspace
			}
			if flags.Changed("editor") {
				cfg.Server.Editor = opts.editor
			}
			if flags.Changed("autosave") {
				cfg.Sync.Autosave = opts.autosave
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runServe(cmd.Context(), args[0], cfg, opts.noCache)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config: 127.0.0.1:7420)")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "", "root that node source locations are resolved against")
	cmd.Flags().StringVar(&opts.editor, "editor", "", `editor command for navigation, e.g. "code -g {file}:{line}"`)
	cmd.Flags().BoolVar(&opts.autosave, "autosave", false, "save the document after every edit")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout cache")

	return cmd
}

// runServe runs the HTTP server and the file watcher until ctx is done.
func (c *CLI) runServe(ctx context.Context, path string, cfg config.Config, noCache bool) error {
	logger := loggerFromContext(ctx)
	logger.Debug("starting", "version", buildinfo.String())

	doc, err := document.OpenFile(path, document.WithFileLogger(logger))
	if err != nil {
		return err
	}
	nav, err := authority.NewWorkspace(cfg.Server.Workspace,
		authority.WithEditor(cfg.Server.Editor),
		authority.WithWorkspaceLogger(logger),
	)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPrometheus(reg)
	observability.SetLayoutHooks(metrics)
	observability.SetSyncHooks(metrics)
	observability.SetCacheHooks(metrics)
	defer observability.Reset()

	compiler, closeCache := c.newCompiler(ctx, cfg, noCache)
	defer closeCache()

	auth := authority.New(doc, authority.Options{
		GuardWindow: cfg.Sync.GuardWindow,
		Navigator:   nav,
		Autosave:    cfg.Sync.Autosave,
		Logger:      logger,
	})
	defer auth.Close()

	srv := server.New(server.Config{
		Addr:      cfg.Server.Addr,
		Authority: auth,
		Compiler:  compiler,
		Session: session.Options{
			Debounce:   cfg.Sync.Debounce,
			ReadyDelay: cfg.Sync.ReadyDelay,
		},
		Gatherer: reg,
		Logger:   logger,
	})

	printSuccess("Serving %s", doc.Path())
	printKeyValue("WebSocket", StyleLink.Render(fmt.Sprintf("ws://%s/ws", cfg.Server.Addr)))
	printKeyValue("Metrics", StyleLink.Render(fmt.Sprintf("http://%s/metrics", cfg.Server.Addr)))
	printKeyValue("Workspace", nav.Root())
	if cfg.Sync.Autosave {
		printKeyValue("Autosave", "on")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return doc.Watch(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
