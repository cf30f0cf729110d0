package authority

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
)

// Navigator opens a source location for the user.
type Navigator interface {
	Open(ctx context.Context, loc graph.Location) error
}

// Workspace resolves locations against a root directory and optionally
// launches an editor on them.
type Workspace struct {
	root   string
	editor []string
	logger *log.Logger
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithEditor sets the command run for each navigation. The placeholders
// {file} and {line} are replaced in every argument, for example
// "code -g {file}:{line}".
func WithEditor(command string) WorkspaceOption {
	return func(w *Workspace) { w.editor = strings.Fields(command) }
}

// WithWorkspaceLogger sets the logger.
func WithWorkspaceLogger(l *log.Logger) WorkspaceOption {
	return func(w *Workspace) { w.logger = l }
}

// NewWorkspace returns a navigator rooted at root, which must be a
// directory.
func NewWorkspace(root string, opts ...WorkspaceOption) (*Workspace, error) {
	if root == "" {
		return nil, errors.New(errors.ErrCodeNavigation, "no workspace root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNavigation, err, "resolve workspace root")
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeNavigation, "workspace root %s is not a directory", root)
	}
	w := &Workspace{root: abs, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Resolve returns the absolute path of loc's file after checking that it is
// a safe workspace-relative path to an existing file.
func (w *Workspace) Resolve(loc graph.Location) (string, error) {
	if err := errors.ValidatePath(loc.File); err != nil {
		return "", errors.Wrap(errors.ErrCodeNavigation, err, "cannot open %q", loc.File)
	}
	if err := errors.ValidateLineRange(loc.StartLine, loc.EndLine); err != nil {
		return "", errors.Wrap(errors.ErrCodeNavigation, err, "cannot open %s", loc.File)
	}
	path := filepath.Join(w.root, filepath.FromSlash(loc.File))
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNavigation, err, "file not found: %s", loc.File)
	}
	if info.IsDir() {
		return "", errors.New(errors.ErrCodeNavigation, "%s is a directory", loc.File)
	}
	return path, nil
}

// Open implements Navigator.
func (w *Workspace) Open(ctx context.Context, loc graph.Location) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeNavigation, err, "navigation cancelled")
	}
	path, err := w.Resolve(loc)
	if err != nil {
		return err
	}
	w.logger.Info("open", "file", loc.File, "line", loc.StartLine)
	if len(w.editor) == 0 {
		return nil
	}

	r := strings.NewReplacer("{file}", path, "{line}", strconv.Itoa(loc.StartLine))
	args := make([]string, len(w.editor))
	for i, a := range w.editor {
		args[i] = r.Replace(a)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		w.logger.Debug("editor failed", "cmd", args[0], "output", string(out))
		return errors.Wrap(errors.ErrCodeNavigation, err, "open %s", loc.File)
	}
	return nil
}
