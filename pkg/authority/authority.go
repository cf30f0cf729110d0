// Package authority implements the document side of the position sync
// protocol.
//
// The [Authority] owns a [document.Store] and is its only programmatic
// writer. Sessions connect through a [Conn]; their intents become single
// atomic edits, each one undoable step. Edits are serialized: one is applied
// at a time, always on top of the content the store holds at that moment.
//
// Every own edit is bracketed by a [Guard]. Store notifications caused by it
// are echoes and are dropped; the authority pushes the new content itself
// once the edit is in. Changes made by anyone else are pushed as they come.
package authority

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/codeflow/pkg/document"
	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/observability"
	"github.com/matzehuels/codeflow/pkg/protocol"
)

// Options configures an Authority.
type Options struct {
	// GuardWindow extends echo suppression past the end of an own edit.
	// Zero selects DefaultGuardWindow.
	GuardWindow time.Duration
	// Navigator opens source locations. Without one, navigate requests are
	// answered with a notice.
	Navigator Navigator
	// Autosave persists the store after every successful edit.
	Autosave bool
	Logger   *log.Logger
}

// Authority applies protocol requests to a document.
type Authority struct {
	store    document.Store
	nav      Navigator
	guard    *Guard
	autosave bool
	logger   *log.Logger
	unsub    func()

	editMu sync.Mutex

	mu          sync.Mutex
	conns       map[*Conn]struct{}
	snapshot    string
	hasSnapshot bool
}

// New returns an authority editing store. The store's saved content, if
// any, is the first revert target.
func New(store document.Store, opts Options) *Authority {
	if opts.GuardWindow == 0 {
		opts.GuardWindow = DefaultGuardWindow
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	a := &Authority{
		store:    store,
		nav:      opts.Navigator,
		guard:    NewGuard(opts.GuardWindow),
		autosave: opts.Autosave,
		logger:   opts.Logger,
		conns:    make(map[*Conn]struct{}),
	}
	a.snapshot, a.hasSnapshot = store.Saved()
	a.unsub = store.Subscribe(a.onChange)
	return a
}

// Close stops listening to the store and drops all connections.
func (a *Authority) Close() {
	a.unsub()
	a.mu.Lock()
	a.conns = make(map[*Conn]struct{})
	a.mu.Unlock()
}

// Conn is one session's link to the authority. Messages posted to it are
// requests; replies and pushes go to the peer port given to Connect.
type Conn struct {
	a    *Authority
	peer protocol.Port
}

// Connect attaches a session reachable through peer.
func (a *Authority) Connect(peer protocol.Port) *Conn {
	c := &Conn{a: a, peer: peer}
	a.mu.Lock()
	a.conns[c] = struct{}{}
	a.mu.Unlock()
	return c
}

// Post implements protocol.Port.
func (c *Conn) Post(ctx context.Context, m protocol.Message) error {
	return c.a.Handle(ctx, c, m)
}

// Close detaches the connection.
func (c *Conn) Close() {
	c.a.mu.Lock()
	delete(c.a.conns, c)
	c.a.mu.Unlock()
}

// Snapshot returns the last saved content seen by the authority.
func (a *Authority) Snapshot() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot, a.hasSnapshot
}

// Handle processes one request from c. Failed edits and navigations are
// answered with a notice and do not return an error; only messages the
// authority does not understand do.
func (a *Authority) Handle(ctx context.Context, c *Conn, m protocol.Message) error {
	switch m.Type {
	case protocol.TypeReady:
		a.send(ctx, c, protocol.Update(a.store.Content()))
		if snap, ok := a.Snapshot(); ok {
			a.send(ctx, c, protocol.Saved(snap))
		}
	case protocol.TypeUpdatePositions:
		changes, err := m.Positions()
		if err != nil {
			a.fail(ctx, c, "updatePositions", errors.Wrap(errors.ErrCodeEditApply, err, "position update rejected"))
			return nil
		}
		a.applyPositions(ctx, c, changes)
	case protocol.TypeResetLayout:
		a.resetLayout(ctx, c)
	case protocol.TypeRevertToSaved:
		a.revertToSaved(ctx, c)
	case protocol.TypeUndo:
		a.history(ctx, c, "undo", a.store.Undo, "Nothing to undo")
	case protocol.TypeRedo:
		a.history(ctx, c, "redo", a.store.Redo, "Nothing to redo")
	case protocol.TypeNavigate:
		a.navigate(ctx, c, m)
	case protocol.TypeSave:
		if err := a.store.Save(ctx); err != nil {
			a.fail(ctx, c, "save", errors.Wrap(errors.ErrCodeEditApply, err, "save failed"))
		}
	default:
		return errors.New(errors.ErrCodeUnsupported, "authority cannot handle %s messages", m.Type)
	}
	return nil
}

// applyPositions writes a batch of overrides as one edit.
func (a *Authority) applyPositions(ctx context.Context, c *Conn, changes graph.PositionChanges) {
	if changes.Empty() {
		return
	}
	a.edit(ctx, c, "updatePositions", func(_ *graph.Graph, p *graph.Patch) (bool, error) {
		return true, p.ApplyPositions(changes)
	})
}

func (a *Authority) resetLayout(ctx context.Context, c *Conn) {
	a.edit(ctx, c, "resetLayout", func(g *graph.Graph, p *graph.Patch) (bool, error) {
		if !g.HasOverrides() {
			a.notice(ctx, c, protocol.LevelInfo, "Layout has no manual positions")
			return false, nil
		}
		p.ClearOverrides()
		return true, nil
	})
}

// edit parses the current content and patches its override fields as one
// store replace. Fields the graph model does not know are kept. fn returns
// false to skip the write.
func (a *Authority) edit(ctx context.Context, c *Conn, op string, fn func(*graph.Graph, *graph.Patch) (bool, error)) {
	a.write(ctx, c, op, func(content string) (string, bool, error) {
		g, err := graph.ParseString(content)
		if err != nil {
			return "", false, err
		}
		p, err := graph.NewPatch([]byte(content))
		if err != nil {
			return "", false, err
		}
		if ok, err := fn(g, p); !ok || err != nil {
			return "", false, err
		}
		data, err := p.Bytes()
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	})
}

func (a *Authority) revertToSaved(ctx context.Context, c *Conn) {
	snap, ok := a.Snapshot()
	if !ok {
		a.notice(ctx, c, protocol.LevelWarning, "No saved version to revert to")
		return
	}
	a.write(ctx, c, "revertToSaved", func(content string) (string, bool, error) {
		if content == snap {
			a.notice(ctx, c, protocol.LevelInfo, "Document already matches the saved version")
			return "", false, nil
		}
		return snap, true, nil
	})
}

// write runs one serialized edit under the guard.
func (a *Authority) write(ctx context.Context, c *Conn, op string, fn func(content string) (string, bool, error)) {
	a.editMu.Lock()
	defer a.editMu.Unlock()
	release := a.guard.Acquire()
	defer release()

	next, ok, err := fn(a.store.Content())
	if err == nil && ok {
		err = a.store.Replace(ctx, next)
	}
	if !ok && err == nil {
		return
	}
	observability.Sync().OnEdit(ctx, op, err)
	if err != nil {
		a.fail(ctx, c, op, errors.Wrap(errors.ErrCodeEditApply, err, "%s failed", op))
		return
	}
	a.logger.Debug("edit applied", "op", op, "bytes", len(next))
	a.committed(ctx, c)
}

// committed pushes the new content after an own edit.
func (a *Authority) committed(ctx context.Context, c *Conn) {
	a.broadcast(ctx, protocol.Update(a.store.Content()))
	if !a.autosave {
		return
	}
	if err := a.store.Save(ctx); err != nil {
		a.fail(ctx, c, "save", errors.Wrap(errors.ErrCodeEditApply, err, "autosave failed"))
	}
}

func (a *Authority) history(ctx context.Context, c *Conn, op string, step func(context.Context) (bool, error), empty string) {
	a.editMu.Lock()
	defer a.editMu.Unlock()
	release := a.guard.Acquire()
	defer release()

	ok, err := step(ctx)
	if err != nil {
		observability.Sync().OnEdit(ctx, op, err)
		a.fail(ctx, c, op, errors.Wrap(errors.ErrCodeEditApply, err, "%s failed", op))
		return
	}
	if !ok {
		a.notice(ctx, c, protocol.LevelInfo, empty)
		return
	}
	observability.Sync().OnEdit(ctx, op, nil)
	a.committed(ctx, c)
}

func (a *Authority) navigate(ctx context.Context, c *Conn, m protocol.Message) {
	loc, err := m.Location()
	if err != nil {
		a.fail(ctx, c, "navigate", errors.Wrap(errors.ErrCodeNavigation, err, "invalid navigation request"))
		return
	}
	if a.nav == nil {
		a.fail(ctx, c, "navigate", errors.New(errors.ErrCodeNavigation, "navigation is not available"))
		return
	}
	if err := a.nav.Open(ctx, loc); err != nil {
		if !errors.Is(err, errors.ErrCodeNavigation) {
			err = errors.Wrap(errors.ErrCodeNavigation, err, "cannot open %s", loc.File)
		}
		a.fail(ctx, c, "navigate", err)
	}
}

// onChange receives store notifications.
func (a *Authority) onChange(ch document.Change) {
	ctx := context.Background()
	if ch.Kind == document.ChangeSaved {
		a.mu.Lock()
		a.snapshot, a.hasSnapshot = ch.Content, true
		a.mu.Unlock()
		a.broadcast(ctx, protocol.Saved(ch.Content))
		return
	}
	if a.guard.Active() {
		observability.Sync().OnSuppressed(ctx)
		a.logger.Debug("echo suppressed", "kind", ch.Kind)
		return
	}
	a.logger.Debug("document changed", "kind", ch.Kind, "bytes", len(ch.Content))
	a.broadcast(ctx, protocol.Update(ch.Content))
}

func (a *Authority) fail(ctx context.Context, c *Conn, op string, err error) {
	a.logger.Warn("request failed", "op", op, "err", err)
	a.notice(ctx, c, protocol.LevelError, describe(err))
}

// describe renders err and its immediate cause without error codes.
func describe(err error) string {
	msg := errors.UserMessage(err)
	if cause := stderrors.Unwrap(err); cause != nil {
		msg += ": " + errors.UserMessage(cause)
	}
	return msg
}

func (a *Authority) notice(ctx context.Context, c *Conn, level, text string) {
	a.send(ctx, c, protocol.NewNotice(level, text))
}

func (a *Authority) send(ctx context.Context, c *Conn, m protocol.Message) {
	if err := c.peer.Post(ctx, m); err != nil {
		a.logger.Debug("delivery failed", "type", m.Type, "err", err)
	}
}

func (a *Authority) broadcast(ctx context.Context, m protocol.Message) {
	a.mu.Lock()
	conns := make([]*Conn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()
	for _, c := range conns {
		a.send(ctx, c, m)
	}
}
