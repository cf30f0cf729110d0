// Package session implements the render side of the position sync protocol.
//
// A [Session] receives document text from the authority, lays it out
// asynchronously, and presents scenes. Drag and resize intents are buffered
// by entity id and sent back as one updatePositions batch after a trailing
// debounce. Until the authority confirms a batch with a fresh update, the
// session keeps showing the predicted positions.
//
// Layout requests are last-request-wins: a result is dropped when a newer
// update arrived while it was computing. Position intents are ignored until
// the first layout has been presented for ReadyDelay.
package session

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/highlight"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/observability"
	"github.com/matzehuels/codeflow/pkg/protocol"
	"github.com/matzehuels/codeflow/pkg/scene"
)

// DefaultReadyDelay is how long the first layout must be on screen before
// position intents are accepted.
const DefaultReadyDelay = 150 * time.Millisecond

// Presenter displays what the session produces.
//
// Present is called with the session locked and must not call back into
// the session.
type Presenter interface {
	Present(s *scene.Scene)
	Notify(n protocol.Notice)
	Saved(content string)
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	ID         string
	Debounce   time.Duration
	ReadyDelay time.Duration
	Logger     *log.Logger
}

type prediction struct {
	group bool
	pos   graph.Point
	size  *graph.Size
	batch uint64 // batch that carried the value, 0 while unsent
}

// Session is one open view of a document.
type Session struct {
	id         string
	port       protocol.Port
	presenter  Presenter
	compiler   *layout.Compiler
	debouncer  *Debouncer
	readyDelay time.Duration
	logger     *log.Logger
	selector   highlight.Selector

	ctx  context.Context
	stop context.CancelFunc

	mu          sync.Mutex
	graph       *graph.Graph
	index       *graph.Index
	result      *layout.Result
	seq         uint64
	cancel      context.CancelFunc
	ready       bool
	readyTimer  *time.Timer
	pending     *buffer
	predictions map[string]*prediction
	batches     uint64 // batches flushed
	answered    uint64 // highest batch whose post has returned
	dragging    string
	saved       string
	hasSaved    bool
	closed      bool
}

// New creates a session that talks to the authority through port.
func New(port protocol.Port, presenter Presenter, compiler *layout.Compiler, opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.ReadyDelay <= 0 {
		opts.ReadyDelay = DefaultReadyDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Session{
		id:          opts.ID,
		port:        port,
		presenter:   presenter,
		compiler:    compiler,
		debouncer:   NewDebouncer(opts.Debounce),
		readyDelay:  opts.ReadyDelay,
		logger:      opts.Logger.With("session", opts.ID),
		ctx:         ctx,
		stop:        stop,
		pending:     newBuffer(),
		predictions: make(map[string]*prediction),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Start announces the session; the authority answers with an update.
func (s *Session) Start(ctx context.Context) error {
	return s.port.Post(ctx, protocol.Signal(protocol.TypeReady))
}

// HandleMessage processes a message from the authority.
func (s *Session) HandleMessage(_ context.Context, m protocol.Message) error {
	switch m.Type {
	case protocol.TypeUpdate:
		s.update(m.Content)
	case protocol.TypeSaved:
		s.mu.Lock()
		s.saved, s.hasSaved = m.Content, true
		s.mu.Unlock()
		s.presenter.Saved(m.Content)
	case protocol.TypeNotice:
		n, err := m.Notice()
		if err != nil {
			return err
		}
		s.presenter.Notify(n)
	default:
		return errors.New(errors.ErrCodeUnsupported, "session cannot handle %s messages", m.Type)
	}
	return nil
}

// Post implements protocol.Port so a session can be the authority's peer.
func (s *Session) Post(ctx context.Context, m protocol.Message) error {
	return s.HandleMessage(ctx, m)
}

func (s *Session) update(content string) {
	g, err := graph.ParseString(content)
	if err == nil {
		err = g.Validate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if err != nil {
		// No retry; the next update replaces the error scene.
		s.logger.Warn("document rejected", "err", err)
		s.graph, s.index, s.result = nil, nil, nil
		s.presenter.Present(scene.Error(errors.UserMessage(err)))
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	go s.compile(ctx, cancel, s.seq, s.answered, g)
}

func (s *Session) compile(ctx context.Context, cancel context.CancelFunc, seq, confirmed uint64, g *graph.Graph) {
	defer cancel()
	res, err := s.compiler.Compile(ctx, g)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.seq {
		s.logger.Debug("layout superseded", "seq", seq)
		return
	}
	s.cancel = nil
	if err != nil {
		s.logger.Debug("layout cancelled", "seq", seq, "err", err)
		return
	}
	if res.Fallback {
		s.logger.Warn("solver unavailable, showing grid placement")
	}

	s.graph, s.index, s.result = g, graph.NewIndex(g), res
	s.confirm(confirmed)
	s.render()

	if !s.ready && s.readyTimer == nil {
		s.readyTimer = time.AfterFunc(s.readyDelay, s.openGate)
	}
}

func (s *Session) openGate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ready = true
	}
}

// confirm drops sent predictions that the document now carries, or whose
// batch the authority had answered before the update arrived. The entity
// still under the pointer keeps its prediction.
func (s *Session) confirm(confirmed uint64) {
	for id, p := range s.predictions {
		n, isNode := s.index.Node(id)
		grp, isGroup := s.index.Group(id)
		switch {
		case !isNode && !isGroup:
			delete(s.predictions, id)
		case id == s.dragging || p.batch == 0:
		case p.batch <= confirmed:
			delete(s.predictions, id)
		case isGroup && p.group && p.stored(grp.Position, grp.Size):
			delete(s.predictions, id)
		case isNode && !p.group && p.stored(n.Position, nil):
			delete(s.predictions, id)
		}
	}
}

// stored reports whether the persisted override equals the prediction.
func (p *prediction) stored(pos *graph.Point, size *graph.Size) bool {
	if pos == nil || *pos != graph.RoundPoint(p.pos) {
		return false
	}
	if p.size == nil {
		return true
	}
	return size != nil && *size == graph.RoundSize(*p.size)
}

// render presents the current layout with predictions on top. s.mu must
// be held.
func (s *Session) render() {
	if s.result == nil {
		return
	}
	ids := make([]string, 0, len(s.predictions))
	for id := range s.predictions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := s.result
	for _, id := range ids {
		if p := s.predictions[id]; p.group {
			res = res.WithGroup(id, p.pos, p.size, s.followers(id))
		}
	}
	for _, id := range ids {
		if p := s.predictions[id]; !p.group {
			res = res.WithPosition(id, p.pos)
		}
	}
	s.presenter.Present(scene.Build(s.graph, res, s.selector.Current()))
}

// followers lists the members of a group that move along with it.
func (s *Session) followers(groupID string) []string {
	var out []string
	for _, id := range s.index.Members(groupID) {
		if n, ok := s.index.Node(id); ok && n.Position == nil {
			out = append(out, id)
		}
	}
	return out
}

// Ready reports whether position intents are accepted.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Saved returns the last saved content reported by the authority.
func (s *Session) Saved() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, s.hasSaved
}

// Selection returns the active selection.
func (s *Session) Selection() highlight.Selection {
	return s.selector.Current()
}

// accepts checks the gate and resolves id. s.mu must be held.
func (s *Session) accepts(id string) (group, ok bool) {
	if s.closed || !s.ready || s.index == nil {
		s.logger.Debug("intent dropped", "id", id, "ready", s.ready)
		return false, false
	}
	if _, ok := s.index.Group(id); ok {
		return true, true
	}
	if _, ok := s.index.Node(id); ok {
		return false, true
	}
	s.logger.Debug("intent for unknown entity", "id", id)
	return false, false
}

func (s *Session) predict(id string, group bool, pos graph.Point) *prediction {
	p := s.predictions[id]
	if p == nil {
		p = &prediction{}
		s.predictions[id] = p
	}
	p.group, p.pos, p.batch = group, pos, 0
	return p
}

// DragMove shows the entity at pos while it is being dragged. Nothing is
// sent to the authority.
func (s *Session) DragMove(id string, pos graph.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.accepts(id)
	if !ok {
		return false
	}
	if prev := s.dragging; prev != "" && prev != id && !s.pending.has(prev) {
		if p := s.predictions[prev]; p != nil && p.batch == 0 {
			delete(s.predictions, prev)
		}
	}
	s.dragging = id
	s.predict(id, group, pos)
	s.render()
	return true
}

// DragEnd records the final position of a dragged node or group.
func (s *Session) DragEnd(id string, pos graph.Point) bool {
	s.mu.Lock()
	group, ok := s.accepts(id)
	if !ok {
		s.mu.Unlock()
		return false
	}
	if s.dragging == id {
		s.dragging = ""
	}
	s.predict(id, group, pos)
	if group {
		s.pending.groups[id] = pos
	} else {
		s.pending.nodes[id] = pos
	}
	s.render()
	s.mu.Unlock()

	s.debouncer.Schedule(s.flush)
	return true
}

// ResizeEnd records the final box of a resized group.
func (s *Session) ResizeEnd(id string, pos graph.Point, size graph.Size) bool {
	s.mu.Lock()
	group, ok := s.accepts(id)
	if !ok || !group {
		s.mu.Unlock()
		return false
	}
	if s.dragging == id {
		s.dragging = ""
	}
	p := s.predict(id, true, pos)
	p.size = &size
	s.pending.groups[id] = pos
	s.pending.sizes[id] = size
	s.render()
	s.mu.Unlock()

	s.debouncer.Schedule(s.flush)
	return true
}

// Flush sends buffered intents immediately.
func (s *Session) Flush() bool {
	return s.debouncer.Flush()
}

func (s *Session) flush() {
	s.mu.Lock()
	if s.closed || s.pending.len() == 0 {
		s.mu.Unlock()
		return
	}
	changes := s.pending.changes()
	sent := s.pending.ids()
	s.pending = newBuffer()
	s.batches++
	batch := s.batches
	for _, id := range sent {
		if p := s.predictions[id]; p != nil && id != s.dragging {
			p.batch = batch
		}
	}
	s.mu.Unlock()

	observability.Sync().OnBatch(s.ctx, changes.Len())
	if err := s.port.Post(s.ctx, protocol.UpdatePositions(changes)); err != nil {
		s.logger.Warn("position batch not delivered", "changes", changes.Len(), "err", err)
	}

	// The authority has applied or rejected the batch by the time Post returns.
	s.mu.Lock()
	if batch > s.answered {
		s.answered = batch
	}
	s.mu.Unlock()
}

// Select toggles sel and re-renders. It returns the resulting selection.
func (s *Session) Select(sel highlight.Selection) highlight.Selection {
	out := s.selector.Select(sel)
	s.mu.Lock()
	s.render()
	s.mu.Unlock()
	return out
}

// ClearSelection removes any selection.
func (s *Session) ClearSelection() {
	s.selector.Clear()
	s.mu.Lock()
	s.render()
	s.mu.Unlock()
}

// Navigate asks the host to open loc.
func (s *Session) Navigate(ctx context.Context, loc graph.Location) error {
	return s.port.Post(ctx, protocol.Navigate(loc))
}

// NavigateNode opens the source location of a node.
func (s *Session) NavigateNode(ctx context.Context, id string) error {
	s.mu.Lock()
	var loc graph.Location
	found := false
	if s.index != nil {
		if n, ok := s.index.Node(id); ok {
			loc, found = n.Location, true
		}
	}
	s.mu.Unlock()

	if !found {
		return errors.New(errors.ErrCodeNotFound, "node %q not found", id)
	}
	if loc.File == "" {
		return errors.New(errors.ErrCodeNotFound, "node %q has no source location", id)
	}
	return s.Navigate(ctx, loc)
}

// ResetLayout asks the authority to drop all manual positions.
func (s *Session) ResetLayout(ctx context.Context) error {
	return s.forward(ctx, protocol.TypeResetLayout)
}

// RevertToSaved asks the authority to restore the saved document.
func (s *Session) RevertToSaved(ctx context.Context) error {
	return s.forward(ctx, protocol.TypeRevertToSaved)
}

// Undo asks the authority to undo the last edit.
func (s *Session) Undo(ctx context.Context) error {
	return s.forward(ctx, protocol.TypeUndo)
}

// Redo asks the authority to redo the last undone edit.
func (s *Session) Redo(ctx context.Context) error {
	return s.forward(ctx, protocol.TypeRedo)
}

// Save asks the authority to persist the document.
func (s *Session) Save(ctx context.Context) error {
	return s.forward(ctx, protocol.TypeSave)
}

// forward sends a document command after any buffered intents, so the
// authority sees them in the order the user made them.
func (s *Session) forward(ctx context.Context, t protocol.Type) error {
	s.debouncer.Flush()
	return s.port.Post(ctx, protocol.Signal(t))
}

// Close stops the session. Buffered intents are discarded.
func (s *Session) Close() {
	if s.debouncer.Cancel() {
		s.logger.Debug("pending intents discarded")
	}
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.readyTimer != nil {
		s.readyTimer.Stop()
	}
	s.mu.Unlock()
	s.stop()
}
