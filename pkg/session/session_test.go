package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/highlight"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/protocol"
	"github.com/matzehuels/codeflow/pkg/scene"
)

const doc = `{
  "version": "1.0",
  "metadata": {"title": "Three", "generated": "2025-01-02T15:04:05Z"},
  "nodes": [
    {"id": "a", "label": "main", "kind": "function", "location": {"file": "main.go", "startLine": 3}, "groupId": "g"},
    {"id": "b", "label": "run", "kind": "function", "location": {"file": "run.go", "startLine": 1}, "groupId": "g"},
    {"id": "c", "label": "Store", "kind": "class", "location": {"file": "store.go", "startLine": 7}}
  ],
  "edges": [
    {"id": "e1", "source": "a", "target": "b", "kind": "calls"},
    {"id": "e2", "source": "b", "target": "c", "kind": "uses"}
  ],
  "groups": [{"id": "g", "label": "cmd"}]
}`

const twoNodes = `{
  "version": "1.0",
  "metadata": {"title": "Two", "generated": "2025-01-02T15:04:05Z"},
  "nodes": [
    {"id": "a", "label": "main", "kind": "function", "location": {"file": "main.go", "startLine": 3}},
    {"id": "b", "label": "run", "kind": "function", "location": {"file": "run.go", "startLine": 1}}
  ],
  "edges": [{"id": "e1", "source": "a", "target": "b", "kind": "calls"}]
}`

const wait = 2 * time.Second

type fakePort struct {
	ch chan protocol.Message
}

func newFakePort() *fakePort { return &fakePort{ch: make(chan protocol.Message, 64)} }

func (p *fakePort) Post(_ context.Context, m protocol.Message) error {
	p.ch <- m
	return nil
}

func (p *fakePort) next(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case m := <-p.ch:
		return m
	case <-time.After(wait):
		t.Fatal("no message posted")
		return protocol.Message{}
	}
}

func (p *fakePort) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case m := <-p.ch:
		t.Fatalf("unexpected %s message", m.Type)
	case <-time.After(d):
	}
}

type fakePresenter struct {
	scenes  chan *scene.Scene
	notices chan protocol.Notice

	mu    sync.Mutex
	saved []string
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{
		scenes:  make(chan *scene.Scene, 64),
		notices: make(chan protocol.Notice, 8),
	}
}

func (p *fakePresenter) Present(s *scene.Scene)   { p.scenes <- s }
func (p *fakePresenter) Notify(n protocol.Notice) { p.notices <- n }
func (p *fakePresenter) Saved(content string) {
	p.mu.Lock()
	p.saved = append(p.saved, content)
	p.mu.Unlock()
}

func (p *fakePresenter) next(t *testing.T) *scene.Scene {
	t.Helper()
	select {
	case s := <-p.scenes:
		return s
	case <-time.After(wait):
		t.Fatal("no scene presented")
		return nil
	}
}

func nodeAt(t *testing.T, s *scene.Scene, id string) graph.Point {
	t.Helper()
	for _, n := range s.Nodes {
		if n.ID == id {
			return graph.Point{X: n.Box.X, Y: n.Box.Y}
		}
	}
	t.Fatalf("node %s not in scene", id)
	return graph.Point{}
}

type harness struct {
	s     *Session
	port  *fakePort
	view  *fakePresenter
	first *scene.Scene
}

// open starts a session on content and waits until intents are accepted.
func open(t *testing.T, content string, opts Options) *harness {
	t.Helper()
	if opts.ReadyDelay == 0 {
		opts.ReadyDelay = time.Millisecond
	}
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	h := &harness{port: newFakePort(), view: newFakePresenter()}
	h.s = New(h.port, h.view, layout.NewCompiler(layout.GridSolver{}), opts)
	t.Cleanup(h.s.Close)

	if err := h.s.HandleMessage(context.Background(), protocol.Update(content)); err != nil {
		t.Fatal(err)
	}
	h.first = h.view.next(t)
	deadline := time.Now().Add(wait)
	for !h.s.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(time.Millisecond)
	}
	return h
}

func TestStartPostsReady(t *testing.T) {
	port := newFakePort()
	s := New(port, newFakePresenter(), layout.NewCompiler(nil), Options{})
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m := port.next(t); m.Type != protocol.TypeReady {
		t.Errorf("posted %s, want ready", m.Type)
	}
	if s.ID() == "" {
		t.Error("session should get a generated id")
	}
}

func TestParseErrorPresentsErrorScene(t *testing.T) {
	port, view := newFakePort(), newFakePresenter()
	s := New(port, view, layout.NewCompiler(nil), Options{})
	defer s.Close()

	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{"nodes": [`},
		{"invalid", `{"version": "1", "metadata": {"title": "x"}, "nodes": [{"id": "a"}], "edges": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.HandleMessage(context.Background(), protocol.Update(tt.content)); err != nil {
				t.Fatal(err)
			}
			sc := view.next(t)
			if sc.Error == "" {
				t.Error("expected an error scene")
			}
			if len(sc.Nodes) != 0 {
				t.Error("error scene should have no nodes")
			}
		})
	}
	port.none(t, 50*time.Millisecond)
}

func TestIntentsDroppedBeforeReady(t *testing.T) {
	port, view := newFakePort(), newFakePresenter()
	s := New(port, view, layout.NewCompiler(layout.GridSolver{}), Options{ReadyDelay: time.Hour})
	defer s.Close()

	if s.DragEnd("a", graph.Point{X: 1, Y: 1}) {
		t.Error("intent accepted before any layout")
	}
	if err := s.HandleMessage(context.Background(), protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	view.next(t)
	if s.DragEnd("a", graph.Point{X: 1, Y: 1}) {
		t.Error("intent accepted before the ready delay passed")
	}
	if s.Flush() {
		t.Error("nothing should be buffered")
	}
	port.none(t, 50*time.Millisecond)
}

func TestDebounceCoalesces(t *testing.T) {
	h := open(t, doc, Options{Debounce: 50 * time.Millisecond})

	h.s.DragEnd("a", graph.Point{X: 1, Y: 1})
	h.s.DragEnd("a", graph.Point{X: 2, Y: 2})
	h.s.DragEnd("a", graph.Point{X: 3, Y: 4})
	h.s.ResizeEnd("g", graph.Point{X: 10, Y: 10}, graph.Size{Width: 500, Height: 300})

	m := h.port.next(t)
	if m.Type != protocol.TypeUpdatePositions {
		t.Fatalf("posted %s, want updatePositions", m.Type)
	}
	c, err := m.Positions()
	if err != nil {
		t.Fatal(err)
	}
	want := graph.PositionChanges{
		NodePositions:  []graph.EntityPosition{{ID: "a", Position: graph.Point{X: 3, Y: 4}}},
		GroupPositions: []graph.EntityPosition{{ID: "g", Position: graph.Point{X: 10, Y: 10}}},
		GroupSizes:     []graph.EntitySize{{ID: "g", Size: graph.Size{Width: 500, Height: 300}}},
	}
	if len(c.NodePositions) != 1 || c.NodePositions[0] != want.NodePositions[0] {
		t.Errorf("node positions = %+v, want %+v", c.NodePositions, want.NodePositions)
	}
	if len(c.GroupPositions) != 1 || c.GroupPositions[0] != want.GroupPositions[0] {
		t.Errorf("group positions = %+v", c.GroupPositions)
	}
	if len(c.GroupSizes) != 1 || c.GroupSizes[0] != want.GroupSizes[0] {
		t.Errorf("group sizes = %+v", c.GroupSizes)
	}
	h.port.none(t, 150*time.Millisecond)
}

func TestResizeEndRejectsNodes(t *testing.T) {
	h := open(t, doc, Options{})
	if h.s.ResizeEnd("a", graph.Point{}, graph.Size{Width: 1, Height: 1}) {
		t.Error("nodes cannot be resized")
	}
	if h.s.DragEnd("missing", graph.Point{}) {
		t.Error("unknown entity accepted")
	}
}

func TestPredictionsUntilConfirmed(t *testing.T) {
	h := open(t, doc, Options{Debounce: time.Hour})
	origB := nodeAt(t, h.first, "b")
	origC := nodeAt(t, h.first, "c")

	h.s.DragEnd("a", graph.Point{X: 500, Y: 500})
	if got := nodeAt(t, h.view.next(t), "a"); got != (graph.Point{X: 500, Y: 500}) {
		t.Fatalf("a shown at %v, want optimistic 500,500", got)
	}
	if !h.s.Flush() {
		t.Fatal("flush had nothing to send")
	}
	h.port.next(t)

	h.s.DragMove("b", graph.Point{X: 700, Y: 700})
	h.view.next(t)
	h.s.DragEnd("c", graph.Point{X: 300.4, Y: 300.6})
	h.view.next(t)

	// The authority answers with a document that does not carry a's
	// override; the flushed prediction must not outlive it.
	if err := h.s.HandleMessage(context.Background(), protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	sc := h.view.next(t)
	if got := nodeAt(t, sc, "a"); got == (graph.Point{X: 500, Y: 500}) {
		t.Error("confirmed prediction for a still shown")
	}
	if got := nodeAt(t, sc, "b"); got != (graph.Point{X: 700, Y: 700}) || got == origB {
		t.Errorf("dragged b shown at %v, want 700,700", got)
	}
	if got := nodeAt(t, sc, "c"); got != (graph.Point{X: 300, Y: 301}) || got == origC {
		t.Errorf("unsent c shown at %v, want 300,301", got)
	}
}

// heldPort blocks position batches until released, like an authority
// still applying an edit.
type heldPort struct {
	posted  chan protocol.Message
	release chan struct{}
}

func (p *heldPort) Post(_ context.Context, m protocol.Message) error {
	p.posted <- m
	if m.Type == protocol.TypeUpdatePositions {
		<-p.release
	}
	return nil
}

func TestPredictionsSurviveUpdatesWhileBatchInFlight(t *testing.T) {
	port := &heldPort{posted: make(chan protocol.Message, 8), release: make(chan struct{})}
	view := newFakePresenter()
	s := New(port, view, layout.NewCompiler(layout.GridSolver{}), Options{Debounce: time.Hour, ReadyDelay: time.Millisecond})
	t.Cleanup(s.Close)
	ctx := context.Background()

	if err := s.HandleMessage(ctx, protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	view.next(t)
	deadline := time.Now().Add(wait)
	for !s.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(time.Millisecond)
	}

	target := graph.Point{X: 500, Y: 500}
	s.DragEnd("a", target)
	view.next(t)

	flushed := make(chan struct{})
	go func() {
		s.Flush()
		close(flushed)
	}()
	select {
	case <-port.posted:
	case <-time.After(wait):
		t.Fatal("batch not posted")
	}

	// A change made elsewhere arrives before the batch is applied.
	if err := s.HandleMessage(ctx, protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	if got := nodeAt(t, view.next(t), "a"); got != target {
		t.Fatalf("a snapped back to %v while its batch was in flight", got)
	}

	close(port.release)
	<-flushed

	// The next document no longer carries the override, e.g. after an undo.
	if err := s.HandleMessage(ctx, protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	if got := nodeAt(t, view.next(t), "a"); got == target {
		t.Error("answered prediction still shown")
	}
}

func TestPredictionConfirmedByDocument(t *testing.T) {
	port := &heldPort{posted: make(chan protocol.Message, 8), release: make(chan struct{})}
	view := newFakePresenter()
	s := New(port, view, layout.NewCompiler(layout.GridSolver{}), Options{Debounce: time.Hour, ReadyDelay: time.Millisecond})
	t.Cleanup(s.Close)
	t.Cleanup(func() { close(port.release) })
	ctx := context.Background()

	if err := s.HandleMessage(ctx, protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	view.next(t)
	deadline := time.Now().Add(wait)
	for !s.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(time.Millisecond)
	}

	target := graph.Point{X: 500, Y: 500}
	s.DragEnd("a", graph.Point{X: 499.6, Y: 500.2})
	view.next(t)
	go s.Flush()
	<-port.posted

	p, err := graph.NewPatch([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ApplyPositions(graph.PositionChanges{NodePositions: []graph.EntityPosition{{ID: "a", Position: target}}}); err != nil {
		t.Fatal(err)
	}
	moved, err := p.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	// The applied edit is pushed before the post has returned.
	if err := s.HandleMessage(ctx, protocol.Update(string(moved))); err != nil {
		t.Fatal(err)
	}
	if got := nodeAt(t, view.next(t), "a"); got != target {
		t.Fatalf("a shown at %v, want %v", got, target)
	}
	if err := s.HandleMessage(ctx, protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	if got := nodeAt(t, view.next(t), "a"); got == target {
		t.Error("prediction carried by the document was not dropped")
	}
}

func TestGroupDragMovesMembers(t *testing.T) {
	h := open(t, doc, Options{Debounce: time.Hour})
	var group layout.Rect
	for _, g := range h.first.Groups {
		if g.ID == "g" {
			group = g.Box
		}
	}
	a := nodeAt(t, h.first, "a")
	c := nodeAt(t, h.first, "c")

	h.s.DragMove("g", graph.Point{X: group.X + 100, Y: group.Y + 50})
	sc := h.view.next(t)
	if got := nodeAt(t, sc, "a"); got != (graph.Point{X: a.X + 100, Y: a.Y + 50}) {
		t.Errorf("member a at %v, want moved by 100,50 from %v", got, a)
	}
	if got := nodeAt(t, sc, "c"); got != c {
		t.Errorf("non-member c moved to %v", got)
	}
}

type gatedSolver struct {
	release chan struct{}
}

func (gatedSolver) Name() string { return "gated" }

func (s gatedSolver) Place(ctx context.Context, t *layout.Tree) (*layout.Tree, error) {
	if len(t.Leaves()) == 3 {
		<-s.release
	}
	return layout.GridSolver{}.Place(ctx, t)
}

func TestLastRequestWins(t *testing.T) {
	solver := gatedSolver{release: make(chan struct{})}
	port, view := newFakePort(), newFakePresenter()
	s := New(port, view, layout.NewCompiler(solver), Options{})
	defer s.Close()

	ctx := context.Background()
	if err := s.HandleMessage(ctx, protocol.Update(doc)); err != nil {
		t.Fatal(err)
	}
	if err := s.HandleMessage(ctx, protocol.Update(twoNodes)); err != nil {
		t.Fatal(err)
	}
	if sc := view.next(t); sc.Title != "Two" {
		t.Fatalf("presented %q, want the newer document", sc.Title)
	}
	close(solver.release)

	select {
	case sc := <-view.scenes:
		t.Errorf("superseded layout presented: %q", sc.Title)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseDiscardsPending(t *testing.T) {
	h := open(t, doc, Options{Debounce: 20 * time.Millisecond})
	h.s.DragEnd("a", graph.Point{X: 1, Y: 1})
	h.s.Close()
	h.port.none(t, 100*time.Millisecond)
}

func TestCommandsFollowPendingIntents(t *testing.T) {
	h := open(t, doc, Options{Debounce: time.Hour})
	ctx := context.Background()
	h.s.DragEnd("a", graph.Point{X: 1, Y: 1})

	tests := []struct {
		name string
		call func(context.Context) error
		want protocol.Type
	}{
		{"undo", h.s.Undo, protocol.TypeUndo},
		{"redo", h.s.Redo, protocol.TypeRedo},
		{"reset", h.s.ResetLayout, protocol.TypeResetLayout},
		{"revert", h.s.RevertToSaved, protocol.TypeRevertToSaved},
		{"save", h.s.Save, protocol.TypeSave},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(ctx); err != nil {
				t.Fatal(err)
			}
			if i == 0 {
				if m := h.port.next(t); m.Type != protocol.TypeUpdatePositions {
					t.Fatalf("first message %s, want updatePositions", m.Type)
				}
			}
			if m := h.port.next(t); m.Type != tt.want {
				t.Errorf("posted %s, want %s", m.Type, tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	h := open(t, doc, Options{})

	if got := h.s.Select(highlight.Node("a")); got != highlight.Node("a") {
		t.Fatalf("Select = %+v", got)
	}
	sc := h.view.next(t)
	if sc.Selection != highlight.Node("a") {
		t.Errorf("scene selection = %+v", sc.Selection)
	}
	for _, n := range sc.Nodes {
		if want := n.ID == "c"; n.Dimmed != want {
			t.Errorf("node %s dimmed = %v, want %v", n.ID, n.Dimmed, want)
		}
	}

	if got := h.s.Select(highlight.Node("a")); got.Active() {
		t.Errorf("reselecting should clear, got %+v", got)
	}
	h.view.next(t)

	h.s.Select(highlight.Edge("e1"))
	h.view.next(t)
	h.s.ClearSelection()
	if sc := h.view.next(t); sc.Selection.Active() {
		t.Error("ClearSelection left a selection")
	}
}

func TestNavigateNode(t *testing.T) {
	h := open(t, doc, Options{})
	ctx := context.Background()

	if err := h.s.NavigateNode(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	loc, err := h.port.next(t).Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc.File != "main.go" || loc.StartLine != 3 {
		t.Errorf("location = %+v", loc)
	}

	if err := h.s.NavigateNode(ctx, "nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestSavedAndNotice(t *testing.T) {
	port, view := newFakePort(), newFakePresenter()
	s := New(port, view, layout.NewCompiler(nil), Options{})
	defer s.Close()
	ctx := context.Background()

	if err := s.HandleMessage(ctx, protocol.Saved("snapshot")); err != nil {
		t.Fatal(err)
	}
	if got, ok := s.Saved(); !ok || got != "snapshot" {
		t.Errorf("Saved = %q, %v", got, ok)
	}
	if err := s.HandleMessage(ctx, protocol.NewNotice(protocol.LevelWarning, "nothing to undo")); err != nil {
		t.Fatal(err)
	}
	select {
	case n := <-view.notices:
		if !strings.Contains(n.Message, "undo") || n.Level != protocol.LevelWarning {
			t.Errorf("notice = %+v", n)
		}
	case <-time.After(wait):
		t.Fatal("notice not forwarded")
	}

	if err := s.HandleMessage(ctx, protocol.Signal(protocol.TypeUndo)); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("err = %v, want UNSUPPORTED", err)
	}
}
