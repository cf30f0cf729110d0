package authority_test

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/codeflow/pkg/authority"
	"github.com/matzehuels/codeflow/pkg/document"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/protocol"
	"github.com/matzehuels/codeflow/pkg/scene"
	"github.com/matzehuels/codeflow/pkg/session"
)

const doc = `{
  "version": "1.0",
  "metadata": {"title": "Doc", "generated": "2025-01-02T15:04:05Z"},
  "nodes": [
    {"id": "n1", "label": "main", "kind": "function", "location": {"file": "main.go", "startLine": 1}},
    {"id": "n2", "label": "run", "kind": "function", "location": {"file": "run.go", "startLine": 4}}
  ],
  "edges": [{"id": "e1", "source": "n1", "target": "n2", "kind": "calls"}]
}`

type scenes chan *scene.Scene

func (c scenes) Present(s *scene.Scene) { c <- s }
func (c scenes) Notify(protocol.Notice) {}
func (c scenes) Saved(string)           {}

func (c scenes) until(t *testing.T, ok func(*scene.Scene) bool) *scene.Scene {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-c:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatal("expected scene never presented")
			return nil
		}
	}
}

func at(s *scene.Scene, id string, p graph.Point) bool {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n.Box.X == p.X && n.Box.Y == p.Y
		}
	}
	return false
}

func TestDragRoundTrip(t *testing.T) {
	store := document.NewMemory(doc)
	auth := authority.New(store, authority.Options{})
	defer auth.Close()

	view := make(scenes, 64)
	var s *session.Session
	q := protocol.NewQueue(protocol.PortFunc(func(ctx context.Context, m protocol.Message) error {
		return s.HandleMessage(ctx, m)
	}), nil)
	defer q.Close()
	conn := auth.Connect(q)
	defer conn.Close()

	s = session.New(conn, view, layout.NewCompiler(layout.GridSolver{}), session.Options{
		Debounce:   10 * time.Millisecond,
		ReadyDelay: time.Millisecond,
	})
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	view.until(t, func(sc *scene.Scene) bool { return len(sc.Nodes) == 2 })
	for deadline := time.Now().Add(time.Second); !s.Ready(); {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(time.Millisecond)
	}

	if !s.DragEnd("n1", graph.Point{X: 10.6, Y: 20.4}) {
		t.Fatal("drag rejected")
	}
	confirmed := graph.Point{X: 11, Y: 20}
	for deadline := time.Now().Add(2 * time.Second); store.Content() == doc; {
		if time.Now().After(deadline) {
			t.Fatal("batch never reached the document")
		}
		time.Sleep(time.Millisecond)
	}

	g, err := graph.ParseString(store.Content())
	if err != nil {
		t.Fatal(err)
	}
	n, _ := graph.NewIndex(g).Node("n1")
	if n.Position == nil || *n.Position != confirmed {
		t.Errorf("stored position = %v, want %v", n.Position, confirmed)
	}
	view.until(t, func(sc *scene.Scene) bool { return at(sc, "n1", confirmed) })

	if err := s.Undo(context.Background()); err != nil {
		t.Fatal(err)
	}
	view.until(t, func(sc *scene.Scene) bool { return len(sc.Nodes) == 2 && !at(sc, "n1", confirmed) })
	if store.Content() != doc {
		t.Error("undo did not restore the document")
	}
}
