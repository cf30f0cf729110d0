package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
)

func TestEnvelopeJSON(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"Signal", Signal(TypeResetLayout), `{"type":"resetLayout"}`},
		{"Update", Update("{}"), `{"type":"update","content":"{}"}`},
		{
			"Positions",
			UpdatePositions(graph.PositionChanges{NodePositions: []graph.EntityPosition{{ID: "n1", Position: graph.Point{X: 1, Y: 2}}}}),
			`{"type":"updatePositions","payload":{"nodePositions":[{"id":"n1","position":{"x":1,"y":2}}]}}`,
		},
		{
			"Navigate",
			Navigate(graph.Location{File: "main.go", StartLine: 3}),
			`{"type":"navigate","payload":{"file":"main.go","startLine":3}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("json = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodePayloads(t *testing.T) {
	m, err := Decode([]byte(`{"type":"updatePositions","payload":{"nodePositions":[{"id":"n1","position":{"x":10.6,"y":20.4}}],"groupSizes":[{"id":"g","size":{"width":300,"height":200}}]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c, err := m.Positions()
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if c.Len() != 2 || c.NodePositions[0].Position.X != 10.6 {
		t.Errorf("changes = %+v", c)
	}

	if _, err := m.Location(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Location on wrong type = %v", err)
	}

	n, err := NewNotice(LevelWarning, "nothing to undo").Notice()
	if err != nil || n.Level != LevelWarning || n.Message != "nothing to undo" {
		t.Errorf("Notice = %+v, %v", n, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"NotJSON", `hello`},
		{"NoType", `{"content":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := (Message{Type: TypeNavigate, Payload: []byte(`{"startLine":1}`)}).Location(); err == nil {
		t.Error("navigate without file should fail")
	}
	if _, err := Signal(TypeUpdatePositions).Positions(); err == nil {
		t.Error("updatePositions without payload should fail")
	}
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
	gate chan struct{}
}

func (r *recorder) Post(_ context.Context, m Message) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	return nil
}

func (r *recorder) types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Type
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestQueueDeliversInOrderWithoutBlocking(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	q := NewQueue(rec, nil)

	posted := make(chan struct{})
	go func() {
		for _, ty := range []Type{TypeUpdate, TypeSaved, TypeNotice} {
			_ = q.Post(context.Background(), Signal(ty))
		}
		close(posted)
	}()
	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Fatal("Post blocked on a slow receiver")
	}

	close(rec.gate)
	q.Close()

	got := rec.types()
	want := []Type{TypeUpdate, TypeSaved, TypeNotice}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivered %v, want %v", got, want)
		}
	}

	_ = q.Post(context.Background(), Signal(TypeUndo))
	if len(rec.types()) != 3 {
		t.Error("Post after Close should be dropped")
	}
}

func TestPortFunc(t *testing.T) {
	var got Type
	p := PortFunc(func(_ context.Context, m Message) error {
		got = m.Type
		return nil
	})
	_ = p.Post(context.Background(), Signal(TypeRedo))
	if got != TypeRedo {
		t.Errorf("got %s", got)
	}
}

func TestRelay(t *testing.T) {
	var r Relay
	if err := r.Post(context.Background(), Signal(TypeReady)); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("Post before Attach: err = %v, want internal error", err)
	}

	rec := &recorder{}
	r.Attach(rec)
	if err := r.Post(context.Background(), Signal(TypeReady)); err != nil {
		t.Fatal(err)
	}
	if got := rec.types(); len(got) != 1 || got[0] != TypeReady {
		t.Errorf("delivered %v, want [ready]", got)
	}
}
