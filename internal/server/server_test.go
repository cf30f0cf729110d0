package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/codeflow/pkg/authority"
	"github.com/matzehuels/codeflow/pkg/document"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/observability"
	"github.com/matzehuels/codeflow/pkg/session"
)

const doc = `{
  "version": "1.0",
  "metadata": {"title": "Served", "generated": "2025-01-02T15:04:05Z"},
  "nodes": [
    {"id": "n1", "label": "main", "kind": "function", "location": {"file": "main.go", "startLine": 1}},
    {"id": "n2", "label": "run", "kind": "function", "location": {"file": "run.go", "startLine": 4}}
  ],
  "edges": [{"id": "e1", "source": "n1", "target": "n2", "kind": "calls", "color": "#FF6B6B"}]
}`

type fixture struct {
	store *document.Memory
	srv   *Server
	http  *httptest.Server
	reg   *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: document.NewMemory(doc), reg: prometheus.NewRegistry()}
	auth := authority.New(f.store, authority.Options{})
	t.Cleanup(auth.Close)

	prom := observability.NewPrometheus(f.reg)
	observability.SetSyncHooks(prom)
	t.Cleanup(observability.Reset)

	f.srv = New(Config{
		Authority: auth,
		Compiler:  layout.NewCompiler(layout.GridSolver{}),
		Session:   session.Options{Debounce: 10 * time.Millisecond, ReadyDelay: time.Millisecond},
		Gatherer:  f.reg,
	})
	f.http = httptest.NewServer(f.srv.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

type received struct {
	Type  string `json:"type"`
	Scene *struct {
		Title     string `json:"title"`
		Error     string `json:"error"`
		Selection struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		} `json:"selection"`
		Nodes []struct {
			ID  string `json:"id"`
			Box struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"box"`
		} `json:"nodes"`
	} `json:"scene"`
	Notice *struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notice"`
}

func readUntil(t *testing.T, ws *websocket.Conn, ok func(received) bool) received {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		ws.SetReadDeadline(deadline)
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var r received
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if ok(r) {
			return r
		}
	}
}

func send(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func isScene(r received) bool { return r.Type == FrameScene && r.Scene != nil }

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Sessions int    `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" || body.Version == "" {
		t.Errorf("healthz = %d %+v", resp.StatusCode, body)
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t)

	first := readUntil(t, ws, isScene)
	if first.Scene.Title != "Served" || len(first.Scene.Nodes) != 2 {
		t.Fatalf("first scene = %+v", first.Scene)
	}

	// Intents are only accepted after the ready delay.
	var stored *graph.Node
	for deadline := time.Now().Add(3 * time.Second); stored == nil || stored.Position == nil; {
		if time.Now().After(deadline) {
			t.Fatal("drag never reached the document")
		}
		send(t, ws, `{"type": "dragEnd", "id": "n1", "position": {"x": 10.6, "y": 20.4}}`)
		time.Sleep(30 * time.Millisecond)
		g, err := graph.ParseString(f.store.Content())
		if err != nil {
			t.Fatal(err)
		}
		stored, _ = graph.NewIndex(g).Node("n1")
	}
	if *stored.Position != (graph.Point{X: 11, Y: 20}) {
		t.Errorf("stored position = %v", *stored.Position)
	}

	send(t, ws, `{"type": "select", "kind": "color", "value": "#ff6b6b"}`)
	r := readUntil(t, ws, func(r received) bool { return isScene(r) && r.Scene.Selection.Value != "" })
	if r.Scene.Selection.Kind != "color" || r.Scene.Selection.Value != "#ff6b6b" {
		t.Errorf("selection = %+v", r.Scene.Selection)
	}

	send(t, ws, `{"type": "revertToSaved"}`)
	n := readUntil(t, ws, func(r received) bool { return r.Type == FrameNotice })
	if n.Notice.Level != "warning" {
		t.Errorf("notice = %+v", n.Notice)
	}

	send(t, ws, `{"type": "bogus"}`)
	n = readUntil(t, ws, func(r received) bool { return r.Type == FrameNotice })
	if !strings.Contains(n.Notice.Message, "bogus") {
		t.Errorf("notice = %+v", n.Notice)
	}

	if f.srv.Sessions() != 1 {
		t.Errorf("sessions = %d, want 1", f.srv.Sessions())
	}
}

func TestConnectDuringBroadcasts(t *testing.T) {
	f := newFixture(t)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			f.store.SetExternal(strings.Replace(doc, `"Served"`, fmt.Sprintf(`"Served %d"`, i), 1))
			time.Sleep(time.Millisecond)
		}
	}()

	const clients = 8
	for i := 0; i < clients; i++ {
		ws := f.dial(t)
		r := readUntil(t, ws, isScene)
		if !strings.HasPrefix(r.Scene.Title, "Served") {
			t.Errorf("client %d: first scene = %+v", i, r.Scene)
		}
	}
	close(stop)
	<-done

	if got := f.srv.Sessions(); got != clients {
		t.Errorf("sessions = %d, want %d", got, clients)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	observability.Sync().OnBatch(context.Background(), 3)

	resp, err := http.Get(f.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "codeflow_sync_batches_total") {
		t.Errorf("metrics missing sync counter:\n%s", body)
	}
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"drag", `{"type": "dragEnd", "id": "a", "position": {"x": 1, "y": 2}}`, false},
		{"no type", `{"id": "a"}`, true},
		{"garbage", `not json`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeInbound([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrameSelection(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
		active  bool
	}{
		{SelectNode, false, true},
		{SelectEdge, false, true},
		{SelectColor, false, true},
		{SelectNone, false, false},
		{"shape", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			sel, err := inbound{Kind: tt.kind, Value: "x"}.selection()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if sel.Active() != tt.active {
				t.Errorf("active = %v", sel.Active())
			}
		})
	}
}
