// Package server hosts the position sync protocol over WebSocket.
//
// Each socket on /ws gets its own render session connected to the shared
// document authority. The browser sends pointer and command frames; the
// server answers with scene, notice and saved frames.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/codeflow/pkg/authority"
	"github.com/matzehuels/codeflow/pkg/buildinfo"
	"github.com/matzehuels/codeflow/pkg/layout"
	"github.com/matzehuels/codeflow/pkg/protocol"
	"github.com/matzehuels/codeflow/pkg/session"
)

const shutdownTimeout = 5 * time.Second

// Config wires a Server.
type Config struct {
	Addr      string
	Authority *authority.Authority
	Compiler  *layout.Compiler
	// Session holds the debounce and ready delay for new sessions; ID and
	// Logger are set per connection.
	Session  session.Options
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// Server serves HTTP and WebSocket clients.
type Server struct {
	cfg      Config
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// New returns a server for cfg.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
		},
		clients: make(map[string]*client),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down and closes all
// sockets.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", s.cfg.Addr)

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeClients()
	return err
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"version":  buildinfo.Version,
		"sessions": s.Sessions(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	id := uuid.NewString()
	logger := s.logger.With("session", id)
	c := newClient(id, ws, logger)

	// The session exists before the connection is registered, so a broadcast
	// arriving during setup is delivered to it.
	relay := &protocol.Relay{}
	opts := s.cfg.Session
	opts.ID, opts.Logger = id, s.logger
	sess := session.New(relay, c, s.cfg.Compiler, opts)
	inbox := protocol.NewQueue(sess, logger)
	conn := s.cfg.Authority.Connect(inbox)
	relay.Attach(conn)

	s.track(c, true)
	logger.Info("client connected", "remote", r.RemoteAddr)
	defer func() {
		conn.Close()
		inbox.Close()
		sess.Close()
		c.close()
		s.track(c, false)
		logger.Info("client disconnected")
	}()

	go c.writeLoop()
	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		logger.Warn("session start failed", "err", err)
		return
	}
	c.readLoop(ctx, sess)
}

func (s *Server) track(c *client, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.clients[c.id] = c
	} else {
		delete(s.clients, c.id)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
