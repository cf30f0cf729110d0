package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/protocol"
	"github.com/matzehuels/codeflow/pkg/scene"
	"github.com/matzehuels/codeflow/pkg/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 1 << 20
	outboundBuffer = 64
)

// client is one WebSocket connection. It presents the session's output as
// outbound frames; a single goroutine owns all writes to the socket.
type client struct {
	id     string
	ws     *websocket.Conn
	logger *log.Logger

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(id string, ws *websocket.Conn, logger *log.Logger) *client {
	return &client{
		id:     id,
		ws:     ws,
		logger: logger,
		send:   make(chan []byte, outboundBuffer),
		done:   make(chan struct{}),
	}
}

// Present implements session.Presenter.
func (c *client) Present(s *scene.Scene) {
	c.emit(outbound{Type: FrameScene, Scene: s})
}

// Notify implements session.Presenter.
func (c *client) Notify(n protocol.Notice) {
	c.emit(outbound{Type: FrameNotice, Notice: &n})
}

// Saved implements session.Presenter.
func (c *client) Saved(content string) {
	c.emit(outbound{Type: FrameSaved, Content: content})
}

func (c *client) emit(f outbound) {
	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Error("encode frame", "type", f.Type, "err", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn("client too slow, frame dropped", "type", f.Type)
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "err", err)
				c.close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *client) readLoop(ctx context.Context, sess *session.Session) {
	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read failed", "err", err)
			}
			return
		}
		f, err := decodeInbound(data)
		if err == nil {
			err = dispatch(ctx, sess, f)
		}
		if err != nil {
			c.Notify(protocol.Notice{Level: protocol.LevelError, Message: errors.UserMessage(err)})
		}
	}
}
