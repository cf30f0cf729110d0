// Package protocol defines the messages exchanged between a render session
// and the document authority.
//
// Every message is a JSON envelope:
//
//	{"type": "update", "content": "<document text>"}
//	{"type": "updatePositions", "payload": {"nodePositions": [...]}}
//	{"type": "resetLayout"}
//
// Authority to session: update, saved, notice.
// Session to authority: ready, navigate, updatePositions, resetLayout,
// revertToSaved, undo, redo, save.
//
// Messages travel through a [Port]. Each side is handed the port of its peer
// when it is constructed.
package protocol

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
)

// Type names a message.
type Type string

// Authority to session.
const (
	TypeUpdate Type = "update"
	TypeSaved  Type = "saved"
	TypeNotice Type = "notice"
)

// Session to authority.
const (
	TypeReady           Type = "ready"
	TypeNavigate        Type = "navigate"
	TypeUpdatePositions Type = "updatePositions"
	TypeResetLayout     Type = "resetLayout"
	TypeRevertToSaved   Type = "revertToSaved"
	TypeUndo            Type = "undo"
	TypeRedo            Type = "redo"
	TypeSave            Type = "save"
)

// Message is the protocol envelope.
type Message struct {
	Type    Type            `json:"type"`
	Content string          `json:"content,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notice levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice is a user-facing message from the authority.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Port delivers messages to one peer.
type Port interface {
	Post(ctx context.Context, m Message) error
}

// PortFunc adapts a function to Port.
type PortFunc func(ctx context.Context, m Message) error

// Post implements Port.
func (f PortFunc) Post(ctx context.Context, m Message) error { return f(ctx, m) }

// Signal returns a message without content or payload.
func Signal(t Type) Message { return Message{Type: t} }

// Update carries the full document text.
func Update(content string) Message { return Message{Type: TypeUpdate, Content: content} }

// Saved carries the document text as it was saved.
func Saved(content string) Message { return Message{Type: TypeSaved, Content: content} }

// NewNotice builds a notice message.
func NewNotice(level, text string) Message {
	return withPayload(TypeNotice, Notice{Level: level, Message: text})
}

// UpdatePositions carries a batch of manual overrides.
func UpdatePositions(c graph.PositionChanges) Message {
	return withPayload(TypeUpdatePositions, c)
}

// Navigate asks the host to open a source location.
func Navigate(loc graph.Location) Message {
	return withPayload(TypeNavigate, loc)
}

func withPayload(t Type, v any) Message {
	raw, _ := json.Marshal(v)
	return Message{Type: t, Payload: raw}
}

// Positions decodes an updatePositions payload.
func (m Message) Positions() (graph.PositionChanges, error) {
	var c graph.PositionChanges
	err := m.decode(TypeUpdatePositions, &c)
	return c, err
}

// Location decodes a navigate payload.
func (m Message) Location() (graph.Location, error) {
	var loc graph.Location
	if err := m.decode(TypeNavigate, &loc); err != nil {
		return loc, err
	}
	if loc.File == "" {
		return loc, errors.New(errors.ErrCodeInvalidInput, "navigate: missing file")
	}
	return loc, nil
}

// Notice decodes a notice payload.
func (m Message) Notice() (Notice, error) {
	var n Notice
	err := m.decode(TypeNotice, &n)
	return n, err
}

func (m Message) decode(want Type, v any) error {
	if m.Type != want {
		return errors.New(errors.ErrCodeInvalidInput, "expected %s message, got %s", want, m.Type)
	}
	if len(m.Payload) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "%s: missing payload", want)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s: invalid payload", want)
	}
	return nil
}

// Decode parses an envelope.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid message")
	}
	if m.Type == "" {
		return m, errors.New(errors.ErrCodeInvalidInput, "message without type")
	}
	return m, nil
}
