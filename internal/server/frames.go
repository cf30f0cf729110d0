package server

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/codeflow/pkg/errors"
	"github.com/matzehuels/codeflow/pkg/graph"
	"github.com/matzehuels/codeflow/pkg/highlight"
	"github.com/matzehuels/codeflow/pkg/protocol"
	"github.com/matzehuels/codeflow/pkg/scene"
	"github.com/matzehuels/codeflow/pkg/session"
)

// Frame types sent by the browser.
const (
	FrameDragMove      = "dragMove"
	FrameDragEnd       = "dragEnd"
	FrameResizeEnd     = "resizeEnd"
	FrameSelect        = "select"
	FrameNavigate      = "navigate"
	FrameResetLayout   = "resetLayout"
	FrameRevertToSaved = "revertToSaved"
	FrameUndo          = "undo"
	FrameRedo          = "redo"
	FrameSave          = "save"
)

// Frame types sent to the browser.
const (
	FrameScene  = "scene"
	FrameNotice = "notice"
	FrameSaved  = "saved"
)

// Selection kinds in select frames.
const (
	SelectNode  = "node"
	SelectEdge  = "edge"
	SelectColor = "color"
	SelectNone  = "none"
)

// inbound is a browser frame:
//
//	{"type": "dragEnd", "id": "n1", "position": {"x": 10, "y": 20}}
//	{"type": "resizeEnd", "id": "g1", "position": {...}, "size": {"width": 300, "height": 200}}
//	{"type": "select", "kind": "color", "value": "#ff6b6b"}
//	{"type": "navigate", "id": "n1"}
type inbound struct {
	Type     string       `json:"type"`
	ID       string       `json:"id,omitempty"`
	Position *graph.Point `json:"position,omitempty"`
	Size     *graph.Size  `json:"size,omitempty"`
	Kind     string       `json:"kind,omitempty"`
	Value    string       `json:"value,omitempty"`
}

type outbound struct {
	Type    string           `json:"type"`
	Scene   *scene.Scene     `json:"scene,omitempty"`
	Notice  *protocol.Notice `json:"notice,omitempty"`
	Content string           `json:"content,omitempty"`
}

func decodeInbound(data []byte) (inbound, error) {
	var f inbound
	if err := json.Unmarshal(data, &f); err != nil {
		return f, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid frame")
	}
	if f.Type == "" {
		return f, errors.New(errors.ErrCodeInvalidInput, "frame without type")
	}
	return f, nil
}

func (f inbound) position() (graph.Point, error) {
	if f.ID == "" || f.Position == nil {
		return graph.Point{}, errors.New(errors.ErrCodeInvalidInput, "%s needs id and position", f.Type)
	}
	return *f.Position, nil
}

func (f inbound) selection() (highlight.Selection, error) {
	switch f.Kind {
	case SelectNode:
		return highlight.Node(f.Value), nil
	case SelectEdge:
		return highlight.Edge(f.Value), nil
	case SelectColor:
		return highlight.LegendColor(f.Value), nil
	case SelectNone, "":
		return highlight.None(), nil
	default:
		return highlight.None(), errors.New(errors.ErrCodeInvalidInput, "unknown selection kind %q", f.Kind)
	}
}

// dispatch applies one frame to sess. Intents rejected by the session, for
// instance before the first layout settled, are dropped silently.
func dispatch(ctx context.Context, sess *session.Session, f inbound) error {
	switch f.Type {
	case FrameDragMove:
		p, err := f.position()
		if err != nil {
			return err
		}
		sess.DragMove(f.ID, p)
	case FrameDragEnd:
		p, err := f.position()
		if err != nil {
			return err
		}
		sess.DragEnd(f.ID, p)
	case FrameResizeEnd:
		p, err := f.position()
		if err != nil {
			return err
		}
		if f.Size == nil {
			return errors.New(errors.ErrCodeInvalidInput, "resizeEnd needs size")
		}
		sess.ResizeEnd(f.ID, p, *f.Size)
	case FrameSelect:
		sel, err := f.selection()
		if err != nil {
			return err
		}
		if !sel.Active() {
			sess.ClearSelection()
			return nil
		}
		sess.Select(sel)
	case FrameNavigate:
		return sess.NavigateNode(ctx, f.ID)
	case FrameResetLayout:
		return sess.ResetLayout(ctx)
	case FrameRevertToSaved:
		return sess.RevertToSaved(ctx)
	case FrameUndo:
		return sess.Undo(ctx)
	case FrameRedo:
		return sess.Redo(ctx)
	case FrameSave:
		return sess.Save(ctx)
	default:
		return errors.New(errors.ErrCodeUnsupported, "unknown frame type %q", f.Type)
	}
	return nil
}
