package transport

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

// Frame is one message on the shadow websocket, in either direction.
type Frame struct {
	Op          string          `json:"op,omitempty"`
	ClientToken string          `json:"clientToken"`
	Body        json.RawMessage `json:"body,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Websocket frame ops.
const (
	OpGet    = "get"
	OpUpdate = "update"
)

// WS keeps one websocket open to /things/{thing}/ws for the whole cycle.
// Replies are matched to requests by clientToken.
type WS struct {
	Endpoint string
	Dialer   *websocket.Dialer

	conn *websocket.Conn
}

func (w *WS) Connect(ctx context.Context, thing string) error {
	u, err := url.Parse(w.Endpoint)
	if err != nil || u.Host == "" {
		return &errcode.E{C: errcode.Transport, Op: "connect", Msg: "bad endpoint " + w.Endpoint, Err: err}
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/things/" + url.PathEscape(thing) + "/ws"
	d := w.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	c, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errcode.Wrap(errcode.Transport, "connect", err)
	}
	w.conn = c
	return nil
}

func (w *WS) roundTrip(ctx context.Context, op string, body []byte) (json.RawMessage, error) {
	if w.conn == nil {
		return nil, notConnected(op)
	}
	token := uuid.NewString()
	if dl, ok := ctx.Deadline(); ok {
		_ = w.conn.SetWriteDeadline(dl)
		_ = w.conn.SetReadDeadline(dl)
	} else {
		_ = w.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	}
	if err := w.conn.WriteJSON(Frame{Op: op, ClientToken: token, Body: body}); err != nil {
		return nil, errcode.Wrap(errcode.Transport, op, err)
	}
	for {
		var f Frame
		if err := w.conn.ReadJSON(&f); err != nil {
			return nil, errcode.Wrap(errcode.Transport, op, err)
		}
		if f.ClientToken != token {
			// A pushed delta or a stale reply; the cycle only acts on its own requests.
			continue
		}
		if f.Error != "" {
			return nil, &errcode.E{C: errcode.Transport, Op: op, Msg: f.Error}
		}
		return f.Body, nil
	}
}

func (w *WS) Get(ctx context.Context) (*types.Document, error) {
	b, err := w.roundTrip(ctx, OpGet, nil)
	if err != nil {
		return nil, err
	}
	return types.DecodeDocument(b)
}

func (w *WS) Update(ctx context.Context, body []byte) error {
	_, err := w.roundTrip(ctx, OpUpdate, body)
	return err
}

func (w *WS) Disconnect() error {
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}
