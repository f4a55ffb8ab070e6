// Package shadowhub is a local device-shadow service. Each thing's document
// lives as a retained message on the bus; get and update requests arrive on
// shadow/<id>/get and shadow/<id>/update and are answered by a single loop,
// so updates to one document are serialized.
package shadowhub

import (
	"context"
	"log/slog"
	"time"

	"thingcode-go/bus"
	"thingcode-go/errcode"
	"thingcode-go/types"
	"thingcode-go/x/logx"
)

const (
	topicShadow = "shadow"
	verbGet     = "get"
	verbUpdate  = "update"
	verbDelta   = "delta"
)

// DocTopic is where the retained document of thing lives.
func DocTopic(thing string) bus.Topic { return bus.T(topicShadow, thing) }

// DeltaTopic carries the desired/reported difference after each desired change.
func DeltaTopic(thing string) bus.Topic { return bus.T(topicShadow, thing, verbDelta) }

// Reply answers a get or update request.
type Reply struct {
	Doc *types.Document
	Err error
}

type Hub struct {
	b       *bus.Bus
	conn    *bus.Connection
	gets    *bus.Subscription
	updates *bus.Subscription
	log     *slog.Logger
	Now     func() int64
}

// New subscribes to the request topics right away so requests published
// before Run starts are queued rather than lost.
func New(b *bus.Bus, log *slog.Logger) *Hub {
	conn := b.NewConnection("shadowhub")
	return &Hub{
		b:       b,
		conn:    conn,
		gets:    conn.Subscribe(bus.T(topicShadow, bus.Single, verbGet)),
		updates: conn.Subscribe(bus.T(topicShadow, bus.Single, verbUpdate)),
		log:     logx.OrDiscard(log),
		Now:     func() int64 { return time.Now().Unix() },
	}
}

// Run answers requests until ctx ends. A hub runs once.
func (h *Hub) Run(ctx context.Context) error {
	defer h.conn.Disconnect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-h.gets.Channel():
			if !ok {
				return nil
			}
			h.conn.Reply(m, h.get(m.Topic[1]), false)
		case m, ok := <-h.updates.Channel():
			if !ok {
				return nil
			}
			body, _ := m.Payload.([]byte)
			h.conn.Reply(m, h.update(m.Topic[1], body), false)
		}
	}
}

func (h *Hub) current(thing string) (*types.Document, bool) {
	m, ok := h.b.Retained(DocTopic(thing))
	if !ok {
		return nil, false
	}
	d, ok := m.Payload.(*types.Document)
	return d, ok
}

func (h *Hub) get(thing string) Reply {
	d, ok := h.current(thing)
	if !ok {
		return Reply{Err: &errcode.E{C: errcode.Empty, Op: verbGet, Msg: "no shadow for " + thing}}
	}
	return Reply{Doc: d.Clone()}
}

func (h *Hub) update(thing string, body []byte) Reply {
	u, err := types.DecodeUpdate(body)
	if err != nil {
		return Reply{Err: err}
	}
	var d *types.Document
	if cur, ok := h.current(thing); ok {
		d = cur.Clone()
	} else {
		d = &types.Document{State: types.Section{Desired: map[string]any{}}}
	}
	d.ApplyUpdate(u, h.Now())
	if d.State.Desired == nil {
		d.State.Desired = map[string]any{}
	}
	h.conn.Publish(h.conn.NewMessage(DocTopic(thing), d, true))
	if u.State.Desired != nil {
		if delta := d.Delta(); len(delta) > 0 {
			h.conn.Publish(h.conn.NewMessage(DeltaTopic(thing), delta, false))
		}
	}
	h.log.Debug("shadow updated", "thing", thing, "version", d.Version)
	return Reply{Doc: d.Clone()}
}

// Client issues hub requests over its own bus connection.
type Client struct {
	conn    *bus.Connection
	Timeout time.Duration
}

func NewClient(b *bus.Bus, id string) *Client {
	return &Client{conn: b.NewConnection(id), Timeout: 5 * time.Second}
}

func (c *Client) request(ctx context.Context, thing, verb string, body []byte) (*types.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	var payload any
	if body != nil {
		payload = body
	}
	m, err := c.conn.RequestWait(ctx, c.conn.NewMessage(bus.T(topicShadow, thing, verb), payload, false))
	if err != nil {
		return nil, err
	}
	r, ok := m.Payload.(Reply)
	if !ok {
		return nil, &errcode.E{C: errcode.Error, Op: verb, Msg: "unexpected reply"}
	}
	return r.Doc, r.Err
}

// Close drops the client's bus connection.
func (c *Client) Close() { c.conn.Disconnect() }

func (c *Client) Get(ctx context.Context, thing string) (*types.Document, error) {
	return c.request(ctx, thing, verbGet, nil)
}

func (c *Client) Update(ctx context.Context, thing string, body []byte) (*types.Document, error) {
	return c.request(ctx, thing, verbUpdate, body)
}
