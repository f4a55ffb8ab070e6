// Package transport moves shadow documents between a thing and its shadow
// service. Any failure here aborts the wake cycle.
package transport

import (
	"context"
	"fmt"
	"strings"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

type Transport interface {
	Connect(ctx context.Context, thing string) error
	Get(ctx context.Context) (*types.Document, error)
	Update(ctx context.Context, body []byte) error
	Disconnect() error
}

// Protocol names accepted by New.
const (
	ProtoHTTP = "http"
	ProtoWS   = "ws"
	ProtoFile = "file"
)

// Options configures whichever transport is selected.
type Options struct {
	Protocol string
	// Endpoint is a base URL for http/ws or a directory for file.
	Endpoint string
	Region   string
	Creds    *Credentials
}

// New builds the transport named by o.Protocol.
func New(o Options) (Transport, error) {
	switch strings.ToLower(o.Protocol) {
	case ProtoHTTP, "https", "":
		return &HTTP{Endpoint: o.Endpoint, Region: o.Region, Creds: o.Creds}, nil
	case ProtoWS, "websocket":
		return &WS{Endpoint: o.Endpoint}, nil
	case ProtoFile:
		return &File{Dir: o.Endpoint}, nil
	}
	return nil, &errcode.E{C: errcode.Unsupported, Op: "transport", Msg: o.Protocol}
}

func notConnected(op string) error {
	return &errcode.E{C: errcode.Transport, Op: op, Msg: "not connected"}
}

func statusError(op string, code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &errcode.E{C: errcode.Transport, Op: op, Msg: fmt.Sprintf("status %d: %s", code, msg)}
}
