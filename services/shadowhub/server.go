package shadowhub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"thingcode-go/errcode"
	"thingcode-go/services/transport"
	"thingcode-go/types"
)

const maxBody = 64 << 10

// Handler serves the REST and websocket shadow endpoints for h's bus.
func (h *Hub) Handler() http.Handler {
	c := NewClient(h.b, "http")
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /things/{id}/shadow", func(w http.ResponseWriter, r *http.Request) {
		d, err := c.Get(r.Context(), r.PathValue("id"))
		writeDoc(w, d, err)
	})
	mux.HandleFunc("POST /things/{id}/shadow", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d, err := c.Update(r.Context(), r.PathValue("id"), body)
		writeDoc(w, d, err)
	})
	mux.HandleFunc("GET /things/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		wc := NewClient(h.b, "ws-"+r.RemoteAddr)
		defer wc.Close()
		h.serveWS(r.Context(), ws, wc, r.PathValue("id"))
	})
	return mux
}

func (h *Hub) serveWS(ctx context.Context, ws *websocket.Conn, c *Client, thing string) {
	defer ws.Close()
	for {
		var f transport.Frame
		if err := ws.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("ws read", "thing", thing, "err", err)
			}
			return
		}
		var (
			d   *types.Document
			err error
		)
		switch f.Op {
		case transport.OpGet:
			d, err = c.Get(ctx, thing)
		case transport.OpUpdate:
			d, err = c.Update(ctx, thing, f.Body)
		default:
			err = &errcode.E{C: errcode.Unsupported, Op: "ws", Msg: "op " + f.Op}
		}
		out := transport.Frame{ClientToken: f.ClientToken}
		if err != nil {
			out.Error = err.Error()
		} else if out.Body, err = json.Marshal(d); err != nil {
			out.Error = err.Error()
		}
		if err := ws.WriteJSON(out); err != nil {
			return
		}
	}
}

func writeDoc(w http.ResponseWriter, d *types.Document, err error) {
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d)
}

func statusOf(err error) int {
	switch errcode.Of(err) {
	case errcode.Empty:
		return http.StatusNotFound
	case errcode.Malformed:
		return http.StatusBadRequest
	case errcode.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Serve runs the hub loop, the heartbeat and an HTTP server on ln until ctx
// ends or one of them fails.
func (h *Hub) Serve(ctx context.Context, ln net.Listener, beat time.Duration) error {
	srv := &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error { return h.Heartbeat(ctx, beat) })
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	h.log.Info("shadow hub listening", "addr", ln.Addr().String())
	return g.Wait()
}
