package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

// HTTP talks to a REST shadow endpoint: GET and POST on
// /things/{thing}/shadow. Requests are SigV4-signed when Creds is set.
type HTTP struct {
	Endpoint string
	Region   string
	Creds    *Credentials
	Client   *http.Client
	// Now is the signing clock.
	Now func() time.Time

	base  *url.URL
	thing string
}

func (h *HTTP) Connect(_ context.Context, thing string) error {
	u, err := url.Parse(h.Endpoint)
	if err != nil || u.Host == "" {
		return &errcode.E{C: errcode.Transport, Op: "connect", Msg: "bad endpoint " + h.Endpoint, Err: err}
	}
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if h.Now == nil {
		h.Now = time.Now
	}
	h.base, h.thing = u, thing
	return nil
}

func (h *HTTP) url() string {
	u := *h.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/things/" + url.PathEscape(h.thing) + "/shadow"
	return u.String()
}

func (h *HTTP) do(ctx context.Context, method string, body []byte) ([]byte, error) {
	if h.base == nil {
		return nil, notConnected(method)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.url(), bytes.NewReader(body))
	if err != nil {
		return nil, errcode.Wrap(errcode.Transport, method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.Creds != nil {
		Sign(req, body, *h.Creds, h.Region, ServiceIoT, h.Now())
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, errcode.Wrap(errcode.Transport, method, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errcode.Wrap(errcode.Transport, method, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(method, resp.StatusCode, b)
	}
	return b, nil
}

func (h *HTTP) Get(ctx context.Context) (*types.Document, error) {
	b, err := h.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	return types.DecodeDocument(b)
}

func (h *HTTP) Update(ctx context.Context, body []byte) error {
	_, err := h.do(ctx, http.MethodPost, body)
	return err
}

func (h *HTTP) Disconnect() error {
	if h.Client != nil {
		h.Client.CloseIdleConnections()
	}
	h.base = nil
	return nil
}
