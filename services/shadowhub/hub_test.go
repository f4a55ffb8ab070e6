package shadowhub

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thingcode-go/bus"
	"thingcode-go/errcode"
	"thingcode-go/services/transport"
)

func startHub(t *testing.T) (*Hub, *bus.Bus) {
	t.Helper()
	b := bus.NewBus(16)
	h := New(b, nil)
	h.Now = func() int64 { return 1_700_000_000 }
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h, b
}

func TestUpdateThenGet(t *testing.T) {
	_, b := startHub(t)
	c := NewClient(b, "test")
	ctx := context.Background()

	_, err := c.Get(ctx, "shade")
	assert.Equal(t, errcode.Empty, errcode.Of(err))

	d, err := c.Update(ctx, "shade", []byte(`{"state":{"desired":{"position":"open","sleep":60}}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Version)

	d, err = c.Get(ctx, "shade")
	require.NoError(t, err)
	assert.Equal(t, "open", d.State.Desired["position"])
	assert.Equal(t, int64(1_700_000_000), d.DesiredTimestamp("position"))

	_, err = c.Update(ctx, "shade", []byte(`{"state":{}}`))
	assert.Equal(t, errcode.Malformed, errcode.Of(err))
}

func TestReturnedDocumentIsACopy(t *testing.T) {
	_, b := startHub(t)
	c := NewClient(b, "test")
	ctx := context.Background()
	_, err := c.Update(ctx, "shade", []byte(`{"state":{"desired":{"position":"open"}}}`))
	require.NoError(t, err)

	d, err := c.Get(ctx, "shade")
	require.NoError(t, err)
	d.State.Desired["position"] = "closed"

	d, err = c.Get(ctx, "shade")
	require.NoError(t, err)
	assert.Equal(t, "open", d.State.Desired["position"])
}

func TestDesiredChangePublishesDelta(t *testing.T) {
	_, b := startHub(t)
	watch := b.NewConnection("watch").Subscribe(DeltaTopic("shade"))
	c := NewClient(b, "test")
	ctx := context.Background()

	_, err := c.Update(ctx, "shade", []byte(`{"state":{"reported":{"position":"open"}}}`))
	require.NoError(t, err)
	_, err = c.Update(ctx, "shade", []byte(`{"state":{"desired":{"position":"closed"}}}`))
	require.NoError(t, err)

	select {
	case m := <-watch.Channel():
		assert.Equal(t, map[string]any{"position": "closed"}, m.Payload)
	case <-time.After(time.Second):
		t.Fatal("no delta")
	}
}

func TestRESTWithHTTPTransport(t *testing.T) {
	h, _ := startHub(t)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/things/shade/shadow")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/things/shade/shadow", "application/json",
		strings.NewReader(`{"state":{"desired":{"position":"half"}}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/things/shade/shadow", "application/json", strings.NewReader(`nope`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	tr := &transport.HTTP{Endpoint: srv.URL}
	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx, "shade"))
	doc, err := tr.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "half", doc.State.Desired["position"])

	require.NoError(t, tr.Update(ctx, []byte(`{"state":{"reported":{"position":"half"}}}`)))
	doc, err = tr.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "half", doc.State.Reported["position"])
	assert.Equal(t, int64(2), doc.Version)
}

func TestWebsocketWithWSTransport(t *testing.T) {
	h, b := startHub(t)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	_, err := NewClient(b, "seed").Update(context.Background(), "shade",
		[]byte(`{"state":{"desired":{"position":"closed"}}}`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr := &transport.WS{Endpoint: srv.URL}
	require.NoError(t, tr.Connect(ctx, "shade"))
	defer tr.Disconnect()

	doc, err := tr.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "closed", doc.State.Desired["position"])

	require.NoError(t, tr.Update(ctx, []byte(`{"state":{"reported":{"status":"ok"}}}`)))
	err = tr.Update(ctx, []byte(`{}`))
	assert.Equal(t, errcode.Transport, errcode.Of(err))
}

func TestHeartbeatCountsThings(t *testing.T) {
	h, b := startHub(t)
	c := NewClient(b, "test")
	_, err := c.Update(context.Background(), "a", []byte(`{"state":{"desired":{"x":1}}}`))
	require.NoError(t, err)
	_, err = c.Update(context.Background(), "b", []byte(`{"state":{"desired":{"x":1}}}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Heartbeat(ctx, time.Hour) }()

	sub := b.NewConnection("watch").Subscribe(topicHeartbeat)
	select {
	case m := <-sub.Channel():
		assert.Equal(t, Beat{Time: 1_700_000_000, Things: 2}, m.Payload)
	case <-time.After(time.Second):
		t.Fatal("no heartbeat")
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestServeStopsOnCancel(t *testing.T) {
	h := New(bus.NewBus(8), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx, ln, time.Hour) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/things/x/shadow")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
