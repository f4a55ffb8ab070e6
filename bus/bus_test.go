package bus

import (
	"context"
	"sort"
	"testing"
	"time"

	"thingcode-go/errcode"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	sub := c.Subscribe(T("shadow", "pico-1", "update"))
	c.Publish(c.NewMessage(T("shadow", "pico-1", "update"), "hello", false))
	expectOneOf(t, sub, "hello")
}

func TestRetainedReplayedToLateSubscriber(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	c.Publish(c.NewMessage(T("shadow", "pico-1"), "doc", true))

	sub := c.Subscribe(T("shadow", "pico-1"))
	expectOneOf(t, sub, "doc")

	m, ok := b.Retained(T("shadow", "pico-1"))
	if !ok || m.Payload != "doc" {
		t.Fatalf("retained=%v ok=%v", m, ok)
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		filter, topic Topic
		want          bool
	}{
		{T("a", "+", "c"), T("a", "b", "c"), true},
		{T("a", "+", "c"), T("a", "c"), false},
		{T("a", "+", "c"), T("a", "b", "d"), false},
		{T("a", "#"), T("a"), true},
		{T("a", "#"), T("a", "b", "c"), true},
		{T("#"), T("x"), true},
		{T("a", "b", "#"), T("a"), false},
		{T("a"), T("a", "b"), false},
	}
	for _, c := range cases {
		if got := Match(c.filter, c.topic); got != c.want {
			t.Errorf("Match(%s, %s)=%v", c.filter, c.topic, got)
		}
	}
}

func TestWildcardDelivery(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")
	anyThing := c.Subscribe(T("shadow", "+", "update"))
	all := c.Subscribe(T("shadow", "#"))
	other := c.Subscribe(T("shadow", "+", "get"))

	c.Publish(c.NewMessage(T("shadow", "pico-1", "update"), "u1", false))
	expectOneOf(t, anyThing, "u1")
	expectOneOf(t, all, "u1")
	expectNoMessage(t, other)
}

func TestWildcardRetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")
	c.Publish(c.NewMessage(T("shadow"), "r0", true))
	c.Publish(c.NewMessage(T("shadow", "a"), "r1", true))
	c.Publish(c.NewMessage(T("shadow", "a", "meta"), "r2", true))
	c.Publish(c.NewMessage(T("shadow", "b"), "r3", true))

	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("shadow", "#")), 4), []string{"r0", "r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("shadow", "+")), 2), []string{"r1", "r3"})
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")
	c.Publish(c.NewMessage(T("shadow", "a"), "keep", true))
	c.Publish(c.NewMessage(T("shadow", "b"), "other", true))
	c.Publish(c.NewMessage(T("shadow", "a"), nil, true))

	got := drainPayloads(t, c.Subscribe(T("shadow", "#")), 1)
	if got[0] != "other" {
		t.Fatalf("got %v", got)
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("x"))
	for _, p := range []string{"1", "2", "3"} {
		c.Publish(c.NewMessage(T("x"), p, false))
	}
	expectOneOf(t, s, "2")
	expectOneOf(t, s, "3")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("x"))
	s.Unsubscribe()
	if _, ok := <-s.Channel(); ok {
		t.Fatal("channel still open")
	}
	// Second unsubscribe and disconnect are no-ops.
	s.Unsubscribe()
	c.Disconnect()
}

func TestRequestWait(t *testing.T) {
	b := NewBus(8)
	req := b.NewConnection("requester")
	resp := b.NewConnection("responder")
	sub := resp.Subscribe(T("shadow", "pico-1", "get"))
	defer resp.Unsubscribe(sub)

	go func() {
		if msg, ok := <-sub.Channel(); ok {
			resp.Reply(msg, "OK", false)
		}
	}()

	msg := b.NewMessage(T("shadow", "pico-1", "get"), nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	reply, err := req.RequestWait(ctx, msg)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Payload != "OK" {
		t.Fatalf("payload=%#v", reply.Payload)
	}
	if reply.Topic.String() != msg.ReplyTo.String() {
		t.Fatalf("reply on %s, want %s", reply.Topic, msg.ReplyTo)
	}
}

func TestRequestTimeout(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("requester")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.RequestWait(ctx, b.NewMessage(T("nobody"), nil, false))
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("want timeout, got %v", err)
	}
}

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			s, ok := m.Payload.(string)
			if !ok {
				t.Fatalf("non-string payload: %#v", m.Payload)
			}
			out = append(out, s)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRetainedMatching(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	c.Publish(c.NewMessage(T("shadow", "a"), 1, true))
	c.Publish(c.NewMessage(T("shadow", "b"), 2, true))
	c.Publish(c.NewMessage(T("hub", "heartbeat"), 3, true))

	if got := len(b.RetainedMatching(T("shadow", Single))); got != 2 {
		t.Fatalf("shadow/+ matched %d, want 2", got)
	}
	if got := len(b.RetainedMatching(T(Multi))); got != 3 {
		t.Fatalf("# matched %d, want 3", got)
	}
}
