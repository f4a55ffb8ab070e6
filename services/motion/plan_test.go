package motion

import (
	"testing"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

func TestPlanMove(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want Plan
	}{
		{"closed to open raises scaled", Request{Closed, Open, 10, 0}, Plan{Raise, 10500, false}},
		{"open to closed lowers", Request{Open, Closed, 10, 0}, Plan{Lower, 10000, false}},
		{"open to half lowers half", Request{Open, Half, 10, 0}, Plan{Lower, 5000, false}},
		{"closed to half raises half", Request{Closed, Half, 10, 0}, Plan{Raise, 5250, false}},
		{"half to open halves again", Request{Half, Open, 10, 0}, Plan{Raise, 5250, false}},
		{"half to closed", Request{Half, Closed, 10, 0}, Plan{Lower, 5000, false}},
		{"orientation flips", Request{Closed, Open, 10, ReverseOrientation}, Plan{Lower, 10000, false}},
		{"wiring bit ignored", Request{Closed, Open, 10, ReverseWiring}, Plan{Raise, 10500, false}},
		{"unknown lowering seeks", Request{types.Unknown, Closed, 30, 0}, Plan{Lower, SeekMs, false}},
		{"unknown raising runs full", Request{types.Unknown, Open, 20, 0}, Plan{Raise, 21000, false}},
		{"already", Request{Open, Open, 10, 0}, Plan{Already: true}},
		{"max duration", Request{Closed, Open, 59, 0}, Plan{Raise, 61950, false}},
	}
	for _, c := range cases {
		got, err := PlanMove(c.req)
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %+v want %+v", c.name, got, c.want)
		}
	}
}

func TestPlanMoveRejects(t *testing.T) {
	cases := []struct {
		req  Request
		code errcode.Code
		msg  string
	}{
		{Request{Open, "sideways", 10, 0}, errcode.InvalidPosition, "unrecognized position: sideways"},
		{Request{Open, Closed, 0, 0}, errcode.InvalidDuration, "duration: 0 is zero or negative"},
		{Request{Open, Closed, -3, 0}, errcode.InvalidDuration, "duration: -3 is zero or negative"},
		{Request{Open, Closed, 60, 0}, errcode.InvalidDuration, "duration: 60 is longer than max value: 59"},
		// Validation precedes the already-there short-circuit.
		{Request{Open, Open, 60, 0}, errcode.InvalidDuration, "duration: 60 is longer than max value: 59"},
	}
	for _, c := range cases {
		_, err := PlanMove(c.req)
		e, ok := err.(*errcode.E)
		if !ok {
			t.Fatalf("%+v: want *errcode.E, got %v", c.req, err)
		}
		if e.C != c.code || e.Msg != c.msg {
			t.Errorf("%+v: got %s %q", c.req, e.C, e.Msg)
		}
	}
}

func TestResolve(t *testing.T) {
	lower := Plan{Direction: Lower, DurationMs: 1000}
	if got := lower.Resolve(Closed, 1000); got != Closed {
		t.Errorf("full lower: %s", got)
	}
	if got := lower.Resolve(Closed, 400); got != types.Unknown {
		t.Errorf("short lower: %s", got)
	}
	raise := Plan{Direction: Raise, DurationMs: 1000}
	if got := raise.Resolve(Open, 400); got != Open {
		t.Errorf("short raise: %s", got)
	}
}
