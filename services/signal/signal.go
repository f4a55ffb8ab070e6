// Package signal is a minimal thing: it flashes its LED the number of
// times set in the desired "signal" parameter. It exercises the
// reconciliation path without any motor hardware.
package signal

import (
	"fmt"
	"log/slog"
	"time"

	"thingcode-go/errcode"
	"thingcode-go/services/conditions"
	"thingcode-go/services/hal"
	"thingcode-go/services/reconcile"
	"thingcode-go/types"
	"thingcode-go/x/logx"
	"thingcode-go/x/timex"
)

const (
	ParamSignal = "signal"
	// Gap separates flashes.
	Gap   = 300 * time.Millisecond
	flash = 50 * time.Millisecond
)

type Signal struct {
	pins  hal.PinFactory
	led   int
	clock timex.Clock
	log   *slog.Logger
}

var _ reconcile.Device = (*Signal)(nil)

func New(pins hal.PinFactory, led int, clock timex.Clock, log *slog.Logger) *Signal {
	return &Signal{pins: pins, led: led, clock: clock, log: logx.OrDiscard(log)}
}

func (s *Signal) Defaults() types.Params { return types.Params{ParamSignal: 0} }

func (s *Signal) Operations() []types.Op { return []types.Op{types.OpSignal} }

func (s *Signal) Perform(op types.Op, req *reconcile.Request) (string, error) {
	if op != types.OpSignal {
		return "", &errcode.E{C: errcode.Unsupported, Op: "perform", Msg: op.String()}
	}
	v, _ := req.Desired(ParamSignal)
	n, ok := types.AsInt(v)
	if !ok {
		return "", &errcode.E{C: errcode.InvalidParams, Op: "signal", Msg: "not an integer: " + types.Format(v)}
	}
	req.Params[ParamSignal] = n
	for i := 0; i < n; i++ {
		s.Blink(flash)
		s.clock.Sleep(Gap)
	}
	s.log.Info("signaled", "times", n)
	return fmt.Sprintf("done: signaled %d times", n), nil
}

func (s *Signal) RunTest(name string, _ *reconcile.Request) (string, bool) {
	if name == "child" {
		return "pass: test 'child'", true
	}
	return "", false
}

// Blink drives the LED low for d.
func (s *Signal) Blink(d time.Duration) {
	led, err := hal.Output(s.pins, s.led, false)
	if err != nil {
		return
	}
	s.clock.Sleep(d)
	hal.Float(led)
}

func (s *Signal) RegisterConditions(*conditions.Reporter) {}
func (s *Signal) Diagnostics(types.Reported)              {}
func (s *Signal) Close()                                  {}
