// Command boardtest exercises shade hardware on the bench: a current
// reading, a short motor jog each way, then a pass/fail LED pattern.
// Cycles repeat until power is removed.
package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"thingcode-go/services/config"
	"thingcode-go/services/hal"
	"thingcode-go/services/reconcile"
	"thingcode-go/services/shade"
	"thingcode-go/types"
	"thingcode-go/x/logx"
	"thingcode-go/x/timex"
)

const (
	jogMs      = 1500
	cycleDelay = 5 * time.Second
	// Cycles: 0 = loop forever
	cyclesToRun = 0
)

type tester interface {
	Defaults() types.Params
	RunTest(name string, req *reconcile.Request) (string, bool)
	Blink(d time.Duration)
}

type step struct {
	test  string
	param int
}

func steps(jog int) []step {
	return []step{{"current", 0}, {"motor", jog}, {"motor", -jog}}
}

// bench runs every step once and reports whether all passed.
func bench(w io.Writer, th tester, clock timex.Clock, jog int) bool {
	pass := true
	for _, s := range steps(jog) {
		req := &reconcile.Request{
			Doc:    &types.Document{State: types.Section{Desired: map[string]any{types.ParamTestParam: s.param}}},
			Params: th.Defaults(),
		}
		status, ok := th.RunTest(s.test, req)
		if !ok || !strings.HasPrefix(status, "Pass") {
			pass = false
		}
		fmt.Fprintf(w, "%-8s %6d  %s\n", s.test, s.param, status)
	}
	flashResult(th, clock, pass)
	return pass
}

// flashResult shows two short blinks for a pass, one long for a fail.
func flashResult(th tester, clock timex.Clock, pass bool) {
	if pass {
		for i := 0; i < 2; i++ {
			th.Blink(120 * time.Millisecond)
			clock.Sleep(200 * time.Millisecond)
		}
		return
	}
	th.Blink(400 * time.Millisecond)
	clock.Sleep(200 * time.Millisecond)
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	cfg, err := config.Embedded(config.BoardPico)
	if err != nil {
		println("config:", err.Error())
		return
	}
	board := hal.NewBoard(cfg.HAL)
	var out io.Writer = board.Console
	level, _ := logx.ParseLevel(cfg.Logging.Level)
	log := logx.New(out, level)
	clock := timex.System{}

	s, err := shade.New(cfg.ShadeConfig(), board, clock, log)
	if err != nil {
		fmt.Fprintln(out, "shade:", err)
		return
	}
	defer s.Close()

	for cycle := 1; ; cycle++ {
		fmt.Fprintf(out, "-- cycle %d --\n", cycle)
		if bench(out, s, clock, jogMs) {
			fmt.Fprintln(out, "PASS")
		} else {
			fmt.Fprintln(out, "FAIL")
		}
		if cyclesToRun > 0 && cycle >= cyclesToRun {
			fmt.Fprintln(out, "completed", cycle, "cycles; halting")
			return
		}
		clock.Sleep(cycleDelay)
	}
}
