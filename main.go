//go:build rp2040 || rp2350

// Device entry: one wake cycle with the embedded board configuration, then
// sleep for the reconciled period and reset, which starts the next cycle.
package main

import (
	"context"
	"time"

	"machine"

	"thingcode-go/services/config"
	"thingcode-go/services/cycle"
	"thingcode-go/services/hal"
	"thingcode-go/x/logx"
	"thingcode-go/x/timex"
)

// retryAfter is the sleep when the cycle cannot even be assembled.
const retryAfter = 10 * time.Minute

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	cfg, err := config.Embedded(config.BoardPico)
	if err != nil {
		println("config:", err.Error())
		sleepAndReset(retryAfter)
	}
	board := hal.NewBoard(cfg.HAL)
	level, _ := logx.ParseLevel(cfg.Logging.Level)
	log := logx.New(board.Console, level)

	r, err := cycle.Assemble(cfg, board, timex.System{}, "", log)
	if err != nil {
		log.Error("assemble", "err", err)
		sleepAndReset(retryAfter)
	}
	res, err := r.RunOnce(context.Background())
	if err != nil {
		log.Error("cycle", "err", err)
		sleepAndReset(retryAfter)
	}

	if res.SleepS < 1 {
		reset := time.Duration(cfg.Loop.ResetTimeoutS) * time.Second
		log.Info("staying awake", "reset_in", reset)
		sleepAndReset(reset)
	}
	log.Info("sleeping", "seconds", res.SleepS, "elapsed", res.Elapsed)
	sleepAndReset(time.Duration(res.SleepS) * time.Second)
}

// sleepAndReset never returns. The state record is in flash and survives
// the reset; RAM does not, so each cycle starts from the persisted state alone.
func sleepAndReset(d time.Duration) {
	time.Sleep(d)
	machine.CPUReset()
	select {}
}
