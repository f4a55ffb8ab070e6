package main

import (
	"bytes"
	"strings"
	"testing"

	"thingcode-go/drivers/i2csim"
	"thingcode-go/services/hal"
	"thingcode-go/services/shade"
	"thingcode-go/x/timex"
)

func newShade(t *testing.T, withSensor bool) (*shade.Shade, *hal.Board, *timex.Manual) {
	t.Helper()
	bus := i2csim.New()
	if withSensor {
		// INA219 in standby with 50 mA across the shunt and 12 V on the bus.
		bus.Attach(0x45, map[byte]uint16{0x00: 0x399F, 0x01: 500, 0x02: 12000 << 1})
	}
	board := hal.NewBoard(hal.Plan{})
	board.I2C = hal.HostI2C{"i2c0": bus}
	cfg := shade.DefaultConfig()
	cfg.Pins.LED = 25
	clock := timex.NewManual()
	s, err := shade.New(cfg, board, clock, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s, board, clock
}

func TestBenchPasses(t *testing.T) {
	s, board, clock := newShade(t, true)
	var out bytes.Buffer
	if !bench(&out, s, clock, 300) {
		t.Fatalf("bench failed:\n%s", out.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "Pass: Current: 50") {
		t.Errorf("current line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "Pass: motor on for") || !strings.Contains(lines[2], "Pass: motor on for") {
		t.Errorf("motor lines: %q %q", lines[1], lines[2])
	}
	if w := board.Pins.(*hal.HostPins).Pin(25).Writes; w != 2 {
		t.Errorf("led writes = %d, want 2 short blinks", w)
	}
}

func TestBenchFailsWithoutSensor(t *testing.T) {
	s, board, clock := newShade(t, false)
	var out bytes.Buffer
	if bench(&out, s, clock, 300) {
		t.Fatal("bench passed without a current sensor")
	}
	if !strings.Contains(out.String(), "no current sensor") {
		t.Errorf("output: %s", out.String())
	}
	if w := board.Pins.(*hal.HostPins).Pin(25).Writes; w != 1 {
		t.Errorf("led writes = %d, want one long blink", w)
	}
}
