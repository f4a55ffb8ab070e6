// Package hbridge drives a brushed DC motor through a two-input H-bridge
// (DRV8871 style): one input carries a PWM duty, the other is held low.
package hbridge

import "thingcode-go/x/mathx"

const (
	// FreqHz is the PWM carrier.
	FreqHz = 1000
	// Top is the duty resolution.
	Top = 1023
	// MaxSpeed is full scale; speed is a percentage.
	MaxSpeed = 100
)

// Channel is one PWM output.
type Channel interface {
	Configure(freqHz uint64, top uint16) error
	Set(level uint16)
	Release()
}

type Motor struct {
	in1, in2 Channel
	forward  bool
	speed    int
}

// New configures both inputs low.
func New(in1, in2 Channel) (*Motor, error) {
	for _, c := range []Channel{in1, in2} {
		if err := c.Configure(FreqHz, Top); err != nil {
			return nil, err
		}
		c.Set(0)
	}
	return &Motor{in1: in1, in2: in2}, nil
}

// Duty maps a speed percentage to a PWM level. Anything over 100 is full on.
func Duty(speed int) uint16 {
	d := speed * 10
	if d > 1000 {
		return Top
	}
	return uint16(mathx.Max(d, 0))
}

// Start drives in1 when forward, otherwise in2.
func (m *Motor) Start(forward bool, speed int) {
	m.forward, m.speed = forward, speed
	if forward {
		m.in2.Set(0)
		m.in1.Set(Duty(speed))
	} else {
		m.in1.Set(0)
		m.in2.Set(Duty(speed))
	}
}

// AdjustSpeed restarts at speed+delta in the current direction.
func (m *Motor) AdjustSpeed(delta int) { m.Start(m.forward, m.speed+delta) }

// Stop holds both inputs low (coast).
func (m *Motor) Stop() {
	m.speed = 0
	m.in1.Set(0)
	m.in2.Set(0)
}

func (m *Motor) Speed() int    { return m.speed }
func (m *Motor) Forward() bool { return m.forward }

// Release stops the motor and floats both inputs.
func (m *Motor) Release() {
	m.Stop()
	m.in1.Release()
	m.in2.Release()
}
