//go:build rp2040 || rp2350

package hal

import (
	"io"
	"machine"
	"sync"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"thingcode-go/errcode"
	"thingcode-go/x/mathx"
)

type rp2Pin struct{ p machine.Pin }

func (r rp2Pin) Number() int { return int(r.p) }

func (r rp2Pin) ConfigureInput(pull Pull) error {
	mode := machine.PinInput
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r rp2Pin) Set(b bool) { r.p.Set(b) }
func (r rp2Pin) Get() bool  { return r.p.Get() }

type rp2Pins struct{}

func (rp2Pins) ByNumber(n int) (GPIOPin, bool) {
	if n < 0 || n > 29 {
		return nil, false
	}
	return rp2Pin{p: machine.Pin(n)}, true
}

type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

type rp2PWM struct {
	mu     sync.Mutex
	pin    int
	ctrl   pwmCtrl
	chIdx  uint8
	reqTop uint16
	hwTop  uint32
}

func (p *rp2PWM) Configure(freqHz uint64, top uint16) error {
	top = mathx.Max(top, 1)
	freqHz = mathx.Max(freqHz, 1)
	if err := p.ctrl.Configure(machine.PWMConfig{Period: 1_000_000_000 / freqHz}); err != nil {
		return errcode.Wrap(errcode.Error, "pwm_configure", err)
	}
	machine.Pin(p.pin).Configure(machine.PinConfig{Mode: machine.PinPWM})
	p.mu.Lock()
	p.reqTop, p.hwTop = top, p.ctrl.Top()
	p.mu.Unlock()
	return nil
}

func (p *rp2PWM) Set(level uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hwTop == 0 || p.reqTop == 0 {
		return
	}
	level = mathx.Min(level, p.reqTop)
	p.ctrl.Set(p.chIdx, uint32(level)*p.hwTop/uint32(p.reqTop))
}

func (p *rp2PWM) Release() {
	p.Set(0)
	machine.Pin(p.pin).Configure(machine.PinConfig{Mode: machine.PinInput})
}

type rp2PWMs struct {
	mu  sync.Mutex
	chs map[int]*rp2PWM
}

func (r *rp2PWMs) ByPin(n int) (PWM, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.chs[n]; ok {
		return p, true
	}
	slice, err := machine.PWMPeripheral(machine.Pin(n))
	if err != nil {
		return nil, false
	}
	p := &rp2PWM{pin: n, ctrl: pwmGroupBySlice(slice), chIdx: uint8(n & 1)}
	r.chs[n] = p
	return p, true
}

type rp2I2C map[string]drivers.I2C

func (r rp2I2C) ByID(id string) (drivers.I2C, bool) {
	b, ok := r[id]
	return b, ok
}

type uartWriter struct{ u *uartx.UART }

func (w uartWriter) Write(p []byte) (int, error) { return w.u.Write(p) }

// NewBoard configures the buses named in plan and returns the RP2 board.
func NewBoard(plan Plan) *Board {
	buses := rp2I2C{}
	for _, p := range plan.I2C {
		var hw *machine.I2C
		switch p.ID {
		case "i2c0":
			hw = machine.I2C0
		case "i2c1":
			hw = machine.I2C1
		default:
			continue
		}
		sda, scl := machine.Pin(p.SDA), machine.Pin(p.SCL)
		sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
		scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
		_ = hw.Configure(machine.I2CConfig{SCL: scl, SDA: sda, Frequency: p.Hz})
		buses[p.ID] = hw
	}

	var console io.Writer = machine.Serial
	if c := plan.Console; c != nil {
		hw := uartx.UART0
		if c.ID == "uart1" {
			hw = uartx.UART1
		}
		_ = hw.Configure(uartx.UARTConfig{BaudRate: c.Baud, TX: machine.Pin(c.TX), RX: machine.Pin(c.RX)})
		console = uartWriter{u: hw}
	}

	n := plan.MemoryBytes
	if n <= 0 {
		n = 4096
	}
	id := machine.DeviceID()
	return &Board{
		Pins:     rp2Pins{},
		PWM:      &rp2PWMs{chs: map[int]*rp2PWM{}},
		I2C:      buses,
		Memory:   &BlockMemory{Dev: machine.Flash, Cap: n},
		Console:  console,
		UniqueID: id,
	}
}
