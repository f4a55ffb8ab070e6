// Package i2csim is a register-file I²C bus for host builds. Each device
// address holds 16-bit registers; one-byte transfers use the low byte.
// A Read hook can synthesise values, e.g. a motor current that rises with
// simulated time. Devices without registers are attached as functions.
package i2csim

import (
	"sync"

	"thingcode-go/errcode"
)

type Bus struct {
	mu   sync.Mutex
	regs map[uint16]map[byte]uint16
	raw  map[uint16]func(w, r []byte) error
	// Read, when set, may override a register read.
	Read func(addr uint16, reg byte, stored uint16) uint16
	// Writes counts write transactions per address.
	Writes map[uint16]int
}

func New() *Bus {
	return &Bus{regs: map[uint16]map[byte]uint16{}, raw: map[uint16]func(w, r []byte) error{}, Writes: map[uint16]int{}}
}

// AttachFunc makes addr answer with fn, which sees every transfer whole.
func (b *Bus) AttachFunc(addr uint16, fn func(w, r []byte) error) {
	b.mu.Lock()
	b.raw[addr] = fn
	b.mu.Unlock()
}

// Attach makes addr answer, with initial register values.
func (b *Bus) Attach(addr uint16, regs map[byte]uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := map[byte]uint16{}
	for k, v := range regs {
		m[k] = v
	}
	b.regs[addr] = m
}

func (b *Bus) Detach(addr uint16) {
	b.mu.Lock()
	delete(b.regs, addr)
	delete(b.raw, addr)
	b.mu.Unlock()
}

// Set writes a register directly.
func (b *Bus) Set(addr uint16, reg byte, v uint16) {
	b.mu.Lock()
	if m, ok := b.regs[addr]; ok {
		m[reg] = v
	}
	b.mu.Unlock()
}

// Get returns a stored register value.
func (b *Bus) Get(addr uint16, reg byte) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[addr][reg]
}

// Tx implements drivers.I2C. w[0] selects the register; any further bytes
// in w are written to it; r receives the register value.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	if fn, ok := b.raw[addr]; ok {
		if len(w) > 0 {
			b.Writes[addr]++
		}
		b.mu.Unlock()
		return fn(w, r)
	}
	m, ok := b.regs[addr]
	read := b.Read
	if !ok {
		b.mu.Unlock()
		return &errcode.E{C: errcode.Transport, Op: "i2c_tx", Msg: "nack"}
	}
	if len(w) == 0 {
		b.mu.Unlock()
		return nil
	}
	reg := w[0]
	switch len(w) {
	case 1:
	case 2:
		m[reg] = uint16(w[1])
		b.Writes[addr]++
	default:
		m[reg] = uint16(w[1])<<8 | uint16(w[2])
		b.Writes[addr]++
	}
	v := m[reg]
	b.mu.Unlock()

	if len(r) == 0 {
		return nil
	}
	if read != nil {
		v = read(addr, reg, v)
	}
	switch len(r) {
	case 1:
		r[0] = byte(v)
	default:
		r[0], r[1] = byte(v>>8), byte(v)
		for i := 2; i < len(r); i++ {
			r[i] = 0
		}
	}
	return nil
}
