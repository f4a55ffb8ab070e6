//go:build !rp2040 && !rp2350

package hal

import (
	"bytes"
	"errors"
	"os"
	"sync"

	"tinygo.org/x/drivers"

	"thingcode-go/errcode"
)

// FakePin records how it was driven.
type FakePin struct {
	N      int
	Output bool
	Level  bool
	Pull   Pull
	// Writes counts Set calls, including the initial level.
	Writes int
}

func (p *FakePin) ConfigureInput(pull Pull) error {
	p.Output, p.Pull = false, pull
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.Output = true
	p.Set(initial)
	return nil
}

func (p *FakePin) Set(level bool) { p.Level = level; p.Writes++ }
func (p *FakePin) Get() bool      { return p.Level }
func (p *FakePin) Number() int    { return p.N }

// HostPins hands out one FakePin per number.
type HostPins struct {
	mu   sync.Mutex
	Max  int
	pins map[int]*FakePin
}

func (h *HostPins) ByNumber(n int) (GPIOPin, bool) {
	p := h.Pin(n)
	return p, p != nil
}

// Pin returns the concrete fake for inspection.
func (h *HostPins) Pin(n int) *FakePin {
	h.mu.Lock()
	defer h.mu.Unlock()
	max := h.Max
	if max == 0 {
		max = 29
	}
	if n < 0 || n > max {
		return nil
	}
	if h.pins == nil {
		h.pins = map[int]*FakePin{}
	}
	p := h.pins[n]
	if p == nil {
		p = &FakePin{N: n}
		h.pins[n] = p
	}
	return p
}

// FakePWM records its configuration and level history.
type FakePWM struct {
	Pin      int
	FreqHz   uint64
	Top      uint16
	Level    uint16
	Levels   []uint16
	Released bool
}

func (p *FakePWM) Configure(freqHz uint64, top uint16) error {
	if freqHz == 0 || top == 0 {
		return errcode.Wrap(errcode.InvalidParams, "pwm_configure", errors.New("zero frequency or top"))
	}
	p.FreqHz, p.Top, p.Released = freqHz, top, false
	return nil
}

func (p *FakePWM) Set(level uint16) {
	if p.Top != 0 && level > p.Top {
		level = p.Top
	}
	p.Level = level
	p.Levels = append(p.Levels, level)
}

func (p *FakePWM) Release() { p.Level = 0; p.Released = true }

type HostPWMs struct {
	mu  sync.Mutex
	chs map[int]*FakePWM
}

func (h *HostPWMs) ByPin(n int) (PWM, bool) {
	p := h.Channel(n)
	return p, p != nil
}

func (h *HostPWMs) Channel(n int) *FakePWM {
	if n < 0 || n > 29 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.chs == nil {
		h.chs = map[int]*FakePWM{}
	}
	p := h.chs[n]
	if p == nil {
		p = &FakePWM{Pin: n}
		h.chs[n] = p
	}
	return p
}

// HostI2C maps bus ids to caller-supplied buses.
type HostI2C map[string]drivers.I2C

func (h HostI2C) ByID(id string) (drivers.I2C, bool) {
	b, ok := h[id]
	return b, ok
}

// FileMemory emulates battery-backed memory with a file. A missing file
// reads as empty.
type FileMemory struct {
	Path string
	Cap  int
}

func (m *FileMemory) Size() int { return m.Cap }

func (m *FileMemory) ReadMemory() ([]byte, error) {
	b, err := os.ReadFile(m.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errcode.Wrap(errcode.Error, "memory_read", err)
	}
	return b, nil
}

func (m *FileMemory) WriteMemory(b []byte) error {
	if m.Cap > 0 && len(b) > m.Cap {
		return &errcode.E{C: errcode.TooLarge, Op: "memory_write"}
	}
	tmp := m.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errcode.Wrap(errcode.Error, "memory_write", err)
	}
	return errcode.Wrap(errcode.Error, "memory_write", os.Rename(tmp, m.Path))
}

// RAMMemory keeps its contents for the life of the process.
type RAMMemory struct {
	mu  sync.Mutex
	Cap int
	b   []byte
}

func (m *RAMMemory) Size() int { return m.Cap }

func (m *RAMMemory) ReadMemory() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.b...), nil
}

func (m *RAMMemory) WriteMemory(b []byte) error {
	if m.Cap > 0 && len(b) > m.Cap {
		return &errcode.E{C: errcode.TooLarge, Op: "memory_write"}
	}
	m.mu.Lock()
	m.b = append(m.b[:0], b...)
	m.mu.Unlock()
	return nil
}

// NewBoard returns a host board built from fakes. Hardware buses named in
// the plan have no host equivalent; callers install buses in the returned
// board's HostI2C. The memory is RAM-only; swap in a FileMemory to persist
// across processes.
func NewBoard(plan Plan) *Board {
	n := plan.MemoryBytes
	if n <= 0 {
		n = 4096
	}
	return &Board{
		Pins:     &HostPins{},
		PWM:      &HostPWMs{},
		I2C:      HostI2C{},
		Memory:   &RAMMemory{Cap: n},
		Console:  os.Stderr,
		UniqueID: []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01},
	}
}

// FakeFlash behaves like NOR flash with 256-byte pages and 4 KiB sectors:
// erase sets bytes to 0xFF and programming can only clear bits.
type FakeFlash struct {
	B      []byte
	Erases int
}

func NewFakeFlash(n int) *FakeFlash { return &FakeFlash{B: bytes.Repeat([]byte{0xFF}, n)} }

func (f *FakeFlash) ReadAt(p []byte, off int64) (int, error) { return copy(p, f.B[off:]), nil }

func (f *FakeFlash) WriteAt(p []byte, off int64) (int, error) {
	for i, c := range p {
		f.B[int(off)+i] &= c
	}
	return len(p), nil
}

func (f *FakeFlash) Size() int64           { return int64(len(f.B)) }
func (f *FakeFlash) WriteBlockSize() int64 { return 256 }
func (f *FakeFlash) EraseBlockSize() int64 { return 4096 }

func (f *FakeFlash) EraseBlocks(start, n int64) error {
	for i := start * 4096; i < (start+n)*4096; i++ {
		f.B[i] = 0xFF
	}
	f.Erases++
	return nil
}
