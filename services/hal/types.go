// Package hal abstracts the board resources the shade core drives: digital
// outputs, PWM channels, I²C buses and a small battery-backed memory. Host
// builds get inspectable fakes; RP2 builds get machine-backed versions.
package hal

import (
	"io"

	"tinygo.org/x/drivers"
)

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIOPin is a digital pin that can be driven or released to input.
type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// PinFactory supplies GPIO pins by board number.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// PWM is one PWM output channel. Levels are logical in [0..top].
type PWM interface {
	Configure(freqHz uint64, top uint16) error
	Set(level uint16)
	// Release drives the channel low and returns the pin to a floating input.
	Release()
}

// PWMFactory supplies PWM channels by pin number.
type PWMFactory interface {
	ByPin(n int) (PWM, bool)
}

// I2CBusFactory injects configured I²C instances by id ("i2c0", "i2c1").
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// Memory is a small region that survives deep sleep/reset but may not
// survive power loss (RTC user memory, retained SRAM, or an emulation).
type Memory interface {
	Size() int
	ReadMemory() ([]byte, error)
	WriteMemory(b []byte) error
}

// Board bundles the factories for one platform.
type Board struct {
	Pins    PinFactory
	PWM     PWMFactory
	I2C     I2CBusFactory
	Memory  Memory
	Console io.Writer
	// UniqueID is the raw chip id, if the platform has one.
	UniqueID []byte
}

// I2CPlan configures one hardware I²C bus.
type I2CPlan struct {
	ID  string `yaml:"id" toml:"id"`
	SDA int    `yaml:"sda" toml:"sda"`
	SCL int    `yaml:"scl" toml:"scl"`
	Hz  uint32 `yaml:"hz" toml:"hz"`
}

// UARTPlan configures the console UART.
type UARTPlan struct {
	ID   string `yaml:"id" toml:"id"`
	TX   int    `yaml:"tx" toml:"tx"`
	RX   int    `yaml:"rx" toml:"rx"`
	Baud uint32 `yaml:"baud" toml:"baud"`
}

// Plan is the board resource layout handed to NewBoard.
type Plan struct {
	I2C     []I2CPlan `yaml:"i2c" toml:"i2c"`
	Console *UARTPlan `yaml:"console,omitempty" toml:"console,omitempty"`
	// MemoryBytes sizes the battery-backed region.
	MemoryBytes int `yaml:"memory_bytes" toml:"memory_bytes"`
}
