// Package ina219 provides a driver for the INA219 current/bus-voltage
// monitor. Conversions are integer-only and assume a 0.1 Ω shunt:
//
//	d := ina219.New(bus, 0x45)
//	_ = d.Detect() // reads config, notes whether it was powered down
//	_ = d.Start(ina219.DefaultConfig())
//	mA, _ := d.CurrentMA()
//	mV, _ := d.BusMV()
//	_ = d.Stop()
package ina219

import "tinygo.org/x/drivers"

// I2C address with A0=A1=GND. Breakout boards commonly strap 0x40..0x45.
const Address = 0x40

const (
	regConfig       = 0x00
	regShuntVoltage = 0x01
	regBusVoltage   = 0x02

	configReset = 0x8000
	modeMask    = 0x0007
)

// Config holds the CONFIG register fields.
type Config struct {
	BusRange uint8 // BRNG: 0=16V, 1=32V
	Gain     uint8 // PG: 0..3 (/1../8)
	BusADC   uint8 // BADC: 4 bits
	ShuntADC uint8 // SADC: 4 bits
	Mode     uint8 // 0=power-down .. 7=shunt+bus continuous
}

// DefaultConfig is the power-on reset value 0x399F.
func DefaultConfig() Config {
	return Config{BusRange: 1, Gain: 3, BusADC: 3, ShuntADC: 3, Mode: 7}
}

// Word packs the config fields into the register value.
func (c Config) Word() uint16 {
	return uint16(c.BusRange&0x01)<<13 |
		uint16(c.Gain&0x03)<<11 |
		uint16(c.BusADC&0x0F)<<7 |
		uint16(c.ShuntADC&0x0F)<<3 |
		uint16(c.Mode&0x07)
}

// Device wraps an I2C connection to an INA219.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg Config
	// StandbyAtDetect is true if the device was powered down when detected.
	StandbyAtDetect bool

	w [3]byte
	r [2]byte
}

// New creates a Device. It does not touch the bus.
func New(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = Address
	}
	return &Device{bus: bus, Address: addr, cfg: DefaultConfig()}
}

// Detect reads the config register, proving the device answers.
func (d *Device) Detect() error {
	v, err := d.readWord(regConfig)
	if err != nil {
		return err
	}
	d.StandbyAtDetect = v&modeMask == 0
	return nil
}

// Start writes cfg; a zero Mode still powers the converter down.
func (d *Device) Start(cfg Config) error {
	d.cfg = cfg
	return d.writeWord(regConfig, cfg.Word())
}

// Stop powers the converters down, keeping the last range/ADC settings.
func (d *Device) Stop() error {
	c := d.cfg
	c.Mode = 0
	return d.writeWord(regConfig, c.Word())
}

// Reset issues a software reset.
func (d *Device) Reset() error { return d.writeWord(regConfig, configReset) }

// ShuntRaw returns the signed shunt register (10 µV LSB).
func (d *Device) ShuntRaw() (int16, error) {
	v, err := d.readWord(regShuntVoltage)
	return int16(v), err
}

// CurrentMA converts the shunt voltage to mA for a 0.1 Ω shunt:
// I = V * 10µV / 0.1Ω = V/10 mA, computed as (V*205)>>11.
func (d *Device) CurrentMA() (int32, error) {
	raw, err := d.ShuntRaw()
	if err != nil {
		return 0, err
	}
	return ShuntToMA(raw), nil
}

// BusMV returns bus voltage in mV (4 mV LSB in bits 15..3).
func (d *Device) BusMV() (int32, error) {
	v, err := d.readWord(regBusVoltage)
	if err != nil {
		return 0, err
	}
	return BusToMV(v), nil
}

// ShuntToMA is the fixed-point shunt conversion. The arithmetic shift
// rounds negative readings towards -inf, which is below mA resolution.
func ShuntToMA(raw int16) int32 { return (int32(raw) * 205) >> 11 }

// BusToMV drops the CNVR/OVF flag bits and scales by 4 mV/LSB.
func BusToMV(reg uint16) int32 { return int32(reg&0xFFF8) >> 1 }

// Register words are big-endian.

func (d *Device) readWord(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeWord(reg byte, val uint16) error {
	d.w[0] = reg
	d.w[1] = byte(val >> 8)
	d.w[2] = byte(val)
	return d.bus.Tx(d.Address, d.w[:3], nil)
}
