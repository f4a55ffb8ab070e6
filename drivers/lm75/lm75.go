// Package lm75 drives LM75-family digital thermometers. The temperature
// register carries a signed 9-bit value in its top bits (0.5 °C LSB); the
// config register's bit 0 puts the converter into shutdown.
package lm75

import "tinygo.org/x/drivers"

// Address with A2..A0 = 0.
const Address = 0x48

const (
	regTemp   = 0x00
	regConfig = 0x01

	cfgShutdown = 0x01
)

// Device wraps an I2C connection to an LM75.
type Device struct {
	bus     drivers.I2C
	Address uint16

	w [2]byte
	r [2]byte
}

// New creates a Device. It does not touch the bus.
func New(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = Address
	}
	return &Device{bus: bus, Address: addr}
}

// Config returns the config register.
func (d *Device) Config() (byte, error) {
	d.w[0] = regConfig
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

// Shutdown stops conversions; the last value stays readable.
func (d *Device) Shutdown() error { return d.setShutdown(true) }

// Wake resumes conversions. The first result is ready after one
// conversion time (~100 ms).
func (d *Device) Wake() error { return d.setShutdown(false) }

func (d *Device) setShutdown(on bool) error {
	c, err := d.Config()
	if err != nil {
		return err
	}
	if on {
		c |= cfgShutdown
	} else {
		c &^= cfgShutdown
	}
	d.w[0], d.w[1] = regConfig, c
	return d.bus.Tx(d.Address, d.w[:2], nil)
}

// HalfCelsius returns the raw signed reading in 0.5 °C steps.
func (d *Device) HalfCelsius() (int16, error) {
	d.w[0] = regTemp
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return HalfFromRegister(d.r[0], d.r[1]), nil
}

// Celsius returns whole degrees, rounding the half-degree bit up.
func (d *Device) Celsius() (int16, error) {
	h, err := d.HalfCelsius()
	if err != nil {
		return 0, err
	}
	return RoundHalf(h), nil
}

// HalfFromRegister sign-extends the 9-bit value held in msb:lsb[7].
func HalfFromRegister(msb, lsb byte) int16 {
	return int16(uint16(msb)<<8|uint16(lsb)) >> 7
}

// RoundHalf converts half-degrees to degrees, rounding .5 towards +inf.
func RoundHalf(h int16) int16 { return (h + 1) >> 1 }

// DeciCelsius converts half-degrees to tenths of a degree.
func DeciCelsius(h int16) int32 { return int32(h) * 5 }
