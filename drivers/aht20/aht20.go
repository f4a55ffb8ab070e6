// Package aht20 drives the AHT20 humidity and temperature sensor. A
// measurement is triggered by command, then the 7-byte result is polled
// until the busy bit clears. There are no registers.
package aht20

import (
	"time"

	"tinygo.org/x/drivers"

	"thingcode-go/errcode"
	"thingcode-go/x/timex"
)

const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08

	// full scale of the 20-bit raw fields
	fullScale = 1 << 20
)

type Device struct {
	bus     drivers.I2C
	Address uint16
	clock   timex.Clock

	// ConvertWait is slept before the first poll.
	ConvertWait time.Duration
	Poll        time.Duration
	Timeout     time.Duration

	w [3]byte
	r [7]byte
}

func New(bus drivers.I2C, addr uint16, clock timex.Clock) *Device {
	if addr == 0 {
		addr = Address
	}
	return &Device{
		bus: bus, Address: addr, clock: clock,
		ConvertWait: 80 * time.Millisecond,
		Poll:        15 * time.Millisecond,
		Timeout:     250 * time.Millisecond,
	}
}

func (d *Device) Status() (byte, error) {
	d.w[0] = cmdStatus
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

// Init loads the calibration if the sensor reports it missing.
func (d *Device) Init() error {
	st, err := d.Status()
	if err != nil {
		return err
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	d.w = [3]byte{cmdInitialize, 0x08, 0x00}
	if err := d.bus.Tx(d.Address, d.w[:], nil); err != nil {
		return err
	}
	d.clock.Sleep(10 * time.Millisecond)
	return nil
}

// Sample holds the raw 20-bit fields of one measurement.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// RelHumidity in %RH.
func (s Sample) RelHumidity() float64 { return float64(s.RawHumidity) * 100 / fullScale }

func (s Sample) Celsius() float64 { return float64(s.RawTemp)*200/fullScale - 50 }

// Measure triggers a conversion and waits for it.
func (d *Device) Measure() (Sample, error) {
	d.w = [3]byte{cmdTrigger, 0x33, 0x00}
	if err := d.bus.Tx(d.Address, d.w[:], nil); err != nil {
		return Sample{}, err
	}
	d.clock.Sleep(d.ConvertWait)
	waited := time.Duration(0)
	for {
		if err := d.bus.Tx(d.Address, nil, d.r[:]); err != nil {
			return Sample{}, err
		}
		if d.r[0]&statusBusy == 0 && d.r[0]&statusCalibrated != 0 {
			return decode(d.r[:]), nil
		}
		if waited >= d.Timeout {
			return Sample{}, &errcode.E{C: errcode.Timeout, Op: "aht20_measure", Msg: "busy"}
		}
		d.clock.Sleep(d.Poll)
		waited += d.Poll
	}
}

func decode(b []byte) Sample {
	return Sample{
		RawHumidity: uint32(b[1])<<12 | uint32(b[2])<<4 | uint32(b[3])>>4,
		RawTemp:     uint32(b[3]&0x0F)<<16 | uint32(b[4])<<8 | uint32(b[5]),
	}
}

// Encode packs a sample into the 7-byte wire form, for simulators.
func Encode(s Sample, status byte) [7]byte {
	return [7]byte{
		status,
		byte(s.RawHumidity >> 12),
		byte(s.RawHumidity >> 4),
		byte(s.RawHumidity<<4) | byte(s.RawTemp>>16)&0x0F,
		byte(s.RawTemp >> 8),
		byte(s.RawTemp),
		0,
	}
}
