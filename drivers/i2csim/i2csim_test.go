package i2csim

import (
	"testing"

	"thingcode-go/drivers/aht20"
	"thingcode-go/drivers/ina219"
	"thingcode-go/drivers/lm75"
	"thingcode-go/errcode"
	"thingcode-go/x/timex"
)

func TestDrivesINA219(t *testing.T) {
	b := New()
	b.Attach(0x45, map[byte]uint16{0x00: 0x3998, 0x02: 12000 << 1})
	d := ina219.New(b, 0x45)
	if err := d.Detect(); err != nil {
		t.Fatal(err)
	}
	if !d.StandbyAtDetect {
		t.Fatal("mode bits 0 should read as standby")
	}
	if err := d.Start(ina219.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if got := b.Get(0x45, 0x00); got != 0x399F {
		t.Fatalf("config=%#x", got)
	}
	mv, err := d.BusMV()
	if err != nil || mv != 12000 {
		t.Fatalf("mv=%d err=%v", mv, err)
	}
}

func TestDrivesLM75(t *testing.T) {
	b := New()
	b.Attach(0x48, map[byte]uint16{0x00: 0x1980, 0x01: 0x01})
	d := lm75.New(b, 0)
	if err := d.Wake(); err != nil {
		t.Fatal(err)
	}
	if b.Get(0x48, 0x01) != 0 {
		t.Fatal("not woken")
	}
	c, err := d.Celsius()
	if err != nil || c != 26 {
		t.Fatalf("c=%d err=%v", c, err)
	}
}

func TestReadHookAndNack(t *testing.T) {
	b := New()
	b.Attach(0x40, nil)
	b.Read = func(addr uint16, reg byte, stored uint16) uint16 { return 0xBEEF }
	r := make([]byte, 2)
	if err := b.Tx(0x40, []byte{0x01}, r); err != nil || r[0] != 0xBE || r[1] != 0xEF {
		t.Fatalf("r=%x err=%v", r, err)
	}
	if err := b.Tx(0x41, []byte{0x01}, r); errcode.Of(err) != errcode.Transport {
		t.Fatalf("want nack, got %v", err)
	}
}

func TestDrivesAHT20(t *testing.T) {
	b := New()
	b.AttachFunc(aht20.Address, AHT20(aht20.Sample{RawHumidity: 0x80000, RawTemp: 0x60000}))
	d := aht20.New(b, 0, timex.NewManual())
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	s, err := d.Measure()
	if err != nil {
		t.Fatal(err)
	}
	if s.RelHumidity() != 50 || s.Celsius() != 25 {
		t.Fatalf("sample %+v", s)
	}
	if b.Writes[aht20.Address] != 2 {
		t.Fatalf("writes=%d", b.Writes[aht20.Address])
	}
}
