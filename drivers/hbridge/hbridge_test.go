package hbridge

import "testing"

type fakeChannel struct {
	freq     uint64
	top      uint16
	level    uint16
	released bool
}

func (c *fakeChannel) Configure(f uint64, top uint16) error { c.freq, c.top = f, top; return nil }
func (c *fakeChannel) Set(l uint16)                         { c.level = l }
func (c *fakeChannel) Release()                             { c.released = true }

func TestDuty(t *testing.T) {
	cases := []struct {
		speed int
		want  uint16
	}{
		{0, 0},
		{30, 300},
		{100, 1000},
		{101, 1023},
		{250, 1023},
		{-5, 0},
	}
	for _, c := range cases {
		if got := Duty(c.speed); got != c.want {
			t.Errorf("Duty(%d)=%d want %d", c.speed, got, c.want)
		}
	}
}

func TestDirectionSelectsInput(t *testing.T) {
	a, b := &fakeChannel{}, &fakeChannel{}
	m, err := New(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if a.freq != FreqHz || b.top != Top {
		t.Fatalf("not configured: %+v %+v", a, b)
	}
	m.Start(true, 30)
	if a.level != 300 || b.level != 0 {
		t.Fatalf("forward: a=%d b=%d", a.level, b.level)
	}
	m.AdjustSpeed(5)
	if a.level != 350 || m.Speed() != 35 {
		t.Fatalf("ramp: a=%d speed=%d", a.level, m.Speed())
	}
	m.Start(false, 40)
	if a.level != 0 || b.level != 400 {
		t.Fatalf("reverse: a=%d b=%d", a.level, b.level)
	}
	m.Release()
	if a.level != 0 || b.level != 0 || !a.released || !b.released {
		t.Fatalf("release: %+v %+v", a, b)
	}
}
