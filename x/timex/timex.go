package timex

import "time"

// Y2KOffset is the number of seconds between the Unix epoch and
// 2000-01-01T00:00:00Z, the epoch used by many MCU clocks.
const Y2KOffset int64 = 946_684_800

// UnixFromY2K converts seconds since 2000-01-01 to Unix seconds.
func UnixFromY2K(s int64) int64 { return s + Y2KOffset }

// Y2KFromUnix converts Unix seconds to seconds since 2000-01-01.
func Y2KFromUnix(s int64) int64 { return s - Y2KOffset }

// Clock is the blocking time base used by control loops. Sleeps are not
// cancellable; a watchdog reset is the only interruption.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// System is the wall clock.
type System struct{}

func (System) Now() time.Time        { return time.Now() }
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// Manual is a deterministic Clock: Sleep advances Now and never blocks.
// Hooks run after each advance so tests can script hardware behaviour
// against elapsed time.
type Manual struct {
	T       time.Time
	OnSleep func(now time.Time)
}

func NewManual() *Manual { return &Manual{T: time.Unix(1_700_000_000, 0)} }

func (m *Manual) Now() time.Time { return m.T }

func (m *Manual) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	m.T = m.T.Add(d)
	if m.OnSleep != nil {
		m.OnSleep(m.T)
	}
}

// SinceMs returns whole milliseconds elapsed on c since t0.
func SinceMs(c Clock, t0 time.Time) int {
	return int(c.Now().Sub(t0) / time.Millisecond)
}
