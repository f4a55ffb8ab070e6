package ramp

import "thingcode-go/x/mathx"

// Step is a caller-driven ramp: each Up moves the level by a fixed
// increment towards Top and never past it.
type Step struct {
	Level int
	Inc   int
	Top   int
}

// NewStep starts at start (clamped to [0..top]).
func NewStep(start, inc, top int) *Step {
	return &Step{Level: mathx.Clamp(start, 0, top), Inc: inc, Top: top}
}

// Up advances one increment and reports whether the level changed.
func (s *Step) Up() bool {
	next := mathx.Clamp(s.Level+s.Inc, 0, s.Top)
	if next == s.Level {
		return false
	}
	s.Level = next
	return true
}

// AtTop reports whether the ramp has saturated.
func (s *Step) AtTop() bool { return s.Level >= s.Top }
