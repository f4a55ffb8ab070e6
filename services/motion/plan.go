// Package motion turns position requests into timed motor moves and runs
// them with current-based end-of-travel detection.
package motion

import (
	"fmt"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

type Direction uint8

const (
	Lower Direction = 0
	Raise Direction = 1
)

func (d Direction) String() string {
	if d == Raise {
		return "raise"
	}
	return "lower"
}

const (
	Open   = "open"
	Closed = "closed"
	Half   = "half"

	// MaxDurationS bounds a requested full-travel time.
	MaxDurationS = 59
	// SeekMs is the lowering time used when the start position is unknown.
	SeekMs = 200

	// Reverse bits.
	ReverseWiring      = 1
	ReverseOrientation = 2
)

// ValidPosition reports whether p is a position a move can target.
func ValidPosition(p string) bool {
	return p == Open || p == Closed || p == Half
}

// Request is a position change as desired by the shadow.
type Request struct {
	Current   string
	Target    string
	DurationS int
	Reverse   int
}

// Plan is the derived move. Already means no motor action is needed.
type Plan struct {
	Direction  Direction
	DurationMs int
	Already    bool
}

// PlanMove validates r and derives direction and duration.
//
// Derivation order: endpoint/half rules, then orientation inversion, then
// the unknown-start seek clamp, then raise scaling. Wiring inversion is
// applied later, at the motor.
func PlanMove(r Request) (Plan, error) {
	if !ValidPosition(r.Target) {
		return Plan{}, &errcode.E{C: errcode.InvalidPosition, Op: "plan",
			Msg: fmt.Sprintf("unrecognized position: %s", r.Target)}
	}
	if r.DurationS > MaxDurationS {
		return Plan{}, &errcode.E{C: errcode.InvalidDuration, Op: "plan",
			Msg: fmt.Sprintf("duration: %d is longer than max value: %d", r.DurationS, MaxDurationS)}
	}
	if r.DurationS < 1 {
		return Plan{}, &errcode.E{C: errcode.InvalidDuration, Op: "plan",
			Msg: fmt.Sprintf("duration: %d is zero or negative", r.DurationS)}
	}
	if r.Current == r.Target {
		return Plan{Already: true}, nil
	}

	p := Plan{Direction: Lower, DurationMs: r.DurationS * 1000}
	if r.Target == Open {
		p.Direction = Raise
	}
	if r.Target == Half {
		p.DurationMs >>= 1
		if r.Current == Closed {
			p.Direction = Raise
		}
	}
	// Half to an endpoint is half the travel again.
	if r.Current == Half {
		p.DurationMs >>= 1
	}
	if r.Reverse&ReverseOrientation != 0 {
		p.Direction ^= 1
	}
	if !ValidPosition(r.Current) && p.Direction == Lower {
		p.DurationMs = SeekMs
	}
	if p.Direction == Raise {
		p.DurationMs += p.DurationMs / 20
	}
	return p, nil
}

// Confirmed reports whether a finished move may be trusted to have reached
// its target. A lowering move cut short by a stall may have stopped on an
// obstruction rather than the end stop.
func (p Plan) Confirmed(elapsedMs int) bool {
	return p.Direction == Raise || elapsedMs >= p.DurationMs
}

// Resolve returns the position to record after a move.
func (p Plan) Resolve(target string, elapsedMs int) string {
	if p.Confirmed(elapsedMs) {
		return target
	}
	return types.Unknown
}
