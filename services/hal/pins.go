package hal

import (
	"strings"

	"thingcode-go/errcode"
	"thingcode-go/x/conv"
)

// Output claims pin n as a digital output at level.
func Output(f PinFactory, n int, level bool) (GPIOPin, error) {
	p, ok := f.ByNumber(n)
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "output", Msg: conv.Itoa(n)}
	}
	if err := p.ConfigureOutput(level); err != nil {
		return nil, err
	}
	return p, nil
}

// Float returns a pin to a high-impedance input so it cannot disturb
// reset-strap levels while the board sleeps.
func Float(p GPIOPin) {
	if p != nil {
		_ = p.ConfigureInput(PullNone)
	}
}

// ParsePull accepts "up", "down" or anything else for none.
func ParsePull(s string) Pull {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "pullup":
		return PullUp
	case "down", "pulldown":
		return PullDown
	default:
		return PullNone
	}
}

// ThingID formats a chip id the way the board's shadow is named:
// prefix + hex of the id bytes in reverse order.
func ThingID(prefix string, id []byte) string {
	rev := make([]byte, len(id))
	for i, b := range id {
		rev[len(id)-1-i] = b
	}
	return string(conv.AppendHex([]byte(prefix), rev))
}
