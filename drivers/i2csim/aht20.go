package i2csim

import "thingcode-go/drivers/aht20"

// AHT20 returns a device function that reports s once triggered. Status
// reads answer calibrated; a read before any trigger answers busy.
func AHT20(s aht20.Sample) func(w, r []byte) error {
	triggered := false
	return func(w, r []byte) error {
		switch {
		case len(w) > 0 && w[0] == 0xAC:
			triggered = true
		case len(w) > 0 && len(r) > 0:
			r[0] = 0x08
		case len(r) > 0:
			status := byte(0x08)
			if !triggered {
				status |= 0x80
			}
			f := aht20.Encode(s, status)
			copy(r, f[:])
		}
		return nil
	}
}
