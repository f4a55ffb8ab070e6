// Package conv appends numbers to byte slices without fmt or strconv,
// which keeps them cheap on the device build.
package conv

const hexDigits = "0123456789abcdef"

// AppendInt appends the base-10 form of n.
func AppendInt(dst []byte, n int64) []byte {
	var buf [20]byte
	i := len(buf)
	u := uint64(n)
	if n < 0 {
		u = uint64(-n)
	}
	for {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
		if u == 0 {
			break
		}
	}
	if n < 0 {
		dst = append(dst, '-')
	}
	return append(dst, buf[i:]...)
}

// AppendHex appends src as lowercase hex, two digits per byte.
func AppendHex(dst, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	return dst
}

// Itoa is AppendInt into a fresh string.
func Itoa(n int) string {
	var buf [20]byte
	return string(AppendInt(buf[:0], int64(n)))
}
