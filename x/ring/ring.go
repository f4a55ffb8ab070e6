// Package ring provides fixed-capacity sample rings for signed integer
// readings. Storage is allocated once; pushes never allocate.
//
// Two flavours share one type:
//
//	Fill  - records the first N samples and then ignores further pushes
//	Wrap  - overwrites the oldest sample once full
package ring

// Mode selects how a Ring behaves once full.
type Mode uint8

const (
	Fill Mode = iota
	Wrap
)

// Ring is a single-owner sample buffer. Capacity must be a power of two >= 2.
type Ring struct {
	buf  []int32
	mask uint32
	wr   uint32 // monotonic write count
	mode Mode
}

// New allocates a ring of the given power-of-two size.
func New(size int, mode Mode) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("ring: size must be power of two >= 2")
	}
	return &Ring{
		buf:  make([]int32, size),
		mask: uint32(size - 1),
		mode: mode,
	}
}

func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of valid samples held.
func (r *Ring) Len() int {
	if r.wr > uint32(len(r.buf)) {
		return len(r.buf)
	}
	return int(r.wr)
}

// Full reports whether a Fill ring has stopped accepting samples.
func (r *Ring) Full() bool { return r.wr >= uint32(len(r.buf)) }

// Push records v. It reports false when a Fill ring is already full.
func (r *Ring) Push(v int32) bool {
	if r.mode == Fill && r.Full() {
		return false
	}
	r.buf[r.wr&r.mask] = v
	r.wr++
	return true
}

// Next is the slot index the next Push writes to.
func (r *Ring) Next() int { return int(r.wr & r.mask) }

// TrailingSum returns the sum of the n slots preceding the write position.
// Slots never written count as zero, so a fresh ring reads low.
func (r *Ring) TrailingSum(n int) int32 {
	if n > len(r.buf) {
		n = len(r.buf)
	}
	var sum int32
	for i := 1; i <= n; i++ {
		sum += r.buf[(r.wr-uint32(i))&r.mask]
	}
	return sum
}

// Samples copies the ring contents into dst in storage order starting at
// the write position, i.e. oldest to newest once a Wrap ring has wrapped.
// Fill rings are returned in slot order. dst is grown if needed.
func (r *Ring) Samples(dst []int32) []int32 {
	dst = dst[:0]
	if r.mode == Fill {
		return append(dst, r.buf...)
	}
	start := r.wr & r.mask
	for i := uint32(0); i < uint32(len(r.buf)); i++ {
		dst = append(dst, r.buf[(start+i)&r.mask])
	}
	return dst
}

// Reset rezeroes the storage and write position.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.wr = 0
}
