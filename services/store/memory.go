package store

import (
	"encoding/binary"
	"hash/crc32"

	"thingcode-go/errcode"
	"thingcode-go/services/hal"
	"thingcode-go/types"
)

var magic = [4]byte{'T', 'C', 'S', '1'}

const frameOverhead = 4 + 4 + 4 // magic, length, crc

// MemoryStore frames the state into battery-backed memory:
//
//	magic[4] | len u32le | payload[len] | crc32(payload) u32le
//
// The whole frame is written in one call; a frame that fails any check
// reads as nothing restored.
type MemoryStore struct {
	mem hal.Memory
}

func NewMemoryStore(m hal.Memory) *MemoryStore { return &MemoryStore{mem: m} }

func (s *MemoryStore) Load() (types.CurrentState, bool, error) {
	b, err := s.mem.ReadMemory()
	if err != nil {
		return types.CurrentState{}, false, err
	}
	payload, err := unframe(b)
	if err != nil {
		return types.CurrentState{}, false, err
	}
	st, err := decode(payload)
	if err != nil {
		return types.CurrentState{}, false, err
	}
	return st, true, nil
}

func (s *MemoryStore) Save(st types.CurrentState) error {
	payload, err := encode(st)
	if err != nil {
		return err
	}
	if n := s.mem.Size(); n > 0 && len(payload)+frameOverhead > n {
		return &errcode.E{C: errcode.TooLarge, Op: "save"}
	}
	return s.mem.WriteMemory(frame(payload))
}

func frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+frameOverhead)
	out = append(out, magic[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(payload))
}

func unframe(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, &errcode.E{C: errcode.Empty, Op: "load"}
	}
	if len(b) < frameOverhead || [4]byte(b[:4]) != magic {
		return nil, &errcode.E{C: errcode.Corrupt, Op: "load", Msg: "bad header"}
	}
	n := int(binary.LittleEndian.Uint32(b[4:8]))
	if n > len(b)-frameOverhead {
		return nil, &errcode.E{C: errcode.Corrupt, Op: "load", Msg: "bad length"}
	}
	payload := b[8 : 8+n]
	if binary.LittleEndian.Uint32(b[8+n:12+n]) != crc32.ChecksumIEEE(payload) {
		return nil, &errcode.E{C: errcode.Corrupt, Op: "load", Msg: "bad crc"}
	}
	return payload, nil
}
