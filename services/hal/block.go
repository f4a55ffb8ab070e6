package hal

import (
	"bytes"
	"io"
	"sync"

	"thingcode-go/errcode"
)

// BlockDevice is the part of an erase-before-write device such as
// machine.Flash that BlockMemory needs. Erase takes block indices.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
	WriteBlockSize() int64
	EraseBlockSize() int64
	EraseBlocks(start, length int64) error
}

// BlockMemory keeps one record at the start of a block device. It survives
// reset and power loss. A write interrupted between erase and program
// leaves an erased or torn region, which the caller's framing rejects.
type BlockMemory struct {
	mu  sync.Mutex
	Dev BlockDevice
	Cap int
}

func (m *BlockMemory) Size() int { return m.Cap }

// ReadMemory returns Cap bytes, or nothing when the region is erased.
func (m *BlockMemory) ReadMemory() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read()
}

func (m *BlockMemory) read() ([]byte, error) {
	b := make([]byte, m.Cap)
	if _, err := m.Dev.ReadAt(b, 0); err != nil && err != io.EOF {
		return nil, errcode.Wrap(errcode.Error, "memory_read", err)
	}
	for _, c := range b {
		if c != 0xFF {
			return b, nil
		}
	}
	return nil, nil
}

// WriteMemory erases the blocks under Cap and programs b padded with the
// erased value to the write block size. An unchanged record is not
// rewritten, to spare erase cycles.
func (m *BlockMemory) WriteMemory(b []byte) error {
	if len(b) > m.Cap || int64(m.Cap) > m.Dev.Size() {
		return &errcode.E{C: errcode.TooLarge, Op: "memory_write"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, err := m.read(); err == nil && len(cur) >= len(b) && bytes.Equal(cur[:len(b)], b) && erasedFrom(cur, len(b)) {
		return nil
	}

	eb := m.Dev.EraseBlockSize()
	if err := m.Dev.EraseBlocks(0, (int64(m.Cap)+eb-1)/eb); err != nil {
		return errcode.Wrap(errcode.Error, "memory_erase", err)
	}
	wb := m.Dev.WriteBlockSize()
	n := (int64(len(b)) + wb - 1) / wb * wb
	buf := bytes.Repeat([]byte{0xFF}, int(n))
	copy(buf, b)
	if _, err := m.Dev.WriteAt(buf, 0); err != nil {
		return errcode.Wrap(errcode.Error, "memory_write", err)
	}
	return nil
}

func erasedFrom(b []byte, i int) bool {
	for _, c := range b[i:] {
		if c != 0xFF {
			return false
		}
	}
	return true
}
