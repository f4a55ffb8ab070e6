package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thingcode-go/errcode"
	"thingcode-go/services/hal"
	"thingcode-go/types"
)

func sample() types.CurrentState {
	return types.CurrentState{
		Params: types.Params{"sleep": 300, "test": "none", "test_param": 0, "position": "open"},
		History: []types.OperationRecord{
			{Op: "position", Value: "open", Timestamp: 1700000000, Done: true, Status: "Done: new position: open; motor on for: 10500 msec"},
			{Op: "test", Value: "current", Timestamp: 1690000000, Done: true, Status: "Pass: Current: 3  BusVolts: 12000"},
		},
	}
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "state", "state.json")),
		"memory": NewMemoryStore(&hal.RAMMemory{Cap: 2048}),
	}
}

func TestRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Load()
			assert.False(t, ok)
			assert.Equal(t, errcode.Empty, errcode.Of(err))

			require.NoError(t, s.Save(sample()))
			st, ok, err := s.Load()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "open", st.Params.String("position", ""))
			assert.Equal(t, 300, st.Params.Int("sleep", 0))
			require.Len(t, st.History, 2)
			assert.Equal(t, "position", st.History[0].Op)
			assert.True(t, st.History[0].Done)
			assert.Equal(t, int64(1700000000), st.History[0].Timestamp)
		})
	}
}

func TestSaveWithoutHistory(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(types.CurrentState{Params: types.BaseParams()}))
			st, ok, err := s.Load()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Empty(t, st.History)
			assert.Equal(t, "none", st.Params.String("test", ""))
		})
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"params":`), 0o600))
	_, ok, err := NewFileStore(path).Load()
	assert.False(t, ok)
	assert.Equal(t, errcode.Corrupt, errcode.Of(err))

	require.NoError(t, os.WriteFile(path, []byte(`{"history":[]}`), 0o600))
	_, ok, err = NewFileStore(path).Load()
	assert.False(t, ok)
	assert.Equal(t, errcode.Corrupt, errcode.Of(err))
}

func TestFileStoreLeavesNoTemporaries(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, s.Save(sample()))
	require.NoError(t, s.Save(sample()))
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStoreRejectsDamage(t *testing.T) {
	mem := &hal.RAMMemory{Cap: 2048}
	s := NewMemoryStore(mem)
	require.NoError(t, s.Save(sample()))
	good, err := mem.ReadMemory()
	require.NoError(t, err)

	cases := map[string]func(b []byte) []byte{
		"flipped payload": func(b []byte) []byte { b[10] ^= 0xff; return b },
		"bad magic":       func(b []byte) []byte { b[0] = 'X'; return b },
		"truncated":       func(b []byte) []byte { return b[:len(b)-3] },
		"short":           func(b []byte) []byte { return b[:5] },
	}
	for name, damage := range cases {
		t.Run(name, func(t *testing.T) {
			b := damage(append([]byte(nil), good...))
			require.NoError(t, mem.WriteMemory(b))
			_, ok, err := s.Load()
			assert.False(t, ok)
			assert.Equal(t, errcode.Corrupt, errcode.Of(err))
		})
	}
}

func TestMemoryStoreTooLarge(t *testing.T) {
	s := NewMemoryStore(&hal.RAMMemory{Cap: 32})
	err := s.Save(sample())
	assert.Equal(t, errcode.TooLarge, errcode.Of(err))
}

func TestHistoryBoundedOnLoad(t *testing.T) {
	st := sample()
	st.History = append(st.History, types.OperationRecord{Op: "test", Done: true})
	s := NewMemoryStore(&hal.RAMMemory{Cap: 2048})
	require.NoError(t, s.Save(st))
	got, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.History, types.HistoryLen)
}

func TestMemoryStoreOnFlashSurvivesReset(t *testing.T) {
	dev := hal.NewFakeFlash(8192)
	require.NoError(t, NewMemoryStore(&hal.BlockMemory{Dev: dev, Cap: 4096}).Save(sample()))

	// After a reset the board builds a new memory over the same flash.
	st, ok, err := NewMemoryStore(&hal.BlockMemory{Dev: dev, Cap: 4096}).Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "open", st.Params.String("position", ""))
	assert.Equal(t, 300, st.Params.Int("sleep", 0))
	require.Len(t, st.History, 2)

	// A write torn after the erase leaves a partial frame.
	good := append([]byte(nil), dev.B[:64]...)
	require.NoError(t, dev.EraseBlocks(0, 1))
	_, err = dev.WriteAt(good[:40], 0)
	require.NoError(t, err)
	_, ok, err = NewMemoryStore(&hal.BlockMemory{Dev: dev, Cap: 4096}).Load()
	assert.False(t, ok)
	assert.Equal(t, errcode.Corrupt, errcode.Of(err))
}
