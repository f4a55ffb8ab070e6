package store

import (
	"errors"
	"os"
	"path/filepath"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

// FileStore keeps the state as JSON in one file. Saves go through a
// temporary file and a rename, so a torn write is never read back.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (f *FileStore) Load() (types.CurrentState, bool, error) {
	unlock, err := lockFile(f.Path + ".lock")
	if err != nil {
		return types.CurrentState{}, false, err
	}
	defer unlock()

	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return types.CurrentState{}, false, &errcode.E{C: errcode.Empty, Op: "load"}
	}
	if err != nil {
		return types.CurrentState{}, false, errcode.Wrap(errcode.Error, "load", err)
	}
	st, err := decode(b)
	if err != nil {
		return types.CurrentState{}, false, err
	}
	return st, true, nil
}

func (f *FileStore) Save(st types.CurrentState) error {
	b, err := encode(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return errcode.Wrap(errcode.Error, "save", err)
	}
	unlock, err := lockFile(f.Path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return errcode.Wrap(errcode.Error, "save", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errcode.Wrap(errcode.Error, "save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errcode.Wrap(errcode.Error, "save", err)
	}
	if err := tmp.Close(); err != nil {
		return errcode.Wrap(errcode.Error, "save", err)
	}
	return errcode.Wrap(errcode.Error, "save", os.Rename(name, f.Path))
}
