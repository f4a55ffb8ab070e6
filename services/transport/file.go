package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

// File keeps each shadow as <Dir>/<thing>.json and applies updates locally.
// It stands in for a shadow service on the bench.
type File struct {
	Dir string
	Now func() int64

	path string
}

func (f *File) Connect(_ context.Context, thing string) error {
	if f.Dir == "" {
		return &errcode.E{C: errcode.Transport, Op: "connect", Msg: "no shadow directory"}
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return errcode.Wrap(errcode.Transport, "connect", err)
	}
	if f.Now == nil {
		f.Now = func() int64 { return time.Now().Unix() }
	}
	f.path = filepath.Join(f.Dir, thing+".json")
	return nil
}

func (f *File) load() (*types.Document, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &types.Document{State: types.Section{Desired: map[string]any{}}}, nil
	}
	if err != nil {
		return nil, errcode.Wrap(errcode.Transport, "get", err)
	}
	// Stored documents may carry only a reported section.
	var doc types.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, &errcode.E{C: errcode.Malformed, Op: "get", Err: err}
	}
	if doc.State.Desired == nil {
		doc.State.Desired = map[string]any{}
	}
	return &doc, nil
}

func (f *File) Get(context.Context) (*types.Document, error) {
	if f.path == "" {
		return nil, notConnected("get")
	}
	return f.load()
}

func (f *File) Update(_ context.Context, body []byte) error {
	if f.path == "" {
		return notConnected("update")
	}
	u, err := types.DecodeUpdate(body)
	if err != nil {
		return err
	}
	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.ApplyUpdate(u, f.Now())
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errcode.Wrap(errcode.Transport, "update", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errcode.Wrap(errcode.Transport, "update", err)
	}
	return errcode.Wrap(errcode.Transport, "update", os.Rename(tmp, f.path))
}

func (f *File) Disconnect() error {
	f.path = ""
	return nil
}
