//go:build unix

package store

import (
	"os"

	"golang.org/x/sys/unix"

	"thingcode-go/errcode"
)

// lockFile takes an exclusive advisory lock so a CLI inspecting the state
// never reads it mid-save.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errcode.Wrap(errcode.Error, "lock", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, errcode.Wrap(errcode.Error, "lock", err)
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
