//go:build !unix

package lock

import (
	"errors"
	"fmt"
	"os"

	"github.com/shipctl/ship/pkg/types"
)

// TryLock acquires the lock by exclusively creating the lock file.
//
// Without advisory locks a file left by a killed holder blocks later runs until it is
// removed by hand.
func (l *FileLock) TryLock() error {
	if l.file != nil {
		return nil
	}

	file, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, lockFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return types.ErrAlreadyRunning
		}

		return fmt.Errorf("%w: %s: %w", errOpenLock, l.path, err)
	}

	_ = writePID(file)
	l.file = file

	return nil
}

// Unlock removes the lock file and releases the lock.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return errNotHeld
	}

	closeErr := l.file.Close()
	l.file = nil

	removeErr := os.Remove(l.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}

	return errors.Join(closeErr, removeErr)
}
