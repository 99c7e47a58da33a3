//go:build unix

package lock

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/shipctl/ship/pkg/types"
)

// maxAttempts bounds retries when the file is replaced between open and flock.
const maxAttempts = 3

// TryLock acquires the lock without waiting.
//
// Returns:
//   - error: types.ErrAlreadyRunning if another holder owns the lock, another error
//     if the file could not be opened.
func (l *FileLock) TryLock() error {
	if l.file != nil {
		return nil
	}

	for range maxAttempts {
		file, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, lockFileMode)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", errOpenLock, l.path, err)
		}

		if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			_ = file.Close()

			if errors.Is(err, unix.EWOULDBLOCK) {
				logrus.WithField("path", l.path).Debug("Update lock is held by another process")

				return types.ErrAlreadyRunning
			}

			return fmt.Errorf("%w: %s: %w", errOpenLock, l.path, err)
		}

		// The previous holder may have removed the path between our open and flock.
		if !samePath(file, l.path) {
			_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
			_ = file.Close()

			continue
		}

		if err := writePID(file); err != nil {
			logrus.WithError(err).WithField("path", l.path).Debug("Failed to record PID in lock file")
		}

		l.file = file

		logrus.WithField("path", l.path).Debug("Acquired update lock")

		return nil
	}

	return types.ErrAlreadyRunning
}

// Unlock removes the lock file and releases the lock.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return errNotHeld
	}

	file := l.file
	l.file = nil

	removeErr := os.Remove(l.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}

	unlockErr := unix.Flock(int(file.Fd()), unix.LOCK_UN)
	closeErr := file.Close()

	logrus.WithField("path", l.path).Debug("Released update lock")

	return errors.Join(removeErr, unlockErr, closeErr)
}

func samePath(file *os.File, path string) bool {
	opened, err := file.Stat()
	if err != nil {
		return false
	}

	current, err := os.Stat(path)
	if err != nil {
		return false
	}

	return os.SameFile(opened, current)
}
