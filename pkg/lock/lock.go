package lock

import (
	"errors"
	"os"
	"strconv"
)

// DefaultPath is the lock file used when none is configured.
const DefaultPath = "/tmp/ship.pid"

const lockFileMode = 0o644

var (
	// errOpenLock indicates the lock file could not be opened or created.
	errOpenLock = errors.New("failed to open lock file")
	// errNotHeld indicates Unlock was called without holding the lock.
	errNotHeld = errors.New("lock is not held")
)

// FileLock is an exclusive lock bound to a path.
//
// A FileLock is not safe for concurrent use by multiple goroutines; create one per
// acquirer.
type FileLock struct {
	path string
	file *os.File
}

// New creates a FileLock for path, or DefaultPath when path is empty.
func New(path string) *FileLock {
	if path == "" {
		path = DefaultPath
	}

	return &FileLock{path: path}
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	return l.path
}

// Held reports whether this FileLock currently owns the lock.
func (l *FileLock) Held() bool {
	return l.file != nil
}

func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}

	_, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)

	return err
}
