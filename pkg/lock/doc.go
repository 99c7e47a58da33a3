// Package lock provides the host-wide advisory lock that keeps update runs exclusive.
//
// A FileLock is acquired without blocking: if another holder exists, TryLock returns
// types.ErrAlreadyRunning right away. The holder writes its PID into the file and
// removes the file on Unlock. A holder that dies leaves the file behind, but the
// kernel drops the advisory lock with the process so the next run proceeds.
package lock
