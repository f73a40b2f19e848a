package coordinator

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock wraps an advisory exclusive flock on coordinator.lock (spec
// §4.6, §6.3). Held by the master for its entire lifetime; released on
// graceful exit or process death (the kernel drops flock locks when the
// holding file descriptor closes, including on crash).
type fileLock struct {
	f *os.File
}

// tryAcquireLock attempts a non-blocking exclusive lock on path, creating
// the file if necessary. It returns (nil, false, nil) if the lock is held
// by someone else, rather than an error -- that is the expected "become a
// slave" outcome, not a failure.
func tryAcquireLock(path string) (*fileLock, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("coordinator: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("coordinator: flock: %w", err)
	}
	return &fileLock{f: f}, true, nil
}

// forceAcquireLock is used when a slave cannot connect to the socket a
// live lock implies (stale socket, lock held by a dead process): it
// removes the lock file and re-acquires, electing the caller as the new
// master (spec §4.6 "forces the lock and re-elects itself as master").
func forceAcquireLock(path string) (*fileLock, error) {
	_ = os.Remove(path)
	lock, ok, err := tryAcquireLock(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("coordinator: lock still held immediately after forced removal")
	}
	return lock, nil
}

// release drops the lock and closes the underlying file descriptor. Safe
// to call once; the kernel also releases on process exit/crash.
func (l *fileLock) release(path string) error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	_ = os.Remove(path)
	return err
}
