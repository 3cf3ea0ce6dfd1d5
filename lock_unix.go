//go:build unix || linux || darwin

// flock(2) implementation for Unix platforms.
// Both methods are called with l.mu held by TryLock/Unlock.
package snapdb

import "syscall"

func (l *flockEditLock) tryLock() bool {
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	return err == nil
}

func (l *flockEditLock) unlock() {
	syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
}
