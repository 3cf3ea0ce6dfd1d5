//go:build windows

// LockFileEx/UnlockFileEx implementation for Windows.
// Both methods are called with l.mu held by TryLock/Unlock.
package snapdb

import (
	"syscall"
	"unsafe"
)

var (
	modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = modkernel32.NewProc("LockFileEx")
	procUnlockFileEx = modkernel32.NewProc("UnlockFileEx")
)

const (
	lockfileExclusiveLock   = 0x00000002
	lockfileFailImmediately = 0x00000001
)

func (l *flockEditLock) tryLock() bool {
	flags := uint32(lockfileExclusiveLock | lockfileFailImmediately)

	h := syscall.Handle(l.f.Fd())
	var overlapped syscall.Overlapped

	r1, _, _ := procLockFileEx.Call(
		uintptr(h),
		uintptr(flags),
		0,
		0xFFFFFFFF,
		0xFFFFFFFF,
		uintptr(unsafe.Pointer(&overlapped)),
	)
	return r1 != 0
}

func (l *flockEditLock) unlock() {
	h := syscall.Handle(l.f.Fd())
	var overlapped syscall.Overlapped

	procUnlockFileEx.Call(
		uintptr(h),
		0,
		0xFFFFFFFF,
		0xFFFFFFFF,
		uintptr(unsafe.Pointer(&overlapped)),
	)
}
