// Single-writer enforcement for beginEdit.
//
// editLock wraps a non-blocking flock(2)/LockFileEx so that at most one
// Edit exists for a given file at a time (§4.1 "Edit is single-writer";
// §5 "beginEdit contends on a file-level lock and fails immediately
// (non-blocking) with EditInProgress when held"). In-memory files skip
// the OS lock entirely and use a plain mutex-backed TryLock instead,
// since there is no shared fd for other processes to contend on anyway.
package snapdb

import (
	"os"
	"sync"
)

// editLock is satisfied by both the OS-file-backed and in-memory
// implementations below.
type editLock interface {
	TryLock() bool
	Unlock()
}

// flockEditLock coordinates OS-level advisory locks with safe handle
// teardown. mu serialises the syscall against the handle swap that
// ChangeExtension and ChangeShareMode make on f, so the fd cannot be
// invalidated mid-syscall.
type flockEditLock struct {
	mu     sync.Mutex
	f      *os.File
	locked bool
}

func newFlockEditLock(f *os.File) *flockEditLock { return &flockEditLock{f: f} }

// TryLock attempts a non-blocking exclusive flock. It returns false
// (never blocks) if another process/handle already holds it.
func (l *flockEditLock) TryLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil || l.locked {
		return false
	}
	ok := l.tryLock()
	if ok {
		l.locked = true
	}
	return ok
}

func (l *flockEditLock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil || !l.locked {
		return
	}
	l.unlock()
	l.locked = false
}

// memEditLock is a plain mutex TryLock for in-memory-backed files.
type memEditLock struct {
	mu sync.Mutex
}

func (l *memEditLock) TryLock() bool { return l.mu.TryLock() }
func (l *memEditLock) Unlock()       { l.mu.Unlock() }
