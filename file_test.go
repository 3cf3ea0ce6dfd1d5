// File lifecycle, commit/rollback, and header double-buffer recovery
// tests. These exercise the guarantee §5 rests everything else on:
// a reader never observes a partially-committed archive, and a crash
// between writing the inactive header slot and flipping activeSlot
// still leaves Open able to recover the last good header.
package snapdb

import (
	"os"
	"testing"
)

func TestCreateInMemoryThenCloseIsIdempotent(t *testing.T) {
	f, err := CreateInMemory(4096, Config{})
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestCreateRejectsBadBlockSize(t *testing.T) {
	if _, err := CreateInMemory(100, Config{}); KindOf(err) != KindInvalidArgument {
		t.Fatalf("non-power-of-two block size: got %v, want KindInvalidArgument", err)
	}
	if _, err := CreateInMemory(256, Config{}); KindOf(err) != KindInvalidArgument {
		t.Fatalf("below MinBlockSize: got %v, want KindInvalidArgument", err)
	}
}

// TestCommitPersistsAcrossReopen verifies that a committed tree survives
// a Close/Open round-trip through a real file, not just the in-memory
// header the writer held onto.
func TestCommitPersistsAcrossReopen(t *testing.T) {
	f, path := openTestFileOnDisk(t)
	edit, tree := createTestTree(t, f)
	for i := uint64(0); i < 50; i++ {
		if _, err := tree.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}
	if err := edit.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, false, Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	snap := reopened.Snapshot()
	defer snap.Release()
	tree2 := openTestTree(t, snap)

	out := u64Value(0)
	for i := uint64(0); i < 50; i++ {
		ok, err := tree2.TryGet(u64Key(i), out)
		if err != nil {
			t.Fatalf("TryGet(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("TryGet(%d): not found after reopen", i)
		}
		if out.(*Float64Value).V != float64(i) {
			t.Fatalf("TryGet(%d) = %v, want %v", i, out.(*Float64Value).V, float64(i))
		}
	}
}

// TestRollbackDiscardsChanges verifies that a rolled-back Edit leaves no
// trace: the sub-file it created never becomes visible to any snapshot.
func TestRollbackDiscardsChanges(t *testing.T) {
	f := openTestFile(t)
	edit, tree := createTestTree(t, f)
	if _, err := tree.TryAdd(u64Key(1), u64Value(1)); err != nil {
		t.Fatalf("TryAdd: %v", err)
	}
	if err := edit.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	snap := f.Snapshot()
	defer snap.Release()
	if subFiles := snap.SubFiles(); len(subFiles) != 0 {
		t.Fatalf("SubFiles after rollback = %v, want none", subFiles)
	}
}

// TestHeaderCorruptionFallsBackToOtherSlot corrupts the stale (inactive)
// header slot after a commit and verifies Open still recovers using the
// other, still-valid slot rather than failing outright — the scenario
// the double-buffered header exists for (§5 "On open...").
func TestHeaderCorruptionFallsBackToOtherSlot(t *testing.T) {
	f, path := openTestFileOnDisk(t)
	edit, tree := createTestTree(t, f)
	if _, err := tree.TryAdd(u64Key(7), u64Value(7)); err != nil {
		t.Fatalf("TryAdd: %v", err)
	}
	if err := edit.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	staleSlot := f.activeSlot ^ 1
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	corruptHeaderSlot(t, path, f.BlockSize(), staleSlot)

	reopened, err := Open(path, false, Config{})
	if err != nil {
		t.Fatalf("Open after corrupting stale slot: %v", err)
	}
	defer reopened.Close()

	snap := reopened.Snapshot()
	defer snap.Release()
	tree2 := openTestTree(t, snap)
	out := u64Value(0)
	ok, err := tree2.TryGet(u64Key(7), out)
	if err != nil || !ok {
		t.Fatalf("TryGet(7) after recovery: ok=%v err=%v", ok, err)
	}
}

// TestBothHeaderSlotsCorruptIsUnrecoverable verifies Open reports
// KindCorrupt, rather than silently fabricating an empty archive, when
// neither header slot verifies.
func TestBothHeaderSlotsCorruptIsUnrecoverable(t *testing.T) {
	f, path := openTestFileOnDisk(t)
	blockSize := f.BlockSize()
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	corruptHeaderSlot(t, path, blockSize, 0)
	corruptHeaderSlot(t, path, blockSize, 1)

	if _, err := Open(path, false, Config{}); KindOf(err) != KindCorrupt {
		t.Fatalf("Open with both slots corrupt: got %v, want KindCorrupt", err)
	}
}

// corruptHeaderSlot flips the first payload byte of header slot
// (0 or 1), breaking its checksum without touching the other slot.
func corruptHeaderSlot(t *testing.T, path string, blockSize, slot int) {
	t.Helper()
	raw, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	defer raw.Close()

	off := int64(slot) * int64(blockSize)
	var b [1]byte
	if _, err := raw.ReadAt(b[:], off); err != nil {
		t.Fatalf("read byte to corrupt: %v", err)
	}
	b[0] ^= 0xff
	if _, err := raw.WriteAt(b[:], off); err != nil {
		t.Fatalf("write corrupted byte: %v", err)
	}
}
