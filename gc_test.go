// Block reclamation tests (§3 "reclaimable", §5 "minLiveSequence"):
// blocks orphaned by copy-on-write must come back as free-list entries
// a later Edit reuses, rather than letting lastAllocated grow forever.
//
// A block orphaned by the edit that commits sequence S only becomes
// reclaimable once every live snapshot's sequence is strictly greater
// than S (reclaimPending's deletedAt < min), so these tests drive four
// edits: the first builds the tree, the second rewrites it (orphaning
// first-edit blocks at sequence S2), and the third's commit (sequence
// S3) is what finally makes S2's orphans reclaimable for a fourth edit.
package snapdb

import "testing"

func openPrimaryTreeForEdit(t *testing.T, edit *Edit) *SortedTree {
	t.Helper()
	stream, err := edit.OpenSubFile(SubFileName{
		Purpose:   PrimaryArchivePurpose,
		KeyType:   newU64Key().TypeGUID(),
		ValueType: newU64Value().TypeGUID(),
	})
	if err != nil {
		t.Fatalf("OpenSubFile: %v", err)
	}
	tree, err := OpenTree(stream, newU64Key, newU64Value)
	if err != nil {
		t.Fatalf("OpenTree: %v", err)
	}
	return tree
}

func addRange(t *testing.T, tree *SortedTree, lo, hi uint64) {
	t.Helper()
	for i := lo; i < hi; i++ {
		if _, err := tree.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}
}

func TestReclaimedBlocksAreReusedNotGrown(t *testing.T) {
	f := openTestFile(t)

	edit1, tree := createTestTree(t, f)
	addRange(t, tree, 0, 500)
	if err := edit1.Commit(); err != nil {
		t.Fatalf("edit1 Commit: %v", err)
	}

	edit2, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit edit2: %v", err)
	}
	addRange(t, openPrimaryTreeForEdit(t, edit2), 500, 600)
	if err := edit2.Commit(); err != nil {
		t.Fatalf("edit2 Commit: %v", err)
	}
	lastAllocatedAfterEdit2 := f.header.lastAllocated

	edit3, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit edit3: %v", err)
	}
	addRange(t, openPrimaryTreeForEdit(t, edit3), 600, 610)
	if err := edit3.Commit(); err != nil {
		t.Fatalf("edit3 Commit: %v", err)
	}

	edit4, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit edit4: %v", err)
	}
	if len(edit4.freeList) == 0 {
		t.Fatalf("edit4 started with an empty free list; edit2's COW-orphaned blocks were never reclaimed")
	}
	addRange(t, openPrimaryTreeForEdit(t, edit4), 610, 620)
	if err := edit4.Commit(); err != nil {
		t.Fatalf("edit4 Commit: %v", err)
	}

	if f.header.lastAllocated > lastAllocatedAfterEdit2+50 {
		t.Fatalf("lastAllocated grew from %d to %d adding 20 more records across two edits; free-list reuse does not appear to be working",
			lastAllocatedAfterEdit2, f.header.lastAllocated)
	}
}

func TestRollbackReturnsFreeListEntriesIntact(t *testing.T) {
	f := openTestFile(t)

	edit1, tree := createTestTree(t, f)
	addRange(t, tree, 0, 300)
	if err := edit1.Commit(); err != nil {
		t.Fatalf("edit1 Commit: %v", err)
	}

	edit2, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit edit2: %v", err)
	}
	addRange(t, openPrimaryTreeForEdit(t, edit2), 300, 400)
	if err := edit2.Commit(); err != nil {
		t.Fatalf("edit2 Commit: %v", err)
	}

	edit3, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit edit3: %v", err)
	}
	addRange(t, openPrimaryTreeForEdit(t, edit3), 400, 410)
	if err := edit3.Commit(); err != nil {
		t.Fatalf("edit3 Commit: %v", err)
	}

	edit4, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit edit4: %v", err)
	}
	taken := len(edit4.freeList)
	if taken == 0 {
		t.Fatalf("edit4 started with an empty free list")
	}
	if err := edit4.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(f.freeList) != taken {
		t.Fatalf("free list after rollback has %d entries, want the %d taken entries restored", len(f.freeList), taken)
	}
}
