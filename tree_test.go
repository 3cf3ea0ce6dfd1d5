// Sorted tree insert/split/scan/remove tests. Each test commits its
// tree (or reads within the same Edit) so teardown matches the real
// usage pattern: a tree is only durable once its Edit commits.
package snapdb

import (
	"math/rand"
	"testing"
)

func TestTryAddRejectsDuplicateKey(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)

	added, err := tree.TryAdd(u64Key(5), u64Value(5))
	if err != nil || !added {
		t.Fatalf("first TryAdd: added=%v err=%v", added, err)
	}
	added, err = tree.TryAdd(u64Key(5), u64Value(99))
	if err != nil {
		t.Fatalf("second TryAdd: %v", err)
	}
	if added {
		t.Fatalf("TryAdd reported a duplicate key as added")
	}

	out := u64Value(0)
	ok, err := tree.TryGet(u64Key(5), out)
	if err != nil || !ok {
		t.Fatalf("TryGet(5): ok=%v err=%v", ok, err)
	}
	if out.(*Float64Value).V != 5 {
		t.Fatalf("duplicate TryAdd overwrote the original value: got %v", out.(*Float64Value).V)
	}
}

func TestTryGetMissingKey(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)
	if _, err := tree.TryAdd(u64Key(1), u64Value(1)); err != nil {
		t.Fatalf("TryAdd: %v", err)
	}

	out := u64Value(0)
	ok, err := tree.TryGet(u64Key(2), out)
	if err != nil {
		t.Fatalf("TryGet: %v", err)
	}
	if ok {
		t.Fatalf("TryGet reported a missing key as found")
	}
}

// TestInsertSplitAndScanOrdered inserts enough records, in random
// order, to force several leaf splits and at least one root growth
// (§4.3.3 step 5), then verifies a full scan returns every key exactly
// once and in ascending order.
func TestInsertSplitAndScanOrdered(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)

	const n = 4000
	order := rand.New(rand.NewSource(1)).Perm(n)
	for _, i := range order {
		added, err := tree.TryAdd(u64Key(uint64(i)), u64Value(float64(i)))
		if err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
		if !added {
			t.Fatalf("TryAdd(%d) reported an unexpected duplicate", i)
		}
	}

	scanner := tree.CreateScanner()
	k, v := newU64Key(), newU64Value()
	var prev uint64
	seen := 0
	for {
		ok, err := scanner.Read(k, v)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			break
		}
		got := k.(*Uint64Key).V
		if seen > 0 && got <= prev {
			t.Fatalf("scan out of order: prev=%d got=%d", prev, got)
		}
		prev = got
		seen++
	}
	if seen != n {
		t.Fatalf("scanned %d records, want %d", seen, n)
	}
}

// TestSequentialAppendFastPath inserts strictly increasing keys, the
// workload splitFixedLeaf's split point is tuned for: each split should
// put the new record alone in the right sibling rather than
// redistributing the existing leaf's contents.
func TestSequentialAppendFastPath(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)

	const n = 2000
	for i := uint64(0); i < n; i++ {
		if _, err := tree.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}

	lower, upper, ok, err := tree.GetKeyRange()
	if err != nil {
		t.Fatalf("GetKeyRange: %v", err)
	}
	if !ok {
		t.Fatalf("GetKeyRange reported an empty tree")
	}
	if lower.(*Uint64Key).V != 0 || upper.(*Uint64Key).V != n-1 {
		t.Fatalf("GetKeyRange = [%d, %d], want [0, %d]", lower.(*Uint64Key).V, upper.(*Uint64Key).V, n-1)
	}
}

// TestTryAddRangeBulkLoad verifies the iterator-driven bulk insert path
// used by tree-stream replication inserts every pair the iterator
// yields and stops cleanly when it returns false.
func TestTryAddRangeBulkLoad(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)

	const n = 500
	next := uint64(0)
	added, err := tree.TryAddRange(func() (Key, Value, bool) {
		if next >= n {
			return nil, nil, false
		}
		k, v := u64Key(next), u64Value(float64(next))
		next++
		return k, v, true
	})
	if err != nil {
		t.Fatalf("TryAddRange: %v", err)
	}
	if added != n {
		t.Fatalf("TryAddRange added %d records, want %d", added, n)
	}

	out := u64Value(0)
	for i := uint64(0); i < n; i++ {
		ok, err := tree.TryGet(u64Key(i), out)
		if err != nil || !ok {
			t.Fatalf("TryGet(%d) after TryAddRange: ok=%v err=%v", i, ok, err)
		}
	}
}

// TestTryRemoveThenScanSkipsEmptyLeaves exercises the no-merge-on-remove
// simplification documented in DESIGN.md: removing every key from a
// leaf leaves it empty rather than merged away, and a scanner must
// still skip over it via the sibling link instead of stopping short.
func TestTryRemoveThenScanSkipsEmptyLeaves(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)

	const n = 3000
	for i := uint64(0); i < n; i++ {
		if _, err := tree.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}

	// Remove every key in the first third of the key space — enough to
	// empty several whole leaves outright.
	for i := uint64(0); i < n/3; i++ {
		removed, err := tree.TryRemove(u64Key(i))
		if err != nil {
			t.Fatalf("TryRemove(%d): %v", i, err)
		}
		if !removed {
			t.Fatalf("TryRemove(%d) reported key not found", i)
		}
	}

	removed, err := tree.TryRemove(u64Key(0))
	if err != nil {
		t.Fatalf("TryRemove(already removed): %v", err)
	}
	if removed {
		t.Fatalf("TryRemove reported an already-removed key as found")
	}

	scanner := tree.CreateScanner()
	k, v := newU64Key(), newU64Value()
	seen := uint64(0)
	for {
		ok, err := scanner.Read(k, v)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			break
		}
		if k.(*Uint64Key).V < n/3 {
			t.Fatalf("scan returned removed key %d", k.(*Uint64Key).V)
		}
		seen++
	}
	if want := n - n/3; seen != want {
		t.Fatalf("scanned %d records after removal, want %d", seen, want)
	}
}
