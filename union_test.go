// Union reader tests: merge order, duplicate suppression across
// scanners sharing a key space, seek-window clipping, and match
// filtering (§4.4).
package snapdb

import "testing"

// createTestTreeNamed is createTestTree but takes an already-open Edit,
// so two trees can coexist as separate sub-files within one Edit for
// union-reader tests that merge them.
func createTestTreeNamed(t *testing.T, edit *Edit, f *File) *SortedTree {
	t.Helper()
	name := SubFileName{
		Purpose:   PrimaryArchivePurpose,
		KeyType:   newU64Key().TypeGUID(),
		ValueType: newU64Value().TypeGUID(),
	}
	stream, err := edit.CreateSubFile(name)
	if err != nil {
		t.Fatalf("CreateSubFile: %v", err)
	}
	tree, err := CreateTree(stream, f.BlockSize(), fixedDef(), newU64Key, newU64Value)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	return tree
}

func drain(t *testing.T, r *UnionReader) []uint64 {
	t.Helper()
	var got []uint64
	k, v := newU64Key(), newU64Value()
	for {
		ok, err := r.ReadNext(k, v)
		if err != nil {
			t.Fatalf("ReadNext: %v", err)
		}
		if !ok {
			return got
		}
		got = append(got, k.(*Uint64Key).V)
	}
}

// TestUnionReaderMergesTwoTreesInOrder verifies that interleaved keys
// from two disjoint scanners come out in one ascending sequence.
func TestUnionReaderMergesTwoTreesInOrder(t *testing.T) {
	f := openTestFile(t)
	edit, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	defer edit.Rollback()

	evens := createTestTreeNamed(t, edit, f)
	odds := createTestTreeNamed(t, edit, f)
	for i := uint64(0); i < 200; i += 2 {
		if _, err := evens.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(evens, %d): %v", i, err)
		}
	}
	for i := uint64(1); i < 200; i += 2 {
		if _, err := odds.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(odds, %d): %v", i, err)
		}
	}

	reader, err := NewUnionReader(
		[]*Scanner{evens.CreateScanner(), odds.CreateScanner()},
		NewUnboundedSeekFilter(newU64Key),
		nil,
		newU64Key, newU64Value,
	)
	if err != nil {
		t.Fatalf("NewUnionReader: %v", err)
	}
	defer reader.Close()

	got := drain(t, reader)
	if len(got) != 200 {
		t.Fatalf("merged %d records, want 200", len(got))
	}
	for i, v := range got {
		if v != uint64(i) {
			t.Fatalf("merged[%d] = %d, want %d", i, v, i)
		}
	}
}

// TestUnionReaderDedupsSharedKeys verifies that when two scanners
// produce the same key, the union reader emits it once (§4.4.4).
func TestUnionReaderDedupsSharedKeys(t *testing.T) {
	f := openTestFile(t)
	edit, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	defer edit.Rollback()

	a := createTestTreeNamed(t, edit, f)
	b := createTestTreeNamed(t, edit, f)
	for i := uint64(0); i < 100; i++ {
		if _, err := a.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(a, %d): %v", i, err)
		}
	}
	for i := uint64(50); i < 150; i++ {
		if _, err := b.TryAdd(u64Key(i), u64Value(float64(i)+0.5)); err != nil {
			t.Fatalf("TryAdd(b, %d): %v", i, err)
		}
	}

	reader, err := NewUnionReader(
		[]*Scanner{a.CreateScanner(), b.CreateScanner()},
		NewUnboundedSeekFilter(newU64Key),
		nil,
		newU64Key, newU64Value,
	)
	if err != nil {
		t.Fatalf("NewUnionReader: %v", err)
	}
	defer reader.Close()

	got := drain(t, reader)
	if len(got) != 150 {
		t.Fatalf("merged %d records, want 150 (0..149 deduped)", len(got))
	}
	for i, v := range got {
		if v != uint64(i) {
			t.Fatalf("merged[%d] = %d, want %d", i, v, i)
		}
	}
}

// TestUnionReaderSeekWindowClipsOutput verifies a WindowSeekFilter
// restricts output to its windows and skips the gaps between them.
func TestUnionReaderSeekWindowClipsOutput(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)
	for i := uint64(0); i < 100; i++ {
		if _, err := tree.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}

	windows := NewWindowSeekFilter([]KeyWindow{
		{Start: u64Key(10), End: u64Key(20)},
		{Start: u64Key(80), End: u64Key(85)},
	})
	reader, err := NewUnionReader(
		[]*Scanner{tree.CreateScanner()},
		windows,
		nil,
		newU64Key, newU64Value,
	)
	if err != nil {
		t.Fatalf("NewUnionReader: %v", err)
	}
	defer reader.Close()

	got := drain(t, reader)
	want := (20 - 10 + 1) + (85 - 80 + 1)
	if len(got) != want {
		t.Fatalf("windowed scan returned %d records, want %d", len(got), want)
	}
	if got[0] != 10 || got[len(got)-1] != 85 {
		t.Fatalf("windowed scan = %v, want to start at 10 and end at 85", got)
	}
	for _, v := range got {
		if v > 20 && v < 80 {
			t.Fatalf("windowed scan returned %d, which falls in the gap between windows", v)
		}
	}
}

// TestUnionReaderMatchFilterExcludesRecords verifies a MatchFilter
// suppresses records without affecting ordering or window semantics.
func TestUnionReaderMatchFilterExcludesRecords(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)
	for i := uint64(0); i < 50; i++ {
		if _, err := tree.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}

	evensOnly := &PredicateMatchFilter{
		Predicate: func(key Key, value Value) bool {
			return key.(*Uint64Key).V%2 == 0
		},
	}
	reader, err := NewUnionReader(
		[]*Scanner{tree.CreateScanner()},
		NewUnboundedSeekFilter(newU64Key),
		evensOnly,
		newU64Key, newU64Value,
	)
	if err != nil {
		t.Fatalf("NewUnionReader: %v", err)
	}
	defer reader.Close()

	got := drain(t, reader)
	if len(got) != 25 {
		t.Fatalf("filtered scan returned %d records, want 25", len(got))
	}
	for _, v := range got {
		if v%2 != 0 {
			t.Fatalf("filtered scan returned odd key %d", v)
		}
	}
}

// TestUnionReaderCancel verifies Cancel takes effect on the next
// ReadNext call rather than requiring the reader to finish its current
// window first.
func TestUnionReaderCancel(t *testing.T) {
	f := openTestFile(t)
	_, tree := createTestTree(t, f)
	for i := uint64(0); i < 10; i++ {
		if _, err := tree.TryAdd(u64Key(i), u64Value(float64(i))); err != nil {
			t.Fatalf("TryAdd(%d): %v", i, err)
		}
	}

	reader, err := NewUnionReader(
		[]*Scanner{tree.CreateScanner()},
		NewUnboundedSeekFilter(newU64Key),
		nil,
		newU64Key, newU64Value,
	)
	if err != nil {
		t.Fatalf("NewUnionReader: %v", err)
	}
	defer reader.Close()

	reader.Cancel()
	k, v := newU64Key(), newU64Value()
	ok, err := reader.ReadNext(k, v)
	if err != nil {
		t.Fatalf("ReadNext after Cancel: %v", err)
	}
	if ok {
		t.Fatalf("ReadNext returned a record after Cancel")
	}
}
