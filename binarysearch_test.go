// Adaptive binary search tests (§4.3.5): correctness against a plain
// sorted slice, the insertion-point encoding for misses, and the
// sequential-access fast paths the hint exists for.
package snapdb

import "testing"

func cmpAgainst(values []int, target int) func(i int) int {
	return func(i int) int {
		switch {
		case target < values[i]:
			return -1
		case target > values[i]:
			return 1
		default:
			return 0
		}
	}
}

func TestAdaptiveBinarySearchFindsEveryElement(t *testing.T) {
	values := make([]int, 50)
	for i := range values {
		values[i] = i * 2
	}
	hint := 0
	for i, v := range values {
		got := adaptiveBinarySearch(len(values), &hint, cmpAgainst(values, v))
		if got != i {
			t.Fatalf("search(%d) = %d, want %d", v, got, i)
		}
	}
}

func TestAdaptiveBinarySearchReportsInsertionPointOnMiss(t *testing.T) {
	values := []int{0, 2, 4, 6, 8}
	hint := 0

	// Miss between elements: 3 belongs at index 2 (before the 4).
	got := adaptiveBinarySearch(len(values), &hint, cmpAgainst(values, 3))
	if got >= 0 {
		t.Fatalf("search(3) = %d, want a negative (not-found) result", got)
	}
	if ins := ^got; ins != 2 {
		t.Fatalf("insertion point for 3 = %d, want 2", ins)
	}

	// Miss past the end: 100 belongs at index len(values).
	got = adaptiveBinarySearch(len(values), &hint, cmpAgainst(values, 100))
	if ins := ^got; ins != len(values) {
		t.Fatalf("insertion point for 100 = %d, want %d", ins, len(values))
	}

	// Miss before the start: -1 belongs at index 0.
	got = adaptiveBinarySearch(len(values), &hint, cmpAgainst(values, -1))
	if ins := ^got; ins != 0 {
		t.Fatalf("insertion point for -1 = %d, want 0", ins)
	}
}

func TestAdaptiveBinarySearchEmptyRecordSet(t *testing.T) {
	hint := 5
	got := adaptiveBinarySearch(0, &hint, func(i int) int {
		t.Fatalf("cmp called against an empty record set")
		return 0
	})
	if ^got != 0 {
		t.Fatalf("search over 0 records = %d, want insertion point 0", ^got)
	}
	if hint != 0 {
		t.Fatalf("hint after empty search = %d, want reset to 0", hint)
	}
}

// TestAdaptiveBinarySearchSequentialFastPath drives the search the way a
// forward scan or sequential append does — always probing the key right
// after the last hit — and checks it still lands correctly even though
// the fast paths special-case exactly this access pattern.
func TestAdaptiveBinarySearchSequentialFastPath(t *testing.T) {
	const n = 1000
	values := make([]int, n)
	for i := range values {
		values[i] = i
	}
	hint := 0
	for i := 0; i < n; i++ {
		got := adaptiveBinarySearch(n, &hint, cmpAgainst(values, i))
		if got != i {
			t.Fatalf("sequential search(%d) = %d, want %d", i, got, i)
		}
		if hint != i {
			t.Fatalf("hint after finding %d = %d, want %d", i, hint, i)
		}
	}
}

func TestKeyBinarySearchUsesCompareTo(t *testing.T) {
	keys := []Key{u64Key(1), u64Key(3), u64Key(5), u64Key(7)}
	hint := 0
	got := keyBinarySearch(u64Key(5), len(keys), &hint, func(i int) Key { return keys[i] })
	if got != 2 {
		t.Fatalf("keyBinarySearch(5) = %d, want 2", got)
	}

	got = keyBinarySearch(u64Key(4), len(keys), &hint, func(i int) Key { return keys[i] })
	if got >= 0 {
		t.Fatalf("keyBinarySearch(4) = %d, want a miss", got)
	}
	if ins := ^got; ins != 2 {
		t.Fatalf("insertion point for 4 = %d, want 2", ins)
	}
}
