// Sequential-access adaptive binary search (§4.3.5). Tree descent and
// leaf lookup overwhelmingly probe keys adjacent to the last one
// searched — an append-heavy workload, or a scan walking forward — so a
// plain binary search wastes most of its probes re-confirming what the
// previous call already established. The adaptive variant remembers
// where it last landed and checks the immediate neighbors first.
package snapdb

// adaptiveBinarySearch finds the index in [0, recordCount) for which cmp
// returns 0, given cmp(i) compares the sought key against record i
// (negative if the key is less, positive if greater). hint is both read
// and updated in place and must be reset (e.g. to 0) whenever the caller
// moves to a different node. Returns the found index, or ^insertionPoint
// (bitwise NOT, so the caller can recover the insertion slot with ^ret)
// if no record equals the key.
func adaptiveBinarySearch(recordCount int, hint *int, cmp func(i int) int) int {
	if recordCount == 0 {
		*hint = 0
		return ^0
	}

	last := *hint
	if last < 0 {
		last = 0
	}
	if last > recordCount-1 {
		last = recordCount - 1
	}

	// Fast path: the previous probe landed on the final record and the
	// sought key is past it — the overwhelmingly common case for
	// sequential append.
	if last == recordCount-1 {
		if c := cmp(last); c > 0 {
			*hint = last
			return ^recordCount
		} else if c == 0 {
			*hint = last
			return last
		}
	}

	// Fast path: the sought key is exactly the record right after the
	// last one found — the common case for forward sequential scan.
	if last+1 < recordCount {
		if cmp(last+1) == 0 {
			*hint = last + 1
			return last + 1
		}
	}

	lo, hi := 0, recordCount-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c := cmp(mid)
		switch {
		case c == 0:
			*hint = mid
			return mid
		case c < 0:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	*hint = lo
	if lo > recordCount-1 {
		*hint = recordCount - 1
	}
	return ^lo
}

// keyBinarySearch runs adaptiveBinarySearch with cmp built from
// Key.CompareTo against the decoded keys at(i) returns. It never uses a
// key type's BinarySearcher; that dispatch happens in leafFind.
func keyBinarySearch(key Key, recordCount int, hint *int, at func(i int) Key) int {
	return adaptiveBinarySearch(recordCount, hint, func(i int) int {
		return key.CompareTo(at(i))
	})
}
