// Union reader (§4.4): merges several tree scanners (typically one per
// archive sub-file sharing a key space) into one monotonically
// non-decreasing, de-duplicated, seek-windowed, optionally filtered
// stream.
package snapdb

import (
	"sync/atomic"
	"time"
)

// UnionReader merges multiple BufferedScanners into a single sorted,
// de-duplicated stream (§4.4). Not safe for concurrent use — it is
// owned by one caller at a time; cancel() and its exported form Cancel
// are the only methods safe to call from another goroutine (§5).
type UnionReader struct {
	scanners    []*BufferedScanner
	seekFilter  SeekFilter
	matchFilter MatchFilter
	hasFilter   bool

	newKey   func() Key
	newValue func() Value

	upperBound  Key
	endOfStream bool
	pointCount  uint64
	safePoint   SafePointFunc
	safeInterval uint64

	cancelled   atomic.Bool
	timeoutStop func()
}

// NewUnionReader builds a reader over scanners, restricted to the
// windows seekFilter produces and (optionally) matchFilter. matchFilter
// may be nil, in which case every record in the seek windows is
// emitted.
func NewUnionReader(scanners []*Scanner, seekFilter SeekFilter, matchFilter MatchFilter, newKey func() Key, newValue func() Value) (*UnionReader, error) {
	u := &UnionReader{
		seekFilter:  seekFilter,
		matchFilter: matchFilter,
		hasFilter:   matchFilter != nil,
		newKey:      newKey,
		newValue:    newValue,
		upperBound:  newKey(),
		safeInterval: DefaultSafePointInterval,
	}
	u.scanners = make([]*BufferedScanner, len(scanners))
	for i, s := range scanners {
		u.scanners[i] = newBufferedScanner(s, newKey, newValue)
	}

	seekFilter.reset()
	if !seekFilter.nextWindow() {
		u.endOfStream = true
		return u, nil
	}
	start := seekFilter.startOfFrame()
	for _, bs := range u.scanners {
		if err := bs.seekToKey(start); err != nil {
			return nil, err
		}
	}
	u.sortScanners()
	if err := u.recomputeUpperBound(); err != nil {
		return nil, err
	}
	return u, nil
}

// SetSafePoint registers a callback invoked every safe-point interval
// emitted records (DefaultSafePointInterval unless overridden by
// SetSafePointInterval).
func (u *UnionReader) SetSafePoint(fn SafePointFunc) { u.safePoint = fn }

// SetSafePointInterval overrides how many records elapse between
// safe-point callback invocations.
func (u *UnionReader) SetSafePointInterval(n uint64) {
	if n > 0 {
		u.safeInterval = n
	}
}

// SetTimeout arranges for cancel() to be called automatically after d
// elapses. Calling it more than once replaces the previous timer.
func (u *UnionReader) SetTimeout(d time.Duration) {
	if u.timeoutStop != nil {
		u.timeoutStop()
	}
	timer := time.AfterFunc(d, u.cancel)
	u.timeoutStop = func() { timer.Stop() }
}

// cancel idempotently flips the cancellation flag, consulted at every
// slow-path entry of ReadNext. Safe to call from any goroutine.
func (u *UnionReader) cancel() { u.cancelled.Store(true) }

// Cancel is the exported form of cancel, for callers holding a
// *UnionReader across goroutines (e.g. a watchdog timer of their own).
func (u *UnionReader) Cancel() { u.cancel() }

func (u *UnionReader) sortScanners() {
	// Insertion sort: the merged scanner count is small (one per
	// archive), and after any single ReadNext step at most a couple of
	// entries have moved, so this is effectively linear in practice.
	s := u.scanners
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func less(a, b *BufferedScanner) bool {
	if a.cacheValid != b.cacheValid {
		return a.cacheValid // valid caches sort before invalid ones
	}
	if !a.cacheValid {
		return false
	}
	return a.cacheKey.CompareTo(b.cacheKey) < 0
}

// verifyAndRestoreSort re-sorts the scanner array and eliminates
// duplicate leading keys (§4.4.2 invariant 2, §4.4.4).
func (u *UnionReader) verifyAndRestoreSort() error {
	u.sortScanners()
	for len(u.scanners) > 1 && u.scanners[0].cacheValid &&
		u.scanners[1].cacheValid &&
		u.scanners[0].cacheKey.CompareTo(u.scanners[1].cacheKey) == 0 {

		dup := u.scanners[0].cacheKey
		tmpK, tmpV := u.newKey(), u.newValue()
		for i := 1; i < len(u.scanners); i++ {
			bs := u.scanners[i]
			if bs.cacheValid && bs.cacheKey.CompareTo(dup) == 0 {
				if _, err := bs.scanner.Read(tmpK, tmpV); err != nil {
					return err
				}
				if err := bs.refresh(); err != nil {
					return err
				}
			}
		}
		u.sortScanners()
	}
	if len(u.scanners) == 0 || !u.scanners[0].cacheValid {
		u.endOfStream = true
	}
	return nil
}

// recomputeUpperBound sets the exclusive fast-path bound: the lesser of
// the second scanner's cached key (if any) and the seek filter's
// current (inclusive) endOfFrame (§4.4.1 "readWhileUpperBounds").
func (u *UnionReader) recomputeUpperBound() error {
	end := u.seekFilter.endOfFrame()
	end.CopyTo(u.upperBound)
	if len(u.scanners) > 1 && u.scanners[1].cacheValid &&
		u.scanners[1].cacheKey.CompareTo(u.upperBound) < 0 {
		u.scanners[1].cacheKey.CopyTo(u.upperBound)
	}
	return nil
}

// advanceSeekWindow moves to the seek filter's next window, seeking
// every scanner positioned before the new window's start forward to
// it, and re-sorting (§4.4.3 "advanceSeekWindow").
func (u *UnionReader) advanceSeekWindow() error {
	if !u.seekFilter.nextWindow() {
		u.endOfStream = true
		return nil
	}
	start := u.seekFilter.startOfFrame()
	for _, bs := range u.scanners {
		if !bs.cacheValid || bs.cacheKey.CompareTo(start) < 0 {
			if err := bs.seekToKey(start); err != nil {
				return err
			}
		}
	}
	u.sortScanners()
	return nil
}

// ReadNext decodes the next emitted record into outKey/outValue,
// reporting false at end of stream or on cancellation (§4.4.3).
func (u *UnionReader) ReadNext(outKey Key, outValue Value) (bool, error) {
	for {
		if u.cancelled.Load() {
			return false, nil
		}
		if u.endOfStream || len(u.scanners) == 0 {
			return false, nil
		}

		u.pointCount++
		if u.safePoint != nil && u.pointCount%u.safeInterval == 0 {
			u.safePoint()
		}

		first := u.scanners[0]
		var filt MatchFilter
		if u.hasFilter {
			filt = u.matchFilter
		}
		ok, err := first.scanner.ReadWhileFiltered(outKey, outValue, u.upperBound, filt)
		if err != nil {
			return false, err
		}
		if ok {
			u.pointCount++
			if u.safePoint != nil && u.pointCount%u.safeInterval == 0 {
				u.safePoint()
			}
			return true, nil
		}

		if err := first.refresh(); err != nil {
			return false, err
		}
		if first.cacheValid && first.cacheKey.CompareTo(u.upperBound) < 0 {
			// Node-boundary return; state unchanged, try again (also
			// gives cancellation/timeouts a chance to be observed).
			continue
		}

		if err := u.verifyAndRestoreSort(); err != nil {
			return false, err
		}
		if u.endOfStream {
			return false, nil
		}

		first = u.scanners[0]
		cmpEnd := first.cacheKey.CompareTo(u.seekFilter.endOfFrame())
		if cmpEnd == 0 {
			ok, err := first.scanner.Read(outKey, outValue)
			if err != nil {
				return false, err
			}
			if !ok {
				u.endOfStream = true
				continue
			}
			if err := first.refresh(); err != nil {
				return false, err
			}
			if err := u.advanceSeekWindow(); err != nil {
				return false, err
			}
			if err := u.recomputeUpperBound(); err != nil {
				return false, err
			}
			if !u.hasFilter || u.matchFilter.contains(outKey, outValue) {
				return true, nil
			}
			continue
		}
		if cmpEnd > 0 {
			if err := u.advanceSeekWindow(); err != nil {
				return false, err
			}
			if err := u.recomputeUpperBound(); err != nil {
				return false, err
			}
			continue
		}
		// cacheKey < endOfFrame but the fast path just failed and no
		// duplicate/window condition applied: a sibling hop landed us
		// back below the bound. Recompute and retry.
		if err := u.recomputeUpperBound(); err != nil {
			return false, err
		}
	}
}

// Close releases resources the reader holds (currently just any
// registered timeout).
func (u *UnionReader) Close() {
	if u.timeoutStop != nil {
		u.timeoutStop()
		u.timeoutStop = nil
	}
}
