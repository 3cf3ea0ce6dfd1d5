// BufferedScanner (§4.4.1): wraps one tree scanner and keeps a cached
// peek of its next record, refreshed after every advance, so a
// UnionReader merging several of these can compare "next keys" across
// scanners without re-peeking each one on every comparison.
package snapdb

// BufferedScanner wraps a Scanner with a cached one-record lookahead.
type BufferedScanner struct {
	scanner *Scanner

	cacheKey   Key
	cacheValue Value
	cacheValid bool

	newKey   func() Key
	newValue func() Value
}

func newBufferedScanner(s *Scanner, newKey func() Key, newValue func() Value) *BufferedScanner {
	return &BufferedScanner{
		scanner:    s,
		newKey:     newKey,
		newValue:   newValue,
		cacheKey:   newKey(),
		cacheValue: newValue(),
	}
}

// refresh re-peeks the underlying scanner into the cache. Call after
// any operation that may have advanced the scanner's position.
func (b *BufferedScanner) refresh() error {
	ok, err := b.scanner.Peek(b.cacheKey, b.cacheValue)
	if err != nil {
		return err
	}
	b.cacheValid = ok
	return nil
}

func (b *BufferedScanner) seekToKey(k Key) error {
	if err := b.scanner.SeekToKey(k); err != nil {
		return err
	}
	return b.refresh()
}
