package snapdb

// The index mapper turns a virtual page number into up to four levels of
// indirection (§3 "Sub-file", "An index mapper turns a virtual page into
// (firstIdx, secondIdx, thirdIdx, fourthIdx, baseVirtualPage)").
//
// F is the fanout: how many 32-bit block addresses fit in one indirect
// block's payload. Page 0 lives directly in the sub-file entry's "direct"
// block. Pages 1..F live behind one level of indirection ("single"),
// pages F+1..F+F² behind two ("double"), and so on through "triple" and
// "quadruple".

// addrsPerBlock returns F for a given block payload size: one 32-bit
// block address per 4 bytes.
func addrsPerBlock(payload int) uint64 { return uint64(payload) / 4 }

// pageAddress is the result of classifying a virtual page.
type pageAddress struct {
	level           int // 0 (direct) .. 4 (quadruple-indirect)
	idx             [4]uint64
	baseVirtualPage uint64 // first virtual page covered by the same chain of indirect blocks
}

// classifyPage maps a zero-based virtual page number to its indirection
// level and per-level indices. It returns ok=false if page is beyond the
// quadruple-indirect limit (page == F⁴ relative to the start of level 4,
// per §8's boundary case), which callers surface as FileTooLarge.
func classifyPage(page uint64, F uint64) (pageAddress, bool) {
	if page < 1 {
		return pageAddress{level: 0, baseVirtualPage: 0}, true
	}
	rem := page - 1
	if rem < F {
		return pageAddress{level: 1, idx: [4]uint64{rem}, baseVirtualPage: 1}, true
	}
	rem -= F
	if rem < F*F {
		return pageAddress{
			level:           2,
			idx:             [4]uint64{rem / F, rem % F},
			baseVirtualPage: 1 + F,
		}, true
	}
	rem -= F * F
	if rem < F*F*F {
		return pageAddress{
			level:           3,
			idx:             [4]uint64{rem / (F * F), (rem / F) % F, rem % F},
			baseVirtualPage: 1 + F + F*F,
		}, true
	}
	rem -= F * F * F
	if rem < F*F*F*F {
		return pageAddress{
			level: 4,
			idx: [4]uint64{
				rem / (F * F * F),
				(rem / (F * F)) % F,
				(rem / F) % F,
				rem % F,
			},
			baseVirtualPage: 1 + F + F*F + F*F*F,
		}, true
	}
	return pageAddress{}, false
}
