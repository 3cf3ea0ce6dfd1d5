// Index mapper boundary tests (§3, §8): verifies the indirection-level
// classification and the F⁴ overflow boundary spec.md calls out by name.
package snapdb

import "testing"

func TestClassifyPageDirectAndSingleIndirect(t *testing.T) {
	const F = 4

	addr, ok := classifyPage(0, F)
	if !ok || addr.level != 0 {
		t.Fatalf("page 0: level=%d ok=%v, want level=0 ok=true", addr.level, ok)
	}

	addr, ok = classifyPage(1, F)
	if !ok || addr.level != 1 || addr.idx[0] != 0 {
		t.Fatalf("page 1: level=%d idx=%v ok=%v, want level=1 idx[0]=0", addr.level, addr.idx, ok)
	}

	addr, ok = classifyPage(F, F)
	if !ok || addr.level != 1 || addr.idx[0] != F-1 {
		t.Fatalf("page F: level=%d idx=%v ok=%v, want level=1 idx[0]=%d", addr.level, addr.idx, ok, F-1)
	}
}

func TestClassifyPageDoubleAndTripleIndirect(t *testing.T) {
	const F = 4

	// First page behind double indirection: 1 + F.
	addr, ok := classifyPage(1+F, F)
	if !ok || addr.level != 2 || addr.idx != [4]uint64{0, 0} {
		t.Fatalf("page 1+F: level=%d idx=%v ok=%v, want level=2 idx=[0 0]", addr.level, addr.idx, ok)
	}

	// Last page behind double indirection: 1 + F + F² - 1.
	lastDouble := 1 + F + F*F - 1
	addr, ok = classifyPage(lastDouble, F)
	if !ok || addr.level != 2 || addr.idx != [4]uint64{F - 1, F - 1} {
		t.Fatalf("last double-indirect page: level=%d idx=%v ok=%v, want level=2 idx=[%d %d]", addr.level, addr.idx, ok, F-1, F-1)
	}

	// First page behind triple indirection: 1 + F + F².
	firstTriple := 1 + F + F*F
	addr, ok = classifyPage(firstTriple, F)
	if !ok || addr.level != 3 || addr.idx != [4]uint64{0, 0, 0} {
		t.Fatalf("first triple-indirect page: level=%d idx=%v ok=%v, want level=3 idx=[0 0 0]", addr.level, addr.idx, ok)
	}
}

// TestClassifyPageQuadrupleIndirectBoundary is the spec's named boundary
// case: the last page reachable through quadruple indirection (relative
// index F⁴-1) classifies cleanly, and the page one past it (relative
// index F⁴) is rejected rather than silently wrapping or panicking.
func TestClassifyPageQuadrupleIndirectBoundary(t *testing.T) {
	const F = 4
	total := uint64(1) + F + F*F + F*F*F + F*F*F*F // total pages representable

	lastValid := total - 1
	addr, ok := classifyPage(lastValid, F)
	if !ok {
		t.Fatalf("classifyPage(%d) = ok=false, want the last representable page to succeed", lastValid)
	}
	if addr.level != 4 || addr.idx != [4]uint64{F - 1, F - 1, F - 1, F - 1} {
		t.Fatalf("last quadruple-indirect page: level=%d idx=%v, want level=4 idx=[%d %d %d %d]",
			addr.level, addr.idx, F-1, F-1, F-1, F-1)
	}

	_, ok = classifyPage(total, F)
	if ok {
		t.Fatalf("classifyPage(%d) = ok=true, want the page one past the F⁴ limit to be rejected", total)
	}
}

func TestAddrsPerBlock(t *testing.T) {
	if got := addrsPerBlock(4096); got != 1024 {
		t.Fatalf("addrsPerBlock(4096) = %d, want 1024", got)
	}
	if got := addrsPerBlock(512); got != 128 {
		t.Fatalf("addrsPerBlock(512) = %d, want 128", got)
	}
}
