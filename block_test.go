// Block footer and checksum tests (§4.1): a stamped block must verify
// cleanly, and any mutation to its payload, type tag, or footer must be
// caught by verifyChecksum rather than silently accepted.
package snapdb

import "testing"

func TestStampAndVerifyChecksumRoundTrip(t *testing.T) {
	block := make([]byte, DefaultBlockSize)
	for i := range block[:payloadSize(DefaultBlockSize)] {
		block[i] = byte(i)
	}
	stampChecksum(block, 7, 3, BlockTypeLeaf)

	if err := verifyChecksum(block, 7, 3, BlockTypeLeaf); err != nil {
		t.Fatalf("verifyChecksum on freshly stamped block: %v", err)
	}
}

func TestVerifyChecksumDetectsPayloadCorruption(t *testing.T) {
	block := make([]byte, DefaultBlockSize)
	stampChecksum(block, 1, 1, BlockTypeInterior)

	block[0] ^= 0xff
	if err := verifyChecksum(block, 1, 1, BlockTypeInterior); KindOf(err) != KindCorrupt {
		t.Fatalf("verifyChecksum after payload flip: got %v, want KindCorrupt", err)
	}
}

func TestVerifyChecksumDetectsWrongBlockType(t *testing.T) {
	block := make([]byte, DefaultBlockSize)
	stampChecksum(block, 2, 5, BlockTypeLeaf)

	if err := verifyChecksum(block, 2, 5, BlockTypeInterior); KindOf(err) != KindCorrupt {
		t.Fatalf("verifyChecksum with mismatched wantType: got %v, want KindCorrupt", err)
	}
}

func TestVerifyChecksumDetectsWrongBlockIndexOrSubFile(t *testing.T) {
	block := make([]byte, DefaultBlockSize)
	stampChecksum(block, 10, 2, BlockTypeLeaf)

	if err := verifyChecksum(block, 11, 2, BlockTypeLeaf); KindOf(err) != KindCorrupt {
		t.Fatalf("verifyChecksum with wrong blockIdx salt: got %v, want KindCorrupt", err)
	}
	if err := verifyChecksum(block, 10, 3, BlockTypeLeaf); KindOf(err) != KindCorrupt {
		t.Fatalf("verifyChecksum with wrong subFileID salt: got %v, want KindCorrupt", err)
	}
}
