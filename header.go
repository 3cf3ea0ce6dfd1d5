package snapdb

import (
	"encoding/binary"
)

// subFileEntrySize is the fixed on-disk size of one sub-file table entry:
// fileId(2) + name 3×GUID(48) + five root block indices(20) + padding(10)
// to an 8-byte-aligned 80 bytes (§6 "Sub-file entry").
const subFileEntrySize = 80

// subFileEntry records one sub-file's stable id, semantic name (triple of
// purpose/key-type/value-type GUIDs), and the five indirection root block
// indices (§3 "File header block").
type subFileEntry struct {
	id        uint16
	purpose   GUID
	keyType   GUID
	valueType GUID
	direct    uint32
	single    uint32
	double    uint32
	triple    uint32
	quad      uint32
}

func (e subFileEntry) encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], e.id)
	copy(b[2:18], e.purpose[:])
	copy(b[18:34], e.keyType[:])
	copy(b[34:50], e.valueType[:])
	binary.LittleEndian.PutUint32(b[50:54], e.direct)
	binary.LittleEndian.PutUint32(b[54:58], e.single)
	binary.LittleEndian.PutUint32(b[58:62], e.double)
	binary.LittleEndian.PutUint32(b[62:66], e.triple)
	binary.LittleEndian.PutUint32(b[66:70], e.quad)
	// b[70:80] left zero (padding).
}

func decodeSubFileEntry(b []byte) subFileEntry {
	var e subFileEntry
	e.id = binary.LittleEndian.Uint16(b[0:2])
	copy(e.purpose[:], b[2:18])
	copy(e.keyType[:], b[18:34])
	copy(e.valueType[:], b[34:50])
	e.direct = binary.LittleEndian.Uint32(b[50:54])
	e.single = binary.LittleEndian.Uint32(b[54:58])
	e.double = binary.LittleEndian.Uint32(b[58:62])
	e.triple = binary.LittleEndian.Uint32(b[62:66])
	e.quad = binary.LittleEndian.Uint32(b[66:70])
	return e
}

// fileHeader is the decoded contents of one header slot (§3 "File header
// block", §6 header field order). Two slots (block 0 and block 1) form a
// double buffer; commit always writes the slot that is not currently
// active, then flips which is active.
type fileHeader struct {
	archiveType   GUID
	archiveID     GUID
	blockSize     uint32
	sequence      uint64
	lastAllocated uint32
	flags         []GUID
	subFiles      []subFileEntry
}

func newFileHeader(archiveID GUID, blockSize uint32) *fileHeader {
	return &fileHeader{
		archiveType:   ArchiveFileType,
		archiveID:     archiveID,
		blockSize:     blockSize,
		sequence:      0,
		lastAllocated: 1, // blocks 0 and 1 are reserved for header slots
	}
}

func (h *fileHeader) encodedSize() int {
	return 16 + 16 + 16 + 4 + 8 + 4 + 2 + 16*len(h.flags) + 2 + subFileEntrySize*len(h.subFiles)
}

// encode writes the header fields (order per §6) into payload, which must
// be at least encodedSize() bytes; the rest of the block (up to the
// footer) is left untouched by the caller.
func (h *fileHeader) encode(payload []byte) error {
	if len(payload) < h.encodedSize() {
		return newErr(KindInvalidArgument, "encode header", ErrInvalidArgument)
	}
	b := payload
	copy(b[0:16], fileMagic[:])
	copy(b[16:32], h.archiveType[:])
	copy(b[32:48], h.archiveID[:])
	binary.LittleEndian.PutUint32(b[48:52], h.blockSize)
	binary.LittleEndian.PutUint64(b[52:60], h.sequence)
	binary.LittleEndian.PutUint32(b[60:64], h.lastAllocated)
	binary.LittleEndian.PutUint16(b[64:66], uint16(len(h.flags)))
	off := 66
	for _, f := range h.flags {
		copy(b[off:off+16], f[:])
		off += 16
	}
	binary.LittleEndian.PutUint16(b[off:off+2], uint16(len(h.subFiles)))
	off += 2
	for _, e := range h.subFiles {
		e.encode(b[off : off+subFileEntrySize])
		off += subFileEntrySize
	}
	return nil
}

// decodeHeader parses a header slot's payload. The checksum is verified
// separately by the caller via verifyChecksum before decodeHeader is
// invoked; this only validates the magic and internal framing.
func decodeHeader(payload []byte) (*fileHeader, error) {
	if len(payload) < 66 {
		return nil, newErr(KindCorrupt, "decodeHeader", ErrCorrupt)
	}
	var magic GUID
	copy(magic[:], payload[0:16])
	if magic != fileMagic {
		return nil, newErr(KindCorrupt, "decodeHeader", ErrCorrupt)
	}
	h := &fileHeader{}
	copy(h.archiveType[:], payload[16:32])
	copy(h.archiveID[:], payload[32:48])
	h.blockSize = binary.LittleEndian.Uint32(payload[48:52])
	h.sequence = binary.LittleEndian.Uint64(payload[52:60])
	h.lastAllocated = binary.LittleEndian.Uint32(payload[60:64])
	flagCount := binary.LittleEndian.Uint16(payload[64:66])
	off := 66
	for i := 0; i < int(flagCount); i++ {
		if off+16 > len(payload) {
			return nil, newErr(KindCorrupt, "decodeHeader", ErrCorrupt)
		}
		var g GUID
		copy(g[:], payload[off:off+16])
		h.flags = append(h.flags, g)
		off += 16
	}
	if off+2 > len(payload) {
		return nil, newErr(KindCorrupt, "decodeHeader", ErrCorrupt)
	}
	subCount := binary.LittleEndian.Uint16(payload[off : off+2])
	off += 2
	for i := 0; i < int(subCount); i++ {
		if off+subFileEntrySize > len(payload) {
			return nil, newErr(KindCorrupt, "decodeHeader", ErrCorrupt)
		}
		h.subFiles = append(h.subFiles, decodeSubFileEntry(payload[off:off+subFileEntrySize]))
		off += subFileEntrySize
	}
	return h, nil
}

func (h *fileHeader) clone() *fileHeader {
	c := *h
	c.flags = append([]GUID(nil), h.flags...)
	c.subFiles = append([]subFileEntry(nil), h.subFiles...)
	return &c
}

func (h *fileHeader) findSubFile(id uint16) (subFileEntry, bool) {
	for _, e := range h.subFiles {
		if e.id == id {
			return e, true
		}
	}
	return subFileEntry{}, false
}

func (h *fileHeader) findSubFileByName(purpose, keyType, valueType GUID) (subFileEntry, bool) {
	for _, e := range h.subFiles {
		if e.purpose == purpose && e.keyType == keyType && e.valueType == valueType {
			return e, true
		}
	}
	return subFileEntry{}, false
}
