package snapdb

import "github.com/google/uuid"

// GUID is a stable 16-byte identifier used throughout the on-disk format:
// archive id, archive type, sub-file purpose/key-type/value-type, and
// encoding-definition ids. It is a thin alias over uuid.UUID so the wire
// layout (§6) is a plain 16-byte value with no framing of its own.
type GUID = uuid.UUID

// NewGUID returns a new random (v4) GUID, used when creating a fresh
// archive id or registering a new type/encoding at runtime.
func NewGUID() GUID { return uuid.New() }

// Well-known GUIDs from §6, preserved bit-exact.
var (
	// ArchiveFileType identifies this engine's on-disk container format.
	ArchiveFileType = uuid.MustParse("63AB3FEA-14CD-4ECA-939B-0DD23742E170")

	// PrimaryArchivePurpose tags the sub-file holding the primary sorted
	// tree of key/value records.
	PrimaryArchivePurpose = uuid.MustParse("E0FCA590-F46E-4060-8764-DFDCFC74D728")

	// MetadataPurpose tags a sub-file holding archive metadata rather
	// than primary records.
	MetadataPurpose = uuid.MustParse("BDDC2947-D7A2-45B2-AEF1-AF1947311BD0")

	// FixedSizeEncoding is the sentinel encoding-definition id meaning
	// "fixed keySize+valueSize records, no per-record compression".
	FixedSizeEncoding = uuid.MustParse("1dea326d-a63a-4f73-b51c-7b3125c6da55")

	// fileMagic is the fixed magic GUID stamped into every header slot so
	// a stray file of the right size is never mistaken for an archive.
	fileMagic = uuid.MustParse("5a99b211-7c6e-4b88-9fa1-4f2e2c2a9e10")
)
