// Node encoding selection and wire form (§4.3.2, §6 "Encoding-definition
// wire form"). An EncodingDefinition tells a tree header how the records
// inside its leaf/interior nodes are packed: either the fixed-size pair
// layout (direct pointer arithmetic, no per-record framing) or a pair of
// pluggable generic codecs (each record individually encoded, optionally
// against the previous record as context).
package snapdb

import "encoding/binary"

const (
	encodingSelectorCombined uint8 = 1
	encodingSelectorSeparate uint8 = 2
)

// EncodingDefinition is the decoded form of the on-disk encoding
// selector (§6): either one combined key+value encoding id, or a
// separate key encoding id and value encoding id. FixedSizeEncoding is
// the sentinel GUID (see guid.go) meaning "fixed-size pair", usable only
// in the combined form.
type EncodingDefinition struct {
	Combined bool
	Combo    GUID // valid iff Combined
	KeyEnc   GUID // valid iff !Combined
	ValueEnc GUID // valid iff !Combined
}

// IsFixedSize reports whether this definition selects the fixed-size
// pair layout.
func (d EncodingDefinition) IsFixedSize() bool {
	return d.Combined && d.Combo == FixedSizeEncoding
}

func (d EncodingDefinition) encodedSize() int {
	if d.Combined {
		return 1 + 16
	}
	return 1 + 16 + 16
}

func (d EncodingDefinition) encode(b []byte) int {
	if d.Combined {
		b[0] = encodingSelectorCombined
		copy(b[1:17], d.Combo[:])
		return 17
	}
	b[0] = encodingSelectorSeparate
	copy(b[1:17], d.KeyEnc[:])
	copy(b[17:33], d.ValueEnc[:])
	return 33
}

func decodeEncodingDefinition(b []byte) (EncodingDefinition, int, error) {
	if len(b) < 1 {
		return EncodingDefinition{}, 0, newErr(KindCorrupt, "decodeEncodingDefinition", ErrCorrupt)
	}
	switch b[0] {
	case encodingSelectorCombined:
		if len(b) < 17 {
			return EncodingDefinition{}, 0, newErr(KindCorrupt, "decodeEncodingDefinition", ErrCorrupt)
		}
		var g GUID
		copy(g[:], b[1:17])
		return EncodingDefinition{Combined: true, Combo: g}, 17, nil
	case encodingSelectorSeparate:
		if len(b) < 33 {
			return EncodingDefinition{}, 0, newErr(KindCorrupt, "decodeEncodingDefinition", ErrCorrupt)
		}
		var k, v GUID
		copy(k[:], b[1:17])
		copy(v[:], b[17:33])
		return EncodingDefinition{Combined: false, KeyEnc: k, ValueEnc: v}, 33, nil
	default:
		return EncodingDefinition{}, 0, newErr(KindInvalidArgument, "decodeEncodingDefinition", ErrInvalidArgument)
	}
}

// NodeEncoding describes the shared properties every node encoding
// (fixed-size or generic) must expose (§4.3.2).
type NodeEncoding interface {
	MaxCompressionSize(keySize, valueSize int) int
	UsesPreviousKey() bool
	UsesPreviousValue() bool
	ContainsEndOfStreamSymbol() bool
	EndOfStreamSymbol() byte
}

// fixedSizeEncoding is the trivial NodeEncoding for records laid out as
// keySize+valueSize bytes with no per-record framing.
type fixedSizeEncoding struct{}

func (fixedSizeEncoding) MaxCompressionSize(keySize, valueSize int) int { return keySize + valueSize }
func (fixedSizeEncoding) UsesPreviousKey() bool                        { return false }
func (fixedSizeEncoding) UsesPreviousValue() bool                      { return false }
func (fixedSizeEncoding) ContainsEndOfStreamSymbol() bool              { return false }
func (fixedSizeEncoding) EndOfStreamSymbol() byte                      { return 0 }

// KeyCodec is a pluggable per-record key encoder for the generic pair
// encoding (§4.3.2 "Generic pair"). prev is nil for a record's first
// appearance in a node or when UsesPreviousKey is false.
type KeyCodec interface {
	EncodeKey(dst []byte, key Key, prev Key) int
	DecodeKey(src []byte, out Key, prev Key) (n int, err error)
	UsesPrevious() bool
	MaxSize(keySize int) int
}

// ValueCodec is the value-side analogue of KeyCodec.
type ValueCodec interface {
	EncodeValue(dst []byte, value Value, prev Value) int
	DecodeValue(src []byte, out Value, prev Value) (n int, err error)
	UsesPrevious() bool
	MaxSize(valueSize int) int
}

// genericPairEncoding composes a KeyCodec and ValueCodec into one
// NodeEncoding (§4.3.2 "Generic pair"); records are decoded sequentially
// from the start of the node since they have no fixed stride.
type genericPairEncoding struct {
	keyCodec   KeyCodec
	valueCodec ValueCodec
}

func (g genericPairEncoding) MaxCompressionSize(keySize, valueSize int) int {
	return g.keyCodec.MaxSize(keySize) + g.valueCodec.MaxSize(valueSize)
}
func (g genericPairEncoding) UsesPreviousKey() bool           { return g.keyCodec.UsesPrevious() }
func (g genericPairEncoding) UsesPreviousValue() bool         { return g.valueCodec.UsesPrevious() }
func (g genericPairEncoding) ContainsEndOfStreamSymbol() bool { return true }
func (g genericPairEncoding) EndOfStreamSymbol() byte         { return 0xff }

// deltaVarintKeyCodec is a concrete generic-pair key codec for
// monotonically increasing Uint64Key streams: each key after the first
// is stored as a varint delta from the previous one, so a tightly
// packed append-only archive (the common case for this engine's
// timestamp+point-id keys) costs far fewer bytes per record than the
// fixed-size layout.
type deltaVarintKeyCodec struct{}

func (deltaVarintKeyCodec) UsesPrevious() bool   { return true }
func (deltaVarintKeyCodec) MaxSize(keySize int) int { return binary.MaxVarintLen64 }

func (deltaVarintKeyCodec) EncodeKey(dst []byte, key Key, prev Key) int {
	k := key.(*Uint64Key).V
	if prev == nil {
		return binary.PutUvarint(dst, k)
	}
	p := prev.(*Uint64Key).V
	return binary.PutUvarint(dst, k-p)
}

func (deltaVarintKeyCodec) DecodeKey(src []byte, out Key, prev Key) (int, error) {
	v, n := binary.Uvarint(src)
	if n <= 0 {
		return 0, newErr(KindCorrupt, "decodeKey", ErrCorrupt)
	}
	ok := out.(*Uint64Key)
	if prev == nil {
		ok.V = v
	} else {
		ok.V = prev.(*Uint64Key).V + v
	}
	return n, nil
}

// rawValueCodec is a concrete generic-pair value codec that stores the
// value's fixed-size encoding verbatim with no delta, for value types
// with no meaningful previous-value relationship.
type rawValueCodec struct{ size int }

func (c rawValueCodec) UsesPrevious() bool     { return false }
func (c rawValueCodec) MaxSize(valueSize int) int { return valueSize }

func (c rawValueCodec) EncodeValue(dst []byte, value Value, _ Value) int {
	_ = value.Write(dst[:c.size])
	return c.size
}

func (c rawValueCodec) DecodeValue(src []byte, out Value, _ Value) (int, error) {
	if len(src) < c.size {
		return 0, newErr(KindCorrupt, "decodeValue", ErrCorrupt)
	}
	if err := out.Read(src[:c.size]); err != nil {
		return 0, err
	}
	return c.size, nil
}
