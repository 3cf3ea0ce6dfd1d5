// Tree-stream wire contract (§6 "Tree-stream wire contract"): framing
// for shipping a run of (key, value) records to another process or
// file — e.g. replicating a union reader's output, or bulk-loading a
// tree via TryAddRange across a network boundary. Records within a
// group are encoded with the same KeyCodec/ValueCodec pair a generic
// pair node uses, so the wire format needs no extra per-record framing
// beyond what §4.3.2 already defines; the group itself is terminated
// by the encoding's own end-of-stream symbol if it has one, otherwise
// a dedicated sentinel byte, then Zstd-compressed as a single block and
// length-prefixed onto the wire.
//
// Adapted from the teacher's document-snapshot compressor: a shared,
// package-level encoder/decoder pair (construction is expensive enough
// that per-call allocation would dominate small-group costs) at
// SpeedFastest, since compression here runs on the write side of a
// live scan while decompression is comparatively rare.
package snapdb

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
)

var (
	streamEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	streamDecoder, _ = zstd.NewReader(nil)
)

// defaultGroupSentinel is emitted after the last record of a group when
// the node encoding in use has no end-of-stream symbol of its own.
const defaultGroupSentinel = 0x00

// fixedKeyCodec/fixedValueCodec adapt the fixed-size pair layout to the
// KeyCodec/ValueCodec interfaces so TreeStreamWriter/Reader can treat
// fixed-size and generic-pair trees uniformly.
type fixedKeyCodec struct{ size int }

func (c fixedKeyCodec) UsesPrevious() bool    { return false }
func (c fixedKeyCodec) MaxSize(int) int       { return c.size }
func (c fixedKeyCodec) EncodeKey(dst []byte, key Key, _ Key) int {
	_ = key.Write(dst[:c.size])
	return c.size
}
func (c fixedKeyCodec) DecodeKey(src []byte, out Key, _ Key) (int, error) {
	if len(src) < c.size {
		return 0, newErr(KindCorrupt, "decodeKey", ErrCorrupt)
	}
	return c.size, out.Read(src[:c.size])
}

type fixedValueCodec struct{ size int }

func (c fixedValueCodec) UsesPrevious() bool    { return false }
func (c fixedValueCodec) MaxSize(int) int       { return c.size }
func (c fixedValueCodec) EncodeValue(dst []byte, value Value, _ Value) int {
	_ = value.Write(dst[:c.size])
	return c.size
}
func (c fixedValueCodec) DecodeValue(src []byte, out Value, _ Value) (int, error) {
	if len(src) < c.size {
		return 0, newErr(KindCorrupt, "decodeValue", ErrCorrupt)
	}
	return c.size, out.Read(src[:c.size])
}

// codecsFor returns the KeyCodec/ValueCodec a tree's own encoding uses,
// so a stream mirrors the in-node wire format exactly.
func (t *SortedTree) codecsFor() (KeyCodec, ValueCodec) {
	if t.fixed {
		return fixedKeyCodec{size: t.keySize}, fixedValueCodec{size: t.valueSize}
	}
	return t.genericEnc.keyCodec, t.genericEnc.valueCodec
}

// TreeStreamWriter serializes groups of (key, value) records onto an
// underlying io.Writer, compressing each group as one Zstd block.
type TreeStreamWriter struct {
	w       io.Writer
	enc     NodeEncoding
	keyCodec   KeyCodec
	valueCodec ValueCodec
	scratch []byte
}

// NewTreeStreamWriter returns a writer framing record groups per enc's
// end-of-stream convention, encoding records with keyCodec/valueCodec.
func NewTreeStreamWriter(w io.Writer, enc NodeEncoding, keyCodec KeyCodec, valueCodec ValueCodec) *TreeStreamWriter {
	return &TreeStreamWriter{w: w, enc: enc, keyCodec: keyCodec, valueCodec: valueCodec}
}

// WriteGroup serializes keys/values (equal length, already ordered) as
// one framed, compressed block.
func (sw *TreeStreamWriter) WriteGroup(keys []Key, values []Value) error {
	sw.scratch = sw.scratch[:0]
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(keys)))
	sw.scratch = append(sw.scratch, countBuf[:]...)
	var prevKey Key
	var prevValue Value
	for i := range keys {
		sw.scratch = growAndEncodeKey(sw.scratch, sw.keyCodec, keys[i], prevKey)
		sw.scratch = growAndEncodeValue(sw.scratch, sw.valueCodec, values[i], prevValue)
		if sw.keyCodec.UsesPrevious() {
			prevKey = keys[i]
		}
		if sw.valueCodec.UsesPrevious() {
			prevValue = values[i]
		}
	}
	if sw.enc.ContainsEndOfStreamSymbol() {
		sw.scratch = append(sw.scratch, sw.enc.EndOfStreamSymbol())
	} else {
		sw.scratch = append(sw.scratch, defaultGroupSentinel)
	}

	compressed := streamEncoder.EncodeAll(sw.scratch, nil)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	if _, err := sw.w.Write(lenBuf[:]); err != nil {
		return newErr(KindIO, "writeGroup", err)
	}
	if _, err := sw.w.Write(compressed); err != nil {
		return newErr(KindIO, "writeGroup", err)
	}
	return nil
}

func growAndEncodeKey(dst []byte, codec KeyCodec, key, prev Key) []byte {
	base := len(dst)
	dst = append(dst, make([]byte, codec.MaxSize(key.Size()))...)
	n := codec.EncodeKey(dst[base:], key, prev)
	return dst[:base+n]
}

func growAndEncodeValue(dst []byte, codec ValueCodec, value, prev Value) []byte {
	base := len(dst)
	dst = append(dst, make([]byte, codec.MaxSize(value.Size()))...)
	n := codec.EncodeValue(dst[base:], value, prev)
	return dst[:base+n]
}

// TreeStreamReader decodes groups written by TreeStreamWriter.
type TreeStreamReader struct {
	r       io.Reader
	enc     NodeEncoding
	keyCodec   KeyCodec
	valueCodec ValueCodec
	newKey   func() Key
	newValue func() Value
}

// NewTreeStreamReader returns a reader that decodes groups produced by
// a writer using the same enc/codecs, constructing fresh Key/Value
// instances via newKey/newValue.
func NewTreeStreamReader(r io.Reader, enc NodeEncoding, keyCodec KeyCodec, valueCodec ValueCodec, newKey func() Key, newValue func() Value) *TreeStreamReader {
	return &TreeStreamReader{r: r, enc: enc, keyCodec: keyCodec, valueCodec: valueCodec, newKey: newKey, newValue: newValue}
}

// ReadGroup reads and decompresses the next group, returning io.EOF
// when the underlying stream is exhausted.
func (sr *TreeStreamReader) ReadGroup() ([]Key, []Value, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(sr.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		return nil, nil, newErr(KindIO, "readGroup", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	compressed := make([]byte, n)
	if _, err := io.ReadFull(sr.r, compressed); err != nil {
		return nil, nil, newErr(KindIO, "readGroup", err)
	}
	raw, err := streamDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, nil, newErr(KindCorrupt, "readGroup", err)
	}

	if len(raw) < 4 {
		return nil, nil, newErr(KindCorrupt, "readGroup", ErrCorrupt)
	}
	count := int(binary.LittleEndian.Uint32(raw[:4]))
	pos := 4

	keys := make([]Key, 0, count)
	values := make([]Value, 0, count)
	var prevKey Key
	var prevValue Value
	for i := 0; i < count; i++ {
		k := sr.newKey()
		kn, err := sr.keyCodec.DecodeKey(raw[pos:], k, prevKey)
		if err != nil {
			return nil, nil, err
		}
		pos += kn
		v := sr.newValue()
		vn, err := sr.valueCodec.DecodeValue(raw[pos:], v, prevValue)
		if err != nil {
			return nil, nil, err
		}
		pos += vn
		keys = append(keys, k)
		values = append(values, v)
		if sr.keyCodec.UsesPrevious() {
			prevKey = k
		}
		if sr.valueCodec.UsesPrevious() {
			prevValue = v
		}
	}

	var sentinel byte = defaultGroupSentinel
	if sr.enc.ContainsEndOfStreamSymbol() {
		sentinel = sr.enc.EndOfStreamSymbol()
	}
	if pos >= len(raw) || raw[pos] != sentinel {
		return nil, nil, newErr(KindCorrupt, "readGroup", ErrCorrupt)
	}
	return keys, values, nil
}
