// Key/value type contract: the external collaborator a caller supplies
// so the tree never needs to know what a timestamp or a measurement
// looks like (§6 "Key/value type contract").
package snapdb

import (
	"encoding/binary"
	"math"
)

// Key is implemented by a caller's key type. Implementations must be
// comparable by CompareTo alone — IsLessThan/IsEqualTo/IsBetween are
// convenience wrappers a concrete type may implement more cheaply than
// going through CompareTo, but tree code never assumes that.
type Key interface {
	// Size returns the fixed encoded size in bytes, or -1 if variable
	// (variable-size keys may only be used with the generic pair
	// encoding, never fixed-size).
	Size() int
	Read(b []byte) error
	Write(b []byte) error
	CompareTo(other Key) int
	IsLessThan(other Key) bool
	IsEqualTo(other Key) bool
	IsBetween(lower, upper Key) bool
	SetMin()
	SetMax()
	CopyTo(dst Key)
	TypeGUID() GUID
}

// Value is implemented by a caller's value type. Values carry no
// ordering.
type Value interface {
	Size() int
	Read(b []byte) error
	Write(b []byte) error
	CopyTo(dst Value)
	TypeGUID() GUID
}

// BinarySearcher is an optional interface a Key type may additionally
// implement to supply an optimized fixed-size binary search (§4.3.5).
// Types that don't implement it fall through to the package's generic
// adaptive binary search, built on CompareTo.
type BinarySearcher interface {
	// BinarySearch locates key among recordCount fixed-size records
	// packed at block[base:], each recordSize bytes with the key at
	// the front of the record. hint seeds the adaptive fast path and
	// is updated in place for the next call. Returns the record index
	// if found, or ^insertionPoint (bitwise NOT) if not.
	BinarySearch(block []byte, base, recordSize, recordCount int, hint *int) int
}

// Uint64Key is a concrete fixed-size key type over an unsigned 64-bit
// integer (e.g. a point id), big-endian so byte-order comparison
// matches numeric comparison.
type Uint64Key struct{ V uint64 }

var uint64KeyTypeGUID = GUID{0x1d, 0xea, 0x32, 0x6d, 0xa6, 0x3a, 0x4f, 0x73, 0xb5, 0x1c, 0x7b, 0x31, 0x25, 0xc6, 0xda, 0x01}

func (k *Uint64Key) Size() int { return 8 }
func (k *Uint64Key) Read(b []byte) error {
	k.V = binary.BigEndian.Uint64(b)
	return nil
}
func (k *Uint64Key) Write(b []byte) error {
	binary.BigEndian.PutUint64(b, k.V)
	return nil
}
func (k *Uint64Key) CompareTo(other Key) int {
	o := other.(*Uint64Key)
	switch {
	case k.V < o.V:
		return -1
	case k.V > o.V:
		return 1
	default:
		return 0
	}
}
func (k *Uint64Key) IsLessThan(other Key) bool  { return k.CompareTo(other) < 0 }
func (k *Uint64Key) IsEqualTo(other Key) bool   { return k.CompareTo(other) == 0 }
func (k *Uint64Key) IsBetween(lower, upper Key) bool {
	return !k.IsLessThan(lower) && k.IsLessThan(upper)
}
func (k *Uint64Key) SetMin()          { k.V = 0 }
func (k *Uint64Key) SetMax()          { k.V = ^uint64(0) }
func (k *Uint64Key) CopyTo(dst Key)   { dst.(*Uint64Key).V = k.V }
func (k *Uint64Key) TypeGUID() GUID   { return uint64KeyTypeGUID }

// BinarySearch implements the adaptive sequential-access search described
// in §4.3.5 directly over big-endian-encoded uint64 records, avoiding a
// CompareTo call per probe.
func (k *Uint64Key) BinarySearch(block []byte, base, recordSize, recordCount int, hint *int) int {
	return adaptiveBinarySearch(recordCount, hint, func(i int) int {
		off := base + i*recordSize
		v := binary.BigEndian.Uint64(block[off : off+8])
		switch {
		case k.V < v:
			return -1
		case k.V > v:
			return 1
		default:
			return 0
		}
	})
}

// Int64Key is a concrete fixed-size key type over a signed 64-bit
// integer (e.g. a timestamp), stored with its sign bit flipped so
// big-endian byte order still matches numeric order.
type Int64Key struct{ V int64 }

var int64KeyTypeGUID = GUID{0x1d, 0xea, 0x32, 0x6d, 0xa6, 0x3a, 0x4f, 0x73, 0xb5, 0x1c, 0x7b, 0x31, 0x25, 0xc6, 0xda, 0x02}

func (k *Int64Key) Size() int { return 8 }
func (k *Int64Key) Read(b []byte) error {
	k.V = int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
	return nil
}
func (k *Int64Key) Write(b []byte) error {
	binary.BigEndian.PutUint64(b, uint64(k.V)^(1<<63))
	return nil
}
func (k *Int64Key) CompareTo(other Key) int {
	o := other.(*Int64Key)
	switch {
	case k.V < o.V:
		return -1
	case k.V > o.V:
		return 1
	default:
		return 0
	}
}
func (k *Int64Key) IsLessThan(other Key) bool { return k.CompareTo(other) < 0 }
func (k *Int64Key) IsEqualTo(other Key) bool  { return k.CompareTo(other) == 0 }
func (k *Int64Key) IsBetween(lower, upper Key) bool {
	return !k.IsLessThan(lower) && k.IsLessThan(upper)
}
func (k *Int64Key) SetMin()        { k.V = -1 << 63 }
func (k *Int64Key) SetMax()        { k.V = (1 << 63) - 1 }
func (k *Int64Key) CopyTo(dst Key) { dst.(*Int64Key).V = k.V }
func (k *Int64Key) TypeGUID() GUID { return int64KeyTypeGUID }

// Float64Value is a concrete fixed-size value type over a 64-bit float
// (e.g. a measurement reading).
type Float64Value struct{ V float64 }

var float64ValueTypeGUID = GUID{0x1d, 0xea, 0x32, 0x6d, 0xa6, 0x3a, 0x4f, 0x73, 0xb5, 0x1c, 0x7b, 0x31, 0x25, 0xc6, 0xda, 0x03}

func (v *Float64Value) Size() int { return 8 }
func (v *Float64Value) Read(b []byte) error {
	v.V = math.Float64frombits(binary.LittleEndian.Uint64(b))
	return nil
}
func (v *Float64Value) Write(b []byte) error {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v.V))
	return nil
}
func (v *Float64Value) CopyTo(dst Value) { dst.(*Float64Value).V = v.V }
func (v *Float64Value) TypeGUID() GUID   { return float64ValueTypeGUID }

// BytesValue is a concrete variable-size value type, usable only with
// the generic pair encoding.
type BytesValue struct{ V []byte }

var bytesValueTypeGUID = GUID{0x1d, 0xea, 0x32, 0x6d, 0xa6, 0x3a, 0x4f, 0x73, 0xb5, 0x1c, 0x7b, 0x31, 0x25, 0xc6, 0xda, 0x04}

func (v *BytesValue) Size() int { return -1 }
func (v *BytesValue) Read(b []byte) error {
	v.V = append(v.V[:0], b...)
	return nil
}
func (v *BytesValue) Write(b []byte) error {
	copy(b, v.V)
	return nil
}
func (v *BytesValue) CopyTo(dst Value) {
	d := dst.(*BytesValue)
	d.V = append(d.V[:0], v.V...)
}
func (v *BytesValue) TypeGUID() GUID { return bytesValueTypeGUID }
