// Tree-stream wire contract round-trip tests (§6): a writer's framed,
// Zstd-compressed groups must decode back to the exact key/value
// sequence, using the fixed-size-pair codec, for a single group and for
// several groups in one stream.
package snapdb

import (
	"bytes"
	"io"
	"testing"
)

func TestTreeStreamRoundTripFixedSizeCodec(t *testing.T) {
	var buf bytes.Buffer
	enc := fixedSizeEncoding{}
	keyCodec := fixedKeyCodec{size: 8}
	valueCodec := fixedValueCodec{size: 8}

	w := NewTreeStreamWriter(&buf, enc, keyCodec, valueCodec)
	const n = 100
	keys := make([]Key, n)
	values := make([]Value, n)
	for i := 0; i < n; i++ {
		keys[i] = u64Key(uint64(i))
		values[i] = u64Value(float64(i))
	}
	if err := w.WriteGroup(keys, values); err != nil {
		t.Fatalf("WriteGroup: %v", err)
	}

	r := NewTreeStreamReader(&buf, enc, keyCodec, valueCodec, newU64Key, newU64Value)
	gotKeys, gotValues, err := r.ReadGroup()
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if len(gotKeys) != n {
		t.Fatalf("ReadGroup returned %d keys, want %d", len(gotKeys), n)
	}
	for i := 0; i < n; i++ {
		if gotKeys[i].(*Uint64Key).V != uint64(i) {
			t.Fatalf("key[%d] = %d, want %d", i, gotKeys[i].(*Uint64Key).V, i)
		}
		if gotValues[i].(*Float64Value).V != float64(i) {
			t.Fatalf("value[%d] = %v, want %v", i, gotValues[i].(*Float64Value).V, float64(i))
		}
	}
}

// TestTreeStreamRoundTripMultipleGroups verifies a reader walks
// successive groups written to the same stream in order, then reports
// io.EOF once they're exhausted.
func TestTreeStreamRoundTripMultipleGroups(t *testing.T) {
	var buf bytes.Buffer
	enc := fixedSizeEncoding{}
	keyCodec := fixedKeyCodec{size: 8}
	valueCodec := fixedValueCodec{size: 8}
	w := NewTreeStreamWriter(&buf, enc, keyCodec, valueCodec)

	groups := [][]uint64{
		{0, 1, 2},
		{10, 11},
		{100},
	}
	for _, g := range groups {
		keys := make([]Key, len(g))
		values := make([]Value, len(g))
		for i, v := range g {
			keys[i] = u64Key(v)
			values[i] = u64Value(float64(v))
		}
		if err := w.WriteGroup(keys, values); err != nil {
			t.Fatalf("WriteGroup(%v): %v", g, err)
		}
	}

	r := NewTreeStreamReader(&buf, enc, keyCodec, valueCodec, newU64Key, newU64Value)
	for gi, g := range groups {
		keys, _, err := r.ReadGroup()
		if err != nil {
			t.Fatalf("ReadGroup #%d: %v", gi, err)
		}
		if len(keys) != len(g) {
			t.Fatalf("ReadGroup #%d returned %d keys, want %d", gi, len(keys), len(g))
		}
		for i, want := range g {
			if keys[i].(*Uint64Key).V != want {
				t.Fatalf("ReadGroup #%d key[%d] = %d, want %d", gi, i, keys[i].(*Uint64Key).V, want)
			}
		}
	}
	if _, _, err := r.ReadGroup(); err != io.EOF {
		t.Fatalf("ReadGroup after the last written group: want io.EOF, got %v", err)
	}
}
