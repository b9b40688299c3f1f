package packstream

import (
	"bytes"
	"math"
	"testing"

	"github.com/boltstream/gobolt/internal/testutil"
)

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	e := NewEncoder()
	if err := e.Encode(v); err != nil {
		t.Fatalf("encode(%v): %v", v, err)
	}
	d := NewDecoder(e.Bytes())
	got, err := d.Decode()
	if err != nil {
		t.Fatalf("decode(encode(%v)): %v", v, err)
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []any{
		nil, true, false,
		int64(0), int64(1), int64(-1), int64(127), int64(-16), int64(128), int64(-17),
		int64(math.MaxInt16), int64(math.MinInt16),
		int64(math.MaxInt32), int64(math.MinInt32),
		int64(math.MaxInt64), int64(math.MinInt64),
		3.14, 0.0, -0.0,
		"", "hi", string(make([]byte, 300)),
		[]byte{}, []byte{1, 2, 3},
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if f, ok := c.(float64); ok {
			gf, ok := got.(float64)
			if !ok || gf != f {
				t.Errorf("round trip float %v got %v", f, got)
			}
			continue
		}
		if !valueEqual(c, got) {
			t.Errorf("round trip %#v got %#v", c, got)
		}
	}
}

func TestRoundTripCompositeValues(t *testing.T) {
	list := []any{int64(1), "two", nil, []any{int64(3)}}
	got := roundTrip(t, list)
	if !valueEqual(list, got) {
		t.Errorf("round trip list %#v got %#v", list, got)
	}

	m := map[string]any{"a": int64(1), "b": "two"}
	got = roundTrip(t, m)
	if !valueEqual(m, got) {
		t.Errorf("round trip map %#v got %#v", m, got)
	}

	s := &Structure{Tag: 0x70, Fields: []any{map[string]any{"bookmark": "bm"}}}
	got = roundTrip(t, s)
	gotStruct, ok := got.(*Structure)
	testutil.AssertTrue(t, ok)
	testutil.AssertTrue(t, s.Equal(gotStruct))
}

// Integer widening is permitted by spec §4.1: a value that fits in INT_16
// may be emitted as INT_32 without breaking equality. We verify the decoder
// accepts a manually-widened encoding and still recovers the same int64.
func TestIntegerWideningAccepted(t *testing.T) {
	e := NewEncoder()
	e.writeByte(markerInt32)
	e.writeUint32(uint32(int32(42)))
	d := NewDecoder(e.Bytes())
	got, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if got.(int64) != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestEncodeByteIdenticalForEqualStructures(t *testing.T) {
	a := &Structure{Tag: 0x01, Fields: []any{"x", int64(1), map[string]any{"k": "v"}}}
	b := &Structure{Tag: 0x01, Fields: []any{"x", int64(1), map[string]any{"k": "v"}}}
	ea, eb := NewEncoder(), NewEncoder()
	if err := ea.Encode(a); err != nil {
		t.Fatal(err)
	}
	if err := eb.Encode(b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ea.Bytes(), eb.Bytes()) {
		t.Errorf("expected identical bytes for equal structures, got %x vs %x", ea.Bytes(), eb.Bytes())
	}
}

func TestDecodeRejectsUnknownMarker(t *testing.T) {
	d := NewDecoder([]byte{0xC7})
	if _, err := d.Decode(); err == nil {
		t.Error("expected protocol error for unknown marker")
	}
}

func TestDecodeRejectsNonStringMapKey(t *testing.T) {
	e := NewEncoder()
	// Hand-build a tiny map with one entry whose key is a tiny-int, not a string.
	e.writeByte(markerTinyMapBase | 1)
	e.writeByte(0x01) // key: tiny-int 1, not a string
	e.writeByte(markerTrue)
	d := NewDecoder(e.Bytes())
	if _, err := d.Decode(); err == nil {
		t.Error("expected protocol error for non-string map key")
	}
}

func TestTinyStringThresholds(t *testing.T) {
	for _, n := range []int{0, 15, 16, 255, 256, 65535, 65536} {
		s := string(make([]byte, n))
		got := roundTrip(t, s)
		if got.(string) != s {
			t.Errorf("string length %d round trip failed", n)
		}
	}
}
