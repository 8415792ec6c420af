package transport

import "testing"

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 37, 63, 64, 16383, 16384, 1073741823, 1073741824, maxVarint}
	for _, v := range cases {
		b := make([]byte, varintLen(v))
		n := putVarint(b, v)
		if n != len(b) {
			t.Fatalf("putVarint(%d): wrote %d bytes, want %d", v, n, len(b))
		}
		var got uint64
		n2 := getVarint(b, &got)
		if n2 != n {
			t.Fatalf("getVarint(%d): consumed %d bytes, want %d", v, n2, n)
		}
		if got != v {
			t.Fatalf("getVarint: got %d, want %d", got, v)
		}
		if peek := varintPeekLen(b); peek != n {
			t.Fatalf("varintPeekLen(%d): got %d, want %d", v, peek, n)
		}
	}
}

func TestVarintLenBoundaries(t *testing.T) {
	cases := map[uint64]int{
		0:          1,
		63:         1,
		64:         2,
		16383:      2,
		16384:      4,
		1073741823: 4,
		1073741824: 8,
		maxVarint:  8,
	}
	for v, want := range cases {
		if got := varintLen(v); got != want {
			t.Errorf("varintLen(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestGetVarintShortBuffer(t *testing.T) {
	b := []byte{0xc0} // announces an 8-byte value but supplies only 1
	var v uint64
	if n := getVarint(b, &v); n != 0 {
		t.Fatalf("getVarint on truncated input: got n=%d, want 0", n)
	}
}

func TestVarintLenPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("varintLen(maxVarint+1) did not panic")
		}
	}()
	varintLen(maxVarint + 1)
}
