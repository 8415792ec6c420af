package transport

import (
	"testing"

	"github.com/go-test/deep"
)

func TestParamsMarshalUnmarshalRoundTrip(t *testing.T) {
	want := Params{
		InitialSourceConnectionID: []byte{1, 2, 3, 4},
		MaxIdleTimeout:             30000,
		MaxUDPPayloadSize:          1350,
		InitialMaxData:             1 << 20,
		InitialMaxStreamDataBidiLocal:  256 << 10,
		InitialMaxStreamDataBidiRemote: 256 << 10,
		InitialMaxStreamDataUni:        256 << 10,
		InitialMaxStreamsBidi:          50,
		InitialMaxStreamsUni:           50,
		AckDelayExponent:               3,
		MaxAckDelay:                    25,
		ActiveConnectionIDLimit:        4,
		MaxDatagramFrameSize:           65527,
	}

	var got Params
	if err := got.Unmarshal(want.Marshal()); err != nil {
		t.Fatalf("Unmarshal(Marshal()): %v", err)
	}
	if diff := deep.Equal(want, got); diff != nil {
		t.Fatalf("round trip mismatch: %v", diff)
	}
}

func TestParamsUnmarshalAppliesDefaults(t *testing.T) {
	var p Params
	if err := p.Unmarshal(nil); err != nil {
		t.Fatalf("Unmarshal(nil): %v", err)
	}
	if diff := deep.Equal(DefaultParams(), p); diff != nil {
		t.Fatalf("Unmarshal(nil) should yield DefaultParams(): %v", diff)
	}
}

func TestParamsUnmarshalRejectsBadResetTokenSize(t *testing.T) {
	var b []byte
	b = appendVarint(b, paramStatelessResetToken)
	b = appendVarint(b, 4) // a reset token is always 16 bytes
	b = append(b, 1, 2, 3, 4)

	var p Params
	if err := p.Unmarshal(b); err == nil {
		t.Fatal("Unmarshal() should reject a stateless reset token of the wrong size")
	}
}

func TestParamsUnmarshalIgnoresUnknownID(t *testing.T) {
	var b []byte
	b = appendVarint(b, 0x3f) // unassigned id
	b = appendVarint(b, 2)
	b = append(b, 0xaa, 0xbb)
	b = appendVarint(b, paramInitialMaxData)
	b = appendVarint(b, uint64(varintLen(500)))
	vb := make([]byte, varintLen(500))
	putVarint(vb, 500)
	b = append(b, vb...)

	var p Params
	if err := p.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() with an unknown param id: %v", err)
	}
	if p.InitialMaxData != 500 {
		t.Fatalf("InitialMaxData = %d, want 500", p.InitialMaxData)
	}
}
