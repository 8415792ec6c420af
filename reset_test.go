package quic

import "testing"

func TestResetSignerTokenDeterministic(t *testing.T) {
	r := newResetSigner([]byte("shared-endpoint-key"))
	cid := []byte{9, 8, 7, 6, 5}
	a := r.token(cid)
	b := r.token(cid)
	if a != b {
		t.Fatalf("token(cid) is not deterministic: %x != %x", a, b)
	}

	other := newResetSigner([]byte("a different key"))
	if other.token(cid) == a {
		t.Fatal("token() with a different key produced the same token")
	}
}

func TestResetSignerBuildMatches(t *testing.T) {
	r := newResetSigner([]byte("shared-endpoint-key"))
	cid := []byte{1, 2, 3, 4}
	pkt := r.build(cid, 1200)
	if !r.matches(pkt, cid) {
		t.Fatal("build() produced a reset that matches() rejects")
	}
	if r.matches(pkt, []byte{9, 9, 9, 9}) {
		t.Fatal("matches() should not accept a reset built for a different cid")
	}
}

func TestResetSignerBuildBoundedByReplyTo(t *testing.T) {
	r := newResetSigner([]byte("k"))
	cid := []byte{1}

	small := r.build(cid, 10)
	if len(small) != statelessResetMinLen {
		t.Fatalf("build() with a tiny replyTo = %d bytes, want the statelessResetMinLen floor %d", len(small), statelessResetMinLen)
	}

	large := r.build(cid, 2000)
	if len(large) != 64 {
		t.Fatalf("build() with a large replyTo = %d bytes, want the 64-byte cap", len(large))
	}
}

func TestResetSignerMatchesRejectsShortDatagram(t *testing.T) {
	r := newResetSigner([]byte("k"))
	if r.matches([]byte{1, 2, 3}, []byte{1}) {
		t.Fatal("matches() should reject a datagram shorter than statelessResetMinLen")
	}
}
