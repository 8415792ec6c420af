package transport

import "testing"

func TestCIDRegistryIssueUnique(t *testing.T) {
	r := newCIDRegistry([]byte("test-static-reset-key"))
	a := r.issue(8)
	b := r.issue(8)
	if len(a.cid) != 8 || len(b.cid) != 8 {
		t.Fatalf("issue(8) produced lengths %d, %d, want 8", len(a.cid), len(b.cid))
	}
	if a.seq == b.seq {
		t.Fatal("issue() should hand out increasing sequence numbers")
	}
	if string(a.cid) == string(b.cid) {
		t.Fatal("issue() produced the same cid twice")
	}
}

func TestStatelessResetTokenDeterministic(t *testing.T) {
	r := newCIDRegistry([]byte("test-static-reset-key"))
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	a := r.statelessResetToken(cid)
	b := r.statelessResetToken(cid)
	if a != b {
		t.Fatalf("statelessResetToken(cid) is not deterministic: %x != %x", a, b)
	}

	r2 := newCIDRegistry([]byte("a different static reset key"))
	c := r2.statelessResetToken(cid)
	if a == c {
		t.Fatal("statelessResetToken with a different key produced the same token")
	}
}

func TestCIDRegistryRetireUpTo(t *testing.T) {
	r := newCIDRegistry([]byte("k"))
	r.issue(8)
	r.issue(8)
	r.issue(8)
	r.retireUpTo(2)
	active := r.active()
	if len(active) != 1 {
		t.Fatalf("active() after retireUpTo(2) = %d entries, want 1", len(active))
	}
	if active[0].seq != 2 {
		t.Fatalf("surviving entry has seq %d, want 2", active[0].seq)
	}
}
