package quic

import "testing"

func TestConnRegistryLookupAndRemove(t *testing.T) {
	r := newConnRegistry()
	rc := &remoteConn{scid: []byte("scid-1")}
	r.add([]byte("scid-1"), rc)
	r.add([]byte("odcid-1"), rc)

	if got := r.lookup([]byte("scid-1")); got != rc {
		t.Fatal("lookup() by scid did not return the registered remoteConn")
	}
	if got := r.lookup([]byte("odcid-1")); got != rc {
		t.Fatal("lookup() by odcid did not return the registered remoteConn")
	}
	if got := r.lookup([]byte("missing")); got != nil {
		t.Fatal("lookup() of an unregistered cid should return nil")
	}

	r.remove(rc)
	if got := r.lookup([]byte("scid-1")); got != nil {
		t.Fatal("remove() should drop every cid association for the connection")
	}
	if got := r.lookup([]byte("odcid-1")); got != nil {
		t.Fatal("remove() should drop every cid association for the connection")
	}
}

func TestConnRegistryAllDeduplicates(t *testing.T) {
	r := newConnRegistry()
	a := &remoteConn{scid: []byte("a")}
	b := &remoteConn{scid: []byte("b")}
	r.add([]byte("a1"), a)
	r.add([]byte("a2"), a) // a second cid for the same connection
	r.add([]byte("b1"), b)

	all := r.all()
	if len(all) != 2 {
		t.Fatalf("all() = %d entries, want 2 deduplicated connections", len(all))
	}
}
