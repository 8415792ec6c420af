package transport

import "testing"

func newTestStreamMap(isClient bool) *streamMap {
	m := &streamMap{isClient: isClient}
	m.init(10, 10)
	m.setPeerMaxStreamsBidi(10)
	m.setPeerMaxStreamsUni(10)
	return m
}

func TestStreamIDSpaceTags(t *testing.T) {
	cases := []struct {
		id          uint64
		clientLocal bool
		bidi        bool
	}{
		{0, true, true},
		{1, false, true},
		{2, true, false},
		{3, false, false},
	}
	for _, c := range cases {
		if got := isStreamLocal(c.id, true); got != c.clientLocal {
			t.Errorf("isStreamLocal(%d, client) = %v, want %v", c.id, got, c.clientLocal)
		}
		if got := isStreamBidi(c.id); got != c.bidi {
			t.Errorf("isStreamBidi(%d) = %v, want %v", c.id, got, c.bidi)
		}
	}
}

func TestStreamMapOpenBidiAdvancesID(t *testing.T) {
	m := newTestStreamMap(true)
	first, err := m.openBidi()
	if err != nil {
		t.Fatalf("openBidi(): %v", err)
	}
	second, err := m.openBidi()
	if err != nil {
		t.Fatalf("openBidi(): %v", err)
	}
	if second != first+4 {
		t.Fatalf("successive client bidi ids: %d then %d, want a stride of 4", first, second)
	}
	if !isStreamLocal(first, true) || !isStreamBidi(first) {
		t.Fatalf("openBidi() on a client map produced id %d, want a client-local bidi id", first)
	}
}

func TestStreamMapOpenUniServerTag(t *testing.T) {
	m := newTestStreamMap(false)
	id, err := m.openUni()
	if err != nil {
		t.Fatalf("openUni(): %v", err)
	}
	if isStreamLocal(id, true) {
		t.Fatalf("server-opened uni stream %d reported as client-local", id)
	}
	if isStreamBidi(id) {
		t.Fatalf("openUni() produced a bidi id %d", id)
	}
}

func TestStreamMapCreateEnforcesLimit(t *testing.T) {
	m := &streamMap{isClient: true}
	m.init(1, 0) // localMaxStreamsBidi=1, localMaxStreamsUni=0

	if _, err := m.create(1, false, true); err != nil { // peer's first bidi stream
		t.Fatalf("create() within limit: %v", err)
	}
	if _, err := m.create(5, false, true); err == nil { // peer's second bidi stream
		t.Fatal("create() beyond localMaxStreamsBidi should fail")
	}
	if len(m.acceptQueue) != 1 {
		t.Fatalf("acceptQueue = %v, want exactly the one accepted stream", m.acceptQueue)
	}
	id, ok := m.acceptNext()
	if !ok || id != 1 {
		t.Fatalf("acceptNext() = (%d, %v), want (1, true)", id, ok)
	}
	if _, ok := m.acceptNext(); ok {
		t.Fatal("acceptNext() should be empty after draining the queue")
	}
}

func TestStreamMapCreateIsIdempotent(t *testing.T) {
	m := newTestStreamMap(true)
	a, err := m.create(0, true, true)
	if err != nil {
		t.Fatalf("create(): %v", err)
	}
	b, err := m.create(0, true, true)
	if err != nil {
		t.Fatalf("create() on an existing id: %v", err)
	}
	if a != b {
		t.Fatal("create() on an existing id should return the same *Stream")
	}
}

func TestStreamMapRemoveTerminal(t *testing.T) {
	m := newTestStreamMap(false)
	st, err := m.create(3, false, false) // peer-initiated uni stream
	if err != nil {
		t.Fatalf("create(): %v", err)
	}
	if err := st.pushRecv(nil, 0, true); err != nil {
		t.Fatalf("pushRecv(fin): %v", err)
	}
	m.removeTerminal()
	if m.get(3) != nil {
		t.Fatal("removeTerminal() should have dropped the finished stream")
	}
}
