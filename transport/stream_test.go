package transport

import (
	"io"
	"testing"
)

func TestStreamWriteReadRoundTrip(t *testing.T) {
	st := newStream(4, true, true, 1<<20, 1<<20)
	n, err := st.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = (%d, %v), want (5, nil)", n, err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	if st.canWrite() {
		t.Fatal("canWrite() should be false after Close")
	}

	data, offset, fin := st.popSend(1024)
	if string(data) != "hello" || offset != 0 || !fin {
		t.Fatalf("popSend() = (%q, %d, %v), want (\"hello\", 0, true)", data, offset, fin)
	}

	// Feed the same bytes back in as if they arrived from the peer, to
	// exercise the receive half independent of the send half above.
	if err := st.pushRecv([]byte("world"), 0, true); err != nil {
		t.Fatalf("pushRecv(): %v", err)
	}
	buf := make([]byte, 16)
	n, err = st.Read(buf)
	if err != nil {
		t.Fatalf("Read(): %v", err)
	}
	if string(buf[:n]) != "world" {
		t.Fatalf("Read() = %q, want \"world\"", buf[:n])
	}
	n, err = st.Read(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("Read() after fin = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestStreamWriteAfterCloseFails(t *testing.T) {
	st := newStream(0, true, true, 1<<20, 1<<20)
	if err := st.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	if _, err := st.Write([]byte("x")); err == nil {
		t.Fatal("Write() after Close should fail")
	}
}

func TestStreamWriteExceedsFlowControl(t *testing.T) {
	st := newStream(0, true, true, 4, 1<<20)
	if _, err := st.Write([]byte("hello")); err != errFlowControl {
		t.Fatalf("Write() past the peer-granted limit = %v, want errFlowControl", err)
	}
}

func TestStreamResetClearsSendState(t *testing.T) {
	st := newStream(0, true, true, 1<<20, 1<<20)
	if _, err := st.Write([]byte("hello")); err != nil {
		t.Fatalf("Write(): %v", err)
	}
	st.reset(42)
	if st.sendState != streamStateResetSent {
		t.Fatalf("sendState after reset = %v, want streamStateResetSent", st.sendState)
	}
	if st.resetErrorCode != 42 {
		t.Fatalf("resetErrorCode = %d, want 42", st.resetErrorCode)
	}
	if st.flushable() {
		t.Fatal("flushable() should be false once the send buffer is reset away")
	}
}

func TestStreamIsTerminalUnidirectional(t *testing.T) {
	// A unidirectional stream the peer opened: only the receive half is
	// ours, so the send half is vacuously "done".
	remote := newStream(3, false, false, 1<<20, 1<<20)
	if remote.isTerminal() {
		t.Fatal("fresh unidirectional remote stream should not be terminal")
	}
	if err := remote.pushRecv(nil, 0, true); err != nil {
		t.Fatalf("pushRecv(fin): %v", err)
	}
	if !remote.isTerminal() {
		t.Fatal("uni stream should be terminal once its fin has been delivered")
	}
}

func TestStreamID(t *testing.T) {
	st := newStream(17, true, true, 0, 0)
	if st.ID() != 17 {
		t.Fatalf("ID() = %d, want 17", st.ID())
	}
}
